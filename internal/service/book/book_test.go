package book

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/filestore"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/repository/postgres"
	"github.com/diread/diread/internal/testutil"
)

func Test_BookService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withService := func(t *testing.T, fn func(s *BookService, files filestore.Store, user models.User)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			user, err := storage.User().CreateUser(t.Context(), "reader@example.com", "hashed_password", "Reader")
			require.NoError(t, err)

			files, err := filestore.NewLocal(t.TempDir())
			require.NoError(t, err)

			fn(NewService(Config{}, storage, files, nil), files, user)
		})
	}

	upload := func(t *testing.T, s *BookService, user models.User) models.Book {
		t.Helper()

		content := "epub bytes"
		book, err := s.Upload(t.Context(), user.ID, UploadParams{
			Title:    "The Master and Margarita",
			Author:   "Mikhail Bulgakov",
			FileName: "master.epub",
			FileSize: int64(len(content)),
			Content:  strings.NewReader(content),
		})
		require.NoError(t, err, "book should be uploaded without errors")
		return book
	}

	t.Run("Upload", func(t *testing.T) {
		t.Run("upload ok", func(t *testing.T) {
			withService(t, func(s *BookService, files filestore.Store, user models.User) {
				book := upload(t, s, user)

				assert.Equal(t, models.BookTypeEPUB, book.FileType)
				assert.Equal(t, user.ID, book.UserID)
				assert.NotEmpty(t, book.FileKey)

				rc, err := files.Get(t.Context(), book.FileKey)
				require.NoError(t, err, "file content should be stored")
				got, err := io.ReadAll(rc)
				require.NoError(t, err)
				require.NoError(t, rc.Close())
				assert.Equal(t, "epub bytes", string(got))
			})
		})

		t.Run("file type not allowed", func(t *testing.T) {
			withService(t, func(s *BookService, _ filestore.Store, user models.User) {
				_, err := s.Upload(t.Context(), user.ID, UploadParams{
					Title:    "Notes",
					FileName: "notes.txt",
					FileSize: 4,
					Content:  strings.NewReader("text"),
				})
				require.ErrorIs(t, err, apperrors.ErrFileTypeNotAllowed)
			})
		})

		t.Run("file too large", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				storage := postgres.NewStorage(tx)
				user, err := storage.User().CreateUser(t.Context(), "reader@example.com", "hashed_password", "Reader")
				require.NoError(t, err)

				files, err := filestore.NewLocal(t.TempDir())
				require.NoError(t, err)

				s := NewService(Config{MaxFileSize: 8}, storage, files, nil)

				_, err = s.Upload(t.Context(), user.ID, UploadParams{
					Title:    "Big",
					FileName: "big.pdf",
					FileSize: 9,
					Content:  strings.NewReader("123456789"),
				})
				require.ErrorIs(t, err, apperrors.ErrFileTooLarge)
			})
		})
	})

	t.Run("Download", func(t *testing.T) {
		withService(t, func(s *BookService, _ filestore.Store, user models.User) {
			book := upload(t, s, user)

			got, rc, err := s.Download(t.Context(), book.ID, user.ID)
			require.NoError(t, err)
			defer rc.Close() // nolint:errcheck

			assert.Equal(t, book.ID, got.ID)
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "epub bytes", string(content))
		})
	})

	t.Run("Delete removes row and file", func(t *testing.T) {
		withService(t, func(s *BookService, files filestore.Store, user models.User) {
			book := upload(t, s, user)

			require.NoError(t, s.Delete(t.Context(), book.ID, user.ID))

			_, err := s.Get(t.Context(), book.ID, user.ID)
			require.ErrorIs(t, err, apperrors.ErrBookNotFound)

			_, err = files.Get(t.Context(), book.FileKey)
			require.Error(t, err, "stored file must be removed with the row")
		})
	})

	t.Run("SaveProgress", func(t *testing.T) {
		t.Run("saves and reads back", func(t *testing.T) {
			withService(t, func(s *BookService, _ filestore.Store, user models.User) {
				book := upload(t, s, user)

				saved, err := s.SaveProgress(t.Context(), user.ID, book.ID, 42, "epubcfi(/6/4!/4/2)", 21.5)
				require.NoError(t, err)
				assert.Equal(t, 42, saved.CurrentPage)

				got, err := s.GetProgress(t.Context(), user.ID, book.ID)
				require.NoError(t, err)
				assert.Equal(t, 42, got.CurrentPage)
				assert.InDelta(t, 21.5, got.ProgressPercent, 0.001)
			})
		})

		t.Run("rejects books of other users", func(t *testing.T) {
			withService(t, func(s *BookService, _ filestore.Store, user models.User) {
				book := upload(t, s, user)

				// Another user cannot write progress into someone else's book
				_, err := s.SaveProgress(t.Context(), uuid.New(), book.ID, 1, "", 0)
				require.ErrorIs(t, err, apperrors.ErrBookNotFound)
			})
		})
	})

	t.Run("bookmarks and highlights require book ownership", func(t *testing.T) {
		withService(t, func(s *BookService, _ filestore.Store, user models.User) {
			book := upload(t, s, user)

			_, err := s.CreateBookmark(t.Context(), uuid.New(), book.ID, 7, "", "stranger's bookmark")
			require.ErrorIs(t, err, apperrors.ErrBookNotFound)

			bookmark, err := s.CreateBookmark(t.Context(), user.ID, book.ID, 7, "", "owner's bookmark")
			require.NoError(t, err)

			list, err := s.ListBookmarks(t.Context(), user.ID, book.ID)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, bookmark.ID, list[0].ID)

			highlight, err := s.CreateHighlight(t.Context(), user.ID, book.ID, "Manuscripts don't burn", 281, "", "", "")
			require.NoError(t, err)
			assert.Equal(t, "yellow", highlight.Color, "color defaults to yellow")
		})
	})
}
