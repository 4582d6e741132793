package user

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/repository/postgres"
	"github.com/diread/diread/internal/testutil"
)

func Test_UserService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withService := func(t *testing.T, fn func(s *UserService, user models.User)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			user, err := storage.User().CreateUser(t.Context(), "reader@example.com", "hashed_password", "Reader")
			require.NoError(t, err)

			fn(NewService(storage), user)
		})
	}

	t.Run("get profile", func(t *testing.T) {
		withService(t, func(s *UserService, user models.User) {
			got, err := s.GetProfile(t.Context(), user.ID)

			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
			assert.Equal(t, "reader@example.com", got.Email)
			assert.Equal(t, "Reader", got.Name)
		})
	})

	t.Run("get profile of unknown user", func(t *testing.T) {
		withService(t, func(s *UserService, _ models.User) {
			_, err := s.GetProfile(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("update profile", func(t *testing.T) {
		withService(t, func(s *UserService, user models.User) {
			updated, err := s.UpdateProfile(t.Context(), user.ID, "Bookworm", "https://cdn.example.com/a.png")

			require.NoError(t, err)
			assert.Equal(t, "Bookworm", updated.Name)
			assert.Equal(t, "https://cdn.example.com/a.png", updated.AvatarURL)
		})
	})

	t.Run("update with empty fields keeps current values", func(t *testing.T) {
		withService(t, func(s *UserService, user models.User) {
			updated, err := s.UpdateProfile(t.Context(), user.ID, "", "")

			require.NoError(t, err)
			assert.Equal(t, user.Name, updated.Name)
		})
	})
}
