package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/testutil"
)

func Test_ResetTokenRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newToken := func(userID uuid.UUID) models.PasswordResetToken {
		return models.PasswordResetToken{
			ID:        uuid.New(),
			UserID:    userID,
			TokenHash: "digest-of-the-secret",
			CreatedAt: mustParseTime("2024-01-01 19:00:01Z"),
			ExpiresAt: mustParseTime("2200-01-01 03:00:02Z"),
		}
	}

	t.Run("save and get token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := ResetTokenRepo{DB: tx}
			token := newToken(createTokenOwner(t, tx).ID)

			saved, err := repo.Save(t.Context(), token)
			require.NoError(t, err)
			require.Nil(t, saved.UsedAt, "fresh token must not be used")

			got, err := repo.Get(t.Context(), token.ID)
			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, token.UserID, got.UserID)
			require.Equal(t, token.TokenHash, got.TokenHash)
			require.Nil(t, got.UsedAt)
		})
	})

	t.Run("get not existed token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := ResetTokenRepo{DB: tx}

			_, err := repo.Get(t.Context(), uuid.New())

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		})
	})

	t.Run("mark token used", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := ResetTokenRepo{DB: tx}
			token := newToken(createTokenOwner(t, tx).ID)
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			usedAt, err := repo.MarkUsed(t.Context(), token.ID)

			require.NoError(t, err, "No error must be happen when marking used existed token")
			require.WithinDuration(t, time.Now(), usedAt, 5*time.Second, "should marked as used close to now() enough")

			// The returned mark is the db-stored one: timestamptz keeps
			// microseconds, so it must not be compared against in-process time
			got, err := repo.Get(t.Context(), token.ID)
			require.NoError(t, err)
			require.NotNil(t, got.UsedAt)
			assert.True(t, usedAt.Equal(*got.UsedAt), "MarkUsed must return the stored mark")
		})
	})

	t.Run("mark used not existed token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := ResetTokenRepo{DB: tx}

			_, err := repo.MarkUsed(t.Context(), uuid.New())

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		})
	})

	t.Run("mark used keeps the first mark", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := ResetTokenRepo{DB: tx}
			token := newToken(createTokenOwner(t, tx).ID)
			_, err := repo.Save(t.Context(), token)
			require.NoError(t, err)

			first, err := repo.MarkUsed(t.Context(), token.ID)
			require.NoError(t, err, "No error should happen on make used")

			time.Sleep(100 * time.Millisecond)
			_, err = repo.MarkUsed(t.Context(), token.ID)
			require.Error(t, err, "Mark used already used token has to return error")
			require.ErrorIs(t, err, apperrors.ErrTokenUsed, "should return ErrTokenUsed error")

			got, err := repo.Get(t.Context(), token.ID)
			require.NoError(t, err)
			require.NotNil(t, got.UsedAt)
			assert.WithinDuration(t, first, *got.UsedAt, 0, "stored mark must stay the first one")
		})
	})

	t.Run("delete unused for user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := ResetTokenRepo{DB: tx}
			owner := createTokenOwner(t, tx)

			used := newToken(owner.ID)
			_, err := repo.Save(t.Context(), used)
			require.NoError(t, err)
			_, err = repo.MarkUsed(t.Context(), used.ID)
			require.NoError(t, err)

			unused := newToken(owner.ID)
			_, err = repo.Save(t.Context(), unused)
			require.NoError(t, err)

			deleted, err := repo.DeleteUnusedForUser(t.Context(), owner.ID)
			require.NoError(t, err)
			assert.EqualValues(t, 1, deleted, "only not yet used tokens are dropped")

			_, err = repo.Get(t.Context(), unused.ID)
			require.ErrorIs(t, err, apperrors.ErrTokenNotFound)

			_, err = repo.Get(t.Context(), used.ID)
			require.NoError(t, err, "used token stays as an audit trace")
		})
	})
}
