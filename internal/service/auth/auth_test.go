package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/repository/postgres"
	"github.com/diread/diread/internal/service/auth/resetmanager"
	"github.com/diread/diread/internal/service/auth/tokenmanager"
	"github.com/diread/diread/internal/testutil"
)

// notifierRecorder captures the reset token instead of sending mail
type notifierRecorder struct {
	email string
	token string
	fail  bool
}

func (n *notifierRecorder) SendPasswordReset(_ context.Context, toEmail string, plaintextToken string, _ string) error {
	if n.fail {
		return errors.New("smtp is down")
	}
	n.email = toEmail
	n.token = plaintextToken
	return nil
}

func Test_AuthService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withService := func(t *testing.T, fn func(s *AuthService, notifier *notifierRecorder)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			hasher := BcryptHasher{}

			tm, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret-key"}, hasher, storage)
			require.NoError(t, err)
			rm := resetmanager.New(resetmanager.Config{}, hasher, storage)

			notifier := &notifierRecorder{}
			service, err := NewService(Config{Hasher: hasher}, tm, rm, storage, notifier, nil)
			require.NoError(t, err)

			fn(service, notifier)
		})
	}

	t.Run("Register", func(t *testing.T) {
		t.Run("register ok", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				user, pair, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				assert.Equal(t, "reader@example.com", user.Email)
				assert.Equal(t, "Reader", user.Name)
				assert.NotEmpty(t, pair.Access.Value)
				assert.NotEmpty(t, pair.Refresh.Value)
			})
		})

		t.Run("weak password", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				_, _, err := s.Register(t.Context(), "reader@example.com", "short", "Reader")
				require.ErrorIs(t, err, apperrors.ErrWeakPassword)
			})
		})

		t.Run("password length counts characters not bytes", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				// 7 characters, 13 bytes: still too short
				_, _, err := s.Register(t.Context(), "reader@example.com", "пароль!", "Reader")
				require.ErrorIs(t, err, apperrors.ErrWeakPassword)

				_, _, err = s.Register(t.Context(), "reader@example.com", "пароль!!", "Reader")
				require.NoError(t, err)
			})
		})

		t.Run("duplicate email", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				_, _, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				_, _, err = s.Register(t.Context(), "reader@example.com", "another-password", "Other")
				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("login ok", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				registered, _, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				user, pair, err := s.Login(t.Context(), "reader@example.com", "strong-password")
				require.NoError(t, err)

				assert.Equal(t, registered.ID, user.ID)
				assert.NotEmpty(t, pair.Refresh.Value)
			})
		})

		t.Run("wrong password and unknown email are one error", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				_, _, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				_, _, errWrongPassword := s.Login(t.Context(), "reader@example.com", "wrong-password")
				_, _, errUnknownEmail := s.Login(t.Context(), "nobody@example.com", "strong-password")

				require.ErrorIs(t, errWrongPassword, apperrors.ErrInvalidCredentials)
				require.ErrorIs(t, errUnknownEmail, apperrors.ErrInvalidCredentials)
				assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error(), "both failures must look identical")
			})
		})
	})

	t.Run("RefreshPair", func(t *testing.T) {
		t.Run("rotation consumes the token", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				_, pair, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				fresh, err := s.RefreshPair(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				assert.NotEqual(t, pair.Refresh.Value, fresh.Refresh.Value)

				_, err = s.RefreshPair(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenNotFound, "consumed token must not rotate twice")
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		withService(t, func(s *AuthService, _ *notifierRecorder) {
			_, pair, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
			require.NoError(t, err)

			require.NoError(t, s.Logout(t.Context(), pair.Refresh.Value))
			require.NoError(t, s.Logout(t.Context(), pair.Refresh.Value), "logout stays idempotent")

			_, err = s.RefreshPair(t.Context(), pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
		})
	})

	t.Run("ForgotPassword", func(t *testing.T) {
		t.Run("mails the token", func(t *testing.T) {
			withService(t, func(s *AuthService, notifier *notifierRecorder) {
				_, _, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				require.NoError(t, s.ForgotPassword(t.Context(), "reader@example.com"))

				assert.Equal(t, "reader@example.com", notifier.email)
				assert.NotEmpty(t, notifier.token, "reset token must reach the notifier")
			})
		})

		t.Run("unknown email reports success", func(t *testing.T) {
			withService(t, func(s *AuthService, notifier *notifierRecorder) {
				require.NoError(t, s.ForgotPassword(t.Context(), "nobody@example.com"))
				assert.Empty(t, notifier.token, "nothing should be sent")
			})
		})

		t.Run("delivery failure is swallowed", func(t *testing.T) {
			withService(t, func(s *AuthService, notifier *notifierRecorder) {
				_, _, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				notifier.fail = true
				require.NoError(t, s.ForgotPassword(t.Context(), "reader@example.com"), "smtp trouble must not leak to the caller")
			})
		})
	})

	t.Run("ResetPassword", func(t *testing.T) {
		t.Run("reset ok", func(t *testing.T) {
			withService(t, func(s *AuthService, notifier *notifierRecorder) {
				_, pair, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)
				require.NoError(t, s.ForgotPassword(t.Context(), "reader@example.com"))

				err = s.ResetPassword(t.Context(), notifier.token, "brand-new-password")
				require.NoError(t, err)

				// Old password is gone, the new one works
				_, _, err = s.Login(t.Context(), "reader@example.com", "strong-password")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
				_, _, err = s.Login(t.Context(), "reader@example.com", "brand-new-password")
				require.NoError(t, err)

				// Every session is revoked
				_, err = s.RefreshPair(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
			})
		})

		t.Run("token is single use", func(t *testing.T) {
			withService(t, func(s *AuthService, notifier *notifierRecorder) {
				_, _, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)
				require.NoError(t, s.ForgotPassword(t.Context(), "reader@example.com"))

				require.NoError(t, s.ResetPassword(t.Context(), notifier.token, "brand-new-password"))

				err = s.ResetPassword(t.Context(), notifier.token, "yet-another-password")
				require.ErrorIs(t, err, apperrors.ErrTokenUsed)
			})
		})

		t.Run("weak password keeps the token usable", func(t *testing.T) {
			withService(t, func(s *AuthService, notifier *notifierRecorder) {
				_, _, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)
				require.NoError(t, s.ForgotPassword(t.Context(), "reader@example.com"))

				err = s.ResetPassword(t.Context(), notifier.token, "short")
				require.ErrorIs(t, err, apperrors.ErrWeakPassword)

				err = s.ResetPassword(t.Context(), notifier.token, "пароль!")
				require.ErrorIs(t, err, apperrors.ErrWeakPassword, "length counts characters, not bytes")

				// The rejected attempt must not burn the token
				require.NoError(t, s.ResetPassword(t.Context(), notifier.token, "brand-new-password"))
			})
		})

		t.Run("garbage token", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				err := s.ResetPassword(t.Context(), "garbage", "brand-new-password")
				require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
			})
		})
	})

	t.Run("GetUserFromRequest", func(t *testing.T) {
		t.Run("valid bearer token", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				registered, pair, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				r := httptest.NewRequest("GET", "/", nil)
				r.Header.Set("Authorization", "Bearer "+pair.Access.Value)

				user, err := s.GetUserFromRequest(t.Context(), r)
				require.NoError(t, err)
				assert.Equal(t, registered.ID, user.ID)
			})
		})

		t.Run("missing or malformed header", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				for _, header := range []string{"", "Basic dXNlcjpwd2Q=", "Bearer"} {
					r := httptest.NewRequest("GET", "/", nil)
					if header != "" {
						r.Header.Set("Authorization", header)
					}

					_, err := s.GetUserFromRequest(t.Context(), r)
					require.ErrorIs(t, err, apperrors.ErrTokenNotFound, "header %q must not authenticate", header)
				}
			})
		})

		t.Run("refresh token is not an access token", func(t *testing.T) {
			withService(t, func(s *AuthService, _ *notifierRecorder) {
				_, pair, err := s.Register(t.Context(), "reader@example.com", "strong-password", "Reader")
				require.NoError(t, err)

				r := httptest.NewRequest("GET", "/", nil)
				r.Header.Set("Authorization", "Bearer "+pair.Refresh.Value)

				_, err = s.GetUserFromRequest(t.Context(), r)
				require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
			})
		})
	})
}
