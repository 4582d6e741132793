package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/logger"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/repository"
	"github.com/diread/diread/internal/service/auth/resetmanager"
	"github.com/diread/diread/internal/service/auth/tokenmanager"
)

const (
	defaultMinPasswordLen = 8
	defaultAuthScheme     = "Bearer"
)

// Notifier delivers the password reset mail
// Delivery problems are logged and never surface to the requester
type Notifier interface {
	SendPasswordReset(ctx context.Context, toEmail string, plaintextToken string, displayName string) error
}

type Config struct {
	// Hasher to use during registration or login
	// Defaults to BcryptHasher
	Hasher PasswordHasher

	// Minimum accepted password length
	// If not set than default is used
	MinPasswordLen int
}

// AuthService is the credential facade the HTTP layer talks to
type AuthService struct {
	hasher         PasswordHasher
	minPasswordLen int

	// dummyHash is compared against when the email is unknown, so a login
	// with an unknown email costs the same as one with a wrong password
	dummyHash string

	token    *tokenmanager.TokenManager
	reset    *resetmanager.ResetManager
	storage  repository.Storage
	notifier Notifier
	logger   logger.Logger
}

func NewService(
	cfg Config,
	token *tokenmanager.TokenManager,
	reset *resetmanager.ResetManager,
	storage repository.Storage,
	notifier Notifier,
	l logger.Logger,
) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	if cfg.MinPasswordLen == 0 {
		cfg.MinPasswordLen = defaultMinPasswordLen
	}

	if token == nil || reset == nil || storage == nil {
		return nil, errors.New("token manager, reset manager and storage must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	dummyHash, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("hasher is not usable. Err: %w", err)
	}

	return &AuthService{
		hasher:         hasher,
		minPasswordLen: cfg.MinPasswordLen,
		dummyHash:      dummyHash,
		token:          token,
		reset:          reset,
		storage:        storage,
		notifier:       notifier,
		logger:         l,
	}, nil
}

// Register creates the user and logs it in
func (s *AuthService) Register(ctx context.Context, email string, password string, name string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	if utf8.RuneCountInString(password) < s.minPasswordLen {
		return models.User{}, pair, apperrors.ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, email, hash, name)
	if err != nil {
		return models.User{}, pair, err
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return user, pair, nil
}

// Login verifies the credentials and issues a fresh token pair
// Unknown email and wrong password collapse into one error kind: the
// response must not reveal which part was wrong
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		// Burn the same digest compare as the known email path takes
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return user, pair, nil
}

// RefreshPair rotates the refresh token: the presented one is consumed and
// a brand new pair is issued in it's place
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	token, err := s.token.UseRefresh(ctx, refresh)
	if err != nil {
		return pair, err
	}

	user, err := s.storage.User().GetUserByID(ctx, token.UserID)
	if err != nil {
		return pair, err
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Logout revokes the presented refresh token
// Always succeeds: a token that not matches anything is already logged out
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	return s.token.RevokeRefresh(ctx, refresh)
}

// ForgotPassword issues a reset token and mails it to the user
// The caller visible outcome is identical whether the email is registered
// or not, delivery failures included
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	issued, err := s.reset.Request(ctx, user.ID)
	if err != nil {
		return err
	}

	if s.notifier == nil {
		s.logger.Warn("no notifier configured, reset token dropped", "user_id", user.ID)
		return nil
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, issued.Value, user.Name); err != nil {
		s.logger.Error("password reset mail delivery failed", "user_id", user.ID, "error", err.Error())
	}

	return nil
}

// ResetPassword consumes the reset token, replaces the password digest and
// revokes every refresh token of the user, forcing re-authentication on
// every device
//
// All three writes run in one db transaction: the token can not end up
// consumed without the password actually changing
func (s *AuthService) ResetPassword(ctx context.Context, plaintext string, newPassword string) error {
	token, err := s.reset.Verify(ctx, plaintext)
	if err != nil {
		return err
	}

	if utf8.RuneCountInString(newPassword) < s.minPasswordLen {
		return apperrors.ErrWeakPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	return s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Reset().MarkUsed(ctx, token.ID); err != nil {
			return err
		}

		if err := st.User().UpdatePassword(ctx, token.UserID, hash); err != nil {
			return err
		}

		if _, err := st.Refresh().DeleteAllForUser(ctx, token.UserID); err != nil {
			return err
		}

		return nil
	})
}

// GetUserFromRequest authenticates the request by it's access token
func (s *AuthService) GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	header := r.Header.Get("Authorization")

	scheme, access, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, defaultAuthScheme) {
		return models.User{}, fmt.Errorf("no usable authorization header: %w", apperrors.ErrTokenNotFound)
	}

	userID, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		return models.User{}, err
	}

	return s.storage.User().GetUserByID(ctx, userID)
}
