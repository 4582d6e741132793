package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/handlers/render"
	"github.com/diread/diread/internal/models"
)

type authService interface {
	Register(ctx context.Context, email string, password string, name string) (models.User, models.TokenPair, error)
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)
	Logout(ctx context.Context, refresh string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, plaintext string, newPassword string) error

	// Get request and return user if it authenticated or error
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)
}

type AuthHandler struct {
	authService authService
}

func NewAuth(auth authService) *AuthHandler {
	return &AuthHandler{authService: auth}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("POST /logout", h.logout)
	mux.HandleFunc("POST /forgot-password", h.forgotPassword)
	mux.HandleFunc("POST /reset-password", h.resetPassword)

	return mux
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type tokensResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         userResponse `json:"user"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}
}

func toTokensResponse(u models.User, pair models.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    "bearer",
		User:         toUserResponse(u),
	}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		Name     string `json:"name" validate:"omitempty,max=100"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.authService.Register(r.Context(), data.Email, data.Password, data.Name)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrWeakPassword):
			render.ServiceError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with this email already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, toTokensResponse(user, pair), http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.authService.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, toTokensResponse(user, pair))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	type RefreshResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.RefreshPair(r.Context(), data.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		}
		return
	}

	render.JSON(w, RefreshResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    "bearer",
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	data, err := render.BindAndValidate[LogoutRequest](w, r)
	if err != nil {
		return
	}

	if err := h.authService.Logout(r.Context(), data.RefreshToken); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.NoContent(w)
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	type ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	data, err := render.BindAndValidate[ForgotPasswordRequest](w, r)
	if err != nil {
		return
	}

	// Same answer whether the email is registered or not
	if err := h.authService.ForgotPassword(r.Context(), data.Email); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.NoContent(w)
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	type ResetPasswordRequest struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[ResetPasswordRequest](w, r)
	if err != nil {
		return
	}

	if err := h.authService.ResetPassword(r.Context(), data.Token, data.Password); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrWeakPassword):
			render.ServiceError(w, "Password must be at least 8 characters", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrTokenUsed):
			render.ServiceError(w, "Reset token already used", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrTokenExpired), errors.Is(err, apperrors.ErrTokenNotFound):
			render.ServiceError(w, "Invalid or expired reset token", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.NoContent(w)
}
