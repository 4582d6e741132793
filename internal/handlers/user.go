package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/handlers/render"
	"github.com/diread/diread/internal/handlers/userctx"
	"github.com/diread/diread/internal/models"
)

type userService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, name string, avatarURL string) (models.User, error)
}

type UserHandler struct {
	userService userService
}

func NewUser(us userService) *UserHandler {
	return &UserHandler{userService: us}
}

func (h *UserHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", h.me)
	mux.HandleFunc("PUT /me", h.update)

	return mux
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, toUserResponse(user))
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request) {
	type UpdateRequest struct {
		Name      string `json:"name" validate:"omitempty,max=100"`
		AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[UpdateRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, data.Name, data.AvatarURL)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, toUserResponse(updated))
}
