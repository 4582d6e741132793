package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/repository"
)

type UserService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *UserService {
	return &UserService{storage: storage}
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, name string, avatarURL string) (models.User, error) {
	return s.storage.User().UpdateUser(ctx, userID, name, avatarURL)
}
