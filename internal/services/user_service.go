package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"financify/internal/core"
)

// UserService registers users and issues their API keys.
type UserService struct {
	repo   UserRepository
	newKey func() string
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, newKey: NewAPIKey}
}

// NewAPIKey returns a random 32 character hex key.
func NewAPIKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create registers username and returns the user with its API key set.
// A taken username yields core.ErrConflict.
func (s *UserService) Create(ctx context.Context, username string) (core.User, error) {
	u := core.User{Username: strings.TrimSpace(username)}
	if err := u.Validate(); err != nil {
		return core.User{}, core.Invalid(err)
	}

	created, err := s.repo.CreateUser(ctx, u.Username, s.newKey())
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", created.ID, "username", created.Username)
	return created, nil
}

// List returns every user without API keys.
func (s *UserService) List(ctx context.Context) ([]core.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].APIKey = ""
	}
	return users, nil
}
