package user

import (
	"context"
	"fmt"

	"github.com/frahmantamala/procure-to-pay/internal"
)

type Service struct {
	repo Repository
}

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Upsert(ctx context.Context, u *User) error
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// Profile returns the user with the capabilities of their role.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActiveUser() {
		return nil, internal.ErrUserInactive
	}
	return ProfileOf(u), nil
}

// Provision creates the user or refreshes its role, name and password.
func (s *Service) Provision(ctx context.Context, u *User) error {
	if !u.Role.Valid() {
		return fmt.Errorf("unknown role %q for user %s", u.Role, u.Username)
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		return fmt.Errorf("failed to provision user %s: %w", u.Username, err)
	}
	return nil
}
