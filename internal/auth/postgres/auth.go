package auth

import (
	"context"
	"errors"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/auth"
	userDatamodel "github.com/frahmantamala/procure-to-pay/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, username string) (*auth.Credentials, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		return nil, mapErr(err)
	}
	return credentialsOf(&row), nil
}

func (r *Repository) GetCredentialsByID(ctx context.Context, userID int64) (*auth.Credentials, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error; err != nil {
		return nil, mapErr(err)
	}
	return credentialsOf(&row), nil
}

// GetActor loads an active user as a workflow actor.
func (r *Repository) GetActor(ctx context.Context, userID int64) (*coreuser.Actor, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "username", "email", "role").
		Where("id = ? AND is_active = ?", userID, true).
		First(&row).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &coreuser.Actor{
		ID:       row.ID,
		Username: row.Username,
		Email:    row.Email,
		Role:     coreuser.Role(row.Role),
	}, nil
}

func credentialsOf(row *userDatamodel.User) *auth.Credentials {
	return &auth.Credentials{
		UserID:       row.ID,
		Username:     row.Username,
		Role:         coreuser.Role(row.Role),
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
	}
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrUserNotFound
	}
	return err
}
