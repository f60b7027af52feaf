package user

import (
	"context"
	"errors"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/database"
	userDatamodel "github.com/frahmantamala/procure-to-pay/internal/core/datamodel/user"
	"github.com/frahmantamala/procure-to-pay/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var row userDatamodel.User
	if err := database.GetDB(ctx, r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return user.FromDataModel(&row), nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	var row userDatamodel.User
	if err := database.GetDB(ctx, r.db).Where("username = ?", username).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return user.FromDataModel(&row), nil
}

// Upsert inserts the user keyed by username, updating the mutable columns on
// conflict.
func (r *Repository) Upsert(ctx context.Context, u *user.User) error {
	row := user.ToDataModel(u)
	err := database.GetDB(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash", "role", "is_active", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return err
	}

	stored, err := r.GetByUsername(ctx, u.Username)
	if err != nil {
		return err
	}
	u.ID = stored.ID
	u.CreatedAt = stored.CreatedAt
	u.UpdatedAt = stored.UpdatedAt
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrUserNotFound
	}
	return err
}
