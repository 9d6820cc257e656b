package vehicles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
)

// Repository exposes the read-only vehicle lookups the reconciliation
// pipeline needs. Vehicle CRUD lives elsewhere.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vehicles repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, err
	}
	return &vehicle, nil
}
