package bookings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentaride/rentaride-backend/pkg/db"
	"github.com/rentaride/rentaride-backend/pkg/db/models"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bookings repository bound to the provided DB.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create persists the booking. A unique violation on the transaction-id
// index maps to a conflict so callers can re-read the winning row.
func (r *repository) Create(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_bookings_transaction_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "booking already exists for transaction")
		}
		return nil, err
	}
	return booking, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &booking, nil
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&booking).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &booking, nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&booking).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &booking, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Booking, error) {
	var rows []models.Booking
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Save(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return err
}
