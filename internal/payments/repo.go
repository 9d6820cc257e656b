package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &txn, nil
}

// MarkCompleted transitions pending → completed. The WHERE status='pending'
// guard makes the transition monotonic under concurrent writers: losers
// affect zero rows and re-read the row the winner left behind.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, transactionCode string) (*models.Transaction, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":           enums.TransactionStatusCompleted,
			"transaction_code": transactionCode,
			"completed_at":     now,
			"error_message":    nil,
			"failed_at":        nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	txn, err := r.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if txn.Status == enums.TransactionStatusCompleted {
			return txn, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transaction is %s and cannot be completed", txn.Status))
	}
	return txn, nil
}

// MarkFailed transitions pending → failed with the same guard discipline.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":        enums.TransactionStatusFailed,
			"error_message": reason,
			"failed_at":     now,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	txn, err := r.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if txn.Status == enums.TransactionStatusFailed {
			return txn, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transaction is %s and cannot be failed", txn.Status))
	}
	return txn, nil
}

func (r *repository) FindCompletedWithoutBooking(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Joins("LEFT JOIN bookings ON bookings.transaction_id = transactions.id").
		Where("transactions.status = ?", enums.TransactionStatusCompleted).
		Where("transactions.completed_at < ?", olderThan).
		Where("bookings.id IS NULL").
		Order("transactions.completed_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.TransactionStatusPending).
		Where("created_at < ?", olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
