package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
)

// Repository is the persistence surface for bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Booking, error)
	FindByReference(ctx context.Context, reference string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Booking, error)
	Save(ctx context.Context, booking *models.Booking) error
}

// Service owns booking materialization and lifecycle.
type Service interface {
	// MaterializeFromTransaction derives and persists the booking for a
	// completed transaction. It is idempotent: concurrent and repeated calls
	// for the same transaction all resolve to the same single booking.
	MaterializeFromTransaction(ctx context.Context, txn *models.Transaction) (*models.Booking, error)

	// CreateFromTransaction is the explicit API entry point. The created flag
	// is false when the booking already existed.
	CreateFromTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Booking, bool, error)

	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Booking, error)

	RequestCancellation(ctx context.Context, reference string, reason string) (*models.Booking, error)
	DecideCancellation(ctx context.Context, reference string, approve bool, decidedBy string) (*models.Booking, error)
}

// TransactionFinder resolves a transaction by id. Implemented by the
// payments repository; declared here to keep the dependency one-way.
type TransactionFinder interface {
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}
