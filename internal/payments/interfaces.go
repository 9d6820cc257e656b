package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/esewa"
)

// Repository is the persistence surface for the transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)

	// MarkCompleted and MarkFailed apply the guarded pending-only update.
	// Re-applying a completion to an already-completed row is a no-op that
	// returns the row; any other terminal collision is a state conflict.
	MarkCompleted(ctx context.Context, id uuid.UUID, transactionCode string) (*models.Transaction, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error)

	// FindCompletedWithoutBooking returns completed transactions older than
	// the cutoff that never got a booking materialized.
	FindCompletedWithoutBooking(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)

	// FindStuckPending returns pending transactions older than the cutoff.
	FindStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
}

// Gateway is the slice of the eSewa client the service depends on.
type Gateway interface {
	BuildPaymentForm(transactionUUID string, totalAmount decimal.Decimal) (*esewa.PaymentForm, error)
	VerifyTransaction(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*esewa.StatusResult, error)
}

// Materializer is the slice of the bookings service the reconciler invokes.
type Materializer interface {
	MaterializeFromTransaction(ctx context.Context, txn *models.Transaction) (*models.Booking, error)
}

// Service drives the payment ledger and, through the materializer, the
// exactly-once booking pipeline.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)

	// HandleSuccessCallback decodes the gateway redirect payload and runs
	// the shared reconciliation flow for the referenced transaction.
	HandleSuccessCallback(ctx context.Context, data string) (*ReconcileOutcome, error)

	// Reconcile re-verifies a transaction with the gateway (when still
	// pending), applies the resulting status transition, and materializes
	// the booking if payment is confirmed. It is the single implementation
	// behind every verification entry point.
	Reconcile(ctx context.Context, transactionID uuid.UUID, codeHint string) (*ReconcileOutcome, error)

	HandleFailureCallback(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
}
