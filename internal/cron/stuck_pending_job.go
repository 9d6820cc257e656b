package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rentaride/rentaride-backend/internal/payments"
	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	"github.com/rentaride/rentaride-backend/pkg/logger"
)

const stuckPendingJobName = "stuck-pending"

// stuckPendingTimeoutReason is recorded on transactions that exhaust the
// pending TTL without a gateway confirmation.
const stuckPendingTimeoutReason = "verification timed out"

type pendingLedger interface {
	FindStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, transactionID uuid.UUID, codeHint string) (*payments.ReconcileOutcome, error)
}

// StuckPendingJobParams configure the stale-pending sweep.
type StuckPendingJobParams struct {
	Logger     *logger.Logger
	Ledger     pendingLedger
	Reconciler reconciler

	// TTL is how long a transaction may stay pending before the sweep gives
	// it one last verification and then times it out.
	TTL       time.Duration
	BatchSize int
}

type stuckPendingJob struct {
	logg       *logger.Logger
	ledger     pendingLedger
	reconciler reconciler
	ttl        time.Duration
	batchSize  int
}

// NewStuckPendingJob builds the job that resolves transactions stuck in
// pending past their TTL.
func NewStuckPendingJob(params StuckPendingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &stuckPendingJob{
		logg:       params.Logger,
		ledger:     params.Ledger,
		reconciler: params.Reconciler,
		ttl:        ttl,
		batchSize:  batchSize,
	}, nil
}

func (j *stuckPendingJob) Name() string { return stuckPendingJobName }

func (j *stuckPendingJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.ttl)
	stuck, err := j.ledger.FindStuckPending(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("list stuck pending transactions: %w", err)
	}
	if len(stuck) == 0 {
		return nil
	}

	j.logg.Info(j.logg.WithField(ctx, "count", len(stuck)), "resolving stuck pending transactions")

	var errs error
	for i := range stuck {
		txn := stuck[i]
		if err := j.resolve(ctx, txn.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("transaction %s: %w", txn.ID, err))
		}
	}
	return errs
}

// resolve gives the transaction one last authoritative check before timing
// it out. A reachable gateway settles the real outcome; an unreachable one
// no longer postpones the terminal state.
func (j *stuckPendingJob) resolve(ctx context.Context, id uuid.UUID) error {
	ctx = j.logg.WithTransactionID(ctx, id.String())

	outcome, err := j.reconciler.Reconcile(ctx, id, "")
	if err == nil {
		if outcome.Transaction.Status == enums.TransactionStatusPending {
			// Another entry point holds the verification guard for this
			// transaction. Its gateway verdict is the authoritative one,
			// so leave the row alone; the next sweep picks it up if the
			// verifier did not settle it.
			j.logg.Info(ctx, "verification already in flight, leaving pending")
			return nil
		}
		j.logg.Info(ctx, fmt.Sprintf("stuck transaction settled as %s", outcome.Transaction.Status))
		return nil
	}

	j.logg.Warn(ctx, fmt.Sprintf("final verification failed, timing out: %v", err))
	if _, err := j.ledger.MarkFailed(ctx, id, stuckPendingTimeoutReason); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	j.logg.Info(ctx, "stuck transaction timed out")
	return nil
}
