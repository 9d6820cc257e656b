package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/logger"
	"github.com/rentaride/rentaride-backend/pkg/metrics"
)

const bookingBackfillJobName = "booking-backfill"

type completedLedger interface {
	FindCompletedWithoutBooking(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error)
}

type bookingMaterializer interface {
	MaterializeFromTransaction(ctx context.Context, txn *models.Transaction) (*models.Booking, error)
}

// BookingBackfillJobParams configure the orphaned-completion sweep.
type BookingBackfillJobParams struct {
	Logger       *logger.Logger
	Ledger       completedLedger
	Materializer bookingMaterializer
	Metrics      *metrics.JobMetrics

	// Grace keeps freshly completed transactions out of the sweep so the
	// inline materialization path gets to finish first.
	Grace     time.Duration
	BatchSize int
}

type bookingBackfillJob struct {
	logg         *logger.Logger
	ledger       completedLedger
	materializer bookingMaterializer
	metrics      *metrics.JobMetrics
	grace        time.Duration
	batchSize    int
}

// NewBookingBackfillJob builds the job that re-materializes bookings for
// completed transactions that never got one.
func NewBookingBackfillJob(params BookingBackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("materializer required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &bookingBackfillJob{
		logg:         params.Logger,
		ledger:       params.Ledger,
		materializer: params.Materializer,
		metrics:      params.Metrics,
		grace:        grace,
		batchSize:    batchSize,
	}, nil
}

func (j *bookingBackfillJob) Name() string { return bookingBackfillJobName }

func (j *bookingBackfillJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.grace)
	orphans, err := j.ledger.FindCompletedWithoutBooking(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("list completed transactions without bookings: %w", err)
	}
	if len(orphans) == 0 {
		j.setBacklog(0)
		return nil
	}

	j.logg.Info(j.logg.WithField(ctx, "count", len(orphans)), "backfilling bookings for completed transactions")

	var errs error
	remaining := 0
	for i := range orphans {
		txn := orphans[i]
		txnCtx := j.logg.WithTransactionID(ctx, txn.ID.String())
		if _, err := j.materializer.MaterializeFromTransaction(txnCtx, &txn); err != nil {
			j.logg.Error(txnCtx, "backfill materialization failed", err)
			errs = multierr.Append(errs, fmt.Errorf("transaction %s: %w", txn.ID, err))
			remaining++
			continue
		}
		j.logg.Info(txnCtx, "booking backfilled")
	}

	j.setBacklog(remaining)
	return errs
}

func (j *bookingBackfillJob) setBacklog(n int) {
	if j.metrics == nil {
		return
	}
	j.metrics.SetBacklog(bookingBackfillJobName, n)
}
