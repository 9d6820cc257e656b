package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
	"github.com/rentaride/rentaride-backend/pkg/types"
)

type vehicleResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
}

type service struct {
	repo         Repository
	transactions TransactionFinder
	vehicles     vehicleResolver
}

// NewService wires the booking materializer and lifecycle operations.
func NewService(repo Repository, transactions TransactionFinder, vehicles vehicleResolver) Service {
	return &service{
		repo:         repo,
		transactions: transactions,
		vehicles:     vehicles,
	}
}

func (s *service) MaterializeFromTransaction(ctx context.Context, txn *models.Transaction) (*models.Booking, error) {
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction is required")
	}
	if txn.Status != enums.TransactionStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transaction %s is %s, not completed", txn.ID, txn.Status))
	}

	// Fast path: already materialized.
	if existing, err := s.repo.FindByTransactionID(ctx, txn.ID); err == nil {
		return existing, nil
	} else if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	if err := s.resolveVehicle(ctx, txn); err != nil {
		return nil, err
	}

	booking := buildBooking(txn)
	created, err := s.repo.Create(ctx, booking)
	if err != nil {
		// Lost the race: another entry point materialized first. The unique
		// index on transaction_id guarantees the winner's row is the one.
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeConflict {
			return s.repo.FindByTransactionID(ctx, txn.ID)
		}
		return nil, err
	}
	return created, nil
}

func (s *service) CreateFromTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Booking, bool, error) {
	txn, err := s.transactions.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, false, err
	}
	if txn.Status != enums.TransactionStatusCompleted {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transaction is %s; bookings require a completed payment", txn.Status))
	}

	if existing, err := s.repo.FindByTransactionID(ctx, transactionID); err == nil {
		return existing, false, nil
	} else if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		return nil, false, err
	}

	booking, err := s.MaterializeFromTransaction(ctx, txn)
	if err != nil {
		return nil, false, err
	}
	return booking, true, nil
}

func (s *service) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Booking, error) {
	return s.repo.FindByTransactionID(ctx, transactionID)
}

func (s *service) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	return s.repo.FindByReference(ctx, reference)
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Booking, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *service) RequestCancellation(ctx context.Context, reference string, reason string) (*models.Booking, error) {
	booking, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("booking is %s and can no longer be cancelled", booking.Status))
	}
	if booking.CancelRequest != nil && booking.CancelRequest.Status == string(enums.CancelRequestStatusPending) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a cancellation request is already pending")
	}

	booking.CancelRequest = &types.CancelRequest{
		Status:      string(enums.CancelRequestStatusPending),
		Reason:      strings.TrimSpace(reason),
		RequestedAt: time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) DecideCancellation(ctx context.Context, reference string, approve bool, decidedBy string) (*models.Booking, error) {
	booking, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if booking.CancelRequest == nil || booking.CancelRequest.Status != string(enums.CancelRequestStatusPending) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no pending cancellation request to decide")
	}

	now := time.Now().UTC()
	booking.CancelRequest.DecidedAt = &now
	booking.CancelRequest.DecidedBy = decidedBy

	if approve {
		if !booking.Status.CanTransitionTo(enums.BookingStatusCancelled) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("booking is %s and cannot transition to cancelled", booking.Status))
		}
		booking.CancelRequest.Status = string(enums.CancelRequestStatusApproved)
		booking.Status = enums.BookingStatusCancelled
		booking.CancelledAt = &now
		reason := booking.CancelRequest.Reason
		booking.CancelReason = &reason
	} else {
		booking.CancelRequest.Status = string(enums.CancelRequestStatusRejected)
	}

	if err := s.repo.Save(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// resolveVehicle checks the snapshot points at a real vehicle. A dangling or
// absent vehicle id fails materialization; the transaction stays completed
// and the gap is handled out of band.
func (s *service) resolveVehicle(ctx context.Context, txn *models.Transaction) error {
	raw := strings.TrimSpace(txn.VehicleData.VehicleID)
	if raw == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction snapshot has no vehicle id")
	}
	vehicleID, err := uuid.Parse(raw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "transaction snapshot vehicle id is malformed")
	}
	if s.vehicles == nil {
		return nil
	}
	if _, err := s.vehicles.FindByID(ctx, vehicleID); err != nil {
		return err
	}
	return nil
}

func buildBooking(txn *models.Transaction) *models.Booking {
	pricing := txn.Pricing
	if pricing.IsZero() || !pricing.Sums() {
		pricing = DerivePricing(txn.Amount)
	}

	return &models.Booking{
		ID:             uuid.New(),
		Reference:      newReference(txn.ID),
		TransactionID:  txn.ID,
		BookingData:    txn.BookingData,
		VehicleData:    txn.VehicleData,
		BillingAddress: txn.BillingAddress,
		UserInfo:       txn.UserInfo,
		DurationDays:   txn.BookingData.DurationDays(),
		Pricing:        pricing,
		PaymentStatus:  enums.PaymentStatusCompleted,
		Status:         enums.BookingStatusConfirmed,
		UserEmail:      txn.UserEmail,
		UserID:         txn.UserID,
	}
}

// newReference derives the human-facing booking reference from the
// transaction id, so racing materializations of the same transaction mint
// the same reference.
func newReference(transactionID uuid.UUID) string {
	compact := strings.ToUpper(strings.ReplaceAll(transactionID.String(), "-", ""))
	return "RB-" + compact[:10]
}
