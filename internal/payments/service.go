package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rentaride/rentaride-backend/internal/bookings"
	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
	"github.com/rentaride/rentaride-backend/pkg/esewa"
	"github.com/rentaride/rentaride-backend/pkg/logger"
	"github.com/rentaride/rentaride-backend/pkg/types"
)

const verifyGuardScope = "verify"

type vehicleResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
}

// guardStore single-flights verification calls per transaction. Optional:
// a nil guard degrades to unguarded verification.
type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	GuardKey(scope, id string) string
}

type service struct {
	repo         Repository
	gateway      Gateway
	materializer Materializer
	vehicles     vehicleResolver
	guard        guardStore
	guardTTL     time.Duration
	logg         *logger.Logger
}

// NewService wires the payment ledger, gateway adapter and materializer into
// the reconciliation service shared by every entry point.
func NewService(
	repo Repository,
	gateway Gateway,
	materializer Materializer,
	vehicles vehicleResolver,
	guard guardStore,
	guardTTL time.Duration,
	logg *logger.Logger,
) Service {
	if guardTTL <= 0 {
		guardTTL = 30 * time.Second
	}
	return &service{
		repo:         repo,
		gateway:      gateway,
		materializer: materializer,
		vehicles:     vehicles,
		guard:        guard,
		guardTTL:     guardTTL,
		logg:         logg,
	}
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if !input.EndDate.After(input.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}

	vehicle, err := s.vehicles.FindByID(ctx, input.VehicleID)
	if err != nil {
		return nil, err
	}
	if !vehicle.Available {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "vehicle is not available for booking")
	}

	bookingData := types.BookingData{
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		PickupLocation: input.PickupLocation,
		ReturnLocation: input.ReturnLocation,
		Notes:          input.Notes,
	}
	pricing := bookings.PriceRental(vehicle.PricePerDay, bookingData.DurationDays())

	// Guard against stale client-side pricing.
	if !input.Amount.IsZero() && !input.Amount.Equal(pricing.TotalAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quoted amount %s does not match current price %s", input.Amount, pricing.TotalAmount))
	}

	txn := &models.Transaction{
		ID:     uuid.New(),
		Amount: pricing.TotalAmount,
		Status: enums.TransactionStatusPending,
		Method: enums.PaymentMethodEsewa,
		BookingData: bookingData,
		VehicleData: types.VehicleSnapshot{
			VehicleID:   vehicle.ID.String(),
			Title:       vehicle.Title,
			Type:        vehicle.Type,
			PricePerDay: vehicle.PricePerDay,
			Location:    vehicle.Location,
			ImageURL:    vehicle.ImageURL,
		},
		BillingAddress: input.Billing,
		UserInfo:       input.User,
		Pricing:        pricing,
		UserID:         input.UserID,
	}
	if input.User != nil && input.User.Email != "" {
		email := input.User.Email
		txn.UserEmail = &email
	}

	if _, err := s.repo.Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist transaction")
	}

	form, err := s.gateway.BuildPaymentForm(txn.ID.String(), pricing.TotalAmount)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithTransactionID(ctx, txn.ID.String())
	s.logg.Info(ctx, "payment initiated")

	return &InitiateResult{
		TransactionID: txn.ID,
		PaymentURL:    form.Action,
		Fields:        form.Fields,
		Pricing:       pricing,
	}, nil
}

func (s *service) HandleSuccessCallback(ctx context.Context, data string) (*ReconcileOutcome, error) {
	payload, err := esewa.DecodeCallback(data)
	if err != nil {
		return nil, err
	}
	transactionID, err := uuid.Parse(payload.TransactionUUID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback transaction_uuid is not a valid id")
	}
	return s.Reconcile(ctx, transactionID, payload.TransactionCode)
}

func (s *service) Reconcile(ctx context.Context, transactionID uuid.UUID, codeHint string) (*ReconcileOutcome, error) {
	ctx = s.logg.WithTransactionID(ctx, transactionID.String())

	txn, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	switch txn.Status {
	case enums.TransactionStatusCompleted:
		// Payment truth is settled; just make sure the booking exists.
		return &ReconcileOutcome{
			Transaction: txn,
			Booking:     s.materializeBestEffort(ctx, txn),
		}, nil

	case enums.TransactionStatusFailed, enums.TransactionStatusCancelled:
		return &ReconcileOutcome{Transaction: txn}, nil
	}

	if s.guard != nil {
		key := s.guard.GuardKey(verifyGuardScope, transactionID.String())
		acquired, guardErr := s.guard.SetNX(ctx, key, "1", s.guardTTL)
		if guardErr != nil {
			s.logg.Warn(ctx, fmt.Sprintf("verification guard unavailable, proceeding unguarded: %v", guardErr))
		} else if !acquired {
			// Another entry point is verifying this transaction right now.
			return &ReconcileOutcome{Transaction: txn}, nil
		} else {
			defer func() {
				if delErr := s.guard.Del(context.WithoutCancel(ctx), key); delErr != nil {
					s.logg.Warn(ctx, fmt.Sprintf("releasing verification guard: %v", delErr))
				}
			}()
		}
	}

	result, err := s.gateway.VerifyTransaction(ctx, transactionID.String(), txn.Amount)
	if err != nil {
		// Could not reach the gateway: the transaction stays pending and the
		// dependency error propagates instead of being recorded as a denial.
		s.logg.Error(ctx, "gateway verification unavailable", err)
		return nil, err
	}

	if !result.Complete() {
		reason := fmt.Sprintf("gateway reported %s", result.Status)
		failed, err := s.repo.MarkFailed(ctx, transactionID, reason)
		if err != nil {
			return nil, err
		}
		s.logg.Warn(ctx, "payment not confirmed: "+reason)
		return &ReconcileOutcome{Transaction: failed, Verified: true}, nil
	}

	if !result.TotalAmount.Equal(txn.Amount) {
		reason := fmt.Sprintf("gateway-confirmed amount %s does not match stored amount %s",
			result.TotalAmount, txn.Amount)
		failed, err := s.repo.MarkFailed(ctx, transactionID, reason)
		if err != nil {
			return nil, err
		}
		s.logg.Warn(ctx, "payment rejected: "+reason)
		return &ReconcileOutcome{Transaction: failed, Verified: true}, nil
	}

	code := result.RefID
	if code == "" {
		code = codeHint
	}
	completed, err := s.repo.MarkCompleted(ctx, transactionID, code)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "payment confirmed")

	return &ReconcileOutcome{
		Transaction: completed,
		Booking:     s.materializeBestEffort(ctx, completed),
		Verified:    true,
	}, nil
}

func (s *service) HandleFailureCallback(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	ctx = s.logg.WithTransactionID(ctx, transactionID.String())
	txn, err := s.repo.MarkFailed(ctx, transactionID, "payment cancelled by user")
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "payment cancelled by user")
	return txn, nil
}

func (s *service) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	return s.repo.FindTransactionByID(ctx, transactionID)
}

// materializeBestEffort creates the booking for a completed transaction. A
// failure here never rolls back or masks the payment confirmation; the gap
// is logged and left for the backfill sweep.
func (s *service) materializeBestEffort(ctx context.Context, txn *models.Transaction) *models.Booking {
	booking, err := s.materializer.MaterializeFromTransaction(ctx, txn)
	if err != nil {
		s.logg.Error(ctx, "booking materialization failed; transaction stays completed", err)
		return nil
	}
	return booking
}
