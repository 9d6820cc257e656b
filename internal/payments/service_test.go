package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentaride/rentaride-backend/internal/bookings"
	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
	"github.com/rentaride/rentaride-backend/pkg/esewa"
	"github.com/rentaride/rentaride-backend/pkg/logger"
	"github.com/rentaride/rentaride-backend/pkg/types"
)

type stubLedger struct {
	byID map[uuid.UUID]*models.Transaction
}

func newStubLedger(txns ...*models.Transaction) *stubLedger {
	s := &stubLedger{byID: map[uuid.UUID]*models.Transaction{}}
	for _, txn := range txns {
		s.byID[txn.ID] = txn
	}
	return s
}

func (s *stubLedger) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLedger) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	s.byID[txn.ID] = txn
	return txn, nil
}

func (s *stubLedger) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if txn, ok := s.byID[id]; ok {
		return txn, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
}

func (s *stubLedger) MarkCompleted(ctx context.Context, id uuid.UUID, transactionCode string) (*models.Transaction, error) {
	txn, err := s.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case enums.TransactionStatusCompleted:
		return txn, nil
	case enums.TransactionStatusPending:
		now := time.Now().UTC()
		txn.Status = enums.TransactionStatusCompleted
		txn.TransactionCode = &transactionCode
		txn.CompletedAt = &now
		return txn, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transaction is %s and cannot be completed", txn.Status))
	}
}

func (s *stubLedger) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error) {
	txn, err := s.FindTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case enums.TransactionStatusFailed:
		return txn, nil
	case enums.TransactionStatusPending:
		now := time.Now().UTC()
		txn.Status = enums.TransactionStatusFailed
		txn.ErrorMessage = &reason
		txn.FailedAt = &now
		return txn, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transaction is %s and cannot be failed", txn.Status))
	}
}

func (s *stubLedger) FindCompletedWithoutBooking(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	return nil, nil
}

func (s *stubLedger) FindStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	return nil, nil
}

type stubGateway struct {
	result      *esewa.StatusResult
	err         error
	verifyCalls int
}

func (s *stubGateway) BuildPaymentForm(transactionUUID string, totalAmount decimal.Decimal) (*esewa.PaymentForm, error) {
	return &esewa.PaymentForm{
		Action: "https://gateway.test/api/epay/main/v2/form",
		Fields: map[string]string{
			"transaction_uuid": transactionUUID,
			"total_amount":     totalAmount.String(),
		},
	}, nil
}

func (s *stubGateway) VerifyTransaction(ctx context.Context, transactionUUID string, totalAmount decimal.Decimal) (*esewa.StatusResult, error) {
	s.verifyCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubMaterializer struct {
	bookings map[uuid.UUID]*models.Booking
	err      error
	calls    int
}

func newStubMaterializer() *stubMaterializer {
	return &stubMaterializer{bookings: map[uuid.UUID]*models.Booking{}}
}

func (s *stubMaterializer) MaterializeFromTransaction(ctx context.Context, txn *models.Transaction) (*models.Booking, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if existing, ok := s.bookings[txn.ID]; ok {
		return existing, nil
	}
	booking := &models.Booking{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		Pricing:       txn.Pricing,
		Status:        enums.BookingStatusConfirmed,
		PaymentStatus: enums.PaymentStatusCompleted,
	}
	s.bookings[txn.ID] = booking
	return booking, nil
}

type stubVehicles struct {
	vehicle *models.Vehicle
}

func (s *stubVehicles) FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	if s.vehicle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}
	return s.vehicle, nil
}

type stubGuard struct {
	held map[string]bool
}

func (s *stubGuard) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.held == nil {
		s.held = map[string]bool{}
	}
	if s.held[key] {
		return false, nil
	}
	s.held[key] = true
	return true, nil
}

func (s *stubGuard) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.held, key)
	}
	return nil
}

func (s *stubGuard) GuardKey(scope, id string) string {
	return "rr:guard:" + scope + ":" + id
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
}

type serviceFixture struct {
	svc          Service
	ledger       *stubLedger
	gateway      *stubGateway
	materializer *stubMaterializer
	guard        *stubGuard
}

func newFixture(txns ...*models.Transaction) *serviceFixture {
	ledger := newStubLedger(txns...)
	gateway := &stubGateway{}
	materializer := newStubMaterializer()
	guard := &stubGuard{}
	vehicles := &stubVehicles{vehicle: &models.Vehicle{
		ID:          uuid.New(),
		Title:       "Scorpio N",
		Type:        "suv",
		PricePerDay: decimal.NewFromInt(2500),
		Available:   true,
	}}
	svc := NewService(ledger, gateway, materializer, vehicles, guard, 30*time.Second, testLogger())
	return &serviceFixture{
		svc:          svc,
		ledger:       ledger,
		gateway:      gateway,
		materializer: materializer,
		guard:        guard,
	}
}

func complete(uuid string, amount int64, refID string) *esewa.StatusResult {
	return &esewa.StatusResult{
		TransactionUUID: uuid,
		TotalAmount:     decimal.NewFromInt(amount),
		Status:          esewa.StatusComplete,
		RefID:           refID,
	}
}

func TestReconcileConfirmsPaymentAndMaterializes(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.gateway.result = complete(txn.ID.String(), 5850, "ESP123")

	outcome, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.NoError(t, err)

	assert.True(t, outcome.Verified)
	assert.Equal(t, enums.TransactionStatusCompleted, outcome.Transaction.Status)
	require.NotNil(t, outcome.Transaction.TransactionCode)
	assert.Equal(t, "ESP123", *outcome.Transaction.TransactionCode)
	require.NotNil(t, outcome.Booking)
	assert.Equal(t, txn.ID, outcome.Booking.TransactionID)
}

func TestReconcileAmountMismatchFailsTransaction(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.gateway.result = complete(txn.ID.String(), 6000, "ESP123")

	outcome, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.NoError(t, err)

	assert.Equal(t, enums.TransactionStatusFailed, outcome.Transaction.Status)
	require.NotNil(t, outcome.Transaction.ErrorMessage)
	assert.Contains(t, *outcome.Transaction.ErrorMessage, "does not match")
	assert.Nil(t, outcome.Booking)
	assert.Zero(t, f.materializer.calls)
}

func TestReconcileGatewayDenialFailsTransaction(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.gateway.result = &esewa.StatusResult{
		TransactionUUID: txn.ID.String(),
		TotalAmount:     decimal.NewFromInt(5850),
		Status:          esewa.StatusCanceled,
	}

	outcome, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.NoError(t, err)

	assert.Equal(t, enums.TransactionStatusFailed, outcome.Transaction.Status)
	require.NotNil(t, outcome.Transaction.ErrorMessage)
	assert.Contains(t, *outcome.Transaction.ErrorMessage, "CANCELED")
	assert.Nil(t, outcome.Booking)
}

func TestReconcileUnreachableGatewayLeavesTransactionPending(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.gateway.err = pkgerrors.New(pkgerrors.CodeDependency, "esewa status check failed")

	_, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())

	// Not a denial: the transaction is still pending and retryable.
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)
	assert.Zero(t, f.materializer.calls)
	// The guard was released so a retry can proceed.
	assert.Empty(t, f.guard.held)
}

func TestReconcileCompletedTransactionSkipsGateway(t *testing.T) {
	txn := pendingTransaction()
	now := time.Now().UTC()
	code := "ESP123"
	txn.Status = enums.TransactionStatusCompleted
	txn.TransactionCode = &code
	txn.CompletedAt = &now
	f := newFixture(txn)

	outcome, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.NoError(t, err)

	assert.False(t, outcome.Verified)
	assert.Zero(t, f.gateway.verifyCalls)
	// Still ensures the booking exists.
	require.NotNil(t, outcome.Booking)
	assert.Equal(t, 1, f.materializer.calls)
}

func TestReconcileIsIdempotentAcrossEntryPoints(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.gateway.result = complete(txn.ID.String(), 5850, "ESP123")
	ctx := context.Background()

	first, err := f.svc.Reconcile(ctx, txn.ID, "")
	require.NoError(t, err)
	second, err := f.svc.Reconcile(ctx, txn.ID, "")
	require.NoError(t, err)

	assert.Equal(t, 1, f.gateway.verifyCalls)
	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Len(t, f.materializer.bookings, 1)
}

func TestReconcileFailedTransactionDoesNotMaterialize(t *testing.T) {
	txn := pendingTransaction()
	reason := "payment cancelled by user"
	txn.Status = enums.TransactionStatusFailed
	txn.ErrorMessage = &reason
	f := newFixture(txn)

	outcome, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusFailed, outcome.Transaction.Status)
	assert.Nil(t, outcome.Booking)
	assert.Zero(t, f.gateway.verifyCalls)
	assert.Zero(t, f.materializer.calls)
}

func TestReconcileGuardHeldSkipsVerification(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.guard.held = map[string]bool{
		f.guard.GuardKey(verifyGuardScope, txn.ID.String()): true,
	}

	outcome, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.NoError(t, err)
	assert.False(t, outcome.Verified)
	assert.Equal(t, enums.TransactionStatusPending, outcome.Transaction.Status)
	assert.Zero(t, f.gateway.verifyCalls)
}

func TestReconcileMaterializationFailureKeepsPaymentCompleted(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.gateway.result = complete(txn.ID.String(), 5850, "ESP123")
	f.materializer.err = pkgerrors.New(pkgerrors.CodeValidation, "transaction snapshot has no vehicle id")

	outcome, err := f.svc.Reconcile(context.Background(), txn.ID, "")
	require.NoError(t, err)

	// Money moved: the confirmation is never masked by the booking gap.
	assert.Equal(t, enums.TransactionStatusCompleted, outcome.Transaction.Status)
	assert.Nil(t, outcome.Booking)
}

func TestHandleSuccessCallback(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)
	f.gateway.result = complete(txn.ID.String(), 5850, "")

	raw, err := json.Marshal(map[string]string{
		"transaction_uuid": txn.ID.String(),
		"transaction_code": "ESP123",
		"total_amount":     "5,850.0",
		"status":           "COMPLETE",
	})
	require.NoError(t, err)

	outcome, err := f.svc.HandleSuccessCallback(context.Background(), base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	assert.Equal(t, enums.TransactionStatusCompleted, outcome.Transaction.Status)
	// Gateway response carried no ref id, so the callback code fills in.
	require.NotNil(t, outcome.Transaction.TransactionCode)
	assert.Equal(t, "ESP123", *outcome.Transaction.TransactionCode)
}

func TestHandleSuccessCallbackRejectsMalformedPayload(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)

	_, err := f.svc.HandleSuccessCallback(context.Background(), "!!!not-base64!!!")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	// No state was touched.
	assert.Equal(t, enums.TransactionStatusPending, txn.Status)
	assert.Zero(t, f.gateway.verifyCalls)
}

func TestHandleFailureCallback(t *testing.T) {
	txn := pendingTransaction()
	f := newFixture(txn)

	failed, err := f.svc.HandleFailureCallback(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "payment cancelled by user", *failed.ErrorMessage)
}

func TestHandleFailureCallbackNeverDowngradesCompleted(t *testing.T) {
	txn := pendingTransaction()
	txn.Status = enums.TransactionStatusCompleted
	f := newFixture(txn)

	_, err := f.svc.HandleFailureCallback(context.Background(), txn.ID)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
	assert.Equal(t, enums.TransactionStatusCompleted, txn.Status)
}

func TestInitiateCreatesPendingTransactionWithSnapshot(t *testing.T) {
	f := newFixture()
	vehicleID := uuid.New()
	fixtureVehicles := &stubVehicles{vehicle: &models.Vehicle{
		ID:          vehicleID,
		Title:       "Scorpio N",
		Type:        "suv",
		PricePerDay: decimal.NewFromInt(2500),
		Location:    "Kathmandu",
		Available:   true,
	}}
	svc := NewService(f.ledger, f.gateway, f.materializer, fixtureVehicles, f.guard, 30*time.Second, testLogger())

	input := InitiateInput{
		VehicleID:      vehicleID,
		StartDate:      time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 9, 12, 9, 0, 0, 0, time.UTC),
		PickupLocation: "Kathmandu",
		Billing:        types.BillingAddress{Line1: "Thamel", City: "Kathmandu", Country: "NP"},
		User:           &types.UserInfo{Name: "Asha", Email: "asha@example.com"},
	}

	result, err := svc.Initiate(context.Background(), input)
	require.NoError(t, err)

	expected := bookings.PriceRental(decimal.NewFromInt(2500), 2)
	assert.True(t, result.Pricing.TotalAmount.Equal(expected.TotalAmount))
	assert.NotEmpty(t, result.Fields["transaction_uuid"])

	stored, err := f.ledger.FindTransactionByID(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, stored.Status)
	assert.Equal(t, vehicleID.String(), stored.VehicleData.VehicleID)
	assert.True(t, stored.Pricing.Sums())
	require.NotNil(t, stored.UserEmail)
	assert.Equal(t, "asha@example.com", *stored.UserEmail)
}

func TestInitiateRejectsBadInput(t *testing.T) {
	f := newFixture()
	start := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)

	// Dates out of order.
	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		VehicleID: uuid.New(),
		StartDate: start,
		EndDate:   start.Add(-time.Hour),
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	// Stale client-side quote.
	_, err = f.svc.Initiate(context.Background(), InitiateInput{
		VehicleID:      uuid.New(),
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 2),
		PickupLocation: "Kathmandu",
		Amount:         decimal.NewFromInt(1),
	})
	require.Error(t, err)
	appErr = pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestInitiateRejectsUnavailableVehicle(t *testing.T) {
	f := newFixture()
	unavailable := &stubVehicles{vehicle: &models.Vehicle{
		ID:          uuid.New(),
		Title:       "Scorpio N",
		PricePerDay: decimal.NewFromInt(2500),
		Available:   false,
	}}
	svc := NewService(f.ledger, f.gateway, f.materializer, unavailable, f.guard, 30*time.Second, testLogger())

	start := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.Initiate(context.Background(), InitiateInput{
		VehicleID:      uuid.New(),
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 2),
		PickupLocation: "Kathmandu",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}
