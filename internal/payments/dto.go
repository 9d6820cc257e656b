package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	"github.com/rentaride/rentaride-backend/pkg/types"
)

// InitiateInput is the body for starting a payment attempt. The total is
// computed server-side from the vehicle's day rate; a client-supplied Amount
// is only cross-checked, never trusted.
type InitiateInput struct {
	VehicleID      uuid.UUID            `json:"vehicle_id" validate:"required"`
	StartDate      time.Time            `json:"start_date" validate:"required"`
	EndDate        time.Time            `json:"end_date" validate:"required"`
	PickupLocation string               `json:"pickup_location" validate:"required,min=2,max=200"`
	ReturnLocation string               `json:"return_location" validate:"omitempty,max=200"`
	Notes          string               `json:"notes" validate:"omitempty,max=1000"`
	Billing        types.BillingAddress `json:"billing_address" validate:"required"`
	User           *types.UserInfo      `json:"user,omitempty"`
	UserID         *uuid.UUID           `json:"user_id,omitempty"`
	Amount         decimal.Decimal      `json:"amount"`
}

// InitiateResult carries everything the browser needs to reach the gateway.
type InitiateResult struct {
	TransactionID uuid.UUID              `json:"transaction_id"`
	PaymentURL    string                 `json:"payment_url"`
	Fields        map[string]string      `json:"fields"`
	Pricing       types.PricingBreakdown `json:"pricing"`
}

// ReconcileOutcome reports where a transaction landed after reconciliation.
// Booking is nil when the payment is not confirmed, or when materialization
// failed and is left for the backfill sweep.
type ReconcileOutcome struct {
	Transaction *models.Transaction
	Booking     *models.Booking

	// Verified is true when the gateway was consulted during this call.
	Verified bool
}

// TransactionResponse is the ledger shape returned by the API.
type TransactionResponse struct {
	ID              uuid.UUID               `json:"id"`
	Amount          decimal.Decimal         `json:"amount"`
	Status          enums.TransactionStatus `json:"status"`
	Method          enums.PaymentMethod     `json:"method"`
	TransactionCode *string                 `json:"transaction_code,omitempty"`
	Booking         types.BookingData       `json:"booking"`
	Vehicle         types.VehicleSnapshot   `json:"vehicle"`
	Billing         types.BillingAddress    `json:"billing_address"`
	User            *types.UserInfo         `json:"user,omitempty"`
	Pricing         types.PricingBreakdown  `json:"pricing"`
	ErrorMessage    *string                 `json:"error_message,omitempty"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	FailedAt        *time.Time              `json:"failed_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

// ToTransactionResponse maps the stored transaction to its API shape.
func ToTransactionResponse(t *models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		Amount:          t.Amount,
		Status:          t.Status,
		Method:          t.Method,
		TransactionCode: t.TransactionCode,
		Booking:         t.BookingData,
		Vehicle:         t.VehicleData,
		Billing:         t.BillingAddress,
		User:            t.UserInfo,
		Pricing:         t.Pricing,
		ErrorMessage:    t.ErrorMessage,
		CompletedAt:     t.CompletedAt,
		FailedAt:        t.FailedAt,
		CreatedAt:       t.CreatedAt,
	}
}
