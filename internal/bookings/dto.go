package bookings

import (
	"time"

	"github.com/google/uuid"

	"github.com/rentaride/rentaride-backend/pkg/db/models"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	"github.com/rentaride/rentaride-backend/pkg/types"
)

// BookingResponse is the booking shape returned by the API.
type BookingResponse struct {
	ID            uuid.UUID              `json:"id"`
	Reference     string                 `json:"reference"`
	TransactionID uuid.UUID              `json:"transaction_id"`
	Booking       types.BookingData      `json:"booking"`
	Vehicle       types.VehicleSnapshot  `json:"vehicle"`
	Billing       types.BillingAddress   `json:"billing_address"`
	User          *types.UserInfo        `json:"user,omitempty"`
	DurationDays  int                    `json:"duration_days"`
	Pricing       types.PricingBreakdown `json:"pricing"`
	PaymentStatus enums.PaymentStatus    `json:"payment_status"`
	Status        enums.BookingStatus    `json:"status"`
	CancelRequest *types.CancelRequest   `json:"cancel_request,omitempty"`
	CancelReason  *string                `json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ToBookingResponse maps the stored booking to its API shape.
func ToBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		Reference:     b.Reference,
		TransactionID: b.TransactionID,
		Booking:       b.BookingData,
		Vehicle:       b.VehicleData,
		Billing:       b.BillingAddress,
		User:          b.UserInfo,
		DurationDays:  b.DurationDays,
		Pricing:       b.Pricing,
		PaymentStatus: b.PaymentStatus,
		Status:        b.Status,
		CancelRequest: b.CancelRequest,
		CancelReason:  b.CancelReason,
		CancelledAt:   b.CancelledAt,
		CreatedAt:     b.CreatedAt,
	}
}

// ToBookingResponses maps a list of bookings.
func ToBookingResponses(rows []models.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToBookingResponse(&rows[i]))
	}
	return out
}

// CancelRequestInput is the body for filing a cancellation request.
type CancelRequestInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// CancelDecisionInput is the body for deciding a pending cancellation.
type CancelDecisionInput struct {
	Approve   bool   `json:"approve"`
	DecidedBy string `json:"decided_by" validate:"required,min=1,max=120"`
}

// CreateFromTransactionInput is the body for the explicit booking entry point.
type CreateFromTransactionInput struct {
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
}
