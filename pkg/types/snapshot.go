package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// The snapshot types below are frozen at transaction initiation and copied
// verbatim into the derived booking. They are stored as jsonb and must never
// be re-read from live vehicle or user state.

// BookingData captures the requested rental period and handover locations.
type BookingData struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	PickupLocation string    `json:"pickup_location"`
	ReturnLocation string    `json:"return_location"`
	Notes          string    `json:"notes,omitempty"`
}

// DurationDays returns the rental length in whole days, minimum one.
func (b BookingData) DurationDays() int {
	days := int(b.EndDate.Sub(b.StartDate).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// VehicleSnapshot freezes the listed vehicle as the payer saw it.
type VehicleSnapshot struct {
	VehicleID   string          `json:"vehicle_id"`
	Title       string          `json:"title"`
	Type        string          `json:"type"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	Location    string          `json:"location,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}

// BillingAddress is the payer-entered billing address.
type BillingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	District   string `json:"district,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// UserInfo is the optional payer identity; nil for guest checkout.
type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// PricingBreakdown is computed once at initiation and copied into the
// booking. Invariant: BasePrice + ServiceFee + Taxes == TotalAmount.
type PricingBreakdown struct {
	BasePrice   decimal.Decimal `json:"base_price"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	Taxes       decimal.Decimal `json:"taxes"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// IsZero reports whether the breakdown was never populated.
func (p PricingBreakdown) IsZero() bool {
	return p.TotalAmount.IsZero() && p.BasePrice.IsZero() && p.ServiceFee.IsZero() && p.Taxes.IsZero()
}

// Sums reports whether the closure invariant holds.
func (p PricingBreakdown) Sums() bool {
	return p.BasePrice.Add(p.ServiceFee).Add(p.Taxes).Equal(p.TotalAmount)
}

// CancelRequest tracks a customer-filed cancellation request on a booking.
type CancelRequest struct {
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
}
