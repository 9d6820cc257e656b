package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rentaride/rentaride-backend/pkg/enums"
	"github.com/rentaride/rentaride-backend/pkg/types"
)

// Booking is the confirmed rental derived from exactly one completed
// transaction. The unique index on TransactionID is the concurrency control
// for at-most-one-booking-per-transaction.
type Booking struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Reference      string                 `gorm:"column:reference;not null;uniqueIndex:idx_bookings_reference"`
	TransactionID  uuid.UUID              `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex:idx_bookings_transaction_id"`
	BookingData    types.BookingData      `gorm:"column:booking_data;type:jsonb;serializer:json"`
	VehicleData    types.VehicleSnapshot  `gorm:"column:vehicle_data;type:jsonb;serializer:json"`
	BillingAddress types.BillingAddress   `gorm:"column:billing_address;type:jsonb;serializer:json"`
	UserInfo       *types.UserInfo        `gorm:"column:user_info;type:jsonb;serializer:json"`
	DurationDays   int                    `gorm:"column:duration_days;not null"`
	Pricing        types.PricingBreakdown `gorm:"column:pricing;type:jsonb;serializer:json"`
	PaymentStatus  enums.PaymentStatus    `gorm:"column:payment_status;not null;default:'pending'"`
	Status         enums.BookingStatus    `gorm:"column:status;not null;default:'pending';index"`
	CancelRequest  *types.CancelRequest   `gorm:"column:cancel_request;type:jsonb;serializer:json"`
	CancelReason   *string                `gorm:"column:cancel_reason"`
	CancelledAt    *time.Time             `gorm:"column:cancelled_at"`
	UserEmail      *string                `gorm:"column:user_email;index"`
	UserID         *uuid.UUID             `gorm:"column:user_id;type:uuid;index"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Booking) TableName() string { return "bookings" }
