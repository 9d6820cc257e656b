package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentaride/rentaride-backend/pkg/enums"
	"github.com/rentaride/rentaride-backend/pkg/types"
)

// Transaction is one payment attempt against the gateway. Its ID doubles as
// the transaction_uuid exchanged with eSewa and as the correlation key of the
// derived booking. The row is the source of truth for "did money move".
type Transaction struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Amount          decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Status          enums.TransactionStatus `gorm:"column:status;not null;default:'pending';index"`
	Method          enums.PaymentMethod     `gorm:"column:method;not null;default:'esewa'"`
	TransactionCode *string                 `gorm:"column:transaction_code"`
	BookingData     types.BookingData       `gorm:"column:booking_data;type:jsonb;serializer:json"`
	VehicleData     types.VehicleSnapshot   `gorm:"column:vehicle_data;type:jsonb;serializer:json"`
	BillingAddress  types.BillingAddress    `gorm:"column:billing_address;type:jsonb;serializer:json"`
	UserInfo        *types.UserInfo         `gorm:"column:user_info;type:jsonb;serializer:json"`
	Pricing         types.PricingBreakdown  `gorm:"column:pricing;type:jsonb;serializer:json"`
	UserEmail       *string                 `gorm:"column:user_email;index"`
	UserID          *uuid.UUID              `gorm:"column:user_id;type:uuid;index"`
	ErrorMessage    *string                 `gorm:"column:error_message"`
	CompletedAt     *time.Time              `gorm:"column:completed_at"`
	FailedAt        *time.Time              `gorm:"column:failed_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }
