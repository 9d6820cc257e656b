package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vehicle is the read-only listing the pipeline resolves snapshots against.
// Listing CRUD lives outside this service.
type Vehicle struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title       string          `gorm:"column:title;not null"`
	Type        string          `gorm:"column:type;not null"`
	PricePerDay decimal.Decimal `gorm:"column:price_per_day;type:numeric(12,2);not null"`
	Location    string          `gorm:"column:location"`
	ImageURL    string          `gorm:"column:image_url"`
	Available   bool            `gorm:"column:available;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vehicle) TableName() string { return "vehicles" }
