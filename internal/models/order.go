package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order records a beat license purchase
type Order struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	BeatID        string          `gorm:"type:varchar(64);index" json:"beat_id"`
	LicenseType   LicenseType     `gorm:"type:varchar(20)" json:"license_type"`
	CustomerEmail string          `gorm:"type:varchar(255);index" json:"customer_email"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`

	PaymentStatus   PaymentStatus `gorm:"type:varchar(20);default:'pending';index" json:"payment_status"`
	PaymentIntentID *string       `gorm:"type:varchar(255);index" json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	RefundedAt      *time.Time    `json:"refunded_at,omitempty"`

	// Relationships
	Beat *Beat `gorm:"foreignKey:BeatID" json:"beat,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not provide an id
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
