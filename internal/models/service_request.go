package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceRequest is a customer's order for a paid studio service
type ServiceRequest struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	ServiceID      *uint  `gorm:"index" json:"service_id"`
	CustomerName   string `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail  string `gorm:"type:varchar(255);index" json:"customer_email"`
	ProjectDetails string `gorm:"type:text" json:"project_details"`

	PaymentStatus   PaymentStatus `gorm:"type:varchar(20);default:'pending';index" json:"payment_status"`
	PaymentIntentID *string       `gorm:"type:varchar(255);index" json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	// what the gateway actually charged; checkouts may override the service name and price
	AmountPaid *decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount_paid,omitempty"`
	PaidItem   string           `gorm:"type:varchar(255)" json:"paid_item,omitempty"`
	RefundedAt      *time.Time    `json:"refunded_at,omitempty"`

	// Relationships
	Service *Service `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not provide an id
func (r *ServiceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
