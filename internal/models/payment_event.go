package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentGateway string

const PaymentGatewayStripe PaymentGateway = "stripe"

// PaymentEventRecord keeps every verified gateway notification for auditing.
// It never decides whether an event gets processed; updates are idempotent on their own.
type PaymentEventRecord struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PaymentGateway  PaymentGateway `gorm:"type:varchar(50);not null;uniqueIndex:idx_payment_events_gateway_event,priority:1" json:"payment_gateway"`
	ProviderEventID string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_payment_events_gateway_event,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:varchar(100);index" json:"event_type"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (PaymentEventRecord) TableName() string { return "payment_events" }
