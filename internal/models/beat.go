package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LicenseType is the tier a beat is licensed under
type LicenseType string

const (
	LicenseTypeBasic     LicenseType = "basic"
	LicenseTypePremium   LicenseType = "premium"
	LicenseTypeExclusive LicenseType = "exclusive"
)

// Valid reports whether l is one of the known tiers
func (l LicenseType) Valid() bool {
	switch l {
	case LicenseTypeBasic, LicenseTypePremium, LicenseTypeExclusive:
		return true
	}
	return false
}

// Beat is a licensable instrumental track
type Beat struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title      string `gorm:"type:varchar(255);not null" json:"title"`
	Genre      string `gorm:"type:varchar(100)" json:"genre"`
	BPM        int    `json:"bpm"`
	MusicalKey string `gorm:"type:varchar(20)" json:"musical_key"`
	PreviewURL string `gorm:"type:text" json:"preview_url"`

	// A zero price means the tier is not offered for this beat.
	BasicPrice     decimal.Decimal `gorm:"type:decimal(10,2)" json:"basic_price"`
	PremiumPrice   decimal.Decimal `gorm:"type:decimal(10,2)" json:"premium_price"`
	ExclusivePrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"exclusive_price"`

	IsActive bool `gorm:"index" json:"is_active"`
	IsSold   bool `json:"is_sold"` // set once an exclusive license is paid
}

// BeforeCreate assigns a UUID when the caller did not provide an id
func (b *Beat) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// PriceFor returns the price of the given tier and whether the tier is offered
func (b Beat) PriceFor(license LicenseType) (decimal.Decimal, bool) {
	var price decimal.Decimal
	switch license {
	case LicenseTypeBasic:
		price = b.BasicPrice
	case LicenseTypePremium:
		price = b.PremiumPrice
	case LicenseTypeExclusive:
		price = b.ExclusivePrice
	default:
		return decimal.Zero, false
	}
	return price, price.IsPositive()
}

// Available reports whether the beat can currently be purchased
func (b Beat) Available() bool {
	return b.IsActive && !b.IsSold
}
