package models

import (
	"time"

	"reluxrent/api/internal/utils"
)

// PropertyStatus is the moderation state of a property.
type PropertyStatus string

const (
	PropertyStatusPending  PropertyStatus = "PENDING"
	PropertyStatusApproved PropertyStatus = "APPROVED"
	PropertyStatusRejected PropertyStatus = "REJECTED"
)

// PropertyTranslation holds localized text for a property.
type PropertyTranslation struct {
	Locale      string `bson:"locale" json:"locale"`
	Title       string `bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
}

// Property is a listed rental unit.
type Property struct {
	Base                   `bson:",inline"`
	SoftDeletable          `bson:",inline"`
	HostID                 utils.SixID           `bson:"host_id" json:"host_id"`
	Title                  string                `bson:"title" json:"title"`
	CurrencyCode           string                `bson:"currency_code" json:"currency_code"`
	Status                 PropertyStatus        `bson:"status" json:"status"`
	IsListed               bool                  `bson:"is_listed" json:"is_listed"`
	BasePrice              float64               `bson:"base_price" json:"base_price"`
	CleaningPrice          float64               `bson:"cleaning_price" json:"cleaning_price"`
	ExtraGuestPrice        float64               `bson:"extra_guest_price" json:"extra_guest_price"`
	GuestsIncluded         int                   `bson:"guests_included" json:"guests_included"`
	MaxGuests              int                   `bson:"max_guests" json:"max_guests"`
	WeeklyDiscountPercent  float64               `bson:"weekly_discount_percent" json:"weekly_discount_percent"`
	MonthlyDiscountPercent float64               `bson:"monthly_discount_percent" json:"monthly_discount_percent"`
	Translations           []PropertyTranslation `bson:"translations,omitempty" json:"translations,omitempty"`
	CreatedAt              time.Time             `bson:"created_at" json:"created_at"`
}

// IsBookable reports whether guests may book the property.
func (p *Property) IsBookable() bool {
	return p.Status == PropertyStatusApproved && p.IsListed && !p.IsDeleted()
}

// PropertyDate is a host-managed calendar entry for one night.
type PropertyDate struct {
	Base       `bson:",inline"`
	PropertyID utils.SixID `bson:"property_id" json:"property_id"`
	Date       string      `bson:"date" json:"date"` // yyyy-MM-dd
	Price      *float64    `bson:"price,omitempty" json:"price,omitempty"`
	Disabled   bool        `bson:"disabled" json:"disabled"`
}
