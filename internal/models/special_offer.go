package models

import (
	"time"

	"reluxrent/api/internal/utils"
)

type SpecialOfferStatus string

const (
	SpecialOfferStatusPending  SpecialOfferStatus = "PENDING"
	SpecialOfferStatusAccepted SpecialOfferStatus = "ACCEPTED"
	SpecialOfferStatusExpired  SpecialOfferStatus = "EXPIRED"
)

// SpecialOffer is a host counter-proposal attached to a booking.
type SpecialOffer struct {
	Base           `bson:",inline"`
	BookingID      utils.SixID        `bson:"booking_id" json:"booking_id"`
	PropertyID     utils.SixID        `bson:"property_id" json:"property_id"`
	HostID         utils.SixID        `bson:"host_id" json:"host_id"`
	GuestID        utils.SixID        `bson:"guest_id" json:"guest_id"`
	StartDate      time.Time          `bson:"start_date" json:"start_date"`
	EndDate        time.Time          `bson:"end_date" json:"end_date"`
	Guests         int                `bson:"guests" json:"guests"`
	Nights         int                `bson:"nights" json:"nights"`
	Price          float64            `bson:"price" json:"price"`
	CleaningCharge float64            `bson:"cleaning_charge" json:"cleaning_charge"`
	GuestFee       float64            `bson:"guest_fee" json:"guest_fee"`
	HostFee        float64            `bson:"host_fee" json:"host_fee"`
	Discount       float64            `bson:"discount" json:"discount"`
	GrandTotal     float64            `bson:"grand_total" json:"grand_total"`
	Status         SpecialOfferStatus `bson:"status" json:"status"`
	ExpiresAt      time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
