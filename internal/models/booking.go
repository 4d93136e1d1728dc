package models

import (
	"time"

	"reluxrent/api/internal/utils"
)

// BookingType records the channel a booking originated from.
type BookingType string

const (
	BookingTypeInquiry BookingType = "INQUIRY"
	BookingTypeRequest BookingType = "REQUEST"
	BookingTypeBooking BookingType = "BOOKING"
)

// BookingStatus is the stored lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusAccepted  BookingStatus = "ACCEPTED"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusDeclined  BookingStatus = "DECLINED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusDeclined || s == BookingStatusExpired
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "PENDING"
	PayoutStatusPaid    PayoutStatus = "PAID"
)

// DeclinedBy names the side that declined a booking.
type DeclinedBy string

const (
	DeclinedByGuest DeclinedBy = "Guest"
	DeclinedByHost  DeclinedBy = "Host"
)

// Booking is the central reservation record.
type Booking struct {
	Base             `bson:",inline"`
	SoftDeletable    `bson:",inline"`
	PropertyID       utils.SixID   `bson:"property_id" json:"property_id"`
	HostID           utils.SixID   `bson:"host_id" json:"host_id"`
	GuestID          utils.SixID   `bson:"guest_id" json:"guest_id"`
	CurrencyCode     string        `bson:"currency_code" json:"currency_code"`
	StartDate        time.Time     `bson:"start_date" json:"start_date"`
	EndDate          time.Time     `bson:"end_date" json:"end_date"`
	Guests           int           `bson:"guests" json:"guests"`
	Nights           int           `bson:"nights" json:"nights"`
	TotalPrice       float64       `bson:"total_price" json:"total_price"`
	CleaningCharge   float64       `bson:"cleaning_charge" json:"cleaning_charge"`
	ExtraGuestCharge float64       `bson:"extra_guest_charge" json:"extra_guest_charge"`
	TotalGuestFee    float64       `bson:"total_guest_fee" json:"total_guest_fee"`
	TotalHostFee     float64       `bson:"total_host_fee" json:"total_host_fee"`
	TotalDiscount    float64       `bson:"total_discount" json:"total_discount"`
	GrandTotal       float64       `bson:"grand_total" json:"grand_total"`
	BookingType      BookingType   `bson:"booking_type" json:"booking_type"`
	BookingStatus    BookingStatus `bson:"booking_status" json:"booking_status"`
	PaymentStatus    PaymentStatus `bson:"payment_status" json:"payment_status"`
	PayoutStatus     PayoutStatus  `bson:"payout_status" json:"payout_status"`
	AcceptedAt       *time.Time    `bson:"accepted_at" json:"accepted_at,omitempty"`
	ConfirmedAt      *time.Time    `bson:"confirmed_at" json:"confirmed_at,omitempty"`
	DeclinedAt       *time.Time    `bson:"declined_at" json:"declined_at,omitempty"`
	ExpiredAt        *time.Time    `bson:"expired_at" json:"expired_at,omitempty"`
	DeclinedBy       DeclinedBy    `bson:"declined_by,omitempty" json:"declined_by,omitempty"`
	ConfirmationCode string        `bson:"confirmation_code,omitempty" json:"confirmation_code,omitempty"`
	Message          string        `bson:"message,omitempty" json:"message,omitempty"`
	// Exchange-rate snapshots, captured at creation and never recomputed.
	CurrencyRate         float64   `bson:"currency_rate" json:"currency_rate"`
	PropertyCurrencyRate float64   `bson:"property_currency_rate" json:"property_currency_rate"`
	CreatedAt            time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time `bson:"updated_at" json:"updated_at"`
}

// RecomputeGrandTotal sets GrandTotal from the stored money fields.
func (b *Booking) RecomputeGrandTotal() {
	b.GrandTotal = b.TotalPrice + b.TotalGuestFee + b.CleaningCharge - b.TotalDiscount
}

// HasValidDates reports whether the booking carries a usable date range.
func (b *Booking) HasValidDates() bool {
	return !b.StartDate.IsZero() && !b.EndDate.IsZero() && !b.EndDate.Before(b.StartDate)
}

// BookingDate is the price charged for one night of a booking.
type BookingDate struct {
	Base       `bson:",inline"`
	BookingID  utils.SixID `bson:"booking_id" json:"booking_id"`
	PropertyID utils.SixID `bson:"property_id" json:"property_id"`
	Date       string      `bson:"date" json:"date"` // yyyy-MM-dd
	Price      float64     `bson:"price" json:"price"`
}

// BookedNight claims one night of a property for a confirmed booking.
// A unique index on (property_id, date) makes a second claim fail.
type BookedNight struct {
	PropertyID utils.SixID `bson:"property_id" json:"property_id"`
	Date       string      `bson:"date" json:"date"`
	BookingID  utils.SixID `bson:"booking_id" json:"booking_id"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}
