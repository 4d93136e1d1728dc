package services

import (
	"time"

	"reluxrent/api/internal/models"
)

const (
	weeklyDiscountNights  = 7
	monthlyDiscountNights = 28
)

// FeeSchedule holds the platform service fee percentages.
type FeeSchedule struct {
	GuestPercent float64
	HostPercent  float64
}

// Quote is the priced breakdown of a stay, in the booking currency.
type Quote struct {
	Nights           int                  `json:"nights"`
	NightlyPrices    []models.BookingDate `json:"nightlyPrices"`
	TotalPrice       float64              `json:"totalPrice"`
	ExtraGuestCharge float64              `json:"extraGuestCharge"`
	CleaningCharge   float64              `json:"cleaningCharge"`
	TotalGuestFee    float64              `json:"totalGuestFee"`
	TotalHostFee     float64              `json:"totalHostFee"`
	TotalDiscount    float64              `json:"totalDiscount"`
	GrandTotal       float64              `json:"grandTotal"`
}

// QuoteStay prices the nights [start, end) of a property. Calendar entries override the
// base nightly price. Amounts are converted with the given rate snapshots.
func QuoteStay(p *models.Property, calendar []models.PropertyDate, start, end time.Time, guests int, fees FeeSchedule, propertyRate, bookingRate float64) Quote {
	overrides := make(map[string]float64, len(calendar))
	for _, d := range calendar {
		if d.Price != nil {
			overrides[d.Date] = *d.Price
		}
	}

	convert := func(v float64) float64 {
		return roundTo(ConvertPrice(v, propertyRate, bookingRate), 2)
	}

	nights := NightsOf(start, end)
	q := Quote{Nights: len(nights), NightlyPrices: make([]models.BookingDate, 0, len(nights))}

	var nightlySum float64
	for _, night := range nights {
		price := p.BasePrice
		if o, ok := overrides[night]; ok {
			price = o
		}
		price = convert(price)
		nightlySum += price
		q.NightlyPrices = append(q.NightlyPrices, models.BookingDate{PropertyID: p.ID, Date: night, Price: price})
	}

	if extra := guests - p.GuestsIncluded; extra > 0 && p.GuestsIncluded > 0 {
		q.ExtraGuestCharge = convert(p.ExtraGuestPrice * float64(extra) * float64(q.Nights))
	}
	q.TotalPrice = roundTo(nightlySum+q.ExtraGuestCharge, 2)
	q.CleaningCharge = convert(p.CleaningPrice)

	switch {
	case q.Nights >= monthlyDiscountNights && p.MonthlyDiscountPercent > 0:
		q.TotalDiscount = roundTo(nightlySum*p.MonthlyDiscountPercent/100, 2)
	case q.Nights >= weeklyDiscountNights && p.WeeklyDiscountPercent > 0:
		q.TotalDiscount = roundTo(nightlySum*p.WeeklyDiscountPercent/100, 2)
	}

	q.applyFees(fees)
	return q
}

// QuoteOffer prices a host counter-offer: the host sets the stay total, fees and
// cleaning follow the property, and no length-of-stay discount applies.
func QuoteOffer(p *models.Property, start, end time.Time, offeredTotal float64, fees FeeSchedule, propertyRate, bookingRate float64) Quote {
	nights := NightsOf(start, end)
	q := Quote{Nights: len(nights), NightlyPrices: make([]models.BookingDate, 0, len(nights))}
	q.TotalPrice = roundTo(offeredTotal, 2)
	q.CleaningCharge = roundTo(ConvertPrice(p.CleaningPrice, propertyRate, bookingRate), 2)

	if len(nights) > 0 {
		perNight := roundTo(q.TotalPrice/float64(len(nights)), 2)
		for _, night := range nights {
			q.NightlyPrices = append(q.NightlyPrices, models.BookingDate{PropertyID: p.ID, Date: night, Price: perNight})
		}
	}

	q.applyFees(fees)
	return q
}

func (q *Quote) applyFees(fees FeeSchedule) {
	subtotal := q.TotalPrice + q.CleaningCharge - q.TotalDiscount
	q.TotalGuestFee = roundTo(subtotal*fees.GuestPercent/100, 2)
	q.TotalHostFee = roundTo(subtotal*fees.HostPercent/100, 2)
	q.GrandTotal = roundTo(q.TotalPrice+q.TotalGuestFee+q.CleaningCharge-q.TotalDiscount, 2)
}

// ApplyTo copies the quote's money fields onto a booking and recomputes the grand total.
func (q Quote) ApplyTo(b *models.Booking) {
	b.Nights = q.Nights
	b.TotalPrice = q.TotalPrice
	b.ExtraGuestCharge = q.ExtraGuestCharge
	b.CleaningCharge = q.CleaningCharge
	b.TotalGuestFee = q.TotalGuestFee
	b.TotalHostFee = q.TotalHostFee
	b.TotalDiscount = q.TotalDiscount
	b.RecomputeGrandTotal()
}
