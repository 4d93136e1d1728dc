package services

import (
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

// DateLayout is the day-granularity key used for calendar and night rows.
const DateLayout = "2006-01-02"

// MaxStayNights bounds every stay and availability range.
const MaxStayNights = 365

// PropertyCalendar is the snapshot availability is checked against: the property's
// CONFIRMED bookings with their night rows, and the host-managed calendar.
type PropertyCalendar struct {
	Bookings      []models.Booking
	BookingDates  []models.BookingDate
	PropertyDates []models.PropertyDate
}

// AvailabilityResult reports whether a booking's range is free.
type AvailabilityResult struct {
	IsAvailable      bool     `json:"isAvailable"`
	LastBookingDates []string `json:"lastBookingDates"`
	IsBooked         bool     `json:"isBooked"`
	IsDisabled       bool     `json:"isDisabled"`
}

// CheckAvailability is a pure function of its inputs. The booking's own range is
// expanded inclusive of both ends; a booking without a valid range checks today only.
func CheckAvailability(booking *models.Booking, calendar PropertyCalendar, now time.Time) AvailabilityResult {
	var days []string
	if booking != nil && booking.HasValidDates() {
		days = ExpandDateRange(booking.StartDate, booking.EndDate)
	} else {
		days = []string{now.UTC().Format(DateLayout)}
	}

	var ownID utils.SixID
	if booking != nil {
		ownID = booking.ID
	}

	confirmed := make(map[utils.SixID]bool, len(calendar.Bookings))
	for _, b := range calendar.Bookings {
		if b.ID != ownID && b.BookingStatus == models.BookingStatusConfirmed {
			confirmed[b.ID] = true
		}
	}

	booked := make(map[string]bool)
	for _, d := range calendar.BookingDates {
		if confirmed[d.BookingID] {
			booked[d.Date] = true
		}
	}

	disabled := make(map[string]bool)
	for _, d := range calendar.PropertyDates {
		if d.Disabled {
			disabled[d.Date] = true
		}
	}

	result := AvailabilityResult{LastBookingDates: days}
	for _, day := range days {
		if booked[day] {
			result.IsBooked = true
		}
		if disabled[day] {
			result.IsDisabled = true
		}
	}
	result.IsAvailable = !result.IsBooked && !result.IsDisabled
	return result
}

// ExpandDateRange lists every day from start to end inclusive.
func ExpandDateRange(start, end time.Time) []string {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

// NightsOf lists the nights of a stay: start inclusive, checkout day exclusive.
func NightsOf(start, end time.Time) []string {
	start = truncateDay(start)
	end = truncateDay(end)
	var nights []string
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d.Format(DateLayout))
	}
	return nights
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseDay parses a yyyy-MM-dd string as midnight UTC.
func parseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
