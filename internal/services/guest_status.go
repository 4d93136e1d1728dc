package services

import (
	"math"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

// ReviewWindowDays is how long after checkout either side may leave a review.
const ReviewWindowDays = 15

const reviewWindow = ReviewWindowDays * 24 * time.Hour

// GuestStatus is the derived lifecycle label shown to host and guest.
type GuestStatus int

const (
	GuestStatusInvalidBooking GuestStatus = iota
	GuestStatusInquirySent
	GuestStatusBookingRequest
	GuestStatusDeclined
	GuestStatusDeclinedByGuest
	GuestStatusDeclinedByHost
	GuestStatusDatesNotAvailable
	GuestStatusUpcomingHosting
	GuestStatusCurrentlyHosting
	GuestStatusReviewGuest
	GuestStatusPastGuest
	GuestStatusUpcomingStay
	GuestStatusCurrentlyStaying
	GuestStatusReviewHost
	GuestStatusPastStay
)

var guestStatusLabels = map[GuestStatus]string{
	GuestStatusInvalidBooking:    "Invalid Booking",
	GuestStatusInquirySent:       "Inquiry Sent",
	GuestStatusBookingRequest:    "Booking Request",
	GuestStatusDeclined:          "Declined",
	GuestStatusDeclinedByGuest:   "Declined by Guest",
	GuestStatusDeclinedByHost:    "Declined by Host",
	GuestStatusDatesNotAvailable: "Dates are not available",
	GuestStatusUpcomingHosting:   "Upcoming Hosting",
	GuestStatusCurrentlyHosting:  "Currently Hosting",
	GuestStatusReviewGuest:       "Review Guest",
	GuestStatusPastGuest:         "Past Guest",
	GuestStatusUpcomingStay:      "Upcoming Stay",
	GuestStatusCurrentlyStaying:  "Currently Staying",
	GuestStatusReviewHost:        "Review Host",
	GuestStatusPastStay:          "Past Stay",
}

// String returns the display label.
func (s GuestStatus) String() string {
	return guestStatusLabels[s]
}

// MarshalText renders the status as its display label.
func (s GuestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusInput is everything the resolver looks at. Guest or Host nil means the booking is invalid.
type StatusInput struct {
	Booking     *models.Booking
	Guest       *models.User
	Host        *models.User
	Reviews     []models.Review
	ViewerID    utils.SixID
	IsAvailable bool
	Now         time.Time
}

// GuestStatusResult is the decorated status for a booking view.
type GuestStatusResult struct {
	GuestStatus     GuestStatus    `json:"guestStatus"`
	ReviewDeadline  int            `json:"reviewDeadline,omitempty"`
	CanReview       bool           `json:"canReview"`
	ReviewFromGuest *models.Review `json:"reviewFromGuest,omitempty"`
	ReviewFromHost  *models.Review `json:"reviewFromHost,omitempty"`
}

// ResolveGuestStatus derives the label and review eligibility. Later rules override
// earlier ones: booking type, then decline, then unavailable dates, then the stay timeline.
func ResolveGuestStatus(in StatusInput) GuestStatusResult {
	b := in.Booking
	if b == nil || in.Guest == nil || in.Host == nil {
		return GuestStatusResult{GuestStatus: GuestStatusInvalidBooking}
	}

	res := GuestStatusResult{
		ReviewFromGuest: findReview(in.Reviews, b.GuestID, b.HostID),
		ReviewFromHost:  findReview(in.Reviews, b.HostID, b.GuestID),
	}

	switch b.BookingType {
	case models.BookingTypeInquiry:
		res.GuestStatus = GuestStatusInquirySent
	case models.BookingTypeRequest:
		res.GuestStatus = GuestStatusBookingRequest
	}

	if b.BookingStatus == models.BookingStatusDeclined {
		switch b.DeclinedBy {
		case models.DeclinedByGuest:
			res.GuestStatus = GuestStatusDeclinedByGuest
		case models.DeclinedByHost:
			res.GuestStatus = GuestStatusDeclinedByHost
		default:
			res.GuestStatus = GuestStatusDeclined
		}
	}

	if b.StartDate.After(in.Now) && !in.IsAvailable {
		res.GuestStatus = GuestStatusDatesNotAvailable
	}

	if b.BookingType != models.BookingTypeBooking {
		return res
	}

	upcoming := b.StartDate.After(in.Now)
	past := b.EndDate.Before(in.Now)
	remaining := b.EndDate.Add(reviewWindow).Sub(in.Now)

	if in.ViewerID == b.HostID {
		switch {
		case upcoming:
			res.GuestStatus = GuestStatusUpcomingHosting
		case past:
			if res.ReviewFromHost == nil && remaining > 0 {
				res.GuestStatus = GuestStatusReviewGuest
				res.ReviewDeadline = daysCeil(remaining)
				res.CanReview = true
			} else {
				res.GuestStatus = GuestStatusPastGuest
			}
		default:
			res.GuestStatus = GuestStatusCurrentlyHosting
		}
		return res
	}

	switch {
	case upcoming:
		res.GuestStatus = GuestStatusUpcomingStay
	case past:
		if res.ReviewFromGuest == nil && remaining > 0 {
			res.GuestStatus = GuestStatusReviewHost
			res.ReviewDeadline = daysCeil(remaining)
			res.CanReview = true
		} else {
			res.GuestStatus = GuestStatusPastStay
		}
	default:
		res.GuestStatus = GuestStatusCurrentlyStaying
	}
	return res
}

func findReview(reviews []models.Review, senderID, receiverID utils.SixID) *models.Review {
	for i := range reviews {
		if reviews[i].SenderID == senderID && reviews[i].ReceiverID == receiverID {
			r := reviews[i]
			return &r
		}
	}
	return nil
}

func daysCeil(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
