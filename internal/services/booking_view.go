package services

import (
	"context"
	"errors"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

// BookingView is a booking decorated for display to one of its participants.
type BookingView struct {
	Booking         *models.Booking      `json:"booking"`
	BookingDates    []models.BookingDate `json:"bookingDates"`
	SpecialOffer    *models.SpecialOffer `json:"specialOffer,omitempty"`
	Property        LocalizedProperty    `json:"property"`
	Availability    AvailabilityResult   `json:"availability"`
	Status          GuestStatusResult    `json:"status"`
	Ratings         *UserRatings         `json:"ratings,omitempty"`
	ConversationID  *utils.SixID         `json:"conversationId,omitempty"`
	FormattedPrices map[string]string    `json:"formattedPrices"`
}

// loadCalendar gathers the availability snapshot for a property, excluding one booking.
func (s *bookingService) loadCalendar(ctx context.Context, propertyID, excludeID utils.SixID, from, to string) (PropertyCalendar, error) {
	bookings, err := s.store.ListConfirmedBookings(ctx, propertyID, excludeID)
	if err != nil {
		return PropertyCalendar{}, err
	}
	ids := make([]utils.SixID, len(bookings))
	for i := range bookings {
		ids[i] = bookings[i].ID
	}
	var dates []models.BookingDate
	if len(ids) > 0 {
		if dates, err = s.store.ListBookingDates(ctx, ids); err != nil {
			return PropertyCalendar{}, err
		}
	}
	propertyDates, err := s.store.ListPropertyDates(ctx, propertyID, from, to)
	if err != nil {
		return PropertyCalendar{}, err
	}
	return PropertyCalendar{Bookings: bookings, BookingDates: dates, PropertyDates: propertyDates}, nil
}

// GetPropertyAvailability checks the nights of the stay [startDate, endDate) against the
// property's confirmed bookings and blocked dates. The checkout day is not checked.
func (s *bookingService) GetPropertyAvailability(ctx context.Context, propertyID utils.SixID, startDate, endDate string) (*AvailabilityResult, error) {
	start, end, err := parseStay(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.FindPropertyByID(ctx, propertyID); errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	lastNight := end.AddDate(0, 0, -1)
	calendar, err := s.loadCalendar(ctx, propertyID, utils.SixID{}, startDate, lastNight.Format(DateLayout))
	if err != nil {
		return nil, err
	}
	res := CheckAvailability(&models.Booking{PropertyID: propertyID, StartDate: start, EndDate: lastNight}, calendar, s.now())
	return &res, nil
}

// GetBookingView assembles everything a participant sees for one booking. Each party
// sees only their own secret feedback.
func (s *bookingService) GetBookingView(ctx context.Context, actor Actor, bookingID utils.SixID, locale string) (*BookingView, error) {
	b, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && actor.UserID != b.GuestID && actor.UserID != b.HostID {
		return nil, ErrForbidden
	}

	view := &BookingView{Booking: b, FormattedPrices: map[string]string{}}

	if view.BookingDates, err = s.store.ListBookingDates(ctx, []utils.SixID{b.ID}); err != nil {
		return nil, err
	}
	if offer, err := s.store.FindPendingSpecialOffer(ctx, b.ID); err == nil {
		view.SpecialOffer = offer
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	from := now.UTC().Format(DateLayout)
	to := from
	if b.HasValidDates() {
		from, to = b.StartDate.Format(DateLayout), b.EndDate.Format(DateLayout)
	}
	calendar, err := s.loadCalendar(ctx, b.PropertyID, b.ID, from, to)
	if err != nil {
		return nil, err
	}
	view.Availability = CheckAvailability(b, calendar, now)

	guest := s.optionalUser(ctx, b.GuestID)
	host := s.optionalUser(ctx, b.HostID)
	reviews, err := s.store.ListReviewsByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		if reviews[i].ReceiverID != actor.UserID {
			reviews[i].SecretFeedback = ""
		}
	}
	view.Status = ResolveGuestStatus(StatusInput{
		Booking:     b,
		Guest:       guest,
		Host:        host,
		Reviews:     reviews,
		ViewerID:    actor.UserID,
		IsAvailable: view.Availability.IsAvailable,
		Now:         now,
	})

	if view.Ratings, err = s.ratings.GetUserRatings(ctx, b.GuestID, b.HostID); err != nil {
		return nil, err
	}

	if link, err := s.conversations.FindBookingThread(ctx, b.ID); err == nil {
		view.ConversationID = &link.ConversationID
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if property, err := s.store.FindPropertyByID(ctx, b.PropertyID); err == nil {
		view.Property = ResolveTranslation(property.Translations, locale, property.Title)
		s.formatPrices(ctx, view, property)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return view, nil
}

func (s *bookingService) optionalUser(ctx context.Context, id utils.SixID) *models.User {
	u, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil
	}
	return u
}

// formatPrices renders the guest-facing totals in the booking currency and the host
// payout in the property currency.
func (s *bookingService) formatPrices(ctx context.Context, view *BookingView, property *models.Property) {
	b := view.Booking
	bookingCur, _ := s.store.FindCurrency(ctx, b.CurrencyCode)
	for key, amount := range map[string]float64{
		"totalPrice":     b.TotalPrice,
		"cleaningCharge": b.CleaningCharge,
		"serviceFee":     b.TotalGuestFee,
		"discount":       b.TotalDiscount,
		"grandTotal":     b.GrandTotal,
	} {
		view.FormattedPrices[key] = FormatPrice(bookingCur, amount)
	}

	payout := b.TotalPrice + b.CleaningCharge - b.TotalDiscount - b.TotalHostFee
	propertyCur, _ := s.store.FindCurrency(ctx, property.CurrencyCode)
	view.FormattedPrices["hostPayout"] = FormatPrice(propertyCur, ConvertPrice(payout, b.CurrencyRate, b.PropertyCurrencyRate))
}
