package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reluxrent/api/internal/config"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

// BookingInput is a guest's booking, request or inquiry. Dates are yyyy-MM-dd;
// EndDate is the checkout day.
type BookingInput struct {
	PropertyID   utils.SixID
	StartDate    string
	EndDate      string
	Guests       int
	CurrencyCode string
	Message      string
}

// ConfirmInput optionally reschedules a booking while confirming it.
// Empty fields keep the booking's current values.
type ConfirmInput struct {
	StartDate string
	EndDate   string
	Guests    int
}

// IBookingService is the booking lifecycle engine.
type IBookingService interface {
	PropertyBooking(ctx context.Context, actor Actor, in BookingInput) (*models.Booking, error)
	RequestBooking(ctx context.Context, actor Actor, in BookingInput) (*models.Booking, error)
	PropertyInquiry(ctx context.Context, actor Actor, in BookingInput) (*models.Booking, error)
	PreApproveBooking(ctx context.Context, actor Actor, bookingID utils.SixID) (*models.Booking, error)
	WithdrawPreApproval(ctx context.Context, actor Actor, bookingID utils.SixID) (*models.Booking, error)
	SendSpecialOffer(ctx context.Context, actor Actor, bookingID utils.SixID, in SpecialOfferInput) (*models.Booking, *models.SpecialOffer, error)
	WithdrawSpecialOffer(ctx context.Context, actor Actor, bookingID utils.SixID) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, actor Actor, bookingID utils.SixID, in ConfirmInput) (*models.Booking, error)
	DeclineBooking(ctx context.Context, actor Actor, bookingID utils.SixID, by models.DeclinedBy, reason string) (*models.Booking, error)
	ExpireBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, bool, error)
	SoftDeleteBooking(ctx context.Context, actor Actor, bookingID utils.SixID) error
	GetBookingView(ctx context.Context, actor Actor, bookingID utils.SixID, locale string) (*BookingView, error)
	GetPropertyAvailability(ctx context.Context, propertyID utils.SixID, startDate, endDate string) (*AvailabilityResult, error)
}

type bookingService struct {
	store         repository.Store
	cfg           *config.Config
	conversations IConversationService
	ratings       IRatingService
	locker        ILocker
	notifier      INotifier
	scheduler     IExpiryScheduler
	audit         IAuditRecorder
	now           func() time.Time
}

// NewBookingService wires the lifecycle engine to its collaborators.
func NewBookingService(
	store repository.Store,
	cfg *config.Config,
	conversations IConversationService,
	ratings IRatingService,
	locker ILocker,
	notifier INotifier,
	scheduler IExpiryScheduler,
	audit IAuditRecorder,
) IBookingService {
	return &bookingService{
		store:         store,
		cfg:           cfg,
		conversations: conversations,
		ratings:       ratings,
		locker:        locker,
		notifier:      notifier,
		scheduler:     scheduler,
		audit:         audit,
		now:           time.Now,
	}
}

func (s *bookingService) fees() FeeSchedule {
	return FeeSchedule{GuestPercent: s.cfg.GuestServiceFeePercent, HostPercent: s.cfg.HostServiceFeePercent}
}

func (s *bookingService) PropertyBooking(ctx context.Context, actor Actor, in BookingInput) (*models.Booking, error) {
	return s.createBooking(ctx, actor, in, models.BookingTypeBooking)
}

func (s *bookingService) RequestBooking(ctx context.Context, actor Actor, in BookingInput) (*models.Booking, error) {
	return s.createBooking(ctx, actor, in, models.BookingTypeRequest)
}

func (s *bookingService) PropertyInquiry(ctx context.Context, actor Actor, in BookingInput) (*models.Booking, error) {
	return s.createBooking(ctx, actor, in, models.BookingTypeInquiry)
}

// bookingParties are the validated participants of a new booking.
type bookingParties struct {
	guest    *models.User
	host     *models.User
	property *models.Property
}

// loadParties applies the creation gates: the guest exists and is not banned, is not the
// host, the host is verified and not banned, and the property is approved and listed.
func (s *bookingService) loadParties(ctx context.Context, guestID, propertyID utils.SixID) (*bookingParties, error) {
	guest, err := s.activeUser(ctx, guestID)
	if err != nil {
		return nil, err
	}
	property, err := s.store.FindPropertyByID(ctx, propertyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if property.HostID == guestID {
		return nil, ErrSelfBooking
	}
	if !property.IsBookable() {
		return nil, ErrPropertyUnavailable
	}
	host, err := s.store.FindUserByID(ctx, property.HostID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrHostUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !host.IsVerified || host.IsBanned {
		return nil, ErrHostUnavailable
	}
	return &bookingParties{guest: guest, host: host, property: property}, nil
}

// activeUser loads a caller and rejects banned accounts.
func (s *bookingService) activeUser(ctx context.Context, id utils.SixID) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrUserBanned
	}
	return user, nil
}

// parseStay parses a check-in and checkout date pair covering 1 to MaxStayNights nights.
func parseStay(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := parseDay(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date %q", ErrInvalidDates, startDate)
	}
	end, err := parseDay(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date %q", ErrInvalidDates, endDate)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: checkout must be after check-in", ErrInvalidDates)
	}
	if end.After(start.AddDate(0, 0, MaxStayNights)) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: stay exceeds %d nights", ErrInvalidDates, MaxStayNights)
	}
	return start, end, nil
}

// resolveRates returns the base-rate snapshots of the booking and property currencies.
func (s *bookingService) resolveRates(ctx context.Context, bookingCode, propertyCode string) (string, float64, float64, error) {
	if bookingCode == "" {
		bookingCode = propertyCode
	}
	bookingCur, err := s.store.FindCurrency(ctx, bookingCode)
	if errors.Is(err, repository.ErrNotFound) {
		return "", 0, 0, validationError("unknown currency %q", bookingCode)
	}
	if err != nil {
		return "", 0, 0, err
	}
	propertyRate := bookingCur.RateToBase
	if propertyCode != bookingCode {
		propertyCur, err := s.store.FindCurrency(ctx, propertyCode)
		if err != nil {
			return "", 0, 0, fmt.Errorf("failed to load property currency %q: %w", propertyCode, err)
		}
		propertyRate = propertyCur.RateToBase
	}
	return bookingCode, bookingCur.RateToBase, propertyRate, nil
}

// checkBlockedDates rejects stays that include a host-disabled night.
func (s *bookingService) checkBlockedDates(start, end time.Time, calendar []models.PropertyDate) error {
	lastNight := end.AddDate(0, 0, -1)
	stay := &models.Booking{StartDate: start, EndDate: lastNight}
	if res := CheckAvailability(stay, PropertyCalendar{PropertyDates: calendar}, s.now()); res.IsDisabled {
		return ErrDatesUnavailable
	}
	return nil
}

// ensureNoConflict returns a ConflictError if a confirmed booking other than excludeID holds any night.
func (s *bookingService) ensureNoConflict(ctx context.Context, propertyID utils.SixID, nights []string, excludeID utils.SixID) error {
	conflict, err := s.store.FindNightConflict(ctx, propertyID, nights, excludeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check date conflicts: %w", err)
	}
	return newConflictError(conflict)
}

func (s *bookingService) createBooking(ctx context.Context, actor Actor, in BookingInput, bookingType models.BookingType) (*models.Booking, error) {
	parties, err := s.loadParties(ctx, actor.UserID, in.PropertyID)
	if err != nil {
		return nil, err
	}
	property := parties.property

	note := strings.TrimSpace(in.Message)
	if bookingType == models.BookingTypeInquiry && note == "" {
		return nil, validationError("message is required for an inquiry")
	}
	if in.Guests < 1 {
		return nil, validationError("at least one guest is required")
	}
	if property.MaxGuests > 0 && in.Guests > property.MaxGuests {
		return nil, validationError("property accommodates at most %d guests", property.MaxGuests)
	}

	hasDates := bookingType != models.BookingTypeInquiry || in.StartDate != "" || in.EndDate != ""
	var start, end time.Time
	if hasDates {
		if start, end, err = parseStay(in.StartDate, in.EndDate); err != nil {
			return nil, err
		}
	}

	currencyCode, bookingRate, propertyRate, err := s.resolveRates(ctx, in.CurrencyCode, property.CurrencyCode)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	booking := &models.Booking{
		PropertyID:           property.ID,
		HostID:               property.HostID,
		GuestID:              actor.UserID,
		CurrencyCode:         currencyCode,
		StartDate:            start,
		EndDate:              end,
		Guests:               in.Guests,
		BookingType:          bookingType,
		BookingStatus:        models.BookingStatusPending,
		PaymentStatus:        models.PaymentStatusUnpaid,
		PayoutStatus:         models.PayoutStatusPending,
		Message:              note,
		CurrencyRate:         bookingRate,
		PropertyCurrencyRate: propertyRate,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	var quote Quote
	var nights []string
	if hasDates {
		calendar, err := s.store.ListPropertyDates(ctx, property.ID, start.Format(DateLayout), end.Format(DateLayout))
		if err != nil {
			return nil, fmt.Errorf("failed to load property calendar: %w", err)
		}
		if err := s.checkBlockedDates(start, end, calendar); err != nil {
			return nil, err
		}
		quote = QuoteStay(property, calendar, start, end, in.Guests, s.fees(), propertyRate, bookingRate)
		quote.ApplyTo(booking)
		nights = NightsOf(start, end)
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if hasDates {
			if err := s.ensureNoConflict(ctx, property.ID, nights, utils.SixID{}); err != nil {
				return err
			}
		}
		if err := s.store.InsertBooking(ctx, booking); err != nil {
			return err
		}
		if bookingType != models.BookingTypeInquiry {
			if err := s.store.ReplaceBookingDates(ctx, booking.ID, quote.NightlyPrices); err != nil {
				return err
			}
		}
		if bookingType == models.BookingTypeBooking {
			return nil
		}
		return s.openThread(ctx, booking, note)
	})
	if err != nil {
		return nil, err
	}

	action := map[models.BookingType]string{
		models.BookingTypeBooking: "booking.create",
		models.BookingTypeRequest: "booking.request",
		models.BookingTypeInquiry: "booking.inquiry",
	}[bookingType]
	template := map[models.BookingType]string{
		models.BookingTypeBooking: "",
		models.BookingTypeRequest: "booking_request_received",
		models.BookingTypeInquiry: "booking_inquiry_received",
	}[bookingType]

	s.afterCommit(ctx, sideEffects{
		audit: AuditRecord{
			Actor: actor, Action: action, Resource: "booking", ResourceID: booking.ID,
			Message: fmt.Sprintf("%s created for property %s", bookingType, property.ID),
			After:   booking,
		},
		recipientID: booking.HostID,
		push: Notification{
			Title: "New " + strings.ToLower(string(bookingType)),
			Body:  fmt.Sprintf("%s sent a %s for %s", parties.guest.DisplayName(), strings.ToLower(string(bookingType)), property.Title),
			Link:  s.bookingLink(booking.ID),
		},
		emailTemplate: template,
		booking:       booking,
	})
	return booking, nil
}

// openThread links a new request or inquiry to the guest's conversation about the property,
// posting a SYSTEM summary and the guest's note.
func (s *bookingService) openThread(ctx context.Context, booking *models.Booking, note string) error {
	conv, err := s.conversations.FindOrCreateConversation(ctx, booking.PropertyID, booking.GuestID, booking.HostID)
	if err != nil {
		return err
	}
	link, err := s.conversations.AttachBooking(ctx, conv.ID, booking.ID)
	if err != nil {
		return err
	}
	if _, err := s.conversations.AppendMessage(ctx, NewMessage{
		ConversationID:        conv.ID,
		ConversationBookingID: &link.ID,
		Type:                  models.MessageTypeSystem,
		Body:                  summarize(booking),
	}); err != nil {
		return err
	}
	if note == "" {
		return nil
	}
	guestID := booking.GuestID
	_, err = s.conversations.AppendMessage(ctx, NewMessage{
		ConversationID:        conv.ID,
		ConversationBookingID: &link.ID,
		SenderID:              &guestID,
		Type:                  models.MessageTypeText,
		Body:                  note,
	})
	return err
}

// postSystemMessage appends a SYSTEM message to the booking's thread, if it has one.
func (s *bookingService) postSystemMessage(ctx context.Context, bookingID utils.SixID, body string) error {
	link, err := s.conversations.FindBookingThread(ctx, bookingID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.conversations.AppendMessage(ctx, NewMessage{
		ConversationID:        link.ConversationID,
		ConversationBookingID: &link.ID,
		Type:                  models.MessageTypeSystem,
		Body:                  body,
	})
	return err
}

func summarize(b *models.Booking) string {
	kind := map[models.BookingType]string{
		models.BookingTypeInquiry: "Inquiry",
		models.BookingTypeRequest: "Booking request",
		models.BookingTypeBooking: "Booking",
	}[b.BookingType]
	if !b.HasValidDates() {
		return fmt.Sprintf("%s sent for %d guest(s)", kind, b.Guests)
	}
	return fmt.Sprintf("%s sent for %s to %s, %d guest(s), %d night(s)",
		kind, b.StartDate.Format(DateLayout), b.EndDate.Format(DateLayout), b.Guests, b.Nights)
}

func (s *bookingService) bookingLink(id utils.SixID) string {
	return fmt.Sprintf("%s/bookings/%s", strings.TrimRight(s.cfg.AppBaseURL, "/"), id)
}

// sideEffects are the best-effort follow-ups of a committed transition.
type sideEffects struct {
	audit         AuditRecord
	recipientID   utils.SixID
	push          Notification
	emailTemplate string
	booking       *models.Booking
	expireAt      *time.Time
}

// afterCommit records the audit entry, schedules expiry and notifies the counterparty.
// Failures are logged and never returned.
func (s *bookingService) afterCommit(ctx context.Context, fx sideEffects) {
	ctx = context.WithoutCancel(ctx)
	logger := utils.GetLogger().With(zap.String("action", fx.audit.Action), zap.Stringer("booking_id", fx.audit.ResourceID))

	s.audit.Record(ctx, fx.audit)

	if fx.expireAt != nil && fx.booking != nil {
		if err := s.scheduler.ScheduleBookingExpiry(ctx, fx.booking.ID, *fx.expireAt); err != nil {
			logger.Error("Failed to schedule booking expiry", zap.Error(err))
		}
	}

	if fx.recipientID.IsZero() {
		return
	}
	recipient, err := s.store.FindUserByID(ctx, fx.recipientID)
	if err != nil {
		logger.Warn("Notification recipient not found", zap.Stringer("user_id", fx.recipientID), zap.Error(err))
		return
	}
	if fx.push.Title != "" {
		if err := s.notifier.NotifyUser(ctx, recipient, fx.push); err != nil {
			logger.Warn("Failed to send push notification", zap.Error(err))
		}
	}
	if fx.emailTemplate != "" && fx.booking != nil {
		if err := s.notifier.EmailUser(ctx, recipient, fx.emailTemplate, s.emailData(ctx, recipient, fx.booking)); err != nil {
			logger.Warn("Failed to queue email", zap.String("template", fx.emailTemplate), zap.Error(err))
		}
	}
}

func (s *bookingService) emailData(ctx context.Context, recipient *models.User, b *models.Booking) map[string]interface{} {
	data := map[string]interface{}{
		"name":              recipient.DisplayName(),
		"booking_id":        b.ID.String(),
		"link":              s.bookingLink(b.ID),
		"guests":            b.Guests,
		"confirmation_code": b.ConfirmationCode,
	}
	if b.HasValidDates() {
		data["start_date"] = b.StartDate.Format(DateLayout)
		data["end_date"] = b.EndDate.Format(DateLayout)
	}
	if property, err := s.store.FindPropertyByID(ctx, b.PropertyID); err == nil {
		data["property_title"] = ResolveTranslation(property.Translations, recipient.Locale, property.Title).Title
	}
	if currency, err := s.store.FindCurrency(ctx, b.CurrencyCode); err == nil {
		data["grand_total"] = FormatPrice(currency, b.GrandTotal)
	}
	return data
}
