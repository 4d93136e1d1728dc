package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

// OfferTarget selects where a special offer applies: the booking it is sent on,
// or a different property of the same host.
type OfferTarget interface {
	isOfferTarget()
}

// SameBooking targets the booking the offer is sent on.
type SameBooking struct{}

// NewProperty spawns a fresh booking on another property of the same host.
type NewProperty struct {
	PropertyID utils.SixID
}

func (SameBooking) isOfferTarget() {}
func (NewProperty) isOfferTarget() {}

// SpecialOfferInput is a host counter-proposal. Price is the stay total in the booking currency.
type SpecialOfferInput struct {
	Target    OfferTarget
	StartDate string
	EndDate   string
	Guests    int
	Price     float64
}

type actingRole int

const (
	roleHost actingRole = iota
	roleGuest
	roleSystem
)

// errUnchanged aborts a transition that has nothing to do.
var errUnchanged = errors.New("booking unchanged")

// transition is one state change run inside a transaction.
type transition struct {
	action string
	role   actingRole
	// apply validates and mutates the loaded booking.
	apply   func(ctx context.Context, b *models.Booking, now time.Time) error
	message func(b *models.Booking) string
	// effects builds the post-commit follow-ups from the final booking.
	effects func(b *models.Booking) sideEffects
}

func (s *bookingService) findBooking(ctx context.Context, id utils.SixID) (*models.Booking, error) {
	b, err := s.store.FindBookingByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return b, err
}

func mayAct(actor Actor, b *models.Booking, role actingRole) bool {
	switch role {
	case roleHost:
		return actor.UserID == b.HostID
	case roleGuest:
		return actor.UserID == b.GuestID
	default:
		return true
	}
}

// runTransition loads the booking, applies t and persists the result in one transaction,
// then runs the post-commit side effects.
func (s *bookingService) runTransition(ctx context.Context, actor Actor, bookingID utils.SixID, t transition) (*models.Booking, error) {
	if t.role != roleSystem {
		if _, err := s.activeUser(ctx, actor.UserID); err != nil {
			return nil, err
		}
	}

	var before, after models.Booking
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		b, err := s.findBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !mayAct(actor, b, t.role) {
			return ErrForbidden
		}
		before = *b
		now := s.now().UTC()
		if err := t.apply(ctx, b, now); err != nil {
			return err
		}
		b.UpdatedAt = now
		b.RecomputeGrandTotal()
		if err := s.store.UpdateBooking(ctx, b); err != nil {
			return err
		}
		if t.message != nil {
			if err := s.postSystemMessage(ctx, b.ID, t.message(b)); err != nil {
				return err
			}
		}
		after = *b
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx := sideEffects{}
	if t.effects != nil {
		fx = t.effects(&after)
	}
	fx.audit = AuditRecord{
		Actor: actor, Action: t.action, Resource: "booking", ResourceID: after.ID,
		Message: fmt.Sprintf("%s -> %s", before.BookingStatus, after.BookingStatus),
		Before:  &before, After: &after,
	}
	fx.booking = &after
	s.afterCommit(ctx, fx)
	return &after, nil
}

func requireStatus(b *models.Booking, allowed ...models.BookingStatus) error {
	for _, st := range allowed {
		if b.BookingStatus == st {
			return nil
		}
	}
	return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.BookingStatus)
}

func (s *bookingService) guestNotice(title, body string, b *models.Booking) Notification {
	return Notification{Title: title, Body: body, Link: s.bookingLink(b.ID)}
}

// PreApproveBooking lets the host accept a pending request or inquiry. The guest then
// has PreApprovalTTL to confirm.
func (s *bookingService) PreApproveBooking(ctx context.Context, actor Actor, bookingID utils.SixID) (*models.Booking, error) {
	return s.runTransition(ctx, actor, bookingID, transition{
		action: "booking.pre_approve",
		role:   roleHost,
		apply: func(ctx context.Context, b *models.Booking, now time.Time) error {
			if err := requireStatus(b, models.BookingStatusPending); err != nil {
				return err
			}
			if !b.HasValidDates() {
				return fmt.Errorf("%w: booking has no dates", ErrInvalidDates)
			}
			expires := now.Add(s.cfg.PreApprovalTTL)
			b.BookingStatus = models.BookingStatusAccepted
			b.AcceptedAt = &now
			b.ExpiredAt = &expires
			return nil
		},
		message: func(b *models.Booking) string {
			return fmt.Sprintf("Host pre-approved this stay. Confirm before %s.", b.ExpiredAt.Format(time.RFC3339))
		},
		effects: func(b *models.Booking) sideEffects {
			return sideEffects{
				recipientID:   b.GuestID,
				push:          s.guestNotice("Pre-approved", "Your host pre-approved your stay. Book it before it expires.", b),
				emailTemplate: "booking_pre_approved",
				expireAt:      b.ExpiredAt,
			}
		},
	})
}

// WithdrawPreApproval returns a pre-approved booking to PENDING. Bookings carrying a
// pending special offer must withdraw the offer instead.
func (s *bookingService) WithdrawPreApproval(ctx context.Context, actor Actor, bookingID utils.SixID) (*models.Booking, error) {
	return s.runTransition(ctx, actor, bookingID, transition{
		action: "booking.withdraw_pre_approval",
		role:   roleHost,
		apply: func(ctx context.Context, b *models.Booking, now time.Time) error {
			if err := requireStatus(b, models.BookingStatusAccepted); err != nil {
				return err
			}
			_, err := s.store.FindPendingSpecialOffer(ctx, b.ID)
			if err == nil {
				return fmt.Errorf("%w: withdraw the special offer instead", ErrInvalidTransition)
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			b.BookingStatus = models.BookingStatusPending
			b.AcceptedAt = nil
			b.ExpiredAt = nil
			return nil
		},
		message: func(*models.Booking) string { return "Host withdrew the pre-approval." },
		effects: func(b *models.Booking) sideEffects {
			return sideEffects{
				recipientID: b.GuestID,
				push:        s.guestNotice("Pre-approval withdrawn", "Your host withdrew the pre-approval.", b),
			}
		},
	})
}

// SendSpecialOffer records a host counter-proposal. At most one offer per booking is
// pending; sending again replaces it.
func (s *bookingService) SendSpecialOffer(ctx context.Context, actor Actor, bookingID utils.SixID, in SpecialOfferInput) (*models.Booking, *models.SpecialOffer, error) {
	if in.Price <= 0 {
		return nil, nil, validationError("offer price must be positive")
	}
	if in.Guests < 1 {
		return nil, nil, validationError("at least one guest is required")
	}
	start, end, err := parseStay(in.StartDate, in.EndDate)
	if err != nil {
		return nil, nil, err
	}

	switch target := in.Target.(type) {
	case nil, SameBooking:
		var offer *models.SpecialOffer
		b, err := s.runTransition(ctx, actor, bookingID, transition{
			action: "booking.special_offer",
			role:   roleHost,
			apply: func(ctx context.Context, b *models.Booking, now time.Time) error {
				if err := requireStatus(b, models.BookingStatusPending, models.BookingStatusAccepted); err != nil {
					return err
				}
				property, err := s.store.FindPropertyByID(ctx, b.PropertyID)
				if err != nil {
					return err
				}
				if err := s.validateOffer(ctx, property, in.Guests, start, end, b.ID); err != nil {
					return err
				}
				if _, err := s.store.DeletePendingSpecialOffers(ctx, b.ID); err != nil {
					return err
				}
				offer, err = s.insertOffer(ctx, b, property, start, end, in, now)
				if err != nil {
					return err
				}
				b.BookingStatus = models.BookingStatusAccepted
				b.AcceptedAt = &now
				b.ExpiredAt = &offer.ExpiresAt
				return nil
			},
			message: func(b *models.Booking) string { return offerMessage(offer) },
			effects: func(b *models.Booking) sideEffects {
				return s.offerEffects(b)
			},
		})
		if err != nil {
			return nil, nil, err
		}
		return b, offer, nil
	case NewProperty:
		return s.offerOnOtherProperty(ctx, actor, bookingID, target.PropertyID, start, end, in)
	default:
		return nil, nil, validationError("unknown offer target %T", in.Target)
	}
}

func offerMessage(o *models.SpecialOffer) string {
	return fmt.Sprintf("Host sent a special offer: %s to %s, %d guest(s), total %.2f.",
		o.StartDate.Format(DateLayout), o.EndDate.Format(DateLayout), o.Guests, o.GrandTotal)
}

func (s *bookingService) offerEffects(b *models.Booking) sideEffects {
	return sideEffects{
		recipientID:   b.GuestID,
		push:          s.guestNotice("Special offer", "Your host sent you a special offer.", b),
		emailTemplate: "booking_special_offer",
		expireAt:      b.ExpiredAt,
	}
}

// validateOffer checks the offered stay against the property's capacity, blocked dates and
// confirmed bookings other than excludeID.
func (s *bookingService) validateOffer(ctx context.Context, p *models.Property, guests int, start, end time.Time, excludeID utils.SixID) error {
	if p.MaxGuests > 0 && guests > p.MaxGuests {
		return validationError("property accommodates at most %d guests", p.MaxGuests)
	}
	calendar, err := s.store.ListPropertyDates(ctx, p.ID, start.Format(DateLayout), end.Format(DateLayout))
	if err != nil {
		return err
	}
	if err := s.checkBlockedDates(start, end, calendar); err != nil {
		return err
	}
	return s.ensureNoConflict(ctx, p.ID, NightsOf(start, end), excludeID)
}

func (s *bookingService) insertOffer(ctx context.Context, b *models.Booking, p *models.Property, start, end time.Time, in SpecialOfferInput, now time.Time) (*models.SpecialOffer, error) {
	q := QuoteOffer(p, start, end, in.Price, s.fees(), b.PropertyCurrencyRate, b.CurrencyRate)
	offer := &models.SpecialOffer{
		BookingID:      b.ID,
		PropertyID:     p.ID,
		HostID:         b.HostID,
		GuestID:        b.GuestID,
		StartDate:      start,
		EndDate:        end,
		Guests:         in.Guests,
		Nights:         q.Nights,
		Price:          q.TotalPrice,
		CleaningCharge: q.CleaningCharge,
		GuestFee:       q.TotalGuestFee,
		HostFee:        q.TotalHostFee,
		Discount:       q.TotalDiscount,
		GrandTotal:     q.GrandTotal,
		Status:         models.SpecialOfferStatusPending,
		ExpiresAt:      now.Add(s.cfg.SpecialOfferTTL),
		CreatedAt:      now,
	}
	if err := s.store.InsertSpecialOffer(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// offerOnOtherProperty spawns a new ACCEPTED booking on another property of the same host,
// carrying the guest and currency snapshots over from the original booking.
func (s *bookingService) offerOnOtherProperty(ctx context.Context, actor Actor, bookingID, propertyID utils.SixID, start, end time.Time, in SpecialOfferInput) (*models.Booking, *models.SpecialOffer, error) {
	if _, err := s.activeUser(ctx, actor.UserID); err != nil {
		return nil, nil, err
	}

	var spawned *models.Booking
	var offer *models.SpecialOffer
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		orig, err := s.findBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if orig.HostID != actor.UserID {
			return ErrForbidden
		}
		if err := requireStatus(orig, models.BookingStatusPending, models.BookingStatusAccepted); err != nil {
			return err
		}
		property, err := s.store.FindPropertyByID(ctx, propertyID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if property.HostID != orig.HostID {
			return ErrForbidden
		}
		if !property.IsBookable() {
			return ErrPropertyUnavailable
		}
		if err := s.validateOffer(ctx, property, in.Guests, start, end, utils.SixID{}); err != nil {
			return err
		}

		now := s.now().UTC()
		expires := now.Add(s.cfg.SpecialOfferTTL)
		spawned = &models.Booking{
			PropertyID:           property.ID,
			HostID:               orig.HostID,
			GuestID:              orig.GuestID,
			CurrencyCode:         orig.CurrencyCode,
			StartDate:            start,
			EndDate:              end,
			Guests:               in.Guests,
			BookingType:          models.BookingTypeRequest,
			BookingStatus:        models.BookingStatusAccepted,
			PaymentStatus:        models.PaymentStatusUnpaid,
			PayoutStatus:         models.PayoutStatusPending,
			CurrencyRate:         orig.CurrencyRate,
			PropertyCurrencyRate: orig.PropertyCurrencyRate,
			AcceptedAt:           &now,
			ExpiredAt:            &expires,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if property.CurrencyCode != orig.CurrencyCode {
			_, _, rate, err := s.resolveRates(ctx, orig.CurrencyCode, property.CurrencyCode)
			if err != nil {
				return err
			}
			spawned.PropertyCurrencyRate = rate
		}
		q := QuoteOffer(property, start, end, in.Price, s.fees(), spawned.PropertyCurrencyRate, spawned.CurrencyRate)
		q.ApplyTo(spawned)
		if err := s.store.InsertBooking(ctx, spawned); err != nil {
			return err
		}
		if offer, err = s.insertOffer(ctx, spawned, property, start, end, in, now); err != nil {
			return err
		}
		if err := s.store.ReplaceBookingDates(ctx, spawned.ID, q.NightlyPrices); err != nil {
			return err
		}
		if err := s.openThread(ctx, spawned, ""); err != nil {
			return err
		}
		if err := s.postSystemMessage(ctx, spawned.ID, offerMessage(offer)); err != nil {
			return err
		}
		return s.postSystemMessage(ctx, orig.ID, fmt.Sprintf("Host sent a special offer for another listing: %s.", property.Title))
	})
	if err != nil {
		return nil, nil, err
	}

	fx := s.offerEffects(spawned)
	fx.audit = AuditRecord{
		Actor: actor, Action: "booking.special_offer", Resource: "booking", ResourceID: spawned.ID,
		Message: fmt.Sprintf("offer on property %s spawned from booking %s", propertyID, bookingID),
		After:   spawned,
	}
	fx.booking = spawned
	s.afterCommit(ctx, fx)
	return spawned, offer, nil
}

// WithdrawSpecialOffer deletes the pending offer. The booking stays ACCEPTED without an expiry.
func (s *bookingService) WithdrawSpecialOffer(ctx context.Context, actor Actor, bookingID utils.SixID) (*models.Booking, error) {
	return s.runTransition(ctx, actor, bookingID, transition{
		action: "booking.withdraw_special_offer",
		role:   roleHost,
		apply: func(ctx context.Context, b *models.Booking, now time.Time) error {
			if err := requireStatus(b, models.BookingStatusAccepted); err != nil {
				return err
			}
			n, err := s.store.DeletePendingSpecialOffers(ctx, b.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: no pending special offer", ErrInvalidTransition)
			}
			b.ExpiredAt = nil
			return nil
		},
		message: func(*models.Booking) string { return "Host withdrew the special offer." },
		effects: func(b *models.Booking) sideEffects {
			return sideEffects{
				recipientID: b.GuestID,
				push:        s.guestNotice("Special offer withdrawn", "Your host withdrew the special offer.", b),
			}
		},
	})
}

// confirmable reports whether the guest may confirm: a direct booking awaiting
// confirmation, or an accepted booking whose window is still open.
func confirmable(b *models.Booking, now time.Time) bool {
	switch b.BookingStatus {
	case models.BookingStatusPending:
		return b.BookingType == models.BookingTypeBooking
	case models.BookingStatusAccepted:
		return b.ExpiredAt == nil || b.ExpiredAt.After(now)
	}
	return false
}

// ConfirmBooking turns a booking into a CONFIRMED reservation. A pending special offer's
// terms take precedence over the input. Writes are serialized per property and every
// night is claimed in storage, so of two overlapping confirmations exactly one wins.
func (s *bookingService) ConfirmBooking(ctx context.Context, actor Actor, bookingID utils.SixID, in ConfirmInput) (*models.Booking, error) {
	current, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, current.PropertyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var acceptedOffer *models.SpecialOffer
	var claimed []string
	confirmed, err := s.runTransition(ctx, actor, bookingID, transition{
		action: "booking.confirm",
		role:   roleGuest,
		apply: func(ctx context.Context, b *models.Booking, now time.Time) error {
			if !confirmable(b, now) {
				return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.BookingStatus)
			}
			parties, err := s.loadParties(ctx, b.GuestID, b.PropertyID)
			if err != nil {
				return err
			}
			property := parties.property

			offer, err := s.store.FindPendingSpecialOffer(ctx, b.ID)
			switch {
			case err == nil:
				acceptedOffer = offer
				b.StartDate, b.EndDate, b.Guests = offer.StartDate, offer.EndDate, offer.Guests
			case errors.Is(err, repository.ErrNotFound):
				if in.StartDate != "" || in.EndDate != "" {
					start, end, err := parseStay(in.StartDate, in.EndDate)
					if err != nil {
						return err
					}
					b.StartDate, b.EndDate = start, end
				}
				if in.Guests > 0 {
					b.Guests = in.Guests
				}
			default:
				return err
			}
			if !b.HasValidDates() || !b.EndDate.After(b.StartDate) {
				return fmt.Errorf("%w: booking has no dates", ErrInvalidDates)
			}
			if acceptedOffer == nil && property.MaxGuests > 0 && b.Guests > property.MaxGuests {
				return validationError("property accommodates at most %d guests", property.MaxGuests)
			}

			calendar, err := s.store.ListPropertyDates(ctx, b.PropertyID, b.StartDate.Format(DateLayout), b.EndDate.Format(DateLayout))
			if err != nil {
				return err
			}
			if err := s.checkBlockedDates(b.StartDate, b.EndDate, calendar); err != nil {
				return err
			}

			var q Quote
			if acceptedOffer != nil {
				q = QuoteOffer(property, b.StartDate, b.EndDate, acceptedOffer.Price, s.fees(), b.PropertyCurrencyRate, b.CurrencyRate)
				q.CleaningCharge, q.TotalGuestFee, q.TotalHostFee, q.TotalDiscount =
					acceptedOffer.CleaningCharge, acceptedOffer.GuestFee, acceptedOffer.HostFee, acceptedOffer.Discount
			} else {
				q = QuoteStay(property, calendar, b.StartDate, b.EndDate, b.Guests, s.fees(), b.PropertyCurrencyRate, b.CurrencyRate)
			}

			nights := NightsOf(b.StartDate, b.EndDate)
			if err := s.ensureNoConflict(ctx, b.PropertyID, nights, b.ID); err != nil {
				return err
			}
			if err := s.store.ReleaseNights(ctx, b.ID); err != nil {
				return err
			}
			claimed = nights
			if err := s.store.ReserveNights(ctx, b.PropertyID, b.ID, nights); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					// The transaction is aborted; the holder is looked up after it ends.
					return &ConflictError{}
				}
				return err
			}
			if err := s.store.ReplaceBookingDates(ctx, b.ID, q.NightlyPrices); err != nil {
				return err
			}
			if acceptedOffer != nil {
				if err := s.store.UpdateSpecialOfferStatus(ctx, acceptedOffer.ID, models.SpecialOfferStatusAccepted); err != nil {
					return err
				}
			}

			q.ApplyTo(b)
			b.BookingStatus = models.BookingStatusConfirmed
			b.BookingType = models.BookingTypeBooking
			b.ConfirmedAt = &now
			b.ExpiredAt = nil
			b.ConfirmationCode = utils.NewConfirmationCode()
			return nil
		},
		message: func(b *models.Booking) string {
			return fmt.Sprintf("Booking confirmed. Confirmation code %s.", b.ConfirmationCode)
		},
		effects: func(b *models.Booking) sideEffects {
			return sideEffects{
				recipientID:   b.HostID,
				push:          Notification{Title: "Booking confirmed", Body: fmt.Sprintf("Reservation %s is confirmed.", b.ConfirmationCode), Link: s.bookingLink(b.ID)},
				emailTemplate: "booking_confirmed",
			}
		},
	})
	var conflict *ConflictError
	if errors.As(err, &conflict) && conflict.Stay == nil && len(claimed) > 0 {
		if cerr := s.ensureNoConflict(ctx, current.PropertyID, claimed, bookingID); cerr != nil {
			return nil, cerr
		}
	}
	return confirmed, err
}

// DeclineBooking closes a pending or accepted booking on behalf of either side.
func (s *bookingService) DeclineBooking(ctx context.Context, actor Actor, bookingID utils.SixID, by models.DeclinedBy, reason string) (*models.Booking, error) {
	role, recipient := roleGuest, func(b *models.Booking) utils.SixID { return b.HostID }
	switch by {
	case models.DeclinedByGuest:
	case models.DeclinedByHost:
		role, recipient = roleHost, func(b *models.Booking) utils.SixID { return b.GuestID }
	default:
		return nil, validationError("declined by must be %q or %q", models.DeclinedByGuest, models.DeclinedByHost)
	}
	reason = strings.TrimSpace(reason)

	return s.runTransition(ctx, actor, bookingID, transition{
		action: "booking.decline",
		role:   role,
		apply: func(ctx context.Context, b *models.Booking, now time.Time) error {
			if err := requireStatus(b, models.BookingStatusPending, models.BookingStatusAccepted); err != nil {
				return err
			}
			if _, err := s.store.DeletePendingSpecialOffers(ctx, b.ID); err != nil {
				return err
			}
			b.BookingStatus = models.BookingStatusDeclined
			b.DeclinedBy = by
			b.DeclinedAt = &now
			b.ExpiredAt = nil
			return nil
		},
		message: func(b *models.Booking) string {
			if reason == "" {
				return fmt.Sprintf("%s declined this booking.", by)
			}
			return fmt.Sprintf("%s declined this booking: %s", by, reason)
		},
		effects: func(b *models.Booking) sideEffects {
			return sideEffects{
				recipientID:   recipient(b),
				push:          Notification{Title: "Booking declined", Body: fmt.Sprintf("The %s declined the booking.", strings.ToLower(string(by))), Link: s.bookingLink(b.ID)},
				emailTemplate: "booking_declined",
			}
		},
	})
}

// ExpireBooking closes an accepted booking whose window has passed. It is safe to run
// repeatedly; the boolean reports whether anything changed.
func (s *bookingService) ExpireBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, bool, error) {
	b, err := s.runTransition(ctx, Actor{}, bookingID, transition{
		action: "booking.expire",
		role:   roleSystem,
		apply: func(ctx context.Context, b *models.Booking, now time.Time) error {
			if b.BookingStatus != models.BookingStatusAccepted || b.ExpiredAt == nil || b.ExpiredAt.After(now) {
				return errUnchanged
			}
			if offer, err := s.store.FindPendingSpecialOffer(ctx, b.ID); err == nil {
				if err := s.store.UpdateSpecialOfferStatus(ctx, offer.ID, models.SpecialOfferStatusExpired); err != nil {
					return err
				}
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			b.BookingStatus = models.BookingStatusExpired
			return nil
		},
		message: func(*models.Booking) string { return "This offer expired." },
		effects: func(b *models.Booking) sideEffects {
			return sideEffects{
				recipientID: b.GuestID,
				push:        s.guestNotice("Offer expired", "Your pre-approval or special offer has expired.", b),
			}
		},
	})
	if errors.Is(err, errUnchanged) {
		current, ferr := s.findBooking(ctx, bookingID)
		return current, false, ferr
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SoftDeleteBooking hides a booking from every read and frees its nights. Admin only.
func (s *bookingService) SoftDeleteBooking(ctx context.Context, actor Actor, bookingID utils.SixID) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	var before *models.Booking
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		b, err := s.findBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		before = b
		if err := s.store.SoftDeleteBooking(ctx, bookingID, s.now().UTC()); err != nil {
			return err
		}
		return s.store.ReleaseNights(ctx, bookingID)
	})
	if err != nil {
		return err
	}
	s.audit.Record(context.WithoutCancel(ctx), AuditRecord{
		Actor: actor, Action: "booking.delete", Resource: "booking", ResourceID: bookingID,
		Message: "booking soft-deleted", Before: before,
	})
	return nil
}
