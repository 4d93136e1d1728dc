package services

import (
	"errors"
	"fmt"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("not allowed to perform this action")
	ErrSelfBooking         = errors.New("hosts cannot book their own property")
	ErrUserBanned          = errors.New("account is banned")
	ErrHostUnavailable     = errors.New("host is not verified or is banned")
	ErrPropertyUnavailable = errors.New("property is not available for booking")
	ErrDatesUnavailable    = errors.New("selected dates are blocked by the host")
	ErrInvalidTransition   = errors.New("booking status does not allow this action")
	ErrInvalidDates        = errors.New("invalid booking dates")
	ErrValidation          = errors.New("invalid input")
	ErrReviewNotAllowed    = errors.New("review is not allowed for this booking")
)

// ConflictingStay is the part of a conflicting booking that may be shown to another party.
type ConflictingStay struct {
	ID        utils.SixID `json:"id"`
	StartDate time.Time   `json:"start_date"`
	EndDate   time.Time   `json:"end_date"`
}

// ConflictError reports that requested nights overlap a confirmed booking. Stay is nil
// when the holder could not be read.
type ConflictError struct {
	Stay *ConflictingStay
}

func newConflictError(b *models.Booking) *ConflictError {
	return &ConflictError{Stay: &ConflictingStay{ID: b.ID, StartDate: b.StartDate, EndDate: b.EndDate}}
}

func (e *ConflictError) Error() string {
	if e.Stay == nil {
		return "dates conflict with an existing confirmed booking"
	}
	return fmt.Sprintf("dates conflict with confirmed booking %s", e.Stay.ID)
}

// validationError wraps ErrValidation with a field-specific message.
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
