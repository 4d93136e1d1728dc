package repository

import (
	"context"
	"errors"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

var (
	// ErrNotFound is returned when a record does not exist or is soft-deleted.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate is returned when a write hits a unique constraint other than _id.
	ErrDuplicate = errors.New("repository: duplicate")
)

// Transactor runs a function atomically. Repository calls made with the ctx passed to fn
// join the transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository reads accounts. Soft-deleted users are not returned.
type UserRepository interface {
	FindUserByID(ctx context.Context, id utils.SixID) (*models.User, error)
}

// PropertyRepository reads properties, their calendars and currencies.
type PropertyRepository interface {
	FindPropertyByID(ctx context.Context, id utils.SixID) (*models.Property, error)
	// ListPropertyDates returns calendar entries with from <= date <= to (yyyy-MM-dd).
	ListPropertyDates(ctx context.Context, propertyID utils.SixID, from, to string) ([]models.PropertyDate, error)
	FindCurrency(ctx context.Context, code string) (*models.Currency, error)
}

// BookingRepository stores bookings, their nights and night claims.
type BookingRepository interface {
	InsertBooking(ctx context.Context, booking *models.Booking) error
	FindBookingByID(ctx context.Context, id utils.SixID) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	SoftDeleteBooking(ctx context.Context, id utils.SixID, at time.Time) error
	// ListConfirmedBookings returns CONFIRMED bookings of the property except excludeID.
	ListConfirmedBookings(ctx context.Context, propertyID, excludeID utils.SixID) ([]models.Booking, error)
	CountConfirmedBookingsByGuest(ctx context.Context, guestID utils.SixID) (int64, error)
	// ReplaceBookingDates deletes every night row of the booking and inserts dates.
	ReplaceBookingDates(ctx context.Context, bookingID utils.SixID, dates []models.BookingDate) error
	ListBookingDates(ctx context.Context, bookingIDs []utils.SixID) ([]models.BookingDate, error)
	// FindNightConflict returns the booking holding any of dates on the property, or ErrNotFound.
	FindNightConflict(ctx context.Context, propertyID utils.SixID, dates []string, excludeBookingID utils.SixID) (*models.Booking, error)
	// ReserveNights claims dates for the booking. It returns ErrDuplicate if any night is held.
	ReserveNights(ctx context.Context, propertyID, bookingID utils.SixID, dates []string) error
	ReleaseNights(ctx context.Context, bookingID utils.SixID) error
}

// SpecialOfferRepository stores host counter-offers.
type SpecialOfferRepository interface {
	InsertSpecialOffer(ctx context.Context, offer *models.SpecialOffer) error
	FindPendingSpecialOffer(ctx context.Context, bookingID utils.SixID) (*models.SpecialOffer, error)
	// DeletePendingSpecialOffers removes every PENDING offer of the booking and returns the count.
	DeletePendingSpecialOffers(ctx context.Context, bookingID utils.SixID) (int64, error)
	UpdateSpecialOfferStatus(ctx context.Context, id utils.SixID, status models.SpecialOfferStatus) error
}

// ConversationRepository stores threads, their booking links and messages.
type ConversationRepository interface {
	FindConversation(ctx context.Context, propertyID, guestID utils.SixID) (*models.Conversation, error)
	FindConversationByID(ctx context.Context, id utils.SixID) (*models.Conversation, error)
	// InsertConversation returns ErrDuplicate if the guest already has a thread for the property.
	InsertConversation(ctx context.Context, conversation *models.Conversation) error
	AddParticipant(ctx context.Context, conversationID utils.SixID, participant models.Participant) error
	InsertConversationBooking(ctx context.Context, link *models.ConversationBooking) error
	FindConversationBookingByBooking(ctx context.Context, bookingID utils.SixID) (*models.ConversationBooking, error)
	InsertMessage(ctx context.Context, message *models.ConversationMessage) error
	SetLastMessage(ctx context.Context, conversationID, messageID utils.SixID, at time.Time) error
	// ListMessages returns the newest limit messages, oldest first. limit <= 0 means all.
	ListMessages(ctx context.Context, conversationID utils.SixID, limit int64) ([]models.ConversationMessage, error)
}

// ReviewRepository stores reviews.
type ReviewRepository interface {
	InsertReview(ctx context.Context, review *models.Review) error
	SetOverallRating(ctx context.Context, id utils.SixID, rating float64) error
	FindReviewByID(ctx context.Context, id utils.SixID) (*models.Review, error)
	ListReviewsByBooking(ctx context.Context, bookingID utils.SixID) ([]models.Review, error)
	ListReviewsReceived(ctx context.Context, userID utils.SixID) ([]models.Review, error)
	SetPublicResponse(ctx context.Context, id utils.SixID, response string, at time.Time) error
}

// AuditRepository appends audit entries.
type AuditRepository interface {
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// EmailTemplateRepository reads and upserts localized email templates.
type EmailTemplateRepository interface {
	FindEmailTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	SaveEmailTemplate(ctx context.Context, template *models.EmailTemplate) error
}

// Store is everything the booking core persists.
type Store interface {
	Transactor
	UserRepository
	PropertyRepository
	BookingRepository
	SpecialOfferRepository
	ConversationRepository
	ReviewRepository
	AuditRepository
	EmailTemplateRepository
}
