package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/services"
	"reluxrent/api/internal/utils"
)

// --- Mocks ---

// MockBookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) booking(args mock.Arguments) (*models.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) PropertyBooking(ctx context.Context, actor services.Actor, in services.BookingInput) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, in))
}

func (m *MockBookingService) RequestBooking(ctx context.Context, actor services.Actor, in services.BookingInput) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, in))
}

func (m *MockBookingService) PropertyInquiry(ctx context.Context, actor services.Actor, in services.BookingInput) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, in))
}

func (m *MockBookingService) PreApproveBooking(ctx context.Context, actor services.Actor, bookingID utils.SixID) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingService) WithdrawPreApproval(ctx context.Context, actor services.Actor, bookingID utils.SixID) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingService) SendSpecialOffer(ctx context.Context, actor services.Actor, bookingID utils.SixID, in services.SpecialOfferInput) (*models.Booking, *models.SpecialOffer, error) {
	args := m.Called(ctx, actor, bookingID, in)
	var offer *models.SpecialOffer
	if args.Get(1) != nil {
		offer = args.Get(1).(*models.SpecialOffer)
	}
	if args.Get(0) == nil {
		return nil, offer, args.Error(2)
	}
	return args.Get(0).(*models.Booking), offer, args.Error(2)
}

func (m *MockBookingService) WithdrawSpecialOffer(ctx context.Context, actor services.Actor, bookingID utils.SixID) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, bookingID))
}

func (m *MockBookingService) ConfirmBooking(ctx context.Context, actor services.Actor, bookingID utils.SixID, in services.ConfirmInput) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, bookingID, in))
}

func (m *MockBookingService) DeclineBooking(ctx context.Context, actor services.Actor, bookingID utils.SixID, by models.DeclinedBy, reason string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, actor, bookingID, by, reason))
}

func (m *MockBookingService) ExpireBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, bool, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Booking), args.Bool(1), args.Error(2)
}

func (m *MockBookingService) SoftDeleteBooking(ctx context.Context, actor services.Actor, bookingID utils.SixID) error {
	return m.Called(ctx, actor, bookingID).Error(0)
}

func (m *MockBookingService) GetBookingView(ctx context.Context, actor services.Actor, bookingID utils.SixID, locale string) (*services.BookingView, error) {
	args := m.Called(ctx, actor, bookingID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BookingView), args.Error(1)
}

func (m *MockBookingService) GetPropertyAvailability(ctx context.Context, propertyID utils.SixID, startDate, endDate string) (*services.AvailabilityResult, error) {
	args := m.Called(ctx, propertyID, startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AvailabilityResult), args.Error(1)
}

// MockReviewService
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) review(args mock.Arguments) (*models.Review, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) AddGuestReview(ctx context.Context, actor services.Actor, in services.ReviewInput) (*models.Review, error) {
	return m.review(m.Called(ctx, actor, in))
}

func (m *MockReviewService) AddHostReview(ctx context.Context, actor services.Actor, in services.ReviewInput) (*models.Review, error) {
	return m.review(m.Called(ctx, actor, in))
}

func (m *MockReviewService) AddPublicResponse(ctx context.Context, actor services.Actor, reviewID utils.SixID, response string) (*models.Review, error) {
	return m.review(m.Called(ctx, actor, reviewID, response))
}

// MockConversationService
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) FindOrCreateConversation(ctx context.Context, propertyID, guestID, hostID utils.SixID) (*models.Conversation, error) {
	args := m.Called(ctx, propertyID, guestID, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationService) AttachBooking(ctx context.Context, conversationID, bookingID utils.SixID) (*models.ConversationBooking, error) {
	args := m.Called(ctx, conversationID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationBooking), args.Error(1)
}

func (m *MockConversationService) FindBookingThread(ctx context.Context, bookingID utils.SixID) (*models.ConversationBooking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationBooking), args.Error(1)
}

func (m *MockConversationService) AppendMessage(ctx context.Context, msg services.NewMessage) (*models.ConversationMessage, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationMessage), args.Error(1)
}

func (m *MockConversationService) ListMessages(ctx context.Context, viewerID, conversationID utils.SixID, limit int64) ([]models.ConversationMessage, error) {
	args := m.Called(ctx, viewerID, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationMessage), args.Error(1)
}
