package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"reluxrent/api/internal/config"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyUser(ctx context.Context, user *models.User, n Notification) error {
	return m.Called(ctx, user, n).Error(0)
}

func (m *MockNotifier) EmailUser(ctx context.Context, user *models.User, templateID string, data map[string]interface{}) error {
	return m.Called(ctx, user, templateID, data).Error(0)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) ScheduleBookingExpiry(ctx context.Context, bookingID utils.SixID, at time.Time) error {
	return m.Called(ctx, bookingID, at).Error(0)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, utils.SixID) (func(), error) {
	return func() {}, nil
}

// bookingFixture seeds a host with two listings and two guests.
type bookingFixture struct {
	ctx           context.Context
	store         *repository.MemoryStore
	clock         *testClock
	notifier      *MockNotifier
	scheduler     *MockScheduler
	svc           IBookingService
	conversations IConversationService
	reviews       IReviewService

	host, guest, otherGuest models.User
	property, otherProperty models.Property
}

const (
	stayStart = "2025-06-10"
	stayEnd   = "2025-06-13"
)

func newUser(first string) models.User {
	return models.User{Base: models.NewBase(), FirstName: first, LastName: "Test", Email: first + "@example.com", Locale: "en", IsVerified: true}
}

// fixtureSeeder writes reference data the services only read.
type fixtureSeeder interface {
	PutUser(models.User)
	PutProperty(models.Property)
	PutCurrency(models.Currency)
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := buildBookingFixture(t, store, store)
	f.store = store
	return f
}

// buildBookingFixture wires the services over backing. f.store stays nil unless the
// caller sets it, so memory-only helpers are unavailable for other stores.
func buildBookingFixture(t *testing.T, backing repository.Store, seed fixtureSeeder) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		ctx:       context.Background(),
		clock:     &testClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		notifier:  new(MockNotifier),
		scheduler: new(MockScheduler),
	}
	f.notifier.On("NotifyUser", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("EmailUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.scheduler.On("ScheduleBookingExpiry", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.host = newUser("Hana")
	f.guest = newUser("Gil")
	f.otherGuest = newUser("Olga")
	for _, u := range []models.User{f.host, f.guest, f.otherGuest} {
		seed.PutUser(u)
	}

	f.property = models.Property{
		Base:           models.NewBase(),
		HostID:         f.host.ID,
		Title:          "Seaside Loft",
		CurrencyCode:   "USD",
		Status:         models.PropertyStatusApproved,
		IsListed:       true,
		BasePrice:      100,
		CleaningPrice:  50,
		GuestsIncluded: 2,
		MaxGuests:      4,
		Translations:   []models.PropertyTranslation{{Locale: "fr", Title: "Loft en bord de mer"}},
	}
	f.otherProperty = f.property
	f.otherProperty.Base = models.NewBase()
	f.otherProperty.Title = "Garden Cottage"
	seed.PutProperty(f.property)
	seed.PutProperty(f.otherProperty)

	seed.PutCurrency(models.Currency{Base: models.NewBase(), Code: "USD", Symbol: "$", DecimalPlaces: 2, RateToBase: 1})
	seed.PutCurrency(models.Currency{Base: models.NewBase(), Code: "EUR", Symbol: "€", DecimalPlaces: 2, RateToBase: 1.25})

	cfg := &config.Config{
		AppBaseURL:             "https://reluxrent.test",
		GuestServiceFeePercent: 10,
		HostServiceFeePercent:  3,
		PreApprovalTTL:         24 * time.Hour,
		SpecialOfferTTL:        48 * time.Hour,
	}

	conversations := NewConversationService(backing)
	conversations.(*conversationService).now = f.clock.Now
	f.conversations = conversations

	audit := NewAuditRecorder(backing)
	audit.(*auditRecorder).now = f.clock.Now

	svc := NewBookingService(backing, cfg, conversations, NewRatingService(backing), noopLocker{}, f.notifier, f.scheduler, audit)
	svc.(*bookingService).now = f.clock.Now
	f.svc = svc

	reviews := NewReviewService(backing, audit)
	reviews.(*reviewService).now = f.clock.Now
	f.reviews = reviews
	return f
}

func actorOf(u models.User) Actor {
	return Actor{UserID: u.ID, IP: "127.0.0.1", UserAgent: "test"}
}

func (f *bookingFixture) stay(guests int) BookingInput {
	return BookingInput{PropertyID: f.property.ID, StartDate: stayStart, EndDate: stayEnd, Guests: guests}
}

// confirmedStay books the default stay for the guest and confirms it.
func (f *bookingFixture) confirmedStay(t *testing.T) *models.Booking {
	t.Helper()
	b, err := f.svc.PropertyBooking(f.ctx, actorOf(f.guest), f.stay(2))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	b, err = f.svc.ConfirmBooking(f.ctx, actorOf(f.guest), b.ID, ConfirmInput{})
	if err != nil {
		t.Fatalf("confirm booking: %v", err)
	}
	return b
}

func (f *bookingFixture) messages(t *testing.T, bookingID utils.SixID) (*models.Conversation, []models.ConversationMessage) {
	t.Helper()
	link, err := f.conversations.FindBookingThread(f.ctx, bookingID)
	if err != nil {
		t.Fatalf("find thread: %v", err)
	}
	conv, err := f.store.FindConversationByID(f.ctx, link.ConversationID)
	if err != nil {
		t.Fatalf("find conversation: %v", err)
	}
	msgs, err := f.store.ListMessages(f.ctx, link.ConversationID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return conv, msgs
}

func (f *bookingFixture) auditActions() []string {
	var actions []string
	for _, e := range f.store.AuditEntries() {
		actions = append(actions, e.Action)
	}
	return actions
}

func userWithID(id utils.SixID) interface{} {
	return mock.MatchedBy(func(u *models.User) bool { return u != nil && u.ID == id })
}
