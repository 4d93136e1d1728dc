package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

type nightKey struct {
	propertyID utils.SixID
	date       string
}

type memoryState struct {
	users         map[utils.SixID]models.User
	properties    map[utils.SixID]models.Property
	propertyDates []models.PropertyDate
	currencies    map[string]models.Currency
	bookings      map[utils.SixID]models.Booking
	bookingDates  []models.BookingDate
	nights        map[nightKey]utils.SixID
	offers        map[utils.SixID]models.SpecialOffer
	conversations map[utils.SixID]models.Conversation
	links         []models.ConversationBooking
	messages      []models.ConversationMessage
	reviews       map[utils.SixID]models.Review
	audit         []models.AuditEntry
	templates     map[string]models.EmailTemplate
}

func newMemoryState() memoryState {
	return memoryState{
		users:         map[utils.SixID]models.User{},
		properties:    map[utils.SixID]models.Property{},
		currencies:    map[string]models.Currency{},
		bookings:      map[utils.SixID]models.Booking{},
		nights:        map[nightKey]utils.SixID{},
		offers:        map[utils.SixID]models.SpecialOffer{},
		conversations: map[utils.SixID]models.Conversation{},
		reviews:       map[utils.SixID]models.Review{},
		templates:     map[string]models.EmailTemplate{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st memoryState) clone() memoryState {
	return memoryState{
		users:         cloneMap(st.users),
		properties:    cloneMap(st.properties),
		propertyDates: append([]models.PropertyDate(nil), st.propertyDates...),
		currencies:    cloneMap(st.currencies),
		bookings:      cloneMap(st.bookings),
		bookingDates:  append([]models.BookingDate(nil), st.bookingDates...),
		nights:        cloneMap(st.nights),
		offers:        cloneMap(st.offers),
		conversations: cloneMap(st.conversations),
		links:         append([]models.ConversationBooking(nil), st.links...),
		messages:      append([]models.ConversationMessage(nil), st.messages...),
		reviews:       cloneMap(st.reviews),
		audit:         append([]models.AuditEntry(nil), st.audit...),
		templates:     cloneMap(st.templates),
	}
}

type memoryTxKey struct{}

// MemoryStore is an in-process Store used by tests and local runs without MongoDB.
// Transactions are serialized and roll back by restoring a snapshot.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state memoryState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// PutUser seeds a user.
func (s *MemoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

// PutProperty seeds a property.
func (s *MemoryStore) PutProperty(p models.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.properties[p.ID] = p
}

// PutPropertyDate seeds a calendar entry.
func (s *MemoryStore) PutPropertyDate(d models.PropertyDate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.GenIDIfEmpty()
	s.state.propertyDates = append(s.state.propertyDates, d)
}

// PutCurrency seeds a currency.
func (s *MemoryStore) PutCurrency(c models.Currency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.currencies[c.Code] = c
}

// AuditEntries returns every recorded audit entry.
func (s *MemoryStore) AuditEntries() []models.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditEntry(nil), s.state.audit...)
}

// PendingSpecialOffers returns the PENDING offers of a booking.
func (s *MemoryStore) PendingSpecialOffers(bookingID utils.SixID) []models.SpecialOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SpecialOffer
	for _, o := range s.state.offers {
		if o.BookingID == bookingID && o.Status == models.SpecialOfferStatusPending {
			out = append(out, o)
		}
	}
	return out
}

// BookedNights returns the dates of the property held by confirmed bookings.
func (s *MemoryStore) BookedNights(propertyID utils.SixID) map[string]utils.SixID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]utils.SixID{}
	for k, id := range s.state.nights {
		if k.propertyID == propertyID {
			out[k.date] = id
		}
	}
	return out
}

func (s *MemoryStore) FindUserByID(_ context.Context, id utils.SixID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	if !ok || u.IsDeleted() {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindPropertyByID(_ context.Context, id utils.SixID) (*models.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.properties[id]
	if !ok || p.IsDeleted() {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPropertyDates(_ context.Context, propertyID utils.SixID, from, to string) ([]models.PropertyDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.PropertyDate{}
	for _, d := range s.state.propertyDates {
		if d.PropertyID == propertyID && d.Date >= from && d.Date <= to {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStore) FindCurrency(_ context.Context, code string) (*models.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.currencies[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) InsertBooking(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking.GenIDIfEmpty()
	s.state.bookings[booking.ID] = *booking
	return nil
}

func (s *MemoryStore) FindBookingByID(_ context.Context, id utils.SixID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.bookings[id]
	if !ok || b.IsDeleted() {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *MemoryStore) UpdateBooking(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.state.bookings[booking.ID]
	if !ok || existing.IsDeleted() {
		return ErrNotFound
	}
	s.state.bookings[booking.ID] = *booking
	return nil
}

func (s *MemoryStore) SoftDeleteBooking(_ context.Context, id utils.SixID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.bookings[id]
	if !ok || b.IsDeleted() {
		return ErrNotFound
	}
	b.DeletedAt = &at
	b.UpdatedAt = at
	s.state.bookings[id] = b
	return nil
}

func (s *MemoryStore) ListConfirmedBookings(_ context.Context, propertyID, excludeID utils.SixID) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Booking{}
	for _, b := range s.state.bookings {
		if b.PropertyID == propertyID && b.ID != excludeID && b.BookingStatus == models.BookingStatusConfirmed && !b.IsDeleted() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountConfirmedBookingsByGuest(_ context.Context, guestID utils.SixID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, b := range s.state.bookings {
		if b.GuestID == guestID && b.BookingStatus == models.BookingStatusConfirmed && !b.IsDeleted() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ReplaceBookingDates(_ context.Context, bookingID utils.SixID, dates []models.BookingDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.bookingDates[:0:0]
	for _, d := range s.state.bookingDates {
		if d.BookingID != bookingID {
			kept = append(kept, d)
		}
	}
	for _, d := range dates {
		d.BookingID = bookingID
		d.GenIDIfEmpty()
		kept = append(kept, d)
	}
	s.state.bookingDates = kept
	return nil
}

func (s *MemoryStore) ListBookingDates(_ context.Context, bookingIDs []utils.SixID) ([]models.BookingDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[utils.SixID]bool, len(bookingIDs))
	for _, id := range bookingIDs {
		want[id] = true
	}
	out := []models.BookingDate{}
	for _, d := range s.state.bookingDates {
		if want[d.BookingID] {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStore) FindNightConflict(_ context.Context, propertyID utils.SixID, dates []string, excludeBookingID utils.SixID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range dates {
		holder, ok := s.state.nights[nightKey{propertyID, d}]
		if !ok || holder == excludeBookingID {
			continue
		}
		if b, ok := s.state.bookings[holder]; ok {
			return &b, nil
		}
		return &models.Booking{Base: models.Base{ID: holder}, PropertyID: propertyID}, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ReserveNights(_ context.Context, propertyID, bookingID utils.SixID, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range dates {
		if holder, ok := s.state.nights[nightKey{propertyID, d}]; ok && holder != bookingID {
			return ErrDuplicate
		}
	}
	for _, d := range dates {
		s.state.nights[nightKey{propertyID, d}] = bookingID
	}
	return nil
}

func (s *MemoryStore) ReleaseNights(_ context.Context, bookingID utils.SixID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, holder := range s.state.nights {
		if holder == bookingID {
			delete(s.state.nights, k)
		}
	}
	return nil
}

func (s *MemoryStore) InsertSpecialOffer(_ context.Context, offer *models.SpecialOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offer.Status == models.SpecialOfferStatusPending {
		for _, o := range s.state.offers {
			if o.BookingID == offer.BookingID && o.Status == models.SpecialOfferStatusPending {
				return ErrDuplicate
			}
		}
	}
	offer.GenIDIfEmpty()
	s.state.offers[offer.ID] = *offer
	return nil
}

func (s *MemoryStore) FindPendingSpecialOffer(_ context.Context, bookingID utils.SixID) (*models.SpecialOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.state.offers {
		if o.BookingID == bookingID && o.Status == models.SpecialOfferStatusPending {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DeletePendingSpecialOffers(_ context.Context, bookingID utils.SixID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, o := range s.state.offers {
		if o.BookingID == bookingID && o.Status == models.SpecialOfferStatusPending {
			delete(s.state.offers, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateSpecialOfferStatus(_ context.Context, id utils.SixID, status models.SpecialOfferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.offers[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	s.state.offers[id] = o
	return nil
}

func (s *MemoryStore) FindConversation(_ context.Context, propertyID, guestID utils.SixID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.state.conversations {
		if c.PropertyID == propertyID && c.GuestID == guestID {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindConversationByID(_ context.Context, id utils.SixID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) InsertConversation(_ context.Context, conversation *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.state.conversations {
		if c.PropertyID == conversation.PropertyID && c.GuestID == conversation.GuestID {
			return ErrDuplicate
		}
	}
	conversation.GenIDIfEmpty()
	stored := *conversation
	stored.Participants = append([]models.Participant(nil), conversation.Participants...)
	s.state.conversations[stored.ID] = stored
	return nil
}

func (s *MemoryStore) AddParticipant(_ context.Context, conversationID utils.SixID, participant models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if c.HasParticipant(participant.UserID, participant.Role) {
		return nil
	}
	participants := make([]models.Participant, 0, len(c.Participants)+1)
	participants = append(participants, c.Participants...)
	c.Participants = append(participants, participant)
	s.state.conversations[conversationID] = c
	return nil
}

func (s *MemoryStore) InsertConversationBooking(_ context.Context, link *models.ConversationBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link.GenIDIfEmpty()
	s.state.links = append(s.state.links, *link)
	return nil
}

func (s *MemoryStore) FindConversationBookingByBooking(_ context.Context, bookingID utils.SixID) (*models.ConversationBooking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.state.links) - 1; i >= 0; i-- {
		if s.state.links[i].BookingID == bookingID {
			link := s.state.links[i]
			return &link, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) InsertMessage(_ context.Context, message *models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message.GenIDIfEmpty()
	s.state.messages = append(s.state.messages, *message)
	return nil
}

func (s *MemoryStore) SetLastMessage(_ context.Context, conversationID, messageID utils.SixID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	id := messageID
	c.LastMessageID = &id
	c.LastMessageAt = &at
	s.state.conversations[conversationID] = c
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID utils.SixID, limit int64) ([]models.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.ConversationMessage{}
	for _, m := range s.state.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (s *MemoryStore) InsertReview(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.state.reviews {
		if r.BookingID == review.BookingID && r.SenderID == review.SenderID {
			return ErrDuplicate
		}
	}
	review.GenIDIfEmpty()
	stored := *review
	stored.Ratings = append([]models.Rating(nil), review.Ratings...)
	s.state.reviews[stored.ID] = stored
	return nil
}

func (s *MemoryStore) SetOverallRating(_ context.Context, id utils.SixID, rating float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.reviews[id]
	if !ok {
		return ErrNotFound
	}
	r.OverallRating = rating
	s.state.reviews[id] = r
	return nil
}

func (s *MemoryStore) FindReviewByID(_ context.Context, id utils.SixID) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) ListReviewsByBooking(_ context.Context, bookingID utils.SixID) ([]models.Review, error) {
	return s.filterReviews(func(r models.Review) bool { return r.BookingID == bookingID }), nil
}

func (s *MemoryStore) ListReviewsReceived(_ context.Context, userID utils.SixID) ([]models.Review, error) {
	return s.filterReviews(func(r models.Review) bool { return r.ReceiverID == userID }), nil
}

func (s *MemoryStore) filterReviews(keep func(models.Review) bool) []models.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Review{}
	for _, r := range s.state.reviews {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) SetPublicResponse(_ context.Context, id utils.SixID, response string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.reviews[id]
	if !ok {
		return ErrNotFound
	}
	r.PublicResponse = response
	r.PublicResponseDate = &at
	s.state.reviews[id] = r
	return nil
}

func (s *MemoryStore) InsertAuditEntry(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.GenIDIfEmpty()
	s.state.audit = append(s.state.audit, *entry)
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)

func (s *MemoryStore) FindEmailTemplate(_ context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.templates[templateID+"|"+locale]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) SaveEmailTemplate(_ context.Context, template *models.EmailTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := template.TemplateID + "|" + template.Locale
	if existing, ok := s.state.templates[key]; ok {
		template.ID = existing.ID
	}
	template.GenIDIfEmpty()
	s.state.templates[key] = *template
	return nil
}
