package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

// NewMessage is a message to append to a conversation.
type NewMessage struct {
	ConversationID        utils.SixID
	ConversationBookingID *utils.SixID
	SenderID              *utils.SixID
	Type                  models.MessageType
	Body                  string
}

// IConversationService manages guest/host threads and their booking links.
type IConversationService interface {
	FindOrCreateConversation(ctx context.Context, propertyID, guestID, hostID utils.SixID) (*models.Conversation, error)
	AttachBooking(ctx context.Context, conversationID, bookingID utils.SixID) (*models.ConversationBooking, error)
	FindBookingThread(ctx context.Context, bookingID utils.SixID) (*models.ConversationBooking, error)
	AppendMessage(ctx context.Context, msg NewMessage) (*models.ConversationMessage, error)
	ListMessages(ctx context.Context, viewerID, conversationID utils.SixID, limit int64) ([]models.ConversationMessage, error)
}

type conversationService struct {
	store repository.Store
	now   func() time.Time
}

// NewConversationService creates a conversation service backed by store.
func NewConversationService(store repository.Store) IConversationService {
	return &conversationService{store: store, now: time.Now}
}

// FindOrCreateConversation returns the guest's thread about the property, creating it
// with both participants if missing and topping up any participant that is absent.
func (s *conversationService) FindOrCreateConversation(ctx context.Context, propertyID, guestID, hostID utils.SixID) (*models.Conversation, error) {
	conv, err := s.store.FindConversation(ctx, propertyID, guestID)
	if errors.Is(err, repository.ErrNotFound) {
		now := s.now().UTC()
		conv = &models.Conversation{
			PropertyID: propertyID,
			GuestID:    guestID,
			Participants: []models.Participant{
				{UserID: guestID, Role: models.ParticipantRoleGuest, JoinedAt: now},
				{UserID: hostID, Role: models.ParticipantRoleHost, JoinedAt: now},
			},
			CreatedAt: now,
		}
		err = s.store.InsertConversation(ctx, conv)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		// Lost a creation race; use the winner's thread.
		conv, err = s.store.FindConversation(ctx, propertyID, guestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	for _, p := range []models.Participant{
		{UserID: guestID, Role: models.ParticipantRoleGuest},
		{UserID: hostID, Role: models.ParticipantRoleHost},
	} {
		if conv.HasParticipant(p.UserID, p.Role) {
			continue
		}
		p.JoinedAt = s.now().UTC()
		if err := s.store.AddParticipant(ctx, conv.ID, p); err != nil {
			return nil, fmt.Errorf("failed to add %s participant: %w", p.Role, err)
		}
		conv.Participants = append(conv.Participants, p)
	}
	return conv, nil
}

func (s *conversationService) AttachBooking(ctx context.Context, conversationID, bookingID utils.SixID) (*models.ConversationBooking, error) {
	link := &models.ConversationBooking{
		ConversationID: conversationID,
		BookingID:      bookingID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.InsertConversationBooking(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to link booking to conversation: %w", err)
	}
	return link, nil
}

func (s *conversationService) FindBookingThread(ctx context.Context, bookingID utils.SixID) (*models.ConversationBooking, error) {
	link, err := s.store.FindConversationBookingByBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return link, err
}

// AppendMessage inserts the message and moves the conversation's last-message pointer to it.
func (s *conversationService) AppendMessage(ctx context.Context, msg NewMessage) (*models.ConversationMessage, error) {
	m := &models.ConversationMessage{
		ConversationID:        msg.ConversationID,
		ConversationBookingID: msg.ConversationBookingID,
		SenderID:              msg.SenderID,
		Type:                  msg.Type,
		Body:                  msg.Body,
		CreatedAt:             s.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if err := s.store.SetLastMessage(ctx, m.ConversationID, m.ID, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to update conversation pointer: %w", err)
	}
	return m, nil
}

// ListMessages returns the latest limit messages of the thread, oldest first. Only participants may read it.
func (s *conversationService) ListMessages(ctx context.Context, viewerID, conversationID utils.SixID, limit int64) ([]models.ConversationMessage, error) {
	conv, err := s.store.FindConversationByID(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !isParticipant(conv, viewerID) {
		return nil, ErrForbidden
	}
	return s.store.ListMessages(ctx, conversationID, limit)
}

func isParticipant(conv *models.Conversation, userID utils.SixID) bool {
	for _, p := range conv.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
