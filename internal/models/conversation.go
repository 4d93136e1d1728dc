package models

import (
	"time"

	"reluxrent/api/internal/utils"
)

type ParticipantRole string

const (
	ParticipantRoleGuest ParticipantRole = "GUEST"
	ParticipantRoleHost  ParticipantRole = "HOST"
)

type Participant struct {
	UserID   utils.SixID     `bson:"user_id" json:"user_id"`
	Role     ParticipantRole `bson:"role" json:"role"`
	JoinedAt time.Time       `bson:"joined_at" json:"joined_at"`
}

// Conversation is the thread a guest has about one property.
type Conversation struct {
	Base          `bson:",inline"`
	PropertyID    utils.SixID   `bson:"property_id" json:"property_id"`
	GuestID       utils.SixID   `bson:"guest_id" json:"guest_id"`
	Participants  []Participant `bson:"participants" json:"participants"`
	LastMessageID *utils.SixID  `bson:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time    `bson:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is attached with the given role.
func (c *Conversation) HasParticipant(userID utils.SixID, role ParticipantRole) bool {
	for _, p := range c.Participants {
		if p.UserID == userID && p.Role == role {
			return true
		}
	}
	return false
}

// ConversationBooking links a conversation to one booking episode.
type ConversationBooking struct {
	Base           `bson:",inline"`
	ConversationID utils.SixID `bson:"conversation_id" json:"conversation_id"`
	BookingID      utils.SixID `bson:"booking_id" json:"booking_id"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
}

type MessageType string

const (
	MessageTypeSystem MessageType = "SYSTEM"
	MessageTypeText   MessageType = "TEXT"
)

// ConversationMessage is immutable once written.
type ConversationMessage struct {
	Base                  `bson:",inline"`
	ConversationID        utils.SixID  `bson:"conversation_id" json:"conversation_id"`
	ConversationBookingID *utils.SixID `bson:"conversation_booking_id,omitempty" json:"conversation_booking_id,omitempty"`
	SenderID              *utils.SixID `bson:"sender_id,omitempty" json:"sender_id,omitempty"`
	Type                  MessageType  `bson:"type" json:"type"`
	Body                  string       `bson:"body" json:"body"`
	CreatedAt             time.Time    `bson:"created_at" json:"created_at"`
}
