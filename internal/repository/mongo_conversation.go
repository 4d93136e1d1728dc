package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

func (s *MongoStore) FindConversation(ctx context.Context, propertyID, guestID utils.SixID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.findOne(ctx, colConversations, bson.M{"property_id": propertyID, "guest_id": guestID}, &conversation)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *MongoStore) FindConversationByID(ctx context.Context, id utils.SixID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := s.findOne(ctx, colConversations, bson.M{"_id": id}, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *MongoStore) InsertConversation(ctx context.Context, conversation *models.Conversation) error {
	return s.insert(ctx, colConversations, conversation, "conversation")
}

func (s *MongoStore) AddParticipant(ctx context.Context, conversationID utils.SixID, participant models.Participant) error {
	filter := bson.M{
		"_id": conversationID,
		"participants": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"user_id": participant.UserID,
			"role":    participant.Role,
		}}},
	}
	if _, err := s.col(colConversations).UpdateOne(ctx, filter, bson.M{"$push": bson.M{"participants": participant}}); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertConversationBooking(ctx context.Context, link *models.ConversationBooking) error {
	return s.insert(ctx, colConversationBookings, link, "conversation booking")
}

func (s *MongoStore) FindConversationBookingByBooking(ctx context.Context, bookingID utils.SixID) (*models.ConversationBooking, error) {
	var link models.ConversationBooking
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := s.findOne(ctx, colConversationBookings, bson.M{"booking_id": bookingID}, &link, opts); err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *MongoStore) InsertMessage(ctx context.Context, message *models.ConversationMessage) error {
	return s.insert(ctx, colConversationMessages, message, "conversation message")
}

func (s *MongoStore) SetLastMessage(ctx context.Context, conversationID, messageID utils.SixID, at time.Time) error {
	res, err := s.col(colConversations).UpdateOne(ctx, bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"last_message_id": messageID, "last_message_at": at}})
	return requireMatched(res, err, "conversation")
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID utils.SixID, limit int64) ([]models.ConversationMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	messages := []models.ConversationMessage{}
	if err := s.findAll(ctx, colConversationMessages, bson.M{"conversation_id": conversationID}, &messages, opts); err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
