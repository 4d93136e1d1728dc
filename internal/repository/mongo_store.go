package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reluxrent/api/internal/db"
	"reluxrent/api/internal/models"
)

const (
	colUsers                = "users"
	colProperties           = "properties"
	colPropertyDates        = "property_dates"
	colCurrencies           = "currencies"
	colBookings             = "bookings"
	colBookingDates         = "booking_dates"
	colBookedNights         = "booked_nights"
	colSpecialOffers        = "special_offers"
	colConversations        = "conversations"
	colConversationBookings = "conversation_bookings"
	colConversationMessages = "conversation_messages"
	colReviews              = "reviews"
	colAuditLogs            = "audit_logs"
	colEmailTemplates       = "email_templates"
)

// notDeleted is added to every read of a soft-deletable collection.
var notDeleted = bson.E{Key: "deleted_at", Value: nil}

// MongoStore implements Store on MongoDB. Transactions require a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore creates a store on the given database.
func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{client: database.Client(), db: database}
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// WithTransaction runs fn inside a MongoDB transaction.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTransaction(ctx, s.client, fn)
}

// EnsureIndexes creates the indexes the booking flow relies on, including the
// uniqueness constraints that prevent double-booking and duplicate threads.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		colBookedNights: {
			{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		},
		colBookings: {
			{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "booking_status", Value: 1}}},
			{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "booking_status", Value: 1}}},
		},
		colBookingDates: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "date", Value: 1}}},
		},
		colPropertyDates: {
			{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colSpecialOffers: {
			{
				Keys: bson.D{{Key: "booking_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "PENDING"}).
					SetName("booking_id_pending_unique"),
			},
		},
		colConversations: {
			{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "guest_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participants.user_id", Value: 1}, {Key: "last_message_at", Value: -1}}},
		},
		colConversationBookings: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		},
		colConversationMessages: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colReviews: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "sender_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}}},
		},
		colCurrencies: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colEmailTemplates: {
			{Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "locale", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colAuditLogs: {
			{Keys: bson.D{{Key: "resource", Value: 1}, {Key: "resource_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// insert writes doc, generating its ID if unset and regenerating it on _id collisions.
func (s *MongoStore) insert(ctx context.Context, collection string, doc models.IBase, what string) error {
	first := true
	err := db.Try(ctx, func() error {
		if first {
			doc.GenIDIfEmpty()
			first = false
		} else {
			doc.GenID()
		}
		_, err := s.col(collection).InsertOne(ctx, doc)
		return err
	})
	return mapDuplicate(err, what)
}

// findOne decodes a single document into out, mapping ErrNoDocuments to ErrNotFound.
func (s *MongoStore) findOne(ctx context.Context, collection string, filter interface{}, out interface{}, opts ...*options.FindOneOptions) error {
	err := s.col(collection).FindOne(ctx, filter, opts...).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find in %s: %w", collection, err)
	}
	return nil
}

// findAll decodes every matching document into out.
func (s *MongoStore) findAll(ctx context.Context, collection string, filter interface{}, out interface{}, opts ...*options.FindOptions) error {
	cursor, err := s.col(collection).Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

// requireMatched turns an update that matched nothing into ErrNotFound.
func requireMatched(res *mongo.UpdateResult, err error, what string) error {
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// mapDuplicate turns a non-_id duplicate key error into ErrDuplicate.
func mapDuplicate(err error, what string) error {
	if err == nil {
		return nil
	}
	if db.IsMongoDuplicateKeyError(err) && !db.IsMongoIDCollision(err) {
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}
