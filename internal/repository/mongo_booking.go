package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reluxrent/api/internal/db"
	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

func (s *MongoStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	return s.insert(ctx, colBookings, booking, "booking")
}

func (s *MongoStore) FindBookingByID(ctx context.Context, id utils.SixID) (*models.Booking, error) {
	var booking models.Booking
	if err := s.findOne(ctx, colBookings, bson.D{{Key: "_id", Value: id}, notDeleted}, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *MongoStore) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	res, err := s.col(colBookings).ReplaceOne(ctx, bson.D{{Key: "_id", Value: booking.ID}, notDeleted}, booking)
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", booking.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SoftDeleteBooking(ctx context.Context, id utils.SixID, at time.Time) error {
	res, err := s.col(colBookings).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, notDeleted},
		bson.M{"$set": bson.M{"deleted_at": at, "updated_at": at}})
	return requireMatched(res, err, "booking")
}

func (s *MongoStore) ListConfirmedBookings(ctx context.Context, propertyID, excludeID utils.SixID) ([]models.Booking, error) {
	filter := bson.D{
		{Key: "property_id", Value: propertyID},
		{Key: "booking_status", Value: models.BookingStatusConfirmed},
		{Key: "_id", Value: bson.M{"$ne": excludeID}},
		notDeleted,
	}
	bookings := []models.Booking{}
	if err := s.findAll(ctx, colBookings, filter, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *MongoStore) CountConfirmedBookingsByGuest(ctx context.Context, guestID utils.SixID) (int64, error) {
	n, err := s.col(colBookings).CountDocuments(ctx, bson.D{
		{Key: "guest_id", Value: guestID},
		{Key: "booking_status", Value: models.BookingStatusConfirmed},
		notDeleted,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

func (s *MongoStore) ReplaceBookingDates(ctx context.Context, bookingID utils.SixID, dates []models.BookingDate) error {
	if _, err := s.col(colBookingDates).DeleteMany(ctx, bson.M{"booking_id": bookingID}); err != nil {
		return fmt.Errorf("failed to clear booking dates: %w", err)
	}
	if len(dates) == 0 {
		return nil
	}
	docs := make([]interface{}, len(dates))
	for i := range dates {
		dates[i].BookingID = bookingID
		dates[i].GenIDIfEmpty()
		docs[i] = dates[i]
	}
	if _, err := s.col(colBookingDates).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert booking dates: %w", err)
	}
	return nil
}

func (s *MongoStore) ListBookingDates(ctx context.Context, bookingIDs []utils.SixID) ([]models.BookingDate, error) {
	dates := []models.BookingDate{}
	if len(bookingIDs) == 0 {
		return dates, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	if err := s.findAll(ctx, colBookingDates, bson.M{"booking_id": bson.M{"$in": bookingIDs}}, &dates, opts); err != nil {
		return nil, err
	}
	return dates, nil
}

func (s *MongoStore) FindNightConflict(ctx context.Context, propertyID utils.SixID, dates []string, excludeBookingID utils.SixID) (*models.Booking, error) {
	if len(dates) == 0 {
		return nil, ErrNotFound
	}
	var night models.BookedNight
	err := s.findOne(ctx, colBookedNights, bson.M{
		"property_id": propertyID,
		"date":        bson.M{"$in": dates},
		"booking_id":  bson.M{"$ne": excludeBookingID},
	}, &night)
	if err != nil {
		return nil, err
	}
	booking, err := s.FindBookingByID(ctx, night.BookingID)
	if errors.Is(err, ErrNotFound) {
		// Soft delete releases nights, so the holder was removed after the night was read.
		return &models.Booking{Base: models.Base{ID: night.BookingID}, PropertyID: propertyID}, nil
	}
	return booking, err
}

func (s *MongoStore) ReserveNights(ctx context.Context, propertyID, bookingID utils.SixID, dates []string) error {
	if len(dates) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(dates))
	for i, d := range dates {
		docs[i] = models.BookedNight{PropertyID: propertyID, Date: d, BookingID: bookingID, CreatedAt: now}
	}
	_, err := s.col(colBookedNights).InsertMany(ctx, docs)
	if db.IsMongoWriteConflict(err) {
		// A concurrent transaction is claiming the same night.
		return fmt.Errorf("booked nights: %w", ErrDuplicate)
	}
	if err != nil {
		return mapDuplicate(err, "booked nights")
	}
	return nil
}

func (s *MongoStore) ReleaseNights(ctx context.Context, bookingID utils.SixID) error {
	if _, err := s.col(colBookedNights).DeleteMany(ctx, bson.M{"booking_id": bookingID}); err != nil {
		return fmt.Errorf("failed to release nights: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertSpecialOffer(ctx context.Context, offer *models.SpecialOffer) error {
	return s.insert(ctx, colSpecialOffers, offer, "special offer")
}

func (s *MongoStore) FindPendingSpecialOffer(ctx context.Context, bookingID utils.SixID) (*models.SpecialOffer, error) {
	var offer models.SpecialOffer
	err := s.findOne(ctx, colSpecialOffers, bson.M{"booking_id": bookingID, "status": models.SpecialOfferStatusPending}, &offer)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (s *MongoStore) DeletePendingSpecialOffers(ctx context.Context, bookingID utils.SixID) (int64, error) {
	res, err := s.col(colSpecialOffers).DeleteMany(ctx, bson.M{"booking_id": bookingID, "status": models.SpecialOfferStatusPending})
	if err != nil {
		return 0, fmt.Errorf("failed to delete special offers: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) UpdateSpecialOfferStatus(ctx context.Context, id utils.SixID, status models.SpecialOfferStatus) error {
	res, err := s.col(colSpecialOffers).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	return requireMatched(res, err, "special offer")
}
