package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/utils"
)

func (s *MongoStore) InsertReview(ctx context.Context, review *models.Review) error {
	return s.insert(ctx, colReviews, review, "review")
}

func (s *MongoStore) SetOverallRating(ctx context.Context, id utils.SixID, rating float64) error {
	res, err := s.col(colReviews).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"overall_rating": rating}})
	return requireMatched(res, err, "review")
}

func (s *MongoStore) FindReviewByID(ctx context.Context, id utils.SixID) (*models.Review, error) {
	var review models.Review
	if err := s.findOne(ctx, colReviews, bson.M{"_id": id}, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *MongoStore) ListReviewsByBooking(ctx context.Context, bookingID utils.SixID) ([]models.Review, error) {
	reviews := []models.Review{}
	if err := s.findAll(ctx, colReviews, bson.M{"booking_id": bookingID}, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *MongoStore) ListReviewsReceived(ctx context.Context, userID utils.SixID) ([]models.Review, error) {
	reviews := []models.Review{}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := s.findAll(ctx, colReviews, bson.M{"receiver_id": userID}, &reviews, opts); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *MongoStore) SetPublicResponse(ctx context.Context, id utils.SixID, response string, at time.Time) error {
	res, err := s.col(colReviews).UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"public_response": response, "public_response_date": at}})
	return requireMatched(res, err, "review")
}
