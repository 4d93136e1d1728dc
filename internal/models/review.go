package models

import (
	"time"

	"reluxrent/api/internal/utils"
)

type ReviewerRole string

const (
	ReviewerRoleGuest ReviewerRole = "GUEST"
	ReviewerRoleHost  ReviewerRole = "HOST"
)

// Rating is one category score inside a review.
type Rating struct {
	Category string  `bson:"category" json:"category"`
	Score    float64 `bson:"score" json:"score"`
	Message  string  `bson:"message,omitempty" json:"message,omitempty"`
}

// Review is left by one side of a completed booking about the other.
type Review struct {
	Base               `bson:",inline"`
	BookingID          utils.SixID  `bson:"booking_id" json:"booking_id"`
	PropertyID         utils.SixID  `bson:"property_id" json:"property_id"`
	SenderID           utils.SixID  `bson:"sender_id" json:"sender_id"`
	ReceiverID         utils.SixID  `bson:"receiver_id" json:"receiver_id"`
	SenderRole         ReviewerRole `bson:"sender_role" json:"sender_role"`
	Message            string       `bson:"message" json:"message"`
	SecretFeedback     string       `bson:"secret_feedback,omitempty" json:"secret_feedback,omitempty"`
	ImprovementMessage string       `bson:"improvement_message,omitempty" json:"improvement_message,omitempty"`
	Ratings            []Rating     `bson:"ratings" json:"ratings"`
	OverallRating      float64      `bson:"overall_rating" json:"overall_rating"`
	PublicResponse     string       `bson:"public_response,omitempty" json:"public_response,omitempty"`
	PublicResponseDate *time.Time   `bson:"public_response_date,omitempty" json:"public_response_date,omitempty"`
	CreatedAt          time.Time    `bson:"created_at" json:"created_at"`
}
