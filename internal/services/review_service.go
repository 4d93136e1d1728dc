package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

// Rounding precision of a review's overall rating, per reviewer role.
// Guest reviews round to one decimal and host reviews to a whole number.
const (
	GuestReviewPrecision = 1
	HostReviewPrecision  = 0
)

// GuestReviewCategories are scored when a guest reviews a host.
var GuestReviewCategories = []string{"accuracy", "cleanliness", "communication", "checkin", "amenities", "location", "value"}

// HostReviewCategories are scored when a host reviews a guest.
var HostReviewCategories = []string{"houseRules", "cleanliness", "communication"}

const (
	minScore = 1
	maxScore = 5
)

// ReviewInput is one side's review of a completed stay.
type ReviewInput struct {
	BookingID          utils.SixID
	Message            string
	SecretFeedback     string
	ImprovementMessage string
	Ratings            []models.Rating
}

// IReviewService records reviews after checkout and the receiver's public response.
type IReviewService interface {
	AddGuestReview(ctx context.Context, actor Actor, in ReviewInput) (*models.Review, error)
	AddHostReview(ctx context.Context, actor Actor, in ReviewInput) (*models.Review, error)
	AddPublicResponse(ctx context.Context, actor Actor, reviewID utils.SixID, response string) (*models.Review, error)
}

type reviewService struct {
	store repository.Store
	audit IAuditRecorder
	now   func() time.Time
}

// NewReviewService creates the review subsystem.
func NewReviewService(store repository.Store, audit IAuditRecorder) IReviewService {
	return &reviewService{store: store, audit: audit, now: time.Now}
}

// reviewPath is what differs between a guest and a host writing a review.
type reviewPath struct {
	role       models.ReviewerRole
	categories []string
	precision  int
}

var (
	guestPath = reviewPath{role: models.ReviewerRoleGuest, categories: GuestReviewCategories, precision: GuestReviewPrecision}
	hostPath  = reviewPath{role: models.ReviewerRoleHost, categories: HostReviewCategories, precision: HostReviewPrecision}
)

func (s *reviewService) AddGuestReview(ctx context.Context, actor Actor, in ReviewInput) (*models.Review, error) {
	return s.addReview(ctx, actor, in, guestPath)
}

func (s *reviewService) AddHostReview(ctx context.Context, actor Actor, in ReviewInput) (*models.Review, error) {
	return s.addReview(ctx, actor, in, hostPath)
}

// validateRatings requires exactly one in-range score for each category of the path.
func validateRatings(ratings []models.Rating, path reviewPath) error {
	allowed := make(map[string]bool, len(path.categories))
	for _, c := range path.categories {
		allowed[c] = true
	}
	seen := make(map[string]bool, len(ratings))
	for _, r := range ratings {
		if !allowed[r.Category] {
			return validationError("unknown rating category %q", r.Category)
		}
		if seen[r.Category] {
			return validationError("duplicate rating category %q", r.Category)
		}
		if math.IsNaN(r.Score) || r.Score < minScore || r.Score > maxScore {
			return validationError("score for %q must be between %d and %d", r.Category, minScore, maxScore)
		}
		seen[r.Category] = true
	}
	if len(seen) != len(path.categories) {
		return validationError("ratings must cover %s", strings.Join(path.categories, ", "))
	}
	return nil
}

// overallRating is the mean of the category scores at the given precision.
func overallRating(ratings []models.Rating, precision int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		sum += r.Score
	}
	return roundTo(sum/float64(len(ratings)), precision)
}

func (s *reviewService) addReview(ctx context.Context, actor Actor, in ReviewInput, path reviewPath) (*models.Review, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, validationError("review message is required")
	}
	if err := validateRatings(in.Ratings, path); err != nil {
		return nil, err
	}

	var review *models.Review
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		b, err := s.store.FindBookingByID(ctx, in.BookingID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("booking %s: %w", in.BookingID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		sender, receiver := b.GuestID, b.HostID
		if path.role == models.ReviewerRoleHost {
			sender, receiver = b.HostID, b.GuestID
		}
		if actor.UserID != sender {
			return ErrForbidden
		}

		now := s.now().UTC()
		if b.BookingStatus != models.BookingStatusConfirmed || b.BookingType != models.BookingTypeBooking {
			return fmt.Errorf("%w: booking is not a confirmed stay", ErrReviewNotAllowed)
		}
		if !b.EndDate.Before(now) {
			return fmt.Errorf("%w: stay has not ended", ErrReviewNotAllowed)
		}
		if b.EndDate.Add(reviewWindow).Sub(now) <= 0 {
			return fmt.Errorf("%w: review window closed", ErrReviewNotAllowed)
		}

		existing, err := s.store.ListReviewsByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if findReview(existing, sender, receiver) != nil {
			return fmt.Errorf("%w: already reviewed", ErrReviewNotAllowed)
		}

		review = &models.Review{
			BookingID:          b.ID,
			PropertyID:         b.PropertyID,
			SenderID:           sender,
			ReceiverID:         receiver,
			SenderRole:         path.role,
			Message:            strings.TrimSpace(in.Message),
			SecretFeedback:     strings.TrimSpace(in.SecretFeedback),
			ImprovementMessage: strings.TrimSpace(in.ImprovementMessage),
			Ratings:            in.Ratings,
			CreatedAt:          now,
		}
		if err := s.store.InsertReview(ctx, review); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: already reviewed", ErrReviewNotAllowed)
			}
			return err
		}
		review.OverallRating = overallRating(review.Ratings, path.precision)
		return s.store.SetOverallRating(ctx, review.ID, review.OverallRating)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(context.WithoutCancel(ctx), AuditRecord{
		Actor: actor, Action: "review.create", Resource: "review", ResourceID: review.ID,
		Message: fmt.Sprintf("%s review for booking %s", strings.ToLower(string(path.role)), review.BookingID),
		After:   review,
	})
	return review, nil
}

// AddPublicResponse sets the receiver's public reply. Replying again replaces the earlier reply.
func (s *reviewService) AddPublicResponse(ctx context.Context, actor Actor, reviewID utils.SixID, response string) (*models.Review, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, validationError("response is required")
	}
	review, err := s.store.FindReviewByID(ctx, reviewID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("review %s: %w", reviewID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if review.ReceiverID != actor.UserID {
		return nil, ErrForbidden
	}
	before := *review
	now := s.now().UTC()
	if err := s.store.SetPublicResponse(ctx, reviewID, response, now); err != nil {
		return nil, err
	}
	review.PublicResponse = response
	review.PublicResponseDate = &now

	s.audit.Record(context.WithoutCancel(ctx), AuditRecord{
		Actor: actor, Action: "review.public_response", Resource: "review", ResourceID: reviewID,
		Message: "public response set", Before: &before, After: review,
	})
	return review, nil
}
