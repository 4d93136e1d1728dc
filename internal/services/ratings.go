package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"reluxrent/api/internal/models"
	"reluxrent/api/internal/repository"
	"reluxrent/api/internal/utils"
)

// CategoryRating is the average score of one rating category.
type CategoryRating struct {
	Category string  `json:"category"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

// RatingSummary aggregates the reviews a user received.
type RatingSummary struct {
	OverallRating   float64          `json:"overallRating"`
	ReviewCount     int              `json:"reviewCount"`
	CategoryRatings []CategoryRating `json:"categoryRatings"`
}

// UserRatings decorates a booking with both parties' ratings.
type UserRatings struct {
	GuestOverallRating   float64          `json:"guestOverallRating"`
	GuestReviewCount     int              `json:"guestReviewCount"`
	GuestTripsCount      int64            `json:"guestTripsCount"`
	GuestCategoryRatings []CategoryRating `json:"guestCategoryRatings"`
	HostOverallRating    float64          `json:"hostOverallRating"`
	HostReviewCount      int              `json:"hostReviewCount"`
	HostCategoryRatings  []CategoryRating `json:"hostCategoryRatings"`
}

// AggregateRatings averages overall and per-category scores, rounded to one decimal.
// Non-finite scores are skipped. Categories are returned sorted by name.
func AggregateRatings(reviews []models.Review) RatingSummary {
	summary := RatingSummary{ReviewCount: len(reviews), CategoryRatings: []CategoryRating{}}

	var overallSum float64
	var overallN int
	sums := map[string]float64{}
	counts := map[string]int{}

	for _, r := range reviews {
		if isFinite(r.OverallRating) {
			overallSum += r.OverallRating
			overallN++
		}
		for _, rating := range r.Ratings {
			if !isFinite(rating.Score) {
				continue
			}
			sums[rating.Category] += rating.Score
			counts[rating.Category]++
		}
	}

	if overallN > 0 {
		summary.OverallRating = roundTo(overallSum/float64(overallN), 1)
	}

	for category, n := range counts {
		summary.CategoryRatings = append(summary.CategoryRatings, CategoryRating{
			Category: category,
			Average:  roundTo(sums[category]/float64(n), 1),
			Count:    n,
		})
	}
	sort.Slice(summary.CategoryRatings, func(i, j int) bool {
		return summary.CategoryRatings[i].Category < summary.CategoryRatings[j].Category
	})
	return summary
}

// IRatingService computes ratings for booking views.
type IRatingService interface {
	GetUserRatings(ctx context.Context, guestID, hostID utils.SixID) (*UserRatings, error)
	GetRatingSummary(ctx context.Context, userID utils.SixID) (*RatingSummary, error)
}

type ratingService struct {
	store repository.Store
}

// NewRatingService creates a read-only rating aggregator.
func NewRatingService(store repository.Store) IRatingService {
	return &ratingService{store: store}
}

func (s *ratingService) GetRatingSummary(ctx context.Context, userID utils.SixID) (*RatingSummary, error) {
	reviews, err := s.store.ListReviewsReceived(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for %s: %w", userID, err)
	}
	summary := AggregateRatings(reviews)
	return &summary, nil
}

func (s *ratingService) GetUserRatings(ctx context.Context, guestID, hostID utils.SixID) (*UserRatings, error) {
	guest, err := s.GetRatingSummary(ctx, guestID)
	if err != nil {
		return nil, err
	}
	host, err := s.GetRatingSummary(ctx, hostID)
	if err != nil {
		return nil, err
	}
	trips, err := s.store.CountConfirmedBookingsByGuest(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to count trips for %s: %w", guestID, err)
	}

	return &UserRatings{
		GuestOverallRating:   guest.OverallRating,
		GuestReviewCount:     guest.ReviewCount,
		GuestTripsCount:      trips,
		GuestCategoryRatings: guest.CategoryRatings,
		HostOverallRating:    host.OverallRating,
		HostReviewCount:      host.ReviewCount,
		HostCategoryRatings:  host.CategoryRatings,
	}, nil
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
