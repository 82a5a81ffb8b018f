package service

import (
	"context"
	"fmt"

	"shoe-market/internal/domain"
	"shoe-market/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecentReviewLimit is how many reviews a public profile embeds.
const RecentReviewLimit = 10

// RatingService aggregates the reviews left about an account. Nothing is cached.
type RatingService interface {
	SellerRating(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	ReviewCount(ctx context.Context, accountID uuid.UUID) (int64, error)
	RecentReviews(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.Review, error)
}

type ratingService struct {
	reviewRepo repository.ReviewRepository
}

func NewRatingService(reviewRepo repository.ReviewRepository) RatingService {
	return &ratingService{reviewRepo: reviewRepo}
}

func (s *ratingService) SellerRating(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	stats, err := s.reviewRepo.Stats(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate seller rating: %w", err)
	}
	return roundRating(stats.Sum, stats.Count), nil
}

func (s *ratingService) ReviewCount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	stats, err := s.reviewRepo.Stats(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return stats.Count, nil
}

func (s *ratingService) RecentReviews(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.Review, error) {
	if limit <= 0 {
		return []*domain.Review{}, nil
	}
	reviews, err := s.reviewRepo.Recent(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent reviews: %w", err)
	}
	return reviews, nil
}

// roundRating is the mean rating rounded half-up to one decimal place.
// Ratings are positive, so the integer form floor((20*sum + count) / (2*count))
// gives the exact tenths without an intermediate fraction. No reviews rate 0.
func roundRating(sum, count int64) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	tenths := (20*sum + count) / (2 * count)
	return decimal.New(tenths, -1)
}
