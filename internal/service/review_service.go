package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shoe-market/internal/domain"
	"shoe-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewService interface {
	// Create records a review by reviewer about the account named reviewedUsername.
	Create(ctx context.Context, reviewer uuid.UUID, reviewedUsername string, rating int, comment string) (*domain.Review, error)
}

type reviewService struct {
	reviewRepo  repository.ReviewRepository
	accountRepo repository.AccountRepository
	logger      *zap.Logger
}

func NewReviewService(reviewRepo repository.ReviewRepository, accountRepo repository.AccountRepository, logger *zap.Logger) ReviewService {
	return &reviewService{
		reviewRepo:  reviewRepo,
		accountRepo: accountRepo,
		logger:      logger.Named("reviews"),
	}
}

func (s *reviewService) Create(ctx context.Context, reviewer uuid.UUID, reviewedUsername string, rating int, comment string) (*domain.Review, error) {
	if reviewer == uuid.Nil {
		return nil, fmt.Errorf("%w: authentication required", ErrUnauthorized)
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, NewValidationError("rating", fmt.Sprintf("Ensure this value is between %d and %d.", domain.MinRating, domain.MaxRating))
	}

	reviewed, err := s.accountRepo.FindByUsername(ctx, strings.TrimSpace(reviewedUsername))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, notFound("reviewed user")
		}
		return nil, fmt.Errorf("failed to find reviewed user: %w", err)
	}
	if reviewed.ID == reviewer {
		return nil, NewValidationError("reviewed_user", "You cannot review yourself.")
	}

	review := &domain.Review{
		ID:         uuid.New(),
		ReviewerID: reviewer,
		ReviewedID: reviewed.ID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	s.logger.Info("Review created",
		zap.String("reviewer_id", reviewer.String()),
		zap.String("reviewed_id", reviewed.ID.String()),
		zap.Int("rating", rating),
	)
	return review, nil
}
