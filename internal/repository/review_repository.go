package repository

import (
	"context"
	"database/sql"
	"fmt"

	"shoe-market/internal/domain"

	"github.com/google/uuid"
)

// ReviewStats is the store-side aggregate over the reviews of one account.
type ReviewStats struct {
	Count int64
	Sum   int64
}

// ReviewRepository defines the interface for review data access.
// Reads treat a missing reviews table as "no reviews".
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	Stats(ctx context.Context, reviewedID uuid.UUID) (ReviewStats, error)
	Recent(ctx context.Context, reviewedID uuid.UUID, limit int) ([]*domain.Review, error)
}

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, reviewer_id, reviewed_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		review.ID,
		review.ReviewerID,
		review.ReviewedID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (r *reviewRepository) Stats(ctx context.Context, reviewedID uuid.UUID) (ReviewStats, error) {
	var stats ReviewStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(rating), 0) FROM reviews WHERE reviewed_id = $1`,
		reviewedID,
	).Scan(&stats.Count, &stats.Sum)
	if err != nil {
		if isUndefinedTable(err) {
			return ReviewStats{}, nil
		}
		return ReviewStats{}, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	return stats, nil
}

func (r *reviewRepository) Recent(ctx context.Context, reviewedID uuid.UUID, limit int) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rv.id, rv.reviewer_id, rv.reviewed_id, rv.rating, rv.comment, rv.created_at, a.username
		FROM reviews rv
		JOIN accounts a ON a.id = rv.reviewer_id
		WHERE rv.reviewed_id = $1
		ORDER BY rv.created_at DESC, rv.id DESC
		LIMIT $2
	`, reviewedID, limit)
	if err != nil {
		if isUndefinedTable(err) {
			return []*domain.Review{}, nil
		}
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review := &domain.Review{}
		err := rows.Scan(
			&review.ID,
			&review.ReviewerID,
			&review.ReviewedID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
			&review.ReviewerUsername,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}
