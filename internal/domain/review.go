package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rating one account leaves about another.
type Review struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ReviewerID       uuid.UUID `json:"reviewer" db:"reviewer_id"`
	ReviewedID       uuid.UUID `json:"reviewed_user" db:"reviewed_id"`
	Rating           int       `json:"rating" db:"rating"`
	Comment          string    `json:"comment" db:"comment"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	ReviewerUsername string    `json:"reviewer_username" db:"-"`
}
