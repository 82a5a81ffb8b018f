package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the identity record; the credential is only ever a bcrypt hash.
type Account struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Profile holds the marketplace attributes of an Account (1:1).
// A nil PhoneNumber is absent and exempt from uniqueness.
type Profile struct {
	AccountID   uuid.UUID `json:"user_id" db:"account_id"`
	Avatar      string    `json:"avatar" db:"avatar"`
	Location    string    `json:"location" db:"location"`
	Bio         string    `json:"bio" db:"bio"`
	PhoneNumber *string   `json:"phone_number" db:"phone_number"`
	IsVerified  bool      `json:"is_verified" db:"is_verified"`
}

// RefreshToken represents a persisted refresh token
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}
