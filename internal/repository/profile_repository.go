package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shoe-market/internal/domain"

	"github.com/google/uuid"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error)
	// GetOrCreate returns the account's profile, inserting an empty one if it is missing.
	GetOrCreate(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
	PhoneNumberInUse(ctx context.Context, phone string, exceptAccountID uuid.UUID) (bool, error)
}

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new instance of ProfileRepository
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT account_id, avatar, location, bio, phone_number, is_verified
		FROM profiles
		WHERE account_id = $1
	`

	profile := &domain.Profile{}
	var phone sql.NullString
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&profile.AccountID,
		&profile.Avatar,
		&profile.Location,
		&profile.Bio,
		&phone,
		&profile.IsVerified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile.PhoneNumber = stringPtr(phone)
	return profile, nil
}

func (r *profileRepository) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	return r.FindByAccountID(ctx, accountID)
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	return updateProfile(ctx, r.db, profile)
}

func updateProfile(ctx context.Context, db execer, profile *domain.Profile) error {
	result, err := db.ExecContext(ctx, `
		UPDATE profiles
		SET avatar = $2, location = $3, bio = $4, phone_number = $5, is_verified = $6
		WHERE account_id = $1
	`,
		profile.AccountID,
		profile.Avatar,
		profile.Location,
		profile.Bio,
		nullableString(profile.PhoneNumber),
		profile.IsVerified,
	)
	if err != nil {
		if isUniqueViolation(err, "profiles_phone_number_key") {
			return ErrPhoneNumberTaken
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return requireRow(result, ErrProfileNotFound)
}

func (r *profileRepository) PhoneNumberInUse(ctx context.Context, phone string, exceptAccountID uuid.UUID) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE phone_number = $1 AND account_id <> $2)`,
		phone, exceptAccountID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check phone number: %w", err)
	}
	return taken, nil
}
