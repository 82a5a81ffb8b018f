package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shoe-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account with this username or email already exists")
	ErrPhoneNumberTaken     = errors.New("phone number is already in use")
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// CreateWithProfile inserts the account and its profile atomically.
	// The phone number is checked before the account row is written.
	CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// UpdateWithProfile stores the account's names and its profile in one
	// transaction, so a phone conflict leaves both untouched.
	UpdateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error
	// Delete removes the account and everything that depends on it, returning
	// the storage keys that were referenced by the removed rows.
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
}

type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new instance of AccountRepository
func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		phone := nullableString(profile.PhoneNumber)
		if phone.Valid {
			var taken bool
			err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM profiles WHERE phone_number = $1)`, phone.String,
			).Scan(&taken)
			if err != nil {
				return fmt.Errorf("failed to check phone number: %w", err)
			}
			if taken {
				return ErrPhoneNumberTaken
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, username, email, password_hash, first_name, last_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			account.ID,
			account.Username,
			account.Email,
			account.PasswordHash,
			account.FirstName,
			account.LastName,
			account.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "accounts_username_key") || isUniqueViolation(err, "accounts_email_key") {
				return ErrAccountAlreadyExists
			}
			return fmt.Errorf("failed to create account: %w", err)
		}

		profile.AccountID = account.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO profiles (account_id, avatar, location, bio, phone_number, is_verified)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			profile.AccountID,
			profile.Avatar,
			profile.Location,
			profile.Bio,
			phone,
			profile.IsVerified,
		)
		if err != nil {
			// A concurrent signup can pass the EXISTS check with the same number.
			if isUniqueViolation(err, "profiles_phone_number_key") {
				return ErrPhoneNumberTaken
			}
			return fmt.Errorf("failed to create profile: %w", err)
		}

		return nil
	})
}

const accountColumns = `id, username, email, password_hash, first_name, last_name, created_at`

func scanAccount(row scanner) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// FindByUsername retrieves an account by its unique username
func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)

	account, err := scanAccount(row)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to find account by username: %w", err)
	}
	return account, err
}

// FindByID retrieves an account by ID
func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, err
}

func (r *accountRepository) UpdateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE accounts SET first_name = $2, last_name = $3 WHERE id = $1`,
			account.ID, account.FirstName, account.LastName,
		)
		if err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		if err := requireRow(result, ErrAccountNotFound); err != nil {
			return err
		}

		profile.AccountID = account.ID
		return updateProfile(ctx, tx, profile)
	})
}

func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	var keys []string

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}

		keys, err = collectKeys(ctx, tx, `
			SELECT image FROM listings WHERE seller_id = $1
			UNION ALL
			SELECT li.image FROM listing_images li JOIN listings l ON l.id = li.listing_id WHERE l.seller_id = $1
			UNION ALL
			SELECT avatar FROM profiles WHERE account_id = $1 AND avatar <> ''
		`, id)
		if err != nil {
			return err
		}

		// Dependents first so the routine does not rely on FK cascades.
		statements := []struct {
			what  string
			query string
		}{
			{"wishlist entries", `DELETE FROM wishlist_entries WHERE account_id = $1 OR listing_id IN (SELECT id FROM listings WHERE seller_id = $1)`},
			{"listing images", `DELETE FROM listing_images WHERE listing_id IN (SELECT id FROM listings WHERE seller_id = $1)`},
			{"listings", `DELETE FROM listings WHERE seller_id = $1`},
			{"reviews", `DELETE FROM reviews WHERE reviewer_id = $1 OR reviewed_id = $1`},
			{"refresh tokens", `DELETE FROM refresh_tokens WHERE account_id = $1`},
			{"profile", `DELETE FROM profiles WHERE account_id = $1`},
			{"account", `DELETE FROM accounts WHERE id = $1`},
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt.query, id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", stmt.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

func collectKeys(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to collect storage keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan storage key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating storage keys: %w", err)
	}
	return keys, nil
}
