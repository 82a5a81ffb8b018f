package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shoe-market/internal/domain"

	"github.com/google/uuid"
)

var ErrWishlistEntryExists = errors.New("wishlist entry already exists")

// WishlistRepository defines the interface for wishlist data access
type WishlistRepository interface {
	// Create inserts the entry; the (account, listing) unique constraint
	// surfaces as ErrWishlistEntryExists.
	Create(ctx context.Context, entry *domain.WishlistEntry) error
	// Delete removes the entry for the pair and reports whether one existed.
	Delete(ctx context.Context, accountID, listingID uuid.UUID) (bool, error)
	Exists(ctx context.Context, accountID, listingID uuid.UUID) (bool, error)
	// LikedAmong returns the subset of listingIDs the account has wishlisted.
	LikedAmong(ctx context.Context, accountID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type wishlistRepository struct {
	db *sql.DB
}

// NewWishlistRepository creates a new instance of WishlistRepository
func NewWishlistRepository(db *sql.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) Create(ctx context.Context, entry *domain.WishlistEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wishlist_entries (id, account_id, listing_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, entry.ID, entry.AccountID, entry.ListingID, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "wishlist_entries_account_listing_key") {
			return ErrWishlistEntryExists
		}
		return fmt.Errorf("failed to create wishlist entry: %w", err)
	}
	return nil
}

func (r *wishlistRepository) Delete(ctx context.Context, accountID, listingID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_entries WHERE account_id = $1 AND listing_id = $2`,
		accountID, listingID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete wishlist entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *wishlistRepository) Exists(ctx context.Context, accountID, listingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM wishlist_entries WHERE account_id = $1 AND listing_id = $2)`,
		accountID, listingID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist entry: %w", err)
	}
	return exists, nil
}

func (r *wishlistRepository) LikedAmong(ctx context.Context, accountID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	liked := make(map[uuid.UUID]bool)
	if len(listingIDs) == 0 {
		return liked, nil
	}

	ids := make([]string, len(listingIDs))
	for i, id := range listingIDs {
		ids[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT listing_id
		FROM wishlist_entries
		WHERE account_id = $1 AND listing_id::text = ANY($2)
	`, accountID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		liked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist entries: %w", err)
	}
	return liked, nil
}
