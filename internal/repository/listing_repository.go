package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shoe-market/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrListingNotFound = errors.New("listing not found")

// ListingFilter carries the search, filter and ordering parameters of a listing query.
// Zero values disable the corresponding predicate.
type ListingFilter struct {
	Brand     string // case-insensitive substring
	Size      *decimal.Decimal
	Condition domain.Condition
	Seller    string // exact seller username
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	Search    string // substring over title, description and brand
	SortBy    string
	SortOrder SortOrder
}

// SitemapEntry is the minimal projection needed to publish a listing URL.
type SitemapEntry struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// ListingRepository defines the interface for listing data access
type ListingRepository interface {
	// CreateWithImages persists the listing and all of its gallery images in one transaction.
	CreateWithImages(ctx context.Context, listing *domain.Listing, images []domain.ListingImage) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	Update(ctx context.Context, listing *domain.Listing) error
	// Delete removes the listing with its images and wishlist entries and
	// returns the storage keys the removed rows referenced.
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
	List(ctx context.Context, filter ListingFilter, page Page) ([]*domain.Listing, int, error)
	ListFavorites(ctx context.Context, accountID uuid.UUID, page Page) ([]*domain.Listing, int, error)
	// IncrementViews atomically adds one view and returns the new counter value.
	IncrementViews(ctx context.Context, id uuid.UUID) (int64, error)
	ListSitemapEntries(ctx context.Context) ([]SitemapEntry, error)
}

type listingRepository struct {
	db *sql.DB
}

// NewListingRepository creates a new instance of ListingRepository
func NewListingRepository(db *sql.DB) ListingRepository {
	return &listingRepository{db: db}
}

const listingSelect = `
	SELECT l.id, l.seller_id, l.title, l.brand, l.size, l.price, l.currency, l.condition,
	       l.description, l.image, l.contact_info, l.is_sold, l.views, l.created_at,
	       a.username, p.phone_number
	FROM listings l
	JOIN accounts a ON a.id = l.seller_id
	LEFT JOIN profiles p ON p.account_id = l.seller_id
`

func scanListing(row scanner) (*domain.Listing, error) {
	listing := &domain.Listing{}
	var phone sql.NullString
	err := row.Scan(
		&listing.ID,
		&listing.SellerID,
		&listing.Title,
		&listing.Brand,
		&listing.Size,
		&listing.Price,
		&listing.Currency,
		&listing.Condition,
		&listing.Description,
		&listing.Image,
		&listing.ContactInfo,
		&listing.IsSold,
		&listing.Views,
		&listing.CreatedAt,
		&listing.SellerUsername,
		&phone,
	)
	if err != nil {
		return nil, err
	}
	listing.SellerPhone = stringPtr(phone)
	listing.Gallery = []domain.ListingImage{}
	return listing, nil
}

func (r *listingRepository) CreateWithImages(ctx context.Context, listing *domain.Listing, images []domain.ListingImage) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO listings (id, seller_id, title, brand, size, price, currency, condition,
			                      description, image, contact_info, is_sold, views, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			listing.ID,
			listing.SellerID,
			listing.Title,
			listing.Brand,
			listing.Size,
			listing.Price,
			listing.Currency,
			listing.Condition,
			listing.Description,
			listing.Image,
			listing.ContactInfo,
			listing.IsSold,
			listing.Views,
			listing.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create listing: %w", err)
		}

		for i := range images {
			images[i].ListingID = listing.ID
			_, err := tx.ExecContext(ctx,
				`INSERT INTO listing_images (id, listing_id, image, created_at) VALUES ($1, $2, $3, $4)`,
				images[i].ID, images[i].ListingID, images[i].Image, images[i].CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to create listing image: %w", err)
			}
		}

		listing.Gallery = images
		return nil
	})
}

func (r *listingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	listing, err := scanListing(r.db.QueryRowContext(ctx, listingSelect+` WHERE l.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}

	if err := r.attachGallery(ctx, []*domain.Listing{listing}); err != nil {
		return nil, err
	}
	return listing, nil
}

// Update writes the mutable attributes; seller, image, views and created_at never change here.
func (r *listingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	query := `
		UPDATE listings
		SET title = $2, brand = $3, size = $4, price = $5, currency = $6, condition = $7,
		    description = $8, contact_info = $9, is_sold = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.Title,
		listing.Brand,
		listing.Size,
		listing.Price,
		listing.Currency,
		listing.Condition,
		listing.Description,
		listing.ContactInfo,
		listing.IsSold,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrListingNotFound
	}

	return nil
}

func (r *listingRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	var keys []string

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var cover string
		err := tx.QueryRowContext(ctx, `SELECT image FROM listings WHERE id = $1 FOR UPDATE`, id).Scan(&cover)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrListingNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock listing: %w", err)
		}

		gallery, err := collectKeys(ctx, tx, `SELECT image FROM listing_images WHERE listing_id = $1`, id)
		if err != nil {
			return err
		}
		keys = append([]string{cover}, gallery...)

		if _, err := tx.ExecContext(ctx, `DELETE FROM wishlist_entries WHERE listing_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete wishlist entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM listing_images WHERE listing_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete listing images: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// List retrieves listings matching the filter, with sorting and pagination
func (r *listingRepository) List(ctx context.Context, filter ListingFilter, page Page) ([]*domain.Listing, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]string{
		"price":      "l.price",
		"created_at": "l.created_at",
		"views":      "l.views",
	}

	sortColumn, ok := validSortFields[filter.SortBy]
	if !ok {
		sortColumn = "l.created_at"
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	conditions := []string{}
	args := []interface{}{}
	addCondition := func(format string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.Brand != "" {
		addCondition("l.brand ILIKE $%d", likePattern(filter.Brand))
	}
	if filter.Size != nil {
		addCondition("l.size = $%d", *filter.Size)
	}
	if filter.Condition != "" {
		addCondition("l.condition = $%d", string(filter.Condition))
	}
	if filter.Seller != "" {
		addCondition("a.username = $%d", filter.Seller)
	}
	if filter.MinPrice != nil {
		addCondition("l.price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		addCondition("l.price <= $%d", *filter.MaxPrice)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		addCondition("(l.title ILIKE $%[1]d OR l.description ILIKE $%[1]d OR l.brand ILIKE $%[1]d)", likePattern(search))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := `
		SELECT COUNT(*)
		FROM listings l
		JOIN accounts a ON a.id = l.seller_id
	` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	// id breaks ties so pages stay stable across requests.
	query := fmt.Sprintf(`%s %s ORDER BY %s %s, l.id %s LIMIT $%d OFFSET $%d`,
		listingSelect, whereClause, sortColumn, sortOrder, sortOrder, len(args)+1, len(args)+2)
	args = append(args, page.Size, page.offset())

	listings, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func (r *listingRepository) ListFavorites(ctx context.Context, accountID uuid.UUID, page Page) ([]*domain.Listing, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wishlist_entries WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count favorites: %w", err)
	}

	query := listingSelect + `
		JOIN wishlist_entries w ON w.listing_id = l.id
		WHERE w.account_id = $1
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $2 OFFSET $3
	`
	listings, err := r.query(ctx, query, accountID, page.Size, page.offset())
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func (r *listingRepository) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE listings SET views = views + 1 WHERE id = $1 RETURNING views`, id,
	).Scan(&views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrListingNotFound
		}
		return 0, fmt.Errorf("failed to increment listing views: %w", err)
	}
	return views, nil
}

func (r *listingRepository) ListSitemapEntries(ctx context.Context) ([]SitemapEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, created_at FROM listings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sitemap entries: %w", err)
	}
	defer rows.Close()

	entries := []SitemapEntry{}
	for rows.Next() {
		var entry SitemapEntry
		if err := rows.Scan(&entry.ID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sitemap entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sitemap entries: %w", err)
	}
	return entries, nil
}

func (r *listingRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := []*domain.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	if err := r.attachGallery(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// attachGallery loads the gallery images of every listing with a single query.
func (r *listingRepository) attachGallery(ctx context.Context, listings []*domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Listing, len(listings))
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
		ids = append(ids, l.ID.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, listing_id, image, created_at
		FROM listing_images
		WHERE listing_id::text = ANY($1)
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load listing images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img domain.ListingImage
		if err := rows.Scan(&img.ID, &img.ListingID, &img.Image, &img.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan listing image: %w", err)
		}
		if l, ok := byID[img.ListingID]; ok {
			l.Gallery = append(l.Gallery, img)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating listing images: %w", err)
	}
	return nil
}
