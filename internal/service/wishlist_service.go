package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shoe-market/internal/domain"
	"shoe-market/internal/metrics"
	"shoe-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ToggleResult is the outcome of a wishlist toggle.
type ToggleResult string

const (
	WishlistAdded   ToggleResult = "added"
	WishlistRemoved ToggleResult = "removed"
)

const ownListingMessage = "You cannot add your own listing to your wishlist."

// WishlistService manages likes on listings.
type WishlistService interface {
	Toggle(ctx context.Context, accountID, listingID uuid.UUID) (ToggleResult, error)
	Favorites(ctx context.Context, accountID uuid.UUID, page repository.Page) ([]*domain.Listing, int, error)
	IsLiked(ctx context.Context, accountID, listingID uuid.UUID) (bool, error)
	// LikedAmong reports which of listingIDs the account has liked; anonymous callers like nothing.
	LikedAmong(ctx context.Context, accountID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type wishlistService struct {
	wishlistRepo repository.WishlistRepository
	listingRepo  repository.ListingRepository
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewWishlistService(
	wishlistRepo repository.WishlistRepository,
	listingRepo repository.ListingRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) WishlistService {
	return &wishlistService{
		wishlistRepo: wishlistRepo,
		listingRepo:  listingRepo,
		metrics:      m,
		logger:       logger.Named("wishlist"),
	}
}

// Toggle removes an existing like or adds a new one. The (account, listing)
// unique constraint decides concurrent adds: losing the race still reports added.
func (s *wishlistService) Toggle(ctx context.Context, accountID, listingID uuid.UUID) (ToggleResult, error) {
	if accountID == uuid.Nil {
		return "", fmt.Errorf("%w: authentication required", ErrUnauthorized)
	}

	removed, err := s.wishlistRepo.Delete(ctx, accountID, listingID)
	if err != nil {
		return "", fmt.Errorf("failed to toggle wishlist: %w", err)
	}
	if removed {
		s.record(WishlistRemoved)
		return WishlistRemoved, nil
	}

	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return "", notFound("listing")
		}
		return "", fmt.Errorf("failed to find listing: %w", err)
	}
	if listing.SellerID == accountID {
		return "", NewValidationError("listing", ownListingMessage)
	}

	err = s.wishlistRepo.Create(ctx, &domain.WishlistEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		ListingID: listingID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, repository.ErrWishlistEntryExists) {
		return "", fmt.Errorf("failed to toggle wishlist: %w", err)
	}

	s.record(WishlistAdded)
	return WishlistAdded, nil
}

func (s *wishlistService) Favorites(ctx context.Context, accountID uuid.UUID, page repository.Page) ([]*domain.Listing, int, error) {
	if accountID == uuid.Nil {
		return nil, 0, fmt.Errorf("%w: authentication required", ErrUnauthorized)
	}
	listings, total, err := s.listingRepo.ListFavorites(ctx, accountID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list favorites: %w", err)
	}
	return listings, total, nil
}

func (s *wishlistService) IsLiked(ctx context.Context, accountID, listingID uuid.UUID) (bool, error) {
	if accountID == uuid.Nil {
		return false, nil
	}
	liked, err := s.wishlistRepo.Exists(ctx, accountID, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return liked, nil
}

func (s *wishlistService) LikedAmong(ctx context.Context, accountID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	if accountID == uuid.Nil || len(listingIDs) == 0 {
		return map[uuid.UUID]bool{}, nil
	}
	liked, err := s.wishlistRepo.LikedAmong(ctx, accountID, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load liked listings: %w", err)
	}
	return liked, nil
}

func (s *wishlistService) record(result ToggleResult) {
	if s.metrics != nil {
		s.metrics.WishlistTogglesTotal.WithLabelValues(string(result)).Inc()
	}
}
