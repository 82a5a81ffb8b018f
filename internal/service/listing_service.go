package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"shoe-market/internal/domain"
	"shoe-market/internal/metrics"
	"shoe-market/internal/repository"
	"shoe-market/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	maxPrice = decimal.RequireFromString("99999999.99")
	maxSize  = decimal.RequireFromString("999.9")
)

const (
	// A decimal outside these bounds is rejected before any arithmetic on it,
	// since rescaling a value like 1e900000000 never finishes in practice.
	maxDecimalScale    = 12
	maxCoefficientBits = 64
)

// ListingInput holds the client-supplied attributes of a new listing.
// The seller is never part of it.
type ListingInput struct {
	Title       string
	Brand       string
	Size        *decimal.Decimal
	Price       *decimal.Decimal
	Currency    domain.Currency
	Condition   domain.Condition
	Description string
	ContactInfo string
}

// ListingPatch holds a partial update; nil fields are left untouched.
type ListingPatch struct {
	Title       *string
	Brand       *string
	Size        *decimal.Decimal
	Price       *decimal.Decimal
	Currency    *domain.Currency
	Condition   *domain.Condition
	Description *string
	ContactInfo *string
	IsSold      *bool
}

// ListingService owns listing CRUD, search and the view counter.
type ListingService interface {
	List(ctx context.Context, filter repository.ListingFilter, page repository.Page) ([]*domain.Listing, int, error)
	// Retrieve counts a view when viewer is authenticated and is not the seller.
	Retrieve(ctx context.Context, viewer, listingID uuid.UUID) (*domain.Listing, error)
	Create(ctx context.Context, seller uuid.UUID, in ListingInput, cover *Upload, gallery []Upload) (*domain.Listing, error)
	Update(ctx context.Context, actor, listingID uuid.UUID, patch ListingPatch) (*domain.Listing, error)
	Delete(ctx context.Context, actor, listingID uuid.UUID) error
}

type listingService struct {
	listingRepo repository.ListingRepository
	blobs       storage.ObjectStorage
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewListingService(listingRepo repository.ListingRepository, blobs storage.ObjectStorage, m *metrics.Metrics, logger *zap.Logger) ListingService {
	return &listingService{
		listingRepo: listingRepo,
		blobs:       blobs,
		metrics:     m,
		logger:      logger.Named("listings"),
	}
}

func (s *listingService) List(ctx context.Context, filter repository.ListingFilter, page repository.Page) ([]*domain.Listing, int, error) {
	errs := fieldErrors{}
	for _, f := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"size", filter.Size},
		{"min_price", filter.MinPrice},
		{"max_price", filter.MaxPrice},
	} {
		if f.value != nil && !boundedDecimal(*f.value) {
			errs.add(f.name, "A valid number is required.")
		}
	}
	if len(errs) > 0 {
		return nil, 0, errs.err()
	}

	listings, total, err := s.listingRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, total, nil
}

func (s *listingService) Retrieve(ctx context.Context, viewer, listingID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.find(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if viewer == uuid.Nil || viewer == listing.SellerID {
		return listing, nil
	}

	views, err := s.listingRepo.IncrementViews(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, notFound("listing")
		}
		return nil, fmt.Errorf("failed to record listing view: %w", err)
	}
	listing.Views = views
	if s.metrics != nil {
		s.metrics.ListingViewsTotal.Inc()
	}
	return listing, nil
}

// Create stores the cover and gallery blobs, then writes the listing and its
// images in one transaction. Nothing is kept if any step fails.
func (s *listingService) Create(ctx context.Context, seller uuid.UUID, in ListingInput, cover *Upload, gallery []Upload) (*domain.Listing, error) {
	if seller == uuid.Nil {
		return nil, fmt.Errorf("%w: authentication required to create a listing", ErrUnauthorized)
	}
	if in.Currency == "" {
		in.Currency = domain.CurrencyEUR
	}
	if in.Condition == "" {
		in.Condition = domain.ConditionNew
	}
	if err := validateListingInput(in, cover); err != nil {
		return nil, err
	}

	coverKeys, err := putAll(ctx, s.blobs, listingImagePrefix, []Upload{*cover}, s.logger)
	if err != nil {
		return nil, err
	}
	galleryKeys, err := putAll(ctx, s.blobs, galleryImagePrefix, gallery, s.logger)
	if err != nil {
		removeBlobs(context.WithoutCancel(ctx), s.blobs, coverKeys, s.logger)
		return nil, err
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:          uuid.New(),
		SellerID:    seller,
		Title:       strings.TrimSpace(in.Title),
		Brand:       strings.TrimSpace(in.Brand),
		Size:        *in.Size,
		Price:       *in.Price,
		Currency:    in.Currency,
		Condition:   in.Condition,
		Description: in.Description,
		Image:       coverKeys[0],
		ContactInfo: in.ContactInfo,
		CreatedAt:   now,
	}
	images := make([]domain.ListingImage, len(galleryKeys))
	for i, key := range galleryKeys {
		images[i] = domain.ListingImage{ID: uuid.New(), Image: key, CreatedAt: now}
	}

	if err := s.listingRepo.CreateWithImages(ctx, listing, images); err != nil {
		removeBlobs(context.WithoutCancel(ctx), s.blobs, append(coverKeys, galleryKeys...), s.logger)
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ListingsCreatedTotal.Inc()
	}
	s.logger.Info("Listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("seller_id", seller.String()),
		zap.Int("gallery_images", len(images)),
	)

	return s.find(ctx, listing.ID)
}

func (s *listingService) Update(ctx context.Context, actor, listingID uuid.UUID, patch ListingPatch) (*domain.Listing, error) {
	listing, err := s.find(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if actor == uuid.Nil || actor != listing.SellerID {
		return nil, forbidden("only the seller can modify this listing")
	}

	applyListingPatch(listing, patch)
	if err := validateListing(listing); err != nil {
		return nil, err
	}

	if err := s.listingRepo.Update(ctx, listing); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, notFound("listing")
		}
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}
	return s.find(ctx, listingID)
}

func (s *listingService) Delete(ctx context.Context, actor, listingID uuid.UUID) error {
	listing, err := s.find(ctx, listingID)
	if err != nil {
		return err
	}
	if actor == uuid.Nil || actor != listing.SellerID {
		return forbidden("only the seller can delete this listing")
	}

	keys, err := s.listingRepo.Delete(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return notFound("listing")
		}
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	s.logger.Info("Listing deleted", zap.String("listing_id", listingID.String()))
	removeBlobs(ctx, s.blobs, keys, s.logger)
	return nil
}

func (s *listingService) find(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, notFound("listing")
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	return listing, nil
}

func applyListingPatch(l *domain.Listing, p ListingPatch) {
	if p.Title != nil {
		l.Title = strings.TrimSpace(*p.Title)
	}
	if p.Brand != nil {
		l.Brand = strings.TrimSpace(*p.Brand)
	}
	if p.Size != nil {
		l.Size = *p.Size
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Currency != nil {
		l.Currency = *p.Currency
	}
	if p.Condition != nil {
		l.Condition = *p.Condition
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.ContactInfo != nil {
		l.ContactInfo = *p.ContactInfo
	}
	if p.IsSold != nil {
		l.IsSold = *p.IsSold
	}
}

func validateListingInput(in ListingInput, cover *Upload) error {
	errs := fieldErrors{}
	if strings.TrimSpace(in.Title) == "" {
		errs.add("title", "This field is required.")
	}
	if strings.TrimSpace(in.Brand) == "" {
		errs.add("brand", "This field is required.")
	}
	if in.Size == nil {
		errs.add("size", "This field is required.")
	}
	if in.Price == nil {
		errs.add("price", "This field is required.")
	}
	if cover == nil {
		errs.add("image", "No file was submitted.")
	}
	if len(errs) > 0 {
		return errs.err()
	}

	return validateListing(&domain.Listing{
		Title:       strings.TrimSpace(in.Title),
		Brand:       strings.TrimSpace(in.Brand),
		Size:        *in.Size,
		Price:       *in.Price,
		Currency:    in.Currency,
		Condition:   in.Condition,
		ContactInfo: in.ContactInfo,
	})
}

// boundedDecimal reports whether d is small enough to compare and store.
// It only inspects the exponent and coefficient size, which is cheap for any input.
func boundedDecimal(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > 0 || exp < -maxDecimalScale {
		return false
	}
	return d.Coefficient().BitLen() <= maxCoefficientBits
}

// validateListing checks the attribute constraints of a complete listing.
func validateListing(l *domain.Listing) error {
	errs := fieldErrors{}

	switch n := utf8.RuneCountInString(l.Title); {
	case n == 0:
		errs.add("title", "This field may not be blank.")
	case n > 100:
		errs.add("title", "Ensure this field has no more than 100 characters.")
	}
	switch n := utf8.RuneCountInString(l.Brand); {
	case n == 0:
		errs.add("brand", "This field may not be blank.")
	case n > 50:
		errs.add("brand", "Ensure this field has no more than 50 characters.")
	}
	if !boundedDecimal(l.Size) || !l.Size.IsPositive() || l.Size.GreaterThan(maxSize) || !l.Size.Equal(l.Size.Truncate(1)) {
		errs.add("size", "Enter a positive size with at most one decimal place.")
	}
	if !boundedDecimal(l.Price) || l.Price.IsNegative() || l.Price.GreaterThan(maxPrice) || !l.Price.Equal(l.Price.Truncate(2)) {
		errs.add("price", "Enter a valid price with at most two decimal places.")
	}
	if !l.Currency.IsValid() {
		errs.add("currency", fmt.Sprintf("%q is not a valid choice.", l.Currency))
	}
	if !l.Condition.IsValid() {
		errs.add("condition", fmt.Sprintf("%q is not a valid choice.", l.Condition))
	}
	if utf8.RuneCountInString(l.ContactInfo) > 100 {
		errs.add("contact_info", "Ensure this field has no more than 100 characters.")
	}

	return errs.err()
}
