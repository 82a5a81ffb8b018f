package transport

import (
	"context"
	"io"
	"sync"

	"shoe-market/internal/domain"
	"shoe-market/internal/repository"
	"shoe-market/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type mockAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	profiles map[uuid.UUID]*domain.Profile
}

func newMockAccountRepository() *mockAccountRepository {
	return &mockAccountRepository{
		accounts: make(map[string]*domain.Account),
		profiles: make(map[uuid.UUID]*domain.Profile),
	}
}

func (m *mockAccountRepository) CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[account.Username]; exists {
		return repository.ErrAccountAlreadyExists
	}
	if profile.PhoneNumber != nil {
		for _, p := range m.profiles {
			if p.PhoneNumber != nil && *p.PhoneNumber == *profile.PhoneNumber {
				return repository.ErrPhoneNumberTaken
			}
		}
	}
	profile.AccountID = account.ID
	m.accounts[account.Username] = account
	m.profiles[account.ID] = profile
	return nil
}

func (m *mockAccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, exists := m.accounts[username]
	if !exists {
		return nil, repository.ErrAccountNotFound
	}
	return account, nil
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) UpdateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.accounts[account.Username]
	if !exists {
		return repository.ErrAccountNotFound
	}
	stored.FirstName, stored.LastName = account.FirstName, account.LastName
	m.profiles[account.ID] = profile
	return nil
}

func (m *mockAccountRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for username, account := range m.accounts {
		if account.ID == id {
			delete(m.accounts, username)
			delete(m.profiles, id)
			return nil, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

// mockProfileRepository reads the profiles owned by a mockAccountRepository.
type mockProfileRepository struct {
	accounts *mockAccountRepository
}

func (m *mockProfileRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	p, ok := m.accounts.profiles[accountID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p, nil
}

func (m *mockProfileRepository) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	m.accounts.mu.Lock()
	if _, ok := m.accounts.profiles[accountID]; !ok {
		m.accounts.profiles[accountID] = &domain.Profile{AccountID: accountID}
	}
	m.accounts.mu.Unlock()
	return m.FindByAccountID(ctx, accountID)
}

func (m *mockProfileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	m.accounts.profiles[profile.AccountID] = profile
	return nil
}

func (m *mockProfileRepository) PhoneNumberInUse(ctx context.Context, phone string, exceptAccountID uuid.UUID) (bool, error) {
	return false, nil
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

type fakeStorage struct{}

func (fakeStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func (fakeStorage) Delete(ctx context.Context, key string) error { return nil }

func (fakeStorage) URL(key string) string {
	if key == "" {
		return ""
	}
	return "http://cdn.test/" + key
}

// fakeListingService records the arguments it was called with.
type fakeListingService struct {
	listing    *domain.Listing
	err        error
	lastFilter repository.ListingFilter
	lastPage   repository.Page
	lastViewer uuid.UUID
	lastSeller uuid.UUID
	lastInput  service.ListingInput
	lastCover  *service.Upload
	gallery    int
	lastPatch  service.ListingPatch
}

func (f *fakeListingService) List(ctx context.Context, filter repository.ListingFilter, page repository.Page) ([]*domain.Listing, int, error) {
	f.lastFilter, f.lastPage = filter, page
	if f.err != nil {
		return nil, 0, f.err
	}
	if f.listing == nil {
		return nil, 0, nil
	}
	return []*domain.Listing{f.listing}, 1, nil
}

func (f *fakeListingService) Retrieve(ctx context.Context, viewer, listingID uuid.UUID) (*domain.Listing, error) {
	f.lastViewer = viewer
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

func (f *fakeListingService) Create(ctx context.Context, seller uuid.UUID, in service.ListingInput, cover *service.Upload, gallery []service.Upload) (*domain.Listing, error) {
	f.lastSeller, f.lastInput, f.lastCover, f.gallery = seller, in, cover, len(gallery)
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

func (f *fakeListingService) Update(ctx context.Context, actor, listingID uuid.UUID, patch service.ListingPatch) (*domain.Listing, error) {
	f.lastPatch = patch
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

func (f *fakeListingService) Delete(ctx context.Context, actor, listingID uuid.UUID) error {
	return f.err
}

type fakeWishlistService struct {
	result service.ToggleResult
	err    error
	liked  map[uuid.UUID]bool
}

func (f *fakeWishlistService) Toggle(ctx context.Context, accountID, listingID uuid.UUID) (service.ToggleResult, error) {
	return f.result, f.err
}

func (f *fakeWishlistService) Favorites(ctx context.Context, accountID uuid.UUID, page repository.Page) ([]*domain.Listing, int, error) {
	if accountID == uuid.Nil {
		return nil, 0, service.ErrUnauthorized
	}
	return []*domain.Listing{}, 0, nil
}

func (f *fakeWishlistService) IsLiked(ctx context.Context, accountID, listingID uuid.UUID) (bool, error) {
	return accountID != uuid.Nil && f.liked[listingID], nil
}

func (f *fakeWishlistService) LikedAmong(ctx context.Context, accountID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	if accountID == uuid.Nil {
		return map[uuid.UUID]bool{}, nil
	}
	return f.liked, nil
}

type fixedRatings struct {
	rating decimal.Decimal
	calls  int
}

func (f *fixedRatings) SellerRating(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	f.calls++
	return f.rating, nil
}

func (f *fixedRatings) ReviewCount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fixedRatings) RecentReviews(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.Review, error) {
	return []*domain.Review{}, nil
}
