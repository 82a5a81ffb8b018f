package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"shoe-market/internal/domain"
	"shoe-market/internal/notification"
	"shoe-market/internal/repository"

	"github.com/google/uuid"
)

// In-memory repositories shared by the service tests.

type mockProfileRepository struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.Profile

	// stalePhoneCheck makes PhoneNumberInUse miss numbers claimed concurrently.
	stalePhoneCheck bool
}

func newMockProfileRepository() *mockProfileRepository {
	return &mockProfileRepository{profiles: make(map[uuid.UUID]*domain.Profile)}
}

func (m *mockProfileRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[accountID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileRepository) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	if _, ok := m.profiles[accountID]; !ok {
		m.profiles[accountID] = &domain.Profile{AccountID: accountID}
	}
	m.mu.Unlock()
	return m.FindByAccountID(ctx, accountID)
}

func (m *mockProfileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profile.AccountID]; !ok {
		return repository.ErrProfileNotFound
	}
	if m.phoneTakenLocked(profile.PhoneNumber, profile.AccountID) {
		return repository.ErrPhoneNumberTaken
	}
	cp := *profile
	m.profiles[profile.AccountID] = &cp
	return nil
}

func (m *mockProfileRepository) PhoneNumberInUse(ctx context.Context, phone string, exceptAccountID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stalePhoneCheck {
		return false, nil
	}
	return m.phoneTakenLocked(&phone, exceptAccountID), nil
}

func (m *mockProfileRepository) phoneTakenLocked(phone *string, except uuid.UUID) bool {
	if phone == nil {
		return false
	}
	for id, p := range m.profiles {
		if id != except && p.PhoneNumber != nil && *p.PhoneNumber == *phone {
			return true
		}
	}
	return false
}

type mockAccountRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	profiles *mockProfileRepository
}

func newMockAccountRepository(profiles *mockProfileRepository) *mockAccountRepository {
	return &mockAccountRepository{
		accounts: make(map[uuid.UUID]*domain.Account),
		profiles: profiles,
	}
}

func (m *mockAccountRepository) CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == account.Username {
			return repository.ErrAccountAlreadyExists
		}
	}

	m.profiles.mu.Lock()
	defer m.profiles.mu.Unlock()
	if m.profiles.phoneTakenLocked(profile.PhoneNumber, account.ID) {
		return repository.ErrPhoneNumberTaken
	}

	profile.AccountID = account.ID
	cp := *profile
	m.profiles.profiles[account.ID] = &cp
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *mockAccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountRepository) UpdateWithProfile(ctx context.Context, account *domain.Account, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[account.ID]
	if !ok {
		return repository.ErrAccountNotFound
	}

	m.profiles.mu.Lock()
	defer m.profiles.mu.Unlock()
	if _, ok := m.profiles.profiles[account.ID]; !ok {
		return repository.ErrProfileNotFound
	}
	if m.profiles.phoneTakenLocked(profile.PhoneNumber, account.ID) {
		return repository.ErrPhoneNumberTaken
	}

	a.FirstName, a.LastName = account.FirstName, account.LastName
	cp := *profile
	cp.AccountID = account.ID
	m.profiles.profiles[account.ID] = &cp
	return nil
}

func (m *mockAccountRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return nil, repository.ErrAccountNotFound
	}
	delete(m.accounts, id)

	m.profiles.mu.Lock()
	defer m.profiles.mu.Unlock()
	var keys []string
	if p, ok := m.profiles.profiles[id]; ok && p.Avatar != "" {
		keys = append(keys, p.Avatar)
	}
	delete(m.profiles.profiles, id)
	return keys, nil
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

type mockListingRepository struct {
	mu        sync.Mutex
	listings  map[uuid.UUID]*domain.Listing
	createErr error
}

func newMockListingRepository() *mockListingRepository {
	return &mockListingRepository{listings: make(map[uuid.UUID]*domain.Listing)}
}

func (m *mockListingRepository) put(l *domain.Listing) *domain.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
	return l
}

func (m *mockListingRepository) CreateWithImages(ctx context.Context, listing *domain.Listing, images []domain.ListingImage) error {
	if m.createErr != nil {
		return m.createErr
	}
	stored := *listing
	for _, img := range images {
		img.ListingID = listing.ID
		stored.Gallery = append(stored.Gallery, img)
	}
	m.put(&stored)
	return nil
}

func (m *mockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.listings[listing.ID]
	if !ok {
		return repository.ErrListingNotFound
	}
	cp := *listing
	cp.SellerID, cp.Views, cp.CreatedAt = existing.SellerID, existing.Views, existing.CreatedAt
	m.listings[listing.ID] = &cp
	return nil
}

func (m *mockListingRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	delete(m.listings, id)
	keys := []string{l.Image}
	for _, img := range l.Gallery {
		keys = append(keys, img.Image)
	}
	return keys, nil
}

func (m *mockListingRepository) List(ctx context.Context, filter repository.ListingFilter, page repository.Page) ([]*domain.Listing, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *mockListingRepository) ListFavorites(ctx context.Context, accountID uuid.UUID, page repository.Page) ([]*domain.Listing, int, error) {
	return []*domain.Listing{}, 0, nil
}

func (m *mockListingRepository) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return 0, repository.ErrListingNotFound
	}
	l.Views++
	return l.Views, nil
}

func (m *mockListingRepository) ListSitemapEntries(ctx context.Context) ([]repository.SitemapEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]repository.SitemapEntry, 0, len(m.listings))
	for _, l := range m.listings {
		entries = append(entries, repository.SitemapEntry{ID: l.ID, CreatedAt: l.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

type wishlistKey struct {
	account uuid.UUID
	listing uuid.UUID
}

type mockWishlistRepository struct {
	mu      sync.Mutex
	entries map[wishlistKey]bool
}

func newMockWishlistRepository() *mockWishlistRepository {
	return &mockWishlistRepository{entries: make(map[wishlistKey]bool)}
}

func (m *mockWishlistRepository) Create(ctx context.Context, entry *domain.WishlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := wishlistKey{entry.AccountID, entry.ListingID}
	if m.entries[key] {
		return repository.ErrWishlistEntryExists
	}
	m.entries[key] = true
	return nil
}

func (m *mockWishlistRepository) Delete(ctx context.Context, accountID, listingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := wishlistKey{accountID, listingID}
	if !m.entries[key] {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

func (m *mockWishlistRepository) Exists(ctx context.Context, accountID, listingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[wishlistKey{accountID, listingID}], nil
}

func (m *mockWishlistRepository) LikedAmong(ctx context.Context, accountID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	liked := make(map[uuid.UUID]bool)
	for _, id := range listingIDs {
		if m.entries[wishlistKey{accountID, id}] {
			liked[id] = true
		}
	}
	return liked, nil
}

func (m *mockWishlistRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type mockReviewRepository struct {
	reviews []*domain.Review
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *mockReviewRepository) Stats(ctx context.Context, reviewedID uuid.UUID) (repository.ReviewStats, error) {
	var stats repository.ReviewStats
	for _, r := range m.reviews {
		if r.ReviewedID == reviewedID {
			stats.Count++
			stats.Sum += int64(r.Rating)
		}
	}
	return stats, nil
}

func (m *mockReviewRepository) Recent(ctx context.Context, reviewedID uuid.UUID, limit int) ([]*domain.Review, error) {
	out := []*domain.Review{}
	for i := len(m.reviews) - 1; i >= 0 && len(out) < limit; i-- {
		if m.reviews[i].ReviewedID == reviewedID {
			out = append(out, m.reviews[i])
		}
	}
	return out, nil
}

var errStorageDown = errors.New("storage unavailable")

// memoryStorage records stored objects; failAfter > 0 makes the put with
// that ordinal fail.
type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	failAfter int
	deleted   []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failAfter > 0 && s.puts == s.failAfter {
		return errStorageDown
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *memoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memoryStorage) URL(key string) string {
	return "http://cdn.test/" + key
}

func (s *memoryStorage) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type stubWelcome struct {
	err error
}

func (w stubWelcome) Render(username, firstName, email string) (notification.Message, error) {
	if w.err != nil {
		return notification.Message{}, w.err
	}
	return notification.Message{To: email, Subject: "Welcome " + username, TextBody: "Hi " + firstName}, nil
}

func upload(name string) Upload {
	return Upload{Filename: name, ContentType: "image/jpeg", Size: 3, Body: bytes.NewReader([]byte("img"))}
}

func strPtr(s string) *string { return &s }

func domainAccount(username string) *domain.Account {
	return &domain.Account{ID: uuid.New(), Username: username, Email: username + "@example.com"}
}

func newProfile() *domain.Profile { return &domain.Profile{} }

func pageOne() repository.Page { return repository.Page{Number: 1, Size: 20} }
