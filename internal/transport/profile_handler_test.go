package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shoe-market/internal/domain"
	"shoe-market/internal/middleware"
	"shoe-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProfileService struct {
	view       *service.ProfileView
	err        error
	lastPatch  service.ProfilePatch
	lastAvatar *service.Upload
}

func (f *fakeProfileService) Get(ctx context.Context, username string) (*service.ProfileView, error) {
	return f.view, f.err
}

func (f *fakeProfileService) Update(ctx context.Context, actor uuid.UUID, username string, patch service.ProfilePatch, avatar *service.Upload) (*service.ProfileView, error) {
	f.lastPatch, f.lastAvatar = patch, avatar
	return f.view, f.err
}

func sampleProfileView() *service.ProfileView {
	id := uuid.New()
	phone := "+49170"
	review := &domain.Review{
		ID:               uuid.New(),
		ReviewerID:       uuid.New(),
		ReviewerUsername: "bob",
		ReviewedID:       id,
		Rating:           4,
		CreatedAt:        time.Now(),
	}
	return &service.ProfileView{
		Account:     &domain.Account{ID: id, Username: "alice", Email: "alice@example.com"},
		Profile:     &domain.Profile{AccountID: id, Avatar: "avatars/a.png", Location: "Berlin", PhoneNumber: &phone},
		Rating:      decimal.RequireFromString("3.7"),
		ReviewCount: 3,
		Reviews:     []*domain.Review{review},
	}
}

const profileSecret = "profile-secret"

func profileRouter(svc *fakeProfileService) chi.Router {
	r := chi.NewRouter()
	NewProfileHandler(svc, fakeStorage{}, zap.NewNop()).
		RegisterRoutes(r, middleware.AuthMiddleware(profileSecret, zap.NewNop()))
	return r
}

func profileToken(t *testing.T, username string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  uuid.NewString(),
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(profileSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestGetProfile(t *testing.T) {
	svc := &fakeProfileService{view: sampleProfileView()}
	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/alice", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProfileResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, 3.7, resp.SellerRating)
	assert.Equal(t, int64(3), resp.ReviewCount)
	assert.Equal(t, "http://cdn.test/avatars/a.png", resp.Avatar)
	require.Len(t, resp.Reviews, 1)
	assert.Equal(t, "bob", resp.Reviews[0].ReviewerUsername)
}

func TestGetProfile_NotFound(t *testing.T) {
	svc := &fakeProfileService{err: service.ErrNotFound}
	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfile_OnlyOwner(t *testing.T) {
	svc := &fakeProfileService{view: sampleProfileView()}
	router := profileRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/profiles/alice", strings.NewReader(`{"bio":"x"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPatch, "/api/profiles/alice", strings.NewReader(`{"bio":"x"}`))
	req.Header.Set("Authorization", profileToken(t, "mallory"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, svc.lastPatch.Bio)
}

func TestUpdateProfile_JSON(t *testing.T) {
	svc := &fakeProfileService{view: sampleProfileView()}
	req := httptest.NewRequest(http.MethodPatch, "/api/profiles/alice", strings.NewReader(`{"bio":"Collector","phone_number":""}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", profileToken(t, "alice"))

	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastPatch.Bio)
	assert.Equal(t, "Collector", *svc.lastPatch.Bio)
	require.NotNil(t, svc.lastPatch.PhoneNumber)
	assert.Empty(t, *svc.lastPatch.PhoneNumber)
	assert.Nil(t, svc.lastPatch.Location)
}

func TestUpdateProfile_MultipartAvatar(t *testing.T) {
	svc := &fakeProfileService{view: sampleProfileView()}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("location", "Hamburg"))
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/profiles/alice", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", profileToken(t, "alice"))

	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastAvatar)
	assert.Equal(t, "me.png", svc.lastAvatar.Filename)
	assert.Equal(t, "Hamburg", *svc.lastPatch.Location)
}

func TestUpdateProfile_PhoneTaken(t *testing.T) {
	svc := &fakeProfileService{err: service.NewValidationError("phone_number", "This phone number is already in use.")}
	req := httptest.NewRequest(http.MethodPatch, "/api/profiles/alice", strings.NewReader(`{"phone_number":"+1"}`))
	req.Header.Set("Authorization", profileToken(t, "alice"))

	w := httptest.NewRecorder()
	profileRouter(svc).ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"phone_number"`)
}
