package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequireSelf(t *testing.T) {
	logger := zap.NewNop()
	r := chi.NewRouter()
	r.With(AuthMiddleware(testSecret, logger), RequireSelf("username", logger)).
		Patch("/api/profiles/{username}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

	token := signToken(t, jwt.MapClaims{
		"user_id": uuid.NewString(), "username": "ana", "exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		path string
		want int
	}{
		{"/api/profiles/ana", http.StatusOK},
		{"/api/profiles/bob", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPatch, tt.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, tt.want, w.Code, tt.path)
	}
}

func TestRequireSelf_WithoutIdentity(t *testing.T) {
	handler := RequireSelf("username", zap.NewNop())(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/profiles/ana", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}
