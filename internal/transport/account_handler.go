package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"shoe-market/internal/middleware"
	"shoe-market/internal/service"
	"shoe-market/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the signup payload
type RegisterRequest struct {
	Username    string  `json:"username" validate:"required,max=150,username"`
	Email       string  `json:"email" validate:"required,email,max=254"`
	Password    string  `json:"password" validate:"required,min=8,max=128"`
	FirstName   string  `json:"first_name" validate:"max=150"`
	LastName    string  `json:"last_name" validate:"max=150"`
	Location    string  `json:"location" validate:"max=100"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         AccountResponse `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// AccountHandler handles signup, login and the caller's own account.
type AccountHandler struct {
	accountService service.AccountService
	blobs          storage.ObjectStorage
	logger         *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService service.AccountService, blobs storage.ObjectStorage, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		blobs:          blobs,
		logger:         logger,
	}
}

// RegisterRoutes registers all account routes. rateLimit guards the
// credential endpoints.
func (h *AccountHandler) RegisterRoutes(r chi.Router, authMiddleware, rateLimit func(http.Handler) http.Handler) {
	r.Route("/api/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})
		r.Post("/refresh", h.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Delete("/me", h.DeleteMe)
		})
	})
}

// Register handles account signup
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	account, profile, err := h.accountService.Register(r.Context(), service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Location:    req.Location,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to register user")
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", account.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, presentAccount(account, profile, h.blobs))
}

// Login handles account authentication
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	accessToken, refreshToken, account, err := h.accountService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		respondServiceError(w, h.logger, err, "failed to login")
		return
	}

	_, profile, err := h.accountService.GetAccount(r.Context(), account.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to login")
		return
	}

	h.logger.Info("User logged in successfully", zap.String("user_id", account.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         presentAccount(account, profile, h.blobs),
	})
}

// Logout revokes the supplied refresh token
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Logout decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accountService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondServiceError(w, h.logger, err, "failed to logout")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// RefreshToken exchanges a refresh token for a new access token
func (h *AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Refresh token validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	newAccessToken, err := h.accountService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			middleware.RespondWithError(w, http.StatusUnauthorized, "refresh token expired")
		case errors.Is(err, service.ErrInvalidToken):
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid refresh token")
		default:
			respondServiceError(w, h.logger, err, "failed to refresh token")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{AccessToken: newAccessToken})
}

// Me returns the authenticated account with its profile
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, profile, err := h.accountService.GetAccount(r.Context(), userID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get account")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, presentAccount(account, profile, h.blobs))
}

// DeleteMe removes the authenticated account and everything it owns
func (h *AccountHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.accountService.DeleteAccount(r.Context(), userID); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
