package transport

import (
	"net/http"

	"shoe-market/internal/middleware"
	"shoe-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateReviewRequest represents a new review about another account
type CreateReviewRequest struct {
	ReviewedUser string `json:"reviewed_user" validate:"required"`
	Rating       int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment      string `json:"comment" validate:"max=2000"`
}

type ReviewHandler struct {
	reviews service.ReviewService
	logger  *zap.Logger
}

func NewReviewHandler(reviews service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

func (h *ReviewHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Post("/api/reviews", h.Create)
}

// Create records a review by the authenticated account
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	review, err := h.reviews.Create(r.Context(), middleware.Identity(r.Context()), req.ReviewedUser, req.Rating, req.Comment)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create review")
		return
	}

	resp := presentReview(review)
	if username, ok := middleware.GetUsername(r.Context()); ok {
		resp.ReviewerUsername = username
	}
	middleware.RespondWithJSON(w, http.StatusCreated, resp)
}
