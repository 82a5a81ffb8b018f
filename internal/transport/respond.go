package transport

import (
	"errors"
	"net/http"
	"strconv"

	"shoe-market/internal/middleware"
	"shoe-market/internal/repository"
	"shoe-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxUploadMemory = 32 << 20
)

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.RespondWithValidationErrors(w, middleware.FieldErrors(verr.Fields))
	case errors.Is(err, service.ErrUnauthorized):
		middleware.RespondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// respondDecodeError answers a body that failed DecodeAndValidate.
func respondDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

// listingIDParam parses the {id} URL parameter. Malformed ids cannot name a
// listing, so they are reported as not found.
func listingIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
		return uuid.Nil, false
	}
	return id, true
}

// parsePage reads page and page_size, clamping page_size to maxPageSize.
func parsePage(r *http.Request) (repository.Page, []middleware.ValidationError) {
	page := repository.Page{Number: 1, Size: defaultPageSize}
	var errs []middleware.ValidationError

	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs = append(errs, middleware.ValidationError{Field: "page", Message: "Invalid page."})
		} else {
			page.Number = n
		}
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs = append(errs, middleware.ValidationError{Field: "page_size", Message: "Invalid page size."})
		} else {
			page.Size = min(n, maxPageSize)
		}
	}
	return page, errs
}
