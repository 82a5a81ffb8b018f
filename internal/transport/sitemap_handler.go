package transport

import (
	"net/http"

	"shoe-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SitemapHandler struct {
	sitemap service.SitemapService
	logger  *zap.Logger
}

func NewSitemapHandler(sitemap service.SitemapService, logger *zap.Logger) *SitemapHandler {
	return &SitemapHandler{sitemap: sitemap, logger: logger}
}

func (h *SitemapHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sitemap.xml", h.Sitemap)
}

// Sitemap writes the XML url index of all listings
func (h *SitemapHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	body, err := h.sitemap.Generate(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to generate sitemap")
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("Failed to write sitemap", zap.Error(err))
	}
}
