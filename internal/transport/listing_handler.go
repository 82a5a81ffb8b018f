package transport

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"shoe-market/internal/domain"
	"shoe-market/internal/middleware"
	"shoe-market/internal/repository"
	"shoe-market/internal/service"
	"shoe-market/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// listingQuery holds the raw search parameters of GET /listings.
type listingQuery struct {
	Brand     string `form:"brand" validate:"max=50"`
	Size      string `form:"size" validate:"omitempty,decimal=1"`
	Condition string `form:"condition" validate:"omitempty,oneof=New Used"`
	Seller    string `form:"seller"`
	MinPrice  string `form:"min_price" validate:"omitempty,decimal"`
	MaxPrice  string `form:"max_price" validate:"omitempty,decimal"`
	Search    string `form:"search" validate:"max=200"`
	Ordering  string `form:"ordering"`
}

// listingForm holds the text fields of a multipart listing upload.
type listingForm struct {
	Title       string `form:"title" validate:"required,max=100"`
	Brand       string `form:"brand" validate:"required,max=50"`
	Size        string `form:"size" validate:"required,decimal=1"`
	Price       string `form:"price" validate:"required,decimal=2"`
	Currency    string `form:"currency" validate:"omitempty,oneof=EUR USD GBP"`
	Condition   string `form:"condition" validate:"omitempty,oneof=New Used"`
	Description string `form:"description"`
	ContactInfo string `form:"contact_info" validate:"max=100"`
}

// ListingPatchRequest is the JSON body of PATCH /listings/{id}.
type ListingPatchRequest struct {
	Title       *string          `json:"title" validate:"omitempty,max=100"`
	Brand       *string          `json:"brand" validate:"omitempty,max=50"`
	Size        *decimal.Decimal `json:"size"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency" validate:"omitempty,oneof=EUR USD GBP"`
	Condition   *string          `json:"condition" validate:"omitempty,oneof=New Used"`
	Description *string          `json:"description"`
	ContactInfo *string          `json:"contact_info" validate:"omitempty,max=100"`
	IsSold      *bool            `json:"is_sold"`
}

// ToggleResponse reports the wishlist state after a toggle.
type ToggleResponse struct {
	Status service.ToggleResult `json:"status"`
}

// ListingHandler serves listing CRUD, search, wishlist and favorites.
type ListingHandler struct {
	listings service.ListingService
	wishlist service.WishlistService
	ratings  service.RatingService
	blobs    storage.ObjectStorage
	logger   *zap.Logger
}

func NewListingHandler(
	listings service.ListingService,
	wishlist service.WishlistService,
	ratings service.RatingService,
	blobs storage.ObjectStorage,
	logger *zap.Logger,
) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		wishlist: wishlist,
		ratings:  ratings,
		blobs:    blobs,
		logger:   logger,
	}
}

// RegisterRoutes mounts the listing routes under /api/listings and its
// /api/shoes alias. Every route accepts anonymous callers; the services
// decide what an anonymous caller may do.
func (h *ListingHandler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	routes := func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/favorites", h.Favorites)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/wishlist-toggle", h.ToggleWishlist)
		})
	}
	r.Route("/api/listings", routes)
	r.Route("/api/shoes", routes)
}

// List handles search with filters, ordering and paging
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, page, errs := parseListingQuery(r)
	if len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return
	}

	listings, total, err := h.listings.List(r.Context(), filter, page)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list listings")
		return
	}

	results, err := h.presentAll(r, listings)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list listings")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newPagedResponse(results, total, page))
}

// Get returns one listing and counts the view
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}
	viewer := middleware.Identity(r.Context())

	listing, err := h.listings.Retrieve(r.Context(), viewer, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get listing")
		return
	}

	resp, err := h.presentOne(r, listing)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get listing")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Create handles a multipart listing upload with its cover and gallery
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	seller := middleware.Identity(r.Context())
	if seller == uuid.Nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.logger.Debug("Listing form parse failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := listingForm{
		Title:       r.FormValue("title"),
		Brand:       r.FormValue("brand"),
		Size:        r.FormValue("size"),
		Price:       r.FormValue("price"),
		Currency:    r.FormValue("currency"),
		Condition:   r.FormValue("condition"),
		Description: r.FormValue("description"),
		ContactInfo: r.FormValue("contact_info"),
	}
	if err := middleware.ValidateRequest(&form); err != nil {
		respondDecodeError(w, err)
		return
	}

	cover, coverFiles, err := openUploads(r.MultipartForm.File["image"])
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid image upload")
		return
	}
	defer closeAll(coverFiles)
	gallery, galleryFiles, err := openUploads(r.MultipartForm.File["uploaded_images"])
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid gallery upload")
		return
	}
	defer closeAll(galleryFiles)

	in := service.ListingInput{
		Title:       form.Title,
		Brand:       form.Brand,
		Size:        decimalPtr(form.Size),
		Price:       decimalPtr(form.Price),
		Currency:    domain.Currency(form.Currency),
		Condition:   domain.Condition(form.Condition),
		Description: form.Description,
		ContactInfo: form.ContactInfo,
	}
	var coverUpload *service.Upload
	if len(cover) > 0 {
		coverUpload = &cover[0]
	}

	listing, err := h.listings.Create(r.Context(), seller, in, coverUpload, gallery)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create listing")
		return
	}

	resp, err := h.presentOne(r, listing)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create listing")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, resp)
}

// Update applies a partial update from a JSON or multipart body
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}

	patch, errs, err := decodeListingPatch(r)
	if err != nil {
		h.logger.Debug("Listing patch decode failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}
	if len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return
	}

	listing, err := h.listings.Update(r.Context(), middleware.Identity(r.Context()), id, patch)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update listing")
		return
	}

	resp, err := h.presentOne(r, listing)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update listing")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Delete removes a listing owned by the caller
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}

	if err := h.listings.Delete(r.Context(), middleware.Identity(r.Context()), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete listing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleWishlist likes or unlikes a listing for the caller
func (h *ListingHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := listingIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.wishlist.Toggle(r.Context(), middleware.Identity(r.Context()), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to toggle wishlist")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ToggleResponse{Status: result})
}

// Favorites lists the caller's wishlisted listings, newest listing first
func (h *ListingHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	page, errs := parsePage(r)
	if len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return
	}

	listings, total, err := h.wishlist.Favorites(r.Context(), middleware.Identity(r.Context()), page)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list favorites")
		return
	}

	results, err := h.presentAll(r, listings)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list favorites")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newPagedResponse(results, total, page))
}

func (h *ListingHandler) presentOne(r *http.Request, l *domain.Listing) (ListingResponse, error) {
	rating, err := h.ratings.SellerRating(r.Context(), l.SellerID)
	if err != nil {
		return ListingResponse{}, err
	}
	liked, err := h.wishlist.IsLiked(r.Context(), middleware.Identity(r.Context()), l.ID)
	if err != nil {
		return ListingResponse{}, err
	}
	return presentListing(l, rating, liked, h.blobs), nil
}

// presentAll renders a page, aggregating each distinct seller's rating once.
func (h *ListingHandler) presentAll(r *http.Request, listings []*domain.Listing) ([]ListingResponse, error) {
	ids := make([]uuid.UUID, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	liked, err := h.wishlist.LikedAmong(r.Context(), middleware.Identity(r.Context()), ids)
	if err != nil {
		return nil, err
	}

	ratings := make(map[uuid.UUID]decimal.Decimal)
	results := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		rating, seen := ratings[l.SellerID]
		if !seen {
			rating, err = h.ratings.SellerRating(r.Context(), l.SellerID)
			if err != nil {
				return nil, err
			}
			ratings[l.SellerID] = rating
		}
		results = append(results, presentListing(l, rating, liked[l.ID], h.blobs))
	}
	return results, nil
}

func parseListingQuery(r *http.Request) (repository.ListingFilter, repository.Page, []middleware.ValidationError) {
	q := r.URL.Query()
	raw := listingQuery{
		Brand:     strings.TrimSpace(q.Get("brand")),
		Size:      strings.TrimSpace(q.Get("size")),
		Condition: q.Get("condition"),
		Seller:    q.Get("seller"),
		MinPrice:  strings.TrimSpace(q.Get("min_price")),
		MaxPrice:  strings.TrimSpace(q.Get("max_price")),
		Search:    strings.TrimSpace(q.Get("search")),
		Ordering:  strings.TrimSpace(q.Get("ordering")),
	}
	if raw.Seller == "" {
		raw.Seller = q.Get("seller__username")
	}

	page, errs := parsePage(r)
	if err := middleware.ValidateRequest(&raw); err != nil {
		errs = append(errs, middleware.FormatValidationErrors(err)...)
	}
	if len(errs) > 0 {
		return repository.ListingFilter{}, page, errs
	}

	filter := repository.ListingFilter{
		Brand:     raw.Brand,
		Size:      decimalPtr(raw.Size),
		Condition: domain.Condition(raw.Condition),
		Seller:    raw.Seller,
		MinPrice:  decimalPtr(raw.MinPrice),
		MaxPrice:  decimalPtr(raw.MaxPrice),
		Search:    raw.Search,
	}
	filter.SortBy, filter.SortOrder = parseOrdering(raw.Ordering)
	return filter, page, nil
}

// parseOrdering reads "field" or "-field".
func parseOrdering(ordering string) (string, repository.SortOrder) {
	switch {
	case ordering == "":
		return "created_at", repository.SortOrderDesc
	case strings.HasPrefix(ordering, "-"):
		return strings.TrimPrefix(ordering, "-"), repository.SortOrderDesc
	default:
		return ordering, repository.SortOrderAsc
	}
}

func decodeListingPatch(r *http.Request) (service.ListingPatch, []middleware.ValidationError, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return decodeListingPatchForm(r)
	}

	var req ListingPatchRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		return service.ListingPatch{}, nil, err
	}
	return service.ListingPatch{
		Title:       req.Title,
		Brand:       req.Brand,
		Size:        req.Size,
		Price:       req.Price,
		Currency:    (*domain.Currency)(req.Currency),
		Condition:   (*domain.Condition)(req.Condition),
		Description: req.Description,
		ContactInfo: req.ContactInfo,
		IsSold:      req.IsSold,
	}, nil, nil
}

func decodeListingPatchForm(r *http.Request) (service.ListingPatch, []middleware.ValidationError, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return service.ListingPatch{}, nil, fmt.Errorf("%w: %v", middleware.ErrMalformedBody, err)
	}
	values := r.MultipartForm.Value
	field := func(name string) *string {
		if v, ok := values[name]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}

	var patch service.ListingPatch
	var errs []middleware.ValidationError
	patch.Title = field("title")
	patch.Brand = field("brand")
	patch.Description = field("description")
	patch.ContactInfo = field("contact_info")
	if v := field("currency"); v != nil {
		patch.Currency = (*domain.Currency)(v)
	}
	if v := field("condition"); v != nil {
		patch.Condition = (*domain.Condition)(v)
	}
	numbers := []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"size", &patch.Size},
		{"price", &patch.Price},
	}
	for _, n := range numbers {
		if v := field(n.name); v != nil {
			d, err := middleware.ParseDecimal(*v)
			if err != nil {
				errs = append(errs, middleware.ValidationError{Field: n.name, Message: "A valid number is required."})
				continue
			}
			*n.dst = &d
		}
	}
	if v := field("is_sold"); v != nil {
		sold := strings.EqualFold(*v, "true") || *v == "1"
		patch.IsSold = &sold
	}
	return patch, errs, nil
}

func openUploads(headers []*multipart.FileHeader) ([]service.Upload, []multipart.File, error) {
	uploads := make([]service.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(files)
			return nil, nil, err
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, files, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		f.Close()
	}
}

// decimalPtr parses an already validated decimal; blank is nil.
func decimalPtr(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, err := middleware.ParseDecimal(raw)
	if err != nil {
		return nil
	}
	return &d
}
