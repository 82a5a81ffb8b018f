package transport

import (
	"net/http"
	"strings"

	"shoe-market/internal/middleware"
	"shoe-market/internal/service"
	"shoe-market/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProfilePatchRequest is the JSON body of PATCH /profiles/{username}.
type ProfilePatchRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,max=150"`
	Location    *string `json:"location" validate:"omitempty,max=100"`
	Bio         *string `json:"bio"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
}

// ProfileHandler serves public profiles and owner edits.
type ProfileHandler struct {
	profiles service.ProfileService
	blobs    storage.ObjectStorage
	logger   *zap.Logger
}

func NewProfileHandler(profiles service.ProfileService, blobs storage.ObjectStorage, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, blobs: blobs, logger: logger}
}

func (h *ProfileHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/profiles/{username}", func(r chi.Router) {
		r.Get("/", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireSelf("username", h.logger))
			r.Patch("/", h.Update)
			r.Put("/", h.Update)
		})
	})
}

// Get returns the public profile with the seller rating
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.profiles.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get profile")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, presentProfile(view, h.blobs))
}

// Update applies the owner's changes, optionally replacing the avatar
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var (
		patch  service.ProfilePatch
		avatar *service.Upload
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		defer r.MultipartForm.RemoveAll()

		values := r.MultipartForm.Value
		field := func(name string) *string {
			if v, ok := values[name]; ok && len(v) > 0 {
				return &v[0]
			}
			return nil
		}
		req := ProfilePatchRequest{
			FirstName:   field("first_name"),
			LastName:    field("last_name"),
			Location:    field("location"),
			Bio:         field("bio"),
			PhoneNumber: field("phone_number"),
		}
		if err := middleware.ValidateRequest(&req); err != nil {
			respondDecodeError(w, err)
			return
		}
		patch = profilePatch(req)

		uploads, files, err := openUploads(r.MultipartForm.File["avatar"])
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid avatar upload")
			return
		}
		defer closeAll(files)
		if len(uploads) > 0 {
			avatar = &uploads[0]
		}
	} else {
		var req ProfilePatchRequest
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			respondDecodeError(w, err)
			return
		}
		patch = profilePatch(req)
	}

	view, err := h.profiles.Update(r.Context(), middleware.Identity(r.Context()), chi.URLParam(r, "username"), patch, avatar)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update profile")
		return
	}

	h.logger.Info("Profile updated", zap.String("username", view.Account.Username))
	middleware.RespondWithJSON(w, http.StatusOK, presentProfile(view, h.blobs))
}

func profilePatch(req ProfilePatchRequest) service.ProfilePatch {
	return service.ProfilePatch{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Location:    req.Location,
		Bio:         req.Bio,
		PhoneNumber: req.PhoneNumber,
	}
}
