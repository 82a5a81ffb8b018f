package transport

import (
	"time"

	"shoe-market/internal/domain"
	"shoe-market/internal/repository"
	"shoe-market/internal/service"
	"shoe-market/internal/storage"

	"github.com/shopspring/decimal"
)

// ListingImageResponse is one gallery image.
type ListingImageResponse struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

// ListingResponse is the wire form of a listing. Price and size are fixed
// point strings; the rating is already rounded to one decimal.
type ListingResponse struct {
	ID             string                 `json:"id"`
	Seller         string                 `json:"seller"`
	SellerUsername string                 `json:"seller_username"`
	SellerPhone    *string                `json:"seller_phone"`
	SellerRating   float64                `json:"seller_rating"`
	Title          string                 `json:"title"`
	Brand          string                 `json:"brand"`
	Size           string                 `json:"size"`
	Price          string                 `json:"price"`
	Currency       domain.Currency        `json:"currency"`
	Condition      domain.Condition       `json:"condition"`
	Description    string                 `json:"description"`
	Image          string                 `json:"image"`
	Images         []ListingImageResponse `json:"images"`
	ContactInfo    string                 `json:"contact_info"`
	IsSold         bool                   `json:"is_sold"`
	Views          int64                  `json:"views"`
	IsLiked        bool                   `json:"is_liked"`
	CreatedAt      time.Time              `json:"created_at"`
}

// PagedResponse wraps one page of results.
type PagedResponse[T any] struct {
	Results  []T `json:"results"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func newPagedResponse[T any](results []T, total int, page repository.Page) PagedResponse[T] {
	if results == nil {
		results = []T{}
	}
	return PagedResponse[T]{Results: results, Total: total, Page: page.Number, PageSize: page.Size}
}

func presentListing(l *domain.Listing, rating decimal.Decimal, liked bool, blobs storage.ObjectStorage) ListingResponse {
	images := make([]ListingImageResponse, 0, len(l.Gallery))
	for _, img := range l.Gallery {
		images = append(images, ListingImageResponse{ID: img.ID.String(), Image: blobs.URL(img.Image)})
	}

	return ListingResponse{
		ID:             l.ID.String(),
		Seller:         l.SellerID.String(),
		SellerUsername: l.SellerUsername,
		SellerPhone:    l.SellerPhone,
		SellerRating:   rating.InexactFloat64(),
		Title:          l.Title,
		Brand:          l.Brand,
		Size:           l.Size.StringFixed(1),
		Price:          l.Price.StringFixed(2),
		Currency:       l.Currency,
		Condition:      l.Condition,
		Description:    l.Description,
		Image:          blobs.URL(l.Image),
		Images:         images,
		ContactInfo:    l.ContactInfo,
		IsSold:         l.IsSold,
		Views:          l.Views,
		IsLiked:        liked,
		CreatedAt:      l.CreatedAt,
	}
}

// AccountResponse is the private view of the caller's own account.
type AccountResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Avatar      string  `json:"avatar"`
	Location    string  `json:"location"`
	Bio         string  `json:"bio"`
	PhoneNumber *string `json:"phone_number"`
	IsVerified  bool    `json:"is_verified"`
}

func presentAccount(a *domain.Account, p *domain.Profile, blobs storage.ObjectStorage) AccountResponse {
	resp := AccountResponse{
		ID:        a.ID.String(),
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
	if p != nil {
		resp.Avatar = blobs.URL(p.Avatar)
		resp.Location = p.Location
		resp.Bio = p.Bio
		resp.PhoneNumber = p.PhoneNumber
		resp.IsVerified = p.IsVerified
	}
	return resp
}

// ReviewResponse is a review as embedded in a profile.
type ReviewResponse struct {
	ID               string    `json:"id"`
	Reviewer         string    `json:"reviewer"`
	ReviewerUsername string    `json:"reviewer_username"`
	ReviewedUser     string    `json:"reviewed_user"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
}

func presentReview(r *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:               r.ID.String(),
		Reviewer:         r.ReviewerID.String(),
		ReviewerUsername: r.ReviewerUsername,
		ReviewedUser:     r.ReviewedID.String(),
		Rating:           r.Rating,
		Comment:          r.Comment,
		CreatedAt:        r.CreatedAt,
	}
}

// ProfileResponse is the public profile of an account.
type ProfileResponse struct {
	UserID       string           `json:"user_id"`
	Username     string           `json:"username"`
	Email        string           `json:"email"`
	FirstName    string           `json:"first_name"`
	LastName     string           `json:"last_name"`
	Avatar       string           `json:"avatar"`
	Location     string           `json:"location"`
	Bio          string           `json:"bio"`
	PhoneNumber  *string          `json:"phone_number"`
	IsVerified   bool             `json:"is_verified"`
	SellerRating float64          `json:"seller_rating"`
	ReviewCount  int64            `json:"review_count"`
	Reviews      []ReviewResponse `json:"reviews_list"`
}

func presentProfile(v *service.ProfileView, blobs storage.ObjectStorage) ProfileResponse {
	reviews := make([]ReviewResponse, 0, len(v.Reviews))
	for _, r := range v.Reviews {
		reviews = append(reviews, presentReview(r))
	}

	return ProfileResponse{
		UserID:       v.Account.ID.String(),
		Username:     v.Account.Username,
		Email:        v.Account.Email,
		FirstName:    v.Account.FirstName,
		LastName:     v.Account.LastName,
		Avatar:       blobs.URL(v.Profile.Avatar),
		Location:     v.Profile.Location,
		Bio:          v.Profile.Bio,
		PhoneNumber:  v.Profile.PhoneNumber,
		IsVerified:   v.Profile.IsVerified,
		SellerRating: v.Rating.InexactFloat64(),
		ReviewCount:  v.ReviewCount,
		Reviews:      reviews,
	}
}
