package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is the ISO code a listing is priced in.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyEUR, CurrencyUSD, CurrencyGBP:
		return true
	}
	return false
}

// Condition describes the wear state of a listed item.
type Condition string

const (
	ConditionNew  Condition = "New"
	ConditionUsed Condition = "Used"
)

func (c Condition) IsValid() bool {
	return c == ConditionNew || c == ConditionUsed
}

// Listing is a seller's item (a pair of shoes) for sale.
// Image and ListingImage.Image are opaque storage keys.
type Listing struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SellerID    uuid.UUID       `json:"seller" db:"seller_id"`
	Title       string          `json:"title" db:"title"`
	Brand       string          `json:"brand" db:"brand"`
	Size        decimal.Decimal `json:"size" db:"size"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Currency    Currency        `json:"currency" db:"currency"`
	Condition   Condition       `json:"condition" db:"condition"`
	Description string          `json:"description" db:"description"`
	Image       string          `json:"image" db:"image"`
	ContactInfo string          `json:"contact_info" db:"contact_info"`
	IsSold      bool            `json:"is_sold" db:"is_sold"`
	Views       int64           `json:"views" db:"views"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`

	// Read-side projections joined from the seller's account and profile.
	SellerUsername string         `json:"seller_username" db:"-"`
	SellerPhone    *string        `json:"seller_phone" db:"-"`
	Gallery        []ListingImage `json:"images" db:"-"`
}

// ListingImage is a secondary gallery image of a Listing.
type ListingImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ListingID uuid.UUID `json:"-" db:"listing_id"`
	Image     string    `json:"image" db:"image"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// WishlistEntry marks that an account likes a listing.
type WishlistEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
