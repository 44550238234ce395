package domain

import (
	"time"
)

// Product represents a storefront catalog entry.
// The json tags correspond to the fields expected in API responses/requests.
type Product struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Category         string            `json:"category"`
	Price            float64           `json:"price"` // For currency, consider a dedicated decimal type in production for precision
	OriginalPrice    *float64          `json:"originalPrice,omitempty"` // Only used to derive a discount display
	Image            string            `json:"image,omitempty"`         // Primary image URL, set via blob upload
	AdditionalImages []string          `json:"additionalImages"`        // Gallery URLs, upload order preserved
	Description      string            `json:"description,omitempty"`
	Brand            string            `json:"brand,omitempty"`
	InStock          bool              `json:"inStock"`
	Specifications   map[string]string `json:"specifications,omitempty"` // Flat key/value spec sheet
	Rating           float64           `json:"rating"`  // Display-only, never mutated by catalog writes
	Reviews          int               `json:"reviews"` // Display-only, never mutated by catalog writes
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// User is a storefront account. Only the admin flag matters to the catalog;
// regular accounts exist so the stats view can count them.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CatalogStats is the admin dashboard aggregate over the whole catalog.
// TotalValue is a single-unit valuation: the plain sum of prices, not
// multiplied by any stock quantity.
type CatalogStats struct {
	TotalProducts   int     `json:"totalProducts"`
	InStockCount    int     `json:"inStockCount"`
	OutOfStockCount int     `json:"outOfStockCount"`
	TotalValue      float64 `json:"totalValue"`
	TotalUsers      int     `json:"totalUsers"`
}
