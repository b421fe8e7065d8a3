package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Monitor is a saved polling configuration: what to poll, how often, and
// which keyword expression filters the results.
type Monitor struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	Keywords        []string `json:"keywords"`
	KeywordMode     string   `json:"keywordMode"`
	IntervalMinutes int      `json:"intervalMinutes"`
	Active          bool     `json:"active"`
}

// Listing is one external auction offer normalised into the store's schema.
// Listings are unique by offer id across the whole store; they are archived,
// never deleted.
type Listing struct {
	ID              int64           `json:"id"`
	OfferID         string          `json:"offerId"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	CurrentPrice    decimal.Decimal `json:"currentPrice"`
	ImageURL        *string         `json:"imageUrl"`
	AuctionURL      string          `json:"auctionUrl"`
	LotNumber       *int            `json:"lotNumber"`
	EndDate         *string         `json:"endDate"`
	Visits          *int            `json:"visits"`
	CategoryName    *string         `json:"categoryName"`
	SubCategoryName *string         `json:"subCategoryName"`
	Location        *string         `json:"location"`
	Seller          *string         `json:"seller"`
	AuctionName     *string         `json:"auctionName"`
	Auctioneer      *string         `json:"auctioneer"`
	MonitorID       int64           `json:"monitorId"`
	Archived        bool            `json:"archived"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PriceChange is one immutable price-history entry for a listing.
type PriceChange struct {
	ID        int64           `json:"id"`
	ListingID int64           `json:"listingId"`
	OldPrice  decimal.Decimal `json:"oldPrice"`
	NewPrice  decimal.Decimal `json:"newPrice"`
	ChangedAt time.Time       `json:"changedAt"`
}

// Subscription is the single Telegram notification target. The dispatcher
// re-reads it before every send decision.
type Subscription struct {
	ID                 int64  `json:"id"`
	BotToken           string `json:"botToken"`
	ChatID             string `json:"chatId"`
	NotifyNewItems     bool   `json:"notifyNewItems"`
	NotifyPriceChanges bool   `json:"notifyPriceChanges"`
}
