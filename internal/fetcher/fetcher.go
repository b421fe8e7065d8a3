package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// Offer is one raw listing as returned by the auction source, normalised
// into flat fields. Optional fields are nil when the source omitted them.
type Offer struct {
	OfferID          string
	Title            string
	Description      string
	OfferDescription string
	Price            decimal.Decimal
	ImageURL         *string
	AuctionURL       string
	LotNumber        *int
	EndDate          *string
	Visits           *int
	CategoryName     *string
	SubCategoryName  *string
	Location         *string
	Seller           *string
	AuctionName      *string
	Auctioneer       *string
}

// ListingFetcher retrieves one page of listings for a monitor's source URL.
type ListingFetcher interface {
	FetchListings(ctx context.Context, url string) ([]Offer, error)
}
