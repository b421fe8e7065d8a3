package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// SuperbidOptions parameterise the Superbid marketplace fetcher.
type SuperbidOptions struct {
	// ListingBaseURL is the public listing page prefix used to derive an
	// offer's browser URL from its id.
	ListingBaseURL string
	Timeout        time.Duration
	UserAgent      string
	RatePerSecond  float64
	RateBurst      int
}

// Superbid fetches offer pages from the Superbid search API.
type Superbid struct {
	opts    SuperbidOptions
	client  *http.Client
	limiter *rate.Limiter
	strip   *bluemonday.Policy
	logger  zerolog.Logger
}

// NewSuperbid constructs a Superbid fetcher.
func NewSuperbid(opts SuperbidOptions, logger zerolog.Logger) *Superbid {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.ListingBaseURL == "" {
		opts.ListingBaseURL = "https://exchange.superbid.net/leilao"
	}
	opts.ListingBaseURL = strings.TrimRight(opts.ListingBaseURL, "/")

	rps := opts.RatePerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Superbid{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		strip:   bluemonday.StrictPolicy(),
		logger:  logger.With().Str("component", "superbid_fetcher").Logger(),
	}
}

// FetchListings retrieves and maps one page of offers for the given search
// URL. A single attempt, no retries.
func (s *Superbid) FetchListings(ctx context.Context, url string) ([]Offer, error) {
	if url == "" {
		return nil, fmt.Errorf("source url required")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create source request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch offers: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read source response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, sourceHTTPError(resp.StatusCode, payload)
	}

	var decoded superbidResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode source response: %w", err)
	}

	offers := make([]Offer, 0, len(decoded.Offers))
	for _, raw := range decoded.Offers {
		offers = append(offers, s.mapOffer(raw))
	}

	s.logger.Debug().Int("offers", len(offers)).Str("url", url).Msg("fetched offer page")
	return offers, nil
}

func (s *Superbid) mapOffer(raw superbidOffer) Offer {
	offerID := strconv.FormatInt(raw.ID, 10)

	offer := Offer{
		OfferID:    offerID,
		AuctionURL: s.opts.ListingBaseURL + "/" + offerID,
		LotNumber:  raw.LotNumber,
		EndDate:    optional(raw.EndDate),
		Visits:     raw.Visits,
	}

	if raw.Price != nil {
		offer.Price = decimal.NewFromFloat(*raw.Price)
	}

	if p := raw.Product; p != nil {
		offer.Title = strings.TrimSpace(p.ShortDesc)
		offer.Description = s.sanitize(p.DetailedDescription)

		if p.ThumbnailURL != "" {
			offer.ImageURL = optional(p.ThumbnailURL)
		} else if len(p.Gallery) > 0 {
			offer.ImageURL = optional(p.Gallery[0].ThumbnailURL)
		}

		if sc := p.SubCategory; sc != nil {
			offer.SubCategoryName = optional(sc.Description)
			if sc.Category != nil {
				offer.CategoryName = optional(sc.Category.Description)
			}
		}

		if loc := p.Location; loc != nil {
			offer.Location = optional(strings.TrimSpace(strings.TrimSpace(loc.City) + " - " + strings.TrimSpace(loc.State)))
			if loc.City == "" && loc.State == "" {
				offer.Location = nil
			}
		}
	}

	if raw.OfferDescription != nil {
		offer.OfferDescription = s.sanitize(raw.OfferDescription.OfferDescription)
	}

	if raw.Seller != nil {
		offer.Seller = optional(raw.Seller.Name)
	}

	if a := raw.Auction; a != nil {
		offer.AuctionName = optional(a.Desc)
		offer.Auctioneer = optional(a.Auctioneer)
	}

	return offer
}

// sanitize strips any markup the source embeds in description fields.
func (s *Superbid) sanitize(v string) string {
	return strings.TrimSpace(s.strip.Sanitize(v))
}

func optional(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}

type superbidResponse struct {
	Total  *int            `json:"total"`
	Offers []superbidOffer `json:"offers"`
}

type superbidOffer struct {
	ID               int64                     `json:"id"`
	LotNumber        *int                      `json:"lotNumber"`
	Price            *float64                  `json:"price"`
	EndDate          string                    `json:"endDate"`
	Visits           *int                      `json:"visits"`
	Product          *superbidProduct          `json:"product"`
	Auction          *superbidAuction          `json:"auction"`
	Seller           *superbidSeller           `json:"seller"`
	OfferDescription *superbidOfferDescription `json:"offerDescription"`
}

type superbidProduct struct {
	ShortDesc           string                `json:"shortDesc"`
	ThumbnailURL        string                `json:"thumbnailUrl"`
	DetailedDescription string                `json:"detailedDescription"`
	Gallery             []superbidGalleryItem `json:"galleryJson"`
	SubCategory         *superbidCategory     `json:"subCategory"`
	Location            *superbidLocation     `json:"location"`
}

type superbidGalleryItem struct {
	Link         string `json:"link"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type superbidCategory struct {
	Description string                  `json:"description"`
	Category    *superbidParentCategory `json:"category"`
}

type superbidParentCategory struct {
	Description string `json:"description"`
}

type superbidLocation struct {
	City  string `json:"city"`
	State string `json:"state"`
}

type superbidAuction struct {
	Desc       string `json:"desc"`
	Auctioneer string `json:"auctioneer"`
}

type superbidSeller struct {
	Name string `json:"name"`
}

type superbidOfferDescription struct {
	OfferDescription string `json:"offerDescription"`
}

func sourceHTTPError(status int, payload []byte) error {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("source api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("source api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("source api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("source api error (%d)", status)
}

var _ ListingFetcher = (*Superbid)(nil)
