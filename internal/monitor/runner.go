// Package monitor drives one monitor's polling cycle: fetch, filter,
// classify, persist, notify.
package monitor

import (
	"context"

	"github.com/rs/zerolog"

	"auction-watch/internal/alerting"
	"auction-watch/internal/fetcher"
	"auction-watch/internal/keyword"
	"auction-watch/internal/storage"
)

// untitledListing is stored when the source omits a title.
const untitledListing = "Untitled listing"

// Runner executes one cycle for a monitor. It is stateless across cycles;
// all continuity lives in storage.
type Runner struct {
	fetcher  fetcher.ListingFetcher
	listings storage.ListingStore
	history  storage.HistoryStore
	notifier alerting.Notifier
	logger   zerolog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(f fetcher.ListingFetcher, listings storage.ListingStore, history storage.HistoryStore, notifier alerting.Notifier, logger zerolog.Logger) *Runner {
	return &Runner{
		fetcher:  f,
		listings: listings,
		history:  history,
		notifier: notifier,
		logger:   logger.With().Str("component", "monitor_runner").Logger(),
	}
}

// Run executes one polling cycle. It fails soft: any fetch, storage, or
// notification problem is logged and absorbed, producing at worst zero
// effects for this cycle.
func (r *Runner) Run(ctx context.Context, cfg storage.Monitor) {
	log := r.logger.With().Int64("monitor_id", cfg.ID).Str("monitor", cfg.Name).Logger()
	log.Info().Msg("monitor cycle started")

	offers, err := r.fetcher.FetchListings(ctx, cfg.URL)
	if err != nil {
		log.Error().Err(err).Str("stage", "fetch").Msg("fetch failed; treating as zero results")
		offers = nil
	}

	mode := keyword.ParseMode(cfg.KeywordMode)

	matched := 0
	for _, offer := range offers {
		searchText := keyword.SearchText(offer.Title, offer.Description, offer.OfferDescription)
		if !keyword.Matches(searchText, cfg.Keywords, mode) {
			continue
		}
		matched++
		r.processOffer(ctx, log, cfg, offer)
	}

	log.Info().
		Int("fetched", len(offers)).
		Int("matched", matched).
		Msg("monitor cycle finished")
}

// processOffer re-reads stored state for this offer id before acting, so
// duplicate ids within one fetch stay idempotent and concurrent monitors
// observing the same offer interleave safely.
func (r *Runner) processOffer(ctx context.Context, log zerolog.Logger, cfg storage.Monitor, offer fetcher.Offer) {
	existing, err := r.listings.FindListingByOfferID(ctx, offer.OfferID)
	if err != nil {
		log.Error().Err(err).Str("stage", "lookup").Str("offer_id", offer.OfferID).Msg("listing lookup failed; skipping offer")
		return
	}

	change := Classify(offer.Price, existing)

	switch change.Kind {
	case NewItem:
		listing := buildListing(cfg, offer)

		id, err := r.listings.CreateListing(ctx, listing)
		if err != nil {
			log.Error().Err(err).Str("stage", "create").Str("offer_id", offer.OfferID).Msg("listing create failed; skipping offer")
			return
		}
		listing.ID = id

		log.Info().Int64("listing_id", id).Str("title", listing.Title).Msg("new listing recorded")
		r.notifier.NotifyNewItem(ctx, listing)

	case PriceChanged:
		if _, err := r.listings.UpdateListingPrice(ctx, existing.ID, change.NewPrice); err != nil {
			log.Error().Err(err).Str("stage", "update_price").Str("offer_id", offer.OfferID).Msg("price update failed; skipping offer")
			return
		}

		entry := storage.PriceChange{
			ListingID: existing.ID,
			OldPrice:  change.OldPrice,
			NewPrice:  change.NewPrice,
		}
		if _, err := r.history.AppendPriceChange(ctx, entry); err != nil {
			log.Error().Err(err).Str("stage", "history").Str("offer_id", offer.OfferID).Msg("history append failed; skipping notification")
			return
		}

		log.Info().
			Int64("listing_id", existing.ID).
			Str("old_price", change.OldPrice.String()).
			Str("new_price", change.NewPrice.String()).
			Msg("price change recorded")

		updated := *existing
		updated.CurrentPrice = change.NewPrice
		r.notifier.NotifyPriceChange(ctx, updated, change.OldPrice, change.NewPrice)

	case Unchanged:
	}
}

func buildListing(cfg storage.Monitor, offer fetcher.Offer) storage.Listing {
	title := offer.Title
	if title == "" {
		title = untitledListing
	}

	description := offer.OfferDescription
	if description == "" {
		description = offer.Description
	}

	return storage.Listing{
		OfferID:         offer.OfferID,
		Title:           title,
		Description:     description,
		CurrentPrice:    offer.Price,
		ImageURL:        offer.ImageURL,
		AuctionURL:      offer.AuctionURL,
		LotNumber:       offer.LotNumber,
		EndDate:         offer.EndDate,
		Visits:          offer.Visits,
		CategoryName:    offer.CategoryName,
		SubCategoryName: offer.SubCategoryName,
		Location:        offer.Location,
		Seller:          offer.Seller,
		AuctionName:     offer.AuctionName,
		Auctioneer:      offer.Auctioneer,
		MonitorID:       cfg.ID,
	}
}
