package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-watch/internal/fetcher"
	"auction-watch/internal/storage"
)

type fakeFetcher struct {
	offers []fetcher.Offer
	err    error
}

func (f *fakeFetcher) FetchListings(ctx context.Context, url string) ([]fetcher.Offer, error) {
	return f.offers, f.err
}

// memListings implements the three ListingStore methods the runner uses;
// the embedded interface panics on anything else.
type memListings struct {
	storage.ListingStore
	byOffer   map[string]storage.Listing
	nextID    int64
	createErr error
	updateErr error
}

func newMemListings() *memListings {
	return &memListings{byOffer: make(map[string]storage.Listing), nextID: 1}
}

func (m *memListings) FindListingByOfferID(ctx context.Context, offerID string) (*storage.Listing, error) {
	l, ok := m.byOffer[offerID]
	if !ok {
		return nil, nil
	}
	out := l
	return &out, nil
}

func (m *memListings) CreateListing(ctx context.Context, l storage.Listing) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	l.ID = m.nextID
	m.nextID++
	m.byOffer[l.OfferID] = l
	return l.ID, nil
}

func (m *memListings) UpdateListingPrice(ctx context.Context, id int64, price decimal.Decimal) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	for key, l := range m.byOffer {
		if l.ID == id {
			l.CurrentPrice = price
			m.byOffer[key] = l
			return true, nil
		}
	}
	return false, nil
}

type memHistory struct {
	entries []storage.PriceChange
	err     error
}

func (m *memHistory) AppendPriceChange(ctx context.Context, c storage.PriceChange) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.entries = append(m.entries, c)
	return int64(len(m.entries)), nil
}

func (m *memHistory) ListPriceChanges(ctx context.Context, listingID int64) ([]storage.PriceChange, error) {
	return m.entries, nil
}

type priceChangeCall struct {
	listing  storage.Listing
	oldPrice decimal.Decimal
	newPrice decimal.Decimal
}

type fakeNotifier struct {
	newItems []storage.Listing
	changes  []priceChangeCall
}

func (f *fakeNotifier) NotifyNewItem(ctx context.Context, l storage.Listing) {
	f.newItems = append(f.newItems, l)
}

func (f *fakeNotifier) NotifyPriceChange(ctx context.Context, l storage.Listing, oldPrice, newPrice decimal.Decimal) {
	f.changes = append(f.changes, priceChangeCall{listing: l, oldPrice: oldPrice, newPrice: newPrice})
}

func dellOffer(price float64) fetcher.Offer {
	return fetcher.Offer{
		OfferID:    "555",
		Title:      "Dell Notebook i5",
		Price:      decimal.NewFromFloat(price),
		AuctionURL: "https://exchange.superbid.net/leilao/555",
	}
}

func dellMonitor() storage.Monitor {
	return storage.Monitor{
		ID:              1,
		Name:            "notebooks",
		URL:             "https://api.example/offers",
		Keywords:        []string{"notebook+dell"},
		KeywordMode:     "OR",
		IntervalMinutes: 5,
		Active:          true,
	}
}

func newTestRunner(f *fakeFetcher, listings *memListings, history *memHistory, notifier *fakeNotifier) *Runner {
	return NewRunner(f, listings, history, notifier, zerolog.Nop())
}

func TestRunNewItemThenPriceChange(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{offers: []fetcher.Offer{dellOffer(1000)}}
	listings := newMemListings()
	history := &memHistory{}
	notifier := &fakeNotifier{}
	r := newTestRunner(f, listings, history, notifier)

	r.Run(ctx, dellMonitor())

	require.Len(t, notifier.newItems, 1)
	assert.Equal(t, int64(1), notifier.newItems[0].ID, "notification carries the assigned id")
	assert.Equal(t, "Dell Notebook i5", notifier.newItems[0].Title)

	stored := listings.byOffer["555"]
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(1000)))
	assert.Empty(t, history.entries)

	// Next cycle: same offer id, new price.
	f.offers = []fetcher.Offer{dellOffer(1200)}
	r.Run(ctx, dellMonitor())

	require.Len(t, history.entries, 1)
	assert.True(t, history.entries[0].OldPrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, history.entries[0].NewPrice.Equal(decimal.NewFromInt(1200)))

	require.Len(t, notifier.changes, 1)
	assert.True(t, notifier.changes[0].oldPrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, notifier.changes[0].newPrice.Equal(decimal.NewFromInt(1200)))
	assert.True(t, notifier.changes[0].listing.CurrentPrice.Equal(decimal.NewFromInt(1200)))

	stored = listings.byOffer["555"]
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(1200)))
	assert.Len(t, notifier.newItems, 1, "no second new-item notification")
}

func TestRunIdempotentWithoutPriceChange(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{offers: []fetcher.Offer{dellOffer(1000)}}
	listings := newMemListings()
	history := &memHistory{}
	notifier := &fakeNotifier{}
	r := newTestRunner(f, listings, history, notifier)

	r.Run(ctx, dellMonitor())
	r.Run(ctx, dellMonitor())

	assert.Len(t, notifier.newItems, 1)
	assert.Empty(t, notifier.changes)
	assert.Empty(t, history.entries)
}

func TestRunKeywordFilterDropsNonMatches(t *testing.T) {
	ctx := context.Background()
	other := fetcher.Offer{OfferID: "777", Title: "HP Desktop", Price: decimal.NewFromInt(500)}
	f := &fakeFetcher{offers: []fetcher.Offer{other, dellOffer(1000)}}
	listings := newMemListings()
	notifier := &fakeNotifier{}
	r := newTestRunner(f, listings, &memHistory{}, notifier)

	r.Run(ctx, dellMonitor())

	require.Len(t, notifier.newItems, 1)
	assert.Equal(t, "555", notifier.newItems[0].OfferID)
	_, seen := listings.byOffer["777"]
	assert.False(t, seen, "non-matching offer must not be persisted")
}

func TestRunFetchFailureProducesZeroEffects(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{err: errors.New("network down")}
	listings := newMemListings()
	history := &memHistory{}
	notifier := &fakeNotifier{}
	r := newTestRunner(f, listings, history, notifier)

	r.Run(ctx, dellMonitor())

	assert.Empty(t, listings.byOffer)
	assert.Empty(t, history.entries)
	assert.Empty(t, notifier.newItems)
}

func TestRunStorageFailureSkipsNotification(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{offers: []fetcher.Offer{dellOffer(1000)}}
	listings := newMemListings()
	listings.createErr = errors.New("db down")
	notifier := &fakeNotifier{}
	r := newTestRunner(f, listings, &memHistory{}, notifier)

	r.Run(ctx, dellMonitor())

	assert.Empty(t, notifier.newItems)
}

func TestRunHistoryFailureSkipsNotification(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{offers: []fetcher.Offer{dellOffer(1000)}}
	listings := newMemListings()
	history := &memHistory{}
	notifier := &fakeNotifier{}
	r := newTestRunner(f, listings, history, notifier)

	r.Run(ctx, dellMonitor())

	history.err = errors.New("db down")
	f.offers = []fetcher.Offer{dellOffer(1200)}
	r.Run(ctx, dellMonitor())

	assert.Empty(t, notifier.changes, "price-change notification skipped when history append fails")
	stored := listings.byOffer["555"]
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(1200)), "price write itself succeeded")
}

func TestBuildListingDefaults(t *testing.T) {
	offer := fetcher.Offer{OfferID: "9", Description: "detailed text"}
	listing := buildListing(dellMonitor(), offer)

	assert.Equal(t, untitledListing, listing.Title)
	assert.Equal(t, "detailed text", listing.Description, "falls back to the product description")
	assert.Equal(t, int64(1), listing.MonitorID)

	offer.OfferDescription = "offer text"
	listing = buildListing(dellMonitor(), offer)
	assert.Equal(t, "offer text", listing.Description, "offer description wins when present")
}
