package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const samplePayload = `{
  "total": 2,
  "offers": [
    {
      "id": 12345,
      "lotNumber": 7,
      "price": 1000.50,
      "endDate": "2026-09-15T18:00:00",
      "visits": 42,
      "product": {
        "shortDesc": "Dell Notebook i5",
        "thumbnailUrl": "https://img.example/thumb.jpg",
        "detailedDescription": "<p>Notebook <b>Dell</b> i5 seminovo</p>",
        "subCategory": {
          "description": "Notebooks",
          "category": {"description": "Informática"}
        },
        "location": {"city": "São Paulo", "state": "SP"}
      },
      "auction": {"desc": "Leilão de TI", "auctioneer": "Fulano"},
      "seller": {"name": "Empresa X"},
      "offerDescription": {"offerDescription": "Lote com carregador"}
    },
    {
      "id": 67890,
      "product": {
        "shortDesc": "Cadeira de escritório",
        "galleryJson": [{"thumbnailUrl": "https://img.example/gal.jpg"}]
      }
    }
  ]
}`

func testOptions(baseURL string) SuperbidOptions {
	return SuperbidOptions{
		ListingBaseURL: baseURL,
		Timeout:        time.Second,
		UserAgent:      "test",
		RatePerSecond:  100,
		RateBurst:      10,
	}
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchListingsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test" {
			t.Fatalf("unexpected user agent: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	f := NewSuperbid(testOptions("https://exchange.superbid.net/leilao"), noopLogger())

	offers, err := f.FetchListings(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchListings: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}

	first := offers[0]
	if first.OfferID != "12345" {
		t.Fatalf("offer id: %q", first.OfferID)
	}
	if first.Title != "Dell Notebook i5" {
		t.Fatalf("title: %q", first.Title)
	}
	if !first.Price.Equal(decimal.NewFromFloat(1000.50)) {
		t.Fatalf("price: %s", first.Price)
	}
	if first.Description != "Notebook Dell i5 seminovo" {
		t.Fatalf("description should be stripped of markup: %q", first.Description)
	}
	if first.OfferDescription != "Lote com carregador" {
		t.Fatalf("offer description: %q", first.OfferDescription)
	}
	if first.AuctionURL != "https://exchange.superbid.net/leilao/12345" {
		t.Fatalf("auction url: %q", first.AuctionURL)
	}
	if first.Location == nil || *first.Location != "São Paulo - SP" {
		t.Fatalf("location: %v", first.Location)
	}
	if first.CategoryName == nil || *first.CategoryName != "Informática" {
		t.Fatalf("category: %v", first.CategoryName)
	}
	if first.LotNumber == nil || *first.LotNumber != 7 {
		t.Fatalf("lot number: %v", first.LotNumber)
	}

	second := offers[1]
	if !second.Price.IsZero() {
		t.Fatalf("missing price should map to zero, got %s", second.Price)
	}
	if second.ImageURL == nil || *second.ImageURL != "https://img.example/gal.jpg" {
		t.Fatalf("gallery fallback image: %v", second.ImageURL)
	}
	if second.LotNumber != nil || second.Seller != nil {
		t.Fatal("absent optional fields should stay nil")
	}
}

func TestFetchListingsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	}))
	defer srv.Close()

	f := NewSuperbid(testOptions(""), noopLogger())
	if _, err := f.FetchListings(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on HTTP 502")
	}
}

func TestFetchListingsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	f := NewSuperbid(testOptions(""), noopLogger())
	if _, err := f.FetchListings(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on malformed payload")
	}
}

func TestFetchListingsMissingURL(t *testing.T) {
	f := NewSuperbid(testOptions(""), noopLogger())
	if _, err := f.FetchListings(context.Background(), ""); err == nil {
		t.Fatal("expected error without a source url")
	}
}
