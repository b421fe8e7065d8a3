package monitor

import (
	"github.com/shopspring/decimal"

	"auction-watch/internal/storage"
)

// ChangeKind classifies one incoming offer against stored state.
type ChangeKind int

const (
	// Unchanged means no writes and no notification.
	Unchanged ChangeKind = iota
	// NewItem means the offer id has never been observed.
	NewItem
	// PriceChanged means the stored listing's price moved.
	PriceChanged
)

// Change is the outcome of classifying one offer. Old/NewPrice are only set
// for PriceChanged.
type Change struct {
	Kind     ChangeKind
	OldPrice decimal.Decimal
	NewPrice decimal.Decimal
}

// Classify decides what one incoming offer means relative to the previously
// stored listing, if any. A non-positive incoming price is treated as
// missing price data and never produces a price change.
func Classify(incomingPrice decimal.Decimal, existing *storage.Listing) Change {
	if existing == nil {
		return Change{Kind: NewItem}
	}
	if incomingPrice.Sign() > 0 && !incomingPrice.Equal(existing.CurrentPrice) {
		return Change{
			Kind:     PriceChanged,
			OldPrice: existing.CurrentPrice,
			NewPrice: incomingPrice,
		}
	}
	return Change{Kind: Unchanged}
}
