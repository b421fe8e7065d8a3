package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"auction-watch/internal/keyword"
)

// PreviewOptions controls a dry-run fetch from the terminal.
type PreviewOptions struct {
	URL      string
	Keywords []string
	Mode     string
}

// Preview fetches the given source URL, applies the keyword filter, and
// prints the matching offers without persisting or notifying anything.
func (a *App) Preview(ctx context.Context, opts PreviewOptions) error {
	source := a.newFetcher()

	offers, err := source.FetchListings(ctx, opts.URL)
	if err != nil {
		return fmt.Errorf("fetch offers: %w", err)
	}

	mode := keyword.ParseMode(opts.Mode)
	matched := 0

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Offer\tTitle\tPrice\tLot")

	for _, offer := range offers {
		searchText := keyword.SearchText(offer.Title, offer.Description, offer.OfferDescription)
		if !keyword.Matches(searchText, opts.Keywords, mode) {
			continue
		}
		matched++

		lot := ""
		if offer.LotNumber != nil {
			lot = fmt.Sprintf("%d", *offer.LotNumber)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			offer.OfferID,
			sanitizeInline(offer.Title),
			offer.Price.StringFixed(2),
			lot,
		)
	}

	writer.Flush()
	fmt.Fprintf(os.Stdout, "\n%d of %d offers matched\n", matched, len(offers))
	return nil
}
