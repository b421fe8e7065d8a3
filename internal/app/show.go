package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// ShowOptions controls the show command output.
type ShowOptions struct {
	Limit    int
	Archived bool
}

// Show prints recently observed listings.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	listings, err := store.ListListings(ctx, opts.Archived)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Fprintln(os.Stdout, "no listings found")
		return nil
	}
	if opts.Limit > 0 && len(listings) > opts.Limit {
		listings = listings[:opts.Limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tOffer\tTitle\tPrice\tLot\tUpdated (UTC)")

	for _, listing := range listings {
		lot := ""
		if listing.LotNumber != nil {
			lot = fmt.Sprintf("%d", *listing.LotNumber)
		}
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%s\n",
			listing.ID,
			listing.OfferID,
			sanitizeInline(listing.Title),
			listing.CurrentPrice.StringFixed(2),
			lot,
			listing.UpdatedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
