package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"auction-watch/internal/app"
)

var (
	showLimit    int
	showArchived bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently observed listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:    showLimit,
			Archived: showArchived,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of listings to display")
	showCmd.Flags().BoolVar(&showArchived, "archived", false, "Show archived listings instead of active ones")
}
