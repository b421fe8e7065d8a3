package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"auction-watch/internal/app"
)

var (
	previewURL      string
	previewKeywords []string
	previewMode     string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch a source URL and apply a keyword filter without saving anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		if previewURL == "" {
			return fmt.Errorf("--url is required")
		}

		opts := app.PreviewOptions{
			URL:      previewURL,
			Keywords: previewKeywords,
			Mode:     previewMode,
		}

		return getApp().Preview(cmd.Context(), opts)
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewURL, "url", "", "Source URL to fetch")
	previewCmd.Flags().StringSliceVar(&previewKeywords, "keywords", nil, "Keyword expressions, one per flag or comma separated")
	previewCmd.Flags().StringVar(&previewMode, "mode", "OR", "Keyword mode: OR or AND")
}
