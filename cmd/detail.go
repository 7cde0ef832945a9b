package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adscout/internal/adlib"
)

var detailCmd = &cobra.Command{
	Use:   "detail <ad-id-or-url>",
	Short: "Scrape one ad's detail page",
	Long:  "Fetches the ad's detail page, extracts the creative (text, CTAs, assets), and prints it as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adID := args[0]
		if id, ok := adlib.AdIDFromURL(adID); ok {
			adID = id
		}
		if adID == "" {
			return eris.New("an ad ID or detail URL is required")
		}

		client, err := newFetchClient()
		if err != nil {
			return err
		}

		ad, err := adlib.NewDetailClient(client, cfg.Fetch.BaseURL).Scrape(ctx, adID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(ad)
	},
}

func init() {
	rootCmd.AddCommand(detailCmd)
}
