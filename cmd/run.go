package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/adscout/internal/adlib"
	"github.com/sells-group/adscout/internal/assets"
	"github.com/sells-group/adscout/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <advertiser>",
	Short: "Run a full scrape for an advertiser",
	Long:  "Collects the advertiser's ad IDs, scrapes every detail page, stores the creatives, and downloads assets unless disabled.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		advertiser := args[0]

		maxResults, _ := cmd.Flags().GetInt("max")
		if maxResults <= 0 {
			maxResults = cfg.Search.MaxResults
		}
		noAssets, _ := cmd.Flags().GetBool("no-assets")
		delaySecs, _ := cmd.Flags().GetInt("delay")

		client, err := newFetchClient()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var dl *assets.Downloader
		if !noAssets {
			dl, err = assets.NewDownloader(client, assets.Options{
				Dir:         cfg.Assets.Dir,
				Concurrency: cfg.Assets.Concurrency,
			})
			if err != nil {
				return err
			}
		}

		p := pipeline.New(
			newSearchClient(client),
			adlib.NewDetailClient(client, cfg.Fetch.BaseURL),
			dl,
			st,
			pipeline.Options{
				MaxResults:     maxResults,
				DetailDelay:    time.Duration(delaySecs) * time.Second,
				DownloadAssets: !noAssets,
			},
		)

		run, err := p.Run(ctx, advertiser)
		if err != nil {
			return err
		}

		fmt.Printf("run %s completed: %d ads, %d assets\n", run.ID, run.AdsFound, run.AssetsSaved)
		return nil
	},
}

func init() {
	runCmd.Flags().Int("max", 0, "maximum number of ads to scrape (default from config)")
	runCmd.Flags().Bool("no-assets", false, "skip downloading creative assets")
	runCmd.Flags().Int("delay", 2, "seconds to wait between detail pages")
	rootCmd.AddCommand(runCmd)
}
