package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/adscout/internal/assets"
)

var assetsCmd = &cobra.Command{
	Use:   "assets <ad-id>",
	Short: "Download assets for a stored ad",
	Long:  "Downloads the creative assets (logo, images, videos, posters) of an ad already scraped into the store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		adID := args[0]

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ad, err := st.GetAd(ctx, adID)
		if err != nil {
			return err
		}

		client, err := newFetchClient()
		if err != nil {
			return err
		}
		dl, err := assets.NewDownloader(client, assets.Options{
			Dir:         cfg.Assets.Dir,
			Concurrency: cfg.Assets.Concurrency,
		})
		if err != nil {
			return err
		}

		res, err := dl.DownloadAll(ctx, ad)
		if err != nil {
			return err
		}
		for _, a := range res.Saved {
			if err := st.RecordAsset(ctx, &a); err != nil {
				return err
			}
		}

		fmt.Printf("ad %s: %d assets saved, %d skipped, %d failed\n",
			adID, len(res.Saved), res.Skipped, res.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(assetsCmd)
}
