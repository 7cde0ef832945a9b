package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/adscout/internal/adlib"
	"github.com/sells-group/adscout/internal/render"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Bootstrap a session cookie file with the headless browser",
	Long:  "Opens the ad library in a headless browser, lets the portal set its cookies, and saves them for the HTTP client to reuse. Run once, or when the session expires.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		advertiser, _ := cmd.Flags().GetString("advertiser")
		outPath, _ := cmd.Flags().GetString("out")
		settleSecs, _ := cmd.Flags().GetInt("settle")
		if outPath == "" {
			outPath = cfg.Fetch.CookiesFile
		}

		r := render.New(render.Options{
			Headless:  cfg.Render.Headless,
			Timeout:   time.Duration(cfg.Render.TimeoutSecs) * time.Second,
			IdleAfter: time.Duration(cfg.Render.IdleMillis) * time.Millisecond,
		})

		url := adlib.SearchURL(cfg.Fetch.BaseURL, advertiser, 0)
		return r.ExportCookies(ctx, url, outPath, time.Duration(settleSecs)*time.Second)
	},
}

func init() {
	cookiesCmd.Flags().String("advertiser", "Nike", "advertiser used for the warmup search page")
	cookiesCmd.Flags().String("out", "", "cookie file path (default from config)")
	cookiesCmd.Flags().Int("settle", 8, "seconds to wait for the portal to set cookies")
	rootCmd.AddCommand(cookiesCmd)
}
