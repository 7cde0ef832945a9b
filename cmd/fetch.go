package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adscout/internal/fetch"
	"github.com/sells-group/adscout/internal/render"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a page with a randomized browser identity",
	Long:  "Fetches the URL with browser headers and a random User-Agent, retrying transient failures, and writes the HTML to stdout or a file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rawURL := args[0]

		outPath, _ := cmd.Flags().GetString("out")
		useRender, _ := cmd.Flags().GetBool("render")

		var body []byte
		if useRender {
			r := render.New(render.Options{
				Headless:  cfg.Render.Headless,
				Timeout:   time.Duration(cfg.Render.TimeoutSecs) * time.Second,
				IdleAfter: time.Duration(cfg.Render.IdleMillis) * time.Millisecond,
			})
			html, err := r.Fetch(ctx, rawURL)
			if err != nil {
				return err
			}
			body = []byte(html)
		} else {
			client, err := newFetchClient()
			if err != nil {
				return err
			}

			resp, err := client.Fetch(ctx, rawURL)
			if err != nil {
				return err
			}
			if blocked, bt := fetch.DetectBlock(resp.StatusCode, resp.Header, resp.Body); blocked {
				zap.L().Warn("page looks blocked, content may be incomplete",
					zap.String("url", rawURL),
					zap.String("block", string(bt)))
			}
			if resp.StatusCode != 200 {
				return eris.Errorf("fetch: %s returned %d", rawURL, resp.StatusCode)
			}

			zap.L().Info("page fetched",
				zap.String("url", resp.FinalURL),
				zap.Int("bytes", len(resp.Body)),
				zap.String("user_agent", resp.UserAgent))
			body = resp.Body
		}

		if outPath != "" {
			return eris.Wrapf(os.WriteFile(outPath, body, 0o644), "write %s", outPath)
		}
		_, err := os.Stdout.Write(body)
		return eris.Wrap(err, "write stdout")
	},
}

func init() {
	fetchCmd.Flags().StringP("out", "o", "", "write HTML to a file instead of stdout")
	fetchCmd.Flags().Bool("render", false, "use the headless browser instead of the HTTP client")
	rootCmd.AddCommand(fetchCmd)
}
