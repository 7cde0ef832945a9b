package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adscout/internal/model"
)

var searchCmd = &cobra.Command{
	Use:   "search <advertiser>",
	Short: "List an advertiser's ad IDs",
	Long:  "Pages through ad library search results for the advertiser and prints the discovered ad IDs and detail URLs.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		advertiser := args[0]

		maxResults, _ := cmd.Flags().GetInt("max")
		if maxResults <= 0 {
			maxResults = cfg.Search.MaxResults
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newFetchClient()
		if err != nil {
			return err
		}

		refs, err := newSearchClient(client).CollectAdIDs(ctx, advertiser, maxResults)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			zap.L().Info("no ads found", zap.String("advertiser", advertiser))
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(refs)
		}

		formatAdRefs(os.Stdout, refs)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("max", 0, "maximum number of ads to collect (default from config)")
	searchCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func formatAdRefs(out io.Writer, refs []model.AdRef) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AD ID\tDETAIL URL")
	for _, r := range refs {
		fmt.Fprintf(w, "%s\t%s\n", r.ID, r.DetailURL)
	}
	_ = w.Flush()
}
