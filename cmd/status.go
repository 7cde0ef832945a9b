package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adscout/internal/model"
	"github.com/sells-group/adscout/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent scrape runs",
	Long:  "Displays recent runs with their status, ad counts, and asset counts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		advertiser, _ := cmd.Flags().GetString("advertiser")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, store.RunFilter{Advertiser: advertiser, Limit: limit})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			zap.L().Info("no runs found")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("advertiser", "", "filter by advertiser")
	statusCmd.Flags().Int("limit", 20, "maximum runs to show")
	rootCmd.AddCommand(statusCmd)
}

func formatRuns(out io.Writer, runs []model.ScrapeRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tADVERTISER\tSTATUS\tADS\tASSETS\tSTARTED\tERROR")
	for _, r := range runs {
		errMsg := r.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Advertiser, r.Status, r.AdsFound, r.AssetsSaved,
			r.StartedAt.Format("2006-01-02 15:04"), errMsg)
	}
	_ = w.Flush()
}
