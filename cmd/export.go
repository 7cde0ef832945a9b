package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adscout/internal/export"
	"github.com/sells-group/adscout/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <output-path>",
	Short: "Export stored ads to JSON, CSV, or XLSX",
	Long:  "Writes ads from the store to a file. The format is inferred from the extension unless --format is given.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		runID, _ := cmd.Flags().GetString("run-id")
		advertiser, _ := cmd.Flags().GetString("advertiser")
		formatFlag, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ads, err := st.ListAds(ctx, store.AdFilter{
			RunID:      runID,
			Advertiser: advertiser,
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		if len(ads) == 0 {
			return eris.New("no ads matched the filter")
		}

		format := export.FormatFromPath(path)
		if formatFlag != "" {
			format = export.Format(formatFlag)
		}
		return export.Ads(path, format, ads)
	},
}

func init() {
	exportCmd.Flags().String("run-id", "", "export only ads from this run")
	exportCmd.Flags().String("advertiser", "", "export only ads for this advertiser")
	exportCmd.Flags().String("format", "", "output format: json, csv, or xlsx")
	exportCmd.Flags().Int("limit", 1000, "maximum number of ads to export")
	rootCmd.AddCommand(exportCmd)
}
