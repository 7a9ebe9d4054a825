package cli

import (
	"github.com/spf13/cobra"

	"operating-hours/internal/app"
)

var exportOpts app.ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a cleaned series as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), exportOpts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOpts.File, "file", "", "Cleaned artifact <nmi>_<STATE>.csv")
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportOpts.MaxPoints, "max-points", 0, "Maximum data points to export")
}
