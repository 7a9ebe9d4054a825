package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"operating-hours/internal/app"
)

var (
	showLimit int
	showRunID string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored meter results",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit: showLimit,
			RunID: showRunID,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of results to display")
	showCmd.Flags().StringVar(&showRunID, "run", "", "Show every result of one run id")
}
