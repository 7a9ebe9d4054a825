package cli

import (
	"github.com/spf13/cobra"

	"operating-hours/internal/app"
)

var runOpts app.RunOptions

func addRunFlags(cmd *cobra.Command, withRange bool) {
	cmd.Flags().IntVar(&runOpts.Workers, "workers", 0, "Concurrent meters (defaults to config)")
	cmd.Flags().BoolVar(&runOpts.NoPersist, "no-persist", false, "Skip the database even when configured")
	if withRange {
		cmd.Flags().StringVar(&runOpts.From, "from", "", "First date to evaluate (YYYY-MM-DD)")
		cmd.Flags().StringVar(&runOpts.To, "to", "", "Last date to evaluate (YYYY-MM-DD, inclusive)")
	}
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Clean consumption data into per-meter artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Process(cmd.Context(), runOpts)
		return err
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate operating hours from cleaned artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Estimate(cmd.Context(), runOpts)
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clean, estimate, persist, and report in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Run(cmd.Context(), runOpts)
		return err
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Repeat the full run on the configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context(), runOpts)
	},
}

func init() {
	addRunFlags(processCmd, false)
	addRunFlags(estimateCmd, true)
	addRunFlags(runCmd, true)
	addRunFlags(watchCmd, true)
}
