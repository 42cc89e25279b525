package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"loans/internal/config"
	"loans/internal/core"
)

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var (
		due, paid                string
		graceDays, thresholdDays int
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the repayment status for a due date and optional payment date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				LoadEnvFile(opts.envFile)
			}
			cfg := config.Load()
			if !cmd.Flags().Changed("grace-days") {
				graceDays = cfg.GraceDays
			}
			if !cmd.Flags().Changed("threshold-days") {
				thresholdDays = cfg.DefaultThresholdDays
			}
			if graceDays < 0 || thresholdDays < graceDays {
				return core.NewError(core.KindInvalidInput,
					"windows must satisfy 0 <= grace (%d) <= threshold (%d)", graceDays, thresholdDays)
			}

			dueDate, err := core.ParseDate(due)
			if err != nil {
				return core.NewError(core.KindInvalidDateFormat, "invalid due date %q, expected YYYY-MM-DD", due)
			}
			var paidDate *core.Date
			if paid != "" {
				d, err := core.ParseDate(paid)
				if err != nil {
					return core.NewError(core.KindInvalidDateFormat, "invalid payment date %q, expected YYYY-MM-DD", paid)
				}
				paidDate = &d
			}

			status, color := core.NewClassifier(graceDays, thresholdDays).Classify(dueDate, paidDate)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", status, color)
			return err
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("due")
	cmd.Flags().StringVar(&paid, "paid", "", "payment date, YYYY-MM-DD; omit for an unpaid loan")
	cmd.Flags().IntVar(&graceDays, "grace-days", core.DefaultGraceDays, "largest delay still on time (default GRACE_DAYS)")
	cmd.Flags().IntVar(&thresholdDays, "threshold-days", core.DefaultThresholdDays, "largest delay still late (default DEFAULT_THRESHOLD_DAYS)")

	return cmd
}
