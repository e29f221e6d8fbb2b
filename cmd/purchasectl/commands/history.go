package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	showReport   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List a tenant's recent resolutions",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of resolutions")
	historyCmd.Flags().BoolVar(&showReport, "report", false, "print the quality tier distribution instead")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireTenant(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	a, out, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if showReport {
		report, err := a.Assistant.Report(ctx, tenantID, historyLimit)
		if err != nil {
			return err
		}
		return out.Report(report)
	}

	records, err := a.Assistant.History(ctx, tenantID, historyLimit)
	if err != nil {
		return err
	}
	return out.History(records)
}
