package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/indexer"
)

var backfillBatch int

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed products and suppliers that have no embedding yet",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().IntVarP(&backfillBatch, "batch", "b", indexer.DefaultBatchSize, "entities embedded per call")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	if err := requireTenant(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	a, out, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out.Info("Backfilling embeddings for %s", tenantID)
	report, err := a.Indexer.Backfill(ctx, tenantID, backfillBatch)
	if err != nil {
		return err
	}
	return out.Backfill(report)
}
