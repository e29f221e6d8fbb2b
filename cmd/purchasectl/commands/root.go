package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/cmd/purchasectl/ui"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/app"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/config"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

var (
	tenantID string
	verbose  bool
	noColor  bool
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:   "purchasectl",
	Short: "Ask questions about a restaurant's purchases from the terminal",
	Long: `purchasectl runs the purchasing assistant locally against the configured
datastores. Configuration comes from config.yaml and PURCHASING_* variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", os.Getenv("PURCHASING_TENANT"), "tenant (restaurant) id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON")
}

func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration, initializes logging and wires the application.
func setup(ctx context.Context, cmd *cobra.Command) (*app.App, *ui.UI, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(level, "console", "stderr"); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, ui.New(cmd.OutOrStdout(), jsonOut, noColor), nil
}

func requireTenant() error {
	if tenantID == "" {
		return fmt.Errorf("--tenant is required (or set PURCHASING_TENANT)")
	}
	return nil
}
