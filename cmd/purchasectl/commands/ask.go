package commands

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var askTimeout time.Duration

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with the full hybrid resolution",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "), false)
	},
}

var sqlCmd = &cobra.Command{
	Use:   "sql [question]",
	Short: "Answer a question through SQL only, recovering on failure",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "), true)
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, sqlCmd} {
		c.Flags().DurationVar(&askTimeout, "timeout", 60*time.Second, "overall timeout")
		rootCmd.AddCommand(c)
	}
}

func runAsk(cmd *cobra.Command, question string, sqlOnly bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	a, out, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// The assistant answers malformed tenants itself.
	if sqlOnly {
		return out.Answer(a.Assistant.AskSQL(ctx, question, tenantID))
	}
	return out.Answer(a.Assistant.Ask(ctx, question, tenantID))
}
