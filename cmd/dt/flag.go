package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/debug"
)

var flagCmd = &cobra.Command{
	Use:   "flag <deal-id> <flag> <true|false>",
	Short: "Set a content-derived flag on a deal",
	Long: `Set one of the boolean flags owned by the surrounding pipelines:

  has_pricing_assumptions, risk_pricing_finalized,
  structural_pricing_ready, pricing_quote_locked,
  ai_pipeline_complete, spreads_complete, committee_required

The stage is never set this way; it is re-derived from these flags and
the other source records.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		value, err := strconv.ParseBool(args[2])
		if err != nil {
			return fmt.Errorf("invalid boolean %q", args[2])
		}
		if args[1] == "committee_required" {
			if err := store.SetCommitteeRequired(cmd.Context(), args[0], value); err != nil {
				return err
			}
		} else if err := store.SetDealFlag(cmd.Context(), args[0], args[1], value); err != nil {
			return err
		}
		debug.PrintNormal("Set %s on %s to %v\n", args[1], args[0], value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flagCmd)
}
