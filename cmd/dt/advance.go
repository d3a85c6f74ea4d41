package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/types"
)

var advanceCmd = &cobra.Command{
	Use:   "advance <deal-id>",
	Short: "Advance a deal to its next lifecycle stage",
	Long: `Attempt to move the deal to the next stage in the transition graph.
The advance is refused when any blocker gates the target stage; the
blocked attempt is still recorded in the ledger as telemetry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		res := engine.Advance(cmd.Context(), args[0], resolveActor())
		if jsonOutput {
			return printJSON(res)
		}
		renderAdvanceResult(res)
		if res.ErrorCode == types.BlockerDealNotFound {
			return fmt.Errorf("deal %s not found", args[0])
		}
		return nil
	},
}

var (
	forceReason        string
	forceClientIP      string
	forceUserAgent     string
	forceCorrelationID string
)

var forceAdvanceCmd = &cobra.Command{
	Use:   "force-advance <deal-id> <target-stage>",
	Short: "Force a deal to a target stage, bypassing blockers",
	Long: `Administrative override: move the deal to the given stage without
blocker enforcement. The ledger event is tagged as forced and carries the
required justification plus any audit metadata supplied.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		target := types.LifecycleStage(args[1])
		audit := &types.AuditMeta{
			ClientIP:      forceClientIP,
			UserAgent:     forceUserAgent,
			CorrelationID: forceCorrelationID,
		}
		res := engine.ForceAdvance(cmd.Context(), args[0], target, resolveActor(), forceReason, audit)
		if jsonOutput {
			return printJSON(res)
		}
		renderAdvanceResult(res)
		if res.ErrorCode == types.BlockerDealNotFound {
			return fmt.Errorf("deal %s not found", args[0])
		}
		if !res.OK {
			return fmt.Errorf("force advance failed: %s", res.Reason)
		}
		return nil
	},
}

func init() {
	forceAdvanceCmd.Flags().StringVar(&forceReason, "reason", "", "justification for the override (required)")
	forceAdvanceCmd.Flags().StringVar(&forceClientIP, "client-ip", "", "originating client IP for the audit record")
	forceAdvanceCmd.Flags().StringVar(&forceUserAgent, "user-agent", "", "originating user agent for the audit record")
	forceAdvanceCmd.Flags().StringVar(&forceCorrelationID, "correlation-id", "", "correlation id for the audit record")
	_ = forceAdvanceCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(forceAdvanceCmd)
}
