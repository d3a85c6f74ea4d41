package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/types"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record source events that feed lifecycle derivation",
	Long: `Record the source-of-truth facts the derivation engine reads:
financial snapshots, committee decisions, packet generation, loan
requests, and attestations. None of these mutate the stage directly;
the stage is always re-derived from them.`,
}

var snapshotPayload string

var recordSnapshotCmd = &cobra.Command{
	Use:   "snapshot <deal-id>",
	Short: "Record a financial snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		if err := store.RecordSnapshot(cmd.Context(), args[0], snapshotPayload); err != nil {
			return err
		}
		debug.PrintNormal("Recorded financial snapshot for %s\n", args[0])
		return nil
	},
}

var decisionBy string

var recordDecisionCmd = &cobra.Command{
	Use:   "decision <deal-id> <approved|declined|tabled>",
	Short: "Record a committee decision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		by := decisionBy
		if by == "" {
			by = resolveActor()
		}
		decision := &types.Decision{
			DealID:    args[0],
			Outcome:   types.DecisionOutcome(args[1]),
			DecidedBy: by,
		}
		if err := store.RecordDecision(cmd.Context(), decision); err != nil {
			return err
		}
		debug.LogEventWithActor("decision_recorded", args[0], by, string(decision.Outcome))
		debug.PrintNormal("Recorded %s decision #%d for %s\n", decision.Outcome, decision.ID, args[0])
		return nil
	},
}

var recordPacketCmd = &cobra.Command{
	Use:   "packet <deal-id>",
	Short: "Record that the committee packet was generated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		if err := store.RecordPacketGenerated(cmd.Context(), args[0], resolveActor()); err != nil {
			return err
		}
		debug.PrintNormal("Recorded committee packet for %s\n", args[0])
		return nil
	},
}

var loanRequestComplete bool

var recordLoanRequestCmd = &cobra.Command{
	Use:   "loan-request <deal-id>",
	Short: "Record a submitted loan request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		req := &types.LoanRequest{
			DealID:   args[0],
			Complete: loanRequestComplete,
		}
		if err := store.CreateLoanRequest(cmd.Context(), req); err != nil {
			return err
		}
		debug.PrintNormal("Recorded loan request #%d for %s (complete: %v)\n",
			req.ID, args[0], req.Complete)
		return nil
	},
}

var recordLoanRequestDoneCmd = &cobra.Command{
	Use:   "loan-request-complete <request-id>",
	Short: "Mark a loan request complete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid request id %q: %w", args[0], err)
		}
		if err := store.SetLoanRequestComplete(cmd.Context(), id); err != nil {
			return err
		}
		debug.PrintNormal("Marked loan request #%d complete\n", id)
		return nil
	},
}

var (
	attestDecisionID  int64
	attestUnsatisfied bool
)

var recordAttestationCmd = &cobra.Command{
	Use:   "attestation <deal-id>",
	Short: "Record attestation status for a decision",
	Long: `Record whether the post-decision attestation is satisfied. When
--decision is omitted, the deal's latest decision is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		decisionID := attestDecisionID
		if decisionID == 0 {
			decision, err := store.GetLatestDecision(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("deal %s has no decision to attest", args[0])
				}
				return err
			}
			decisionID = decision.ID
		}
		satisfied := !attestUnsatisfied
		if err := store.SetAttestation(cmd.Context(), args[0], decisionID, satisfied); err != nil {
			return err
		}
		debug.PrintNormal("Recorded attestation for %s decision #%d (satisfied: %v)\n",
			args[0], decisionID, satisfied)
		return nil
	},
}

func init() {
	recordSnapshotCmd.Flags().StringVar(&snapshotPayload, "payload", "", "snapshot payload JSON")
	recordDecisionCmd.Flags().StringVar(&decisionBy, "by", "", "deciding member (defaults to actor)")
	recordLoanRequestCmd.Flags().BoolVar(&loanRequestComplete, "complete", false, "mark the request complete on creation")
	recordAttestationCmd.Flags().Int64Var(&attestDecisionID, "decision", 0, "decision id (defaults to latest)")
	recordAttestationCmd.Flags().BoolVar(&attestUnsatisfied, "unsatisfied", false, "record the attestation as unsatisfied")

	recordCmd.AddCommand(recordSnapshotCmd)
	recordCmd.AddCommand(recordDecisionCmd)
	recordCmd.AddCommand(recordPacketCmd)
	recordCmd.AddCommand(recordLoanRequestCmd)
	recordCmd.AddCommand(recordLoanRequestDoneCmd)
	recordCmd.AddCommand(recordAttestationCmd)
	rootCmd.AddCommand(recordCmd)
}
