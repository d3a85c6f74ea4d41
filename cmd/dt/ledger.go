package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/ui"
)

var ledgerLimit int

var ledgerCmd = &cobra.Command{
	Use:   "ledger <deal-id>",
	Short: "Show the append-only event ledger for a deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		events, err := store.GetLedgerEvents(cmd.Context(), args[0], ledgerLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println(ui.RenderMuted("no ledger events"))
			return nil
		}
		for _, ev := range events {
			line := fmt.Sprintf("%s  %-26s %s",
				ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Kind, ev.Actor)
			if ev.FromStage != "" || ev.ToStage != "" {
				line += fmt.Sprintf("  %s → %s", ev.FromStage, ev.ToStage)
			}
			if ev.Forced {
				line += "  " + ui.RenderWarn("FORCED")
			}
			fmt.Println(line)
			if ev.Reason != "" {
				fmt.Printf("  %s%s\n", ui.TreeLast, ui.RenderMuted(ev.Reason))
			}
			if ev.Audit != nil && ev.Audit.CorrelationID != "" {
				fmt.Printf("  %scorrelation: %s\n", ui.TreeLast, ui.RenderMuted(ev.Audit.CorrelationID))
			}
		}
		return nil
	},
}

func init() {
	ledgerCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "maximum events to show (0 = all)")
	rootCmd.AddCommand(ledgerCmd)
}
