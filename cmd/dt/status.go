package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <deal-id>",
	Short: "Show the derived lifecycle state of a deal",
	Long: `Derive and print the deal's unified stage, last advancement time, and
the full blocker list. Derivation recomputes everything from the source
records; nothing is cached.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		state := engine.Derive(cmd.Context(), args[0])
		if jsonOutput {
			return printJSON(state)
		}
		renderState(state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
