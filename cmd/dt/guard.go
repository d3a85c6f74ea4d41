package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/lifecycle"
	"github.com/crestmark/dealtrack/internal/types"
	"github.com/crestmark/dealtrack/internal/ui"
)

// pageGuards maps page names to their guard presets.
var pageGuards = map[string]func(*types.LifecycleState) lifecycle.GuardResult{
	"underwrite": lifecycle.GuardUnderwritePage,
	"committee":  lifecycle.GuardCommitteePage,
	"decision":   lifecycle.GuardDecisionPage,
	"closing":    lifecycle.GuardClosingPage,
}

func pageNames() []string {
	names := make([]string, 0, len(pageGuards))
	for name := range pageGuards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var guardCmd = &cobra.Command{
	Use:   "guard <deal-id> <page>",
	Short: "Check whether a deal may access a page",
	Long: `Evaluate the guard preset for a page against the deal's derived state.
Pages: ` + strings.Join(pageNames(), ", ") + `.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		guard, ok := pageGuards[args[1]]
		if !ok {
			return fmt.Errorf("unknown page %q (pages: %s)", args[1], strings.Join(pageNames(), ", "))
		}
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}

		state := engine.Derive(cmd.Context(), args[0])
		res := guard(state)
		if jsonOutput {
			return printJSON(res)
		}
		if res.OK {
			fmt.Printf("%s %s page allowed at stage %s\n",
				ui.RenderPassIcon(), args[1], ui.RenderAccent(string(res.Stage)))
			return nil
		}
		fmt.Printf("%s %s page denied at stage %s\n",
			ui.RenderFailIcon(), args[1], ui.RenderAccent(string(res.Stage)))
		fmt.Printf("  %s%s\n", ui.TreeLast, res.Explanation())
		if res.Redirect != "" {
			fmt.Printf("  %sredirect: %s\n", ui.TreeLast, ui.RenderMuted(res.Redirect))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(guardCmd)
}
