package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/types"
	"github.com/crestmark/dealtrack/internal/ui"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the lifecycle stages and transition graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			out := make([]map[string]interface{}, 0, len(types.AllStages))
			for _, s := range types.AllStages {
				next := types.StageTransitions[s]
				nexts := make([]string, len(next))
				for i, n := range next {
					nexts[i] = string(n)
				}
				out = append(out, map[string]interface{}{
					"stage":    string(s),
					"label":    s.Label(),
					"terminal": s.IsTerminal(),
					"next":     nexts,
				})
			}
			return printJSON(out)
		}

		fmt.Println(ui.RenderCategory("lifecycle stages"))
		fmt.Println(ui.RenderSeparator())
		for _, s := range types.AllStages {
			next := types.StageTransitions[s]
			switch {
			case len(next) == 0:
				fmt.Printf("%s %-24s %s\n", ui.RenderSkipIcon(), s, ui.RenderMuted("terminal"))
			default:
				targets := make([]string, len(next))
				for i, n := range next {
					targets[i] = string(n)
				}
				fmt.Printf("%s %-24s %s %s\n", ui.RenderPassIcon(), s, "→",
					ui.RenderAccent(strings.Join(targets, " | ")))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}
