package main

import (
	"encoding/json"
	"fmt"

	"github.com/crestmark/dealtrack/internal/types"
	"github.com/crestmark/dealtrack/internal/ui"
)

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// renderState prints a styled summary of a lifecycle state.
func renderState(state *types.LifecycleState) {
	fmt.Printf("%s %s\n", ui.RenderCategory("deal"), ui.RenderAccent(state.DealID))
	fmt.Printf("%s %s (%s)\n", ui.RenderCategory("stage"), state.Stage.Label(), state.Stage)
	if state.LastAdvancedAt != nil {
		fmt.Printf("%s %s\n", ui.RenderCategory("last advanced"),
			state.LastAdvancedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println(ui.RenderSeparator())

	if len(state.Blockers) == 0 {
		fmt.Printf("%s clear to advance\n", ui.RenderPassIcon())
		return
	}
	for _, b := range state.Blockers {
		icon := ui.RenderWarnIcon()
		if b.Code.IsInfrastructure() {
			icon = ui.RenderFailIcon()
		}
		fmt.Printf("%s %s %s\n", icon, ui.RenderMuted(string(b.Code)), b.Message)
		for k, v := range b.Evidence {
			fmt.Printf("  %s%s: %v\n", ui.TreeLast, ui.RenderMuted(k), v)
		}
	}
}

// renderAdvanceResult prints a styled summary of an advancement attempt.
func renderAdvanceResult(res *types.AdvanceResult) {
	switch {
	case res.Advanced:
		fmt.Printf("%s advanced %s %s %s\n", ui.RenderPassIcon(),
			ui.RenderMuted(string(res.From)), "→", ui.RenderAccent(string(res.To)))
	case res.OK:
		fmt.Printf("%s %s\n", ui.RenderSkipIcon(), res.Reason)
	case res.Blocked():
		fmt.Printf("%s blocked from %s %s %s\n", ui.RenderFailIcon(),
			ui.RenderMuted(string(res.From)), "→", ui.RenderAccent(string(res.To)))
		for _, b := range res.Blocking {
			fmt.Printf("  %s%s %s\n", ui.TreeLast, ui.RenderMuted(string(b.Code)), b.Message)
		}
	default:
		fmt.Printf("%s %s", ui.RenderFailIcon(), string(res.ErrorCode))
		if res.Reason != "" {
			fmt.Printf(": %s", res.Reason)
		}
		fmt.Println()
	}
}
