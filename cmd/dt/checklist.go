package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/types"
	"github.com/crestmark/dealtrack/internal/ui"
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Manage a deal's document checklist",
}

// parseChecklistSpec parses one checklist item spec of the form
// key[:year[:statement-kind]]. A leading "~" marks the item optional.
func parseChecklistSpec(spec string) (*types.ChecklistItem, error) {
	required := true
	if strings.HasPrefix(spec, "~") {
		required = false
		spec = spec[1:]
	}
	parts := strings.SplitN(spec, ":", 3)
	if parts[0] == "" {
		return nil, fmt.Errorf("empty checklist item key in %q", spec)
	}
	item := &types.ChecklistItem{
		Key:      parts[0],
		Required: required,
	}
	if len(parts) > 1 && parts[1] != "" {
		year, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid year in %q: %w", spec, err)
		}
		item.Year = year
	}
	if len(parts) > 2 {
		item.StatementKind = parts[2]
	}
	return item, nil
}

var checklistSeedCmd = &cobra.Command{
	Use:   "seed <deal-id> <item>...",
	Short: "Seed the document checklist for a deal",
	Long: `Seed the checklist with one or more items. Each item is
key[:year[:statement-kind]]; prefix with "~" to mark it optional.

  dt checklist seed deal-1 tax_return:2023:tax_return bank_stmt ~site_photos`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		items := make([]*types.ChecklistItem, 0, len(args)-1)
		for _, spec := range args[1:] {
			item, err := parseChecklistSpec(spec)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		if err := store.SeedChecklist(cmd.Context(), args[0], items); err != nil {
			return err
		}
		debug.LogEventWithActor("checklist_seeded", args[0], resolveActor(),
			fmt.Sprintf("%d items", len(items)))
		debug.PrintNormal("Seeded %d checklist item(s) on %s\n", len(items), args[0])
		return nil
	},
}

var checklistSetCmd = &cobra.Command{
	Use:   "set <deal-id> <key> <status>",
	Short: "Set the status of a checklist item",
	Long:  `Status is one of: pending, received, needs_review, satisfied, waived.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		status := types.ChecklistStatus(args[2])
		if err := store.SetChecklistItemStatus(cmd.Context(), args[0], args[1], status); err != nil {
			return err
		}
		debug.PrintNormal("Set %s/%s to %s\n", args[0], args[1], status)
		return nil
	},
}

var checklistShowCmd = &cobra.Command{
	Use:   "show <deal-id>",
	Short: "Show the checklist for a deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		items, err := store.GetChecklistItems(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(items)
		}
		if len(items) == 0 {
			fmt.Println(ui.RenderMuted("checklist not seeded"))
			return nil
		}
		for _, item := range items {
			icon := ui.RenderWarnIcon()
			if item.Status.Satisfies() {
				icon = ui.RenderPassIcon()
			} else if !item.Required {
				icon = ui.RenderSkipIcon()
			}
			line := fmt.Sprintf("%s %-28s %s", icon, item.Key, item.Status)
			if item.Year != 0 {
				line += fmt.Sprintf("  %s", ui.RenderMuted(strconv.Itoa(item.Year)))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	checklistCmd.AddCommand(checklistSeedCmd)
	checklistCmd.AddCommand(checklistSetCmd)
	checklistCmd.AddCommand(checklistShowCmd)
	rootCmd.AddCommand(checklistCmd)
}
