package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/config"
	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/types"
)

var (
	createBorrower    string
	createTenant      string
	createNoCommittee bool
)

var createCmd = &cobra.Command{
	Use:   "create [deal-id]",
	Short: "Create a new deal",
	Long: `Create a new deal at the start of the lifecycle. When no deal id is
given, one is generated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}

		id := ""
		if len(args) > 0 {
			id = args[0]
		} else {
			id = "deal-" + uuid.NewString()[:8]
		}

		tenant := createTenant
		if tenant == "" {
			tenant = config.LoadLocalConfigWithEnv(dtDir()).DefaultTenant
		}
		if tenant == "" {
			tenant = "default"
		}

		deal := &types.Deal{
			ID:                id,
			TenantID:          tenant,
			BorrowerName:      createBorrower,
			CommitteeRequired: config.CommitteeRequiredDefault(dtDir()) && !createNoCommittee,
		}
		if err := store.CreateDeal(cmd.Context(), deal); err != nil {
			return err
		}
		debug.LogEventWithActor("deal_created", id, resolveActor(), deal.BorrowerName)

		if jsonOutput {
			return printJSON(deal)
		}
		debug.PrintNormal("Created deal %s (tenant %s)\n", id, tenant)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createBorrower, "borrower", "", "borrower display name")
	createCmd.Flags().StringVar(&createTenant, "tenant", "", "owning tenant id")
	createCmd.Flags().BoolVar(&createNoCommittee, "no-committee", false, "deal does not require committee review")
	rootCmd.AddCommand(createCmd)
}
