package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/storage/sqlite"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a dealtrack project in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ".dealtrack"
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}

		configPath := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			content := "# dealtrack project configuration\n" +
				"# db-path: .dealtrack/deals.db\n" +
				"# actor: jane\n" +
				"# environment: development\n" +
				"# committee-required: true\n"
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", configPath, err)
			}
		}

		path := resolveDBPath()
		s, err := sqlite.New(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("creating database: %w", err)
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}

		debug.PrintNormal("Initialized dealtrack project (database: %s)\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
