// dt is the dealtrack CLI: it tracks lending deals through the unified
// lifecycle, reports blockers, and performs guarded advancements.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crestmark/dealtrack/internal/config"
	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/lifecycle"
	"github.com/crestmark/dealtrack/internal/storage"
	"github.com/crestmark/dealtrack/internal/storage/sqlite"
	"github.com/crestmark/dealtrack/internal/telemetry"
)

var version = "0.1.0"

var (
	dbPathFlag string
	actorFlag  string
	jsonOutput bool
	verbose    bool
	quiet      bool

	store  storage.Storage
	engine *lifecycle.Engine
)

var rootCmd = &cobra.Command{
	Use:   "dt",
	Short: "Track lending deals through the lifecycle",
	Long: `dt tracks lending deals through an eleven-stage lifecycle, derives the
current stage from the underlying records, reports what is blocking each
deal, and advances deals when it is safe to do so.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug.SetVerbose(verbose)
		debug.SetQuiet(quiet)
		if err := telemetry.Init(cmd.Context(), "dt", version); err != nil {
			debug.Warnf("telemetry init failed: %s\n", debug.RedactErr(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engine != nil {
			engine.Close()
		}
		if store != nil {
			if err := store.Close(); err != nil {
				debug.Warnf("closing store: %s\n", debug.RedactErr(err))
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "path to the deals database")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "actor identity recorded on writes")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of styled text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
}

func initViper() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".dealtrack")
	viper.SetEnvPrefix("DT")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // absent config is fine; flags and env cover it
}

// dtDir returns the .dealtrack directory for the current project, creating
// nothing. Falls back to ./.dealtrack when no project root is found.
func dtDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ".dealtrack"
	}
	for {
		candidate := filepath.Join(dir, ".dealtrack")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ".dealtrack"
		}
		dir = parent
	}
}

// resolveDBPath picks the database path: flag, then DT_DB_PATH / config,
// then the project default.
func resolveDBPath() string {
	if dbPathFlag != "" {
		return dbPathFlag
	}
	if p := config.LoadLocalConfigWithEnv(dtDir()).DBPath; p != "" {
		return p
	}
	return filepath.Join(dtDir(), "deals.db")
}

// resolveActor picks the actor identity: flag, then config / DT_ACTOR /
// USER.
func resolveActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	return config.ResolveActor(dtDir())
}

// ensureStore opens the database and builds the engine on first use.
// Commands that touch no data (stages, version) never pay this cost.
func ensureStore(ctx context.Context) error {
	if store != nil {
		return nil
	}
	path := resolveDBPath()
	if _, err := os.Stat(path); err != nil && path != ":memory:" {
		return fmt.Errorf("no database at %s (run 'dt init' first): %w", path, storage.ErrNotInitialized)
	}
	s, err := sqlite.New(ctx, path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	store = telemetry.WrapStorage(s)
	engine = lifecycle.New(store)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
