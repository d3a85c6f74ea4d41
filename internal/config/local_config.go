package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig represents the subset of config.yaml fields that need to be
// read directly from the file rather than through the viper singleton. This
// is needed when the CWD has changed since config initialization, or when
// checking config before viper is initialized.
type LocalConfig struct {
	DBPath            string `yaml:"db-path"`
	Actor             string `yaml:"actor"`
	Environment       string `yaml:"environment"`
	CommitteeRequired *bool  `yaml:"committee-required"`
	DefaultTenant     string `yaml:"default-tenant"`
}

// LoadLocalConfig reads and parses config.yaml directly from the specified
// dealtrack directory, bypassing the viper singleton.
//
// Returns an empty LocalConfig (not nil) if the file doesn't exist or can't
// be parsed.
func LoadLocalConfig(dtDir string) *LocalConfig {
	configPath := filepath.Join(dtDir, "config.yaml")
	data, err := os.ReadFile(configPath) // #nosec G304 - config file path from dtDir
	if err != nil {
		return &LocalConfig{}
	}

	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}

	return &cfg
}

// LoadLocalConfigWithEnv reads config.yaml and applies environment variable
// overrides. Environment variables take precedence over config file values.
//
// Supported environment variables:
//   - DT_DB_PATH: overrides db-path
//   - DT_ACTOR: overrides actor
//   - DT_ENV: overrides environment
func LoadLocalConfigWithEnv(dtDir string) *LocalConfig {
	cfg := LoadLocalConfig(dtDir)

	if envPath := os.Getenv("DT_DB_PATH"); envPath != "" {
		cfg.DBPath = envPath
	}
	if envActor := os.Getenv("DT_ACTOR"); envActor != "" {
		cfg.Actor = envActor
	}
	if envEnv := os.Getenv("DT_ENV"); envEnv != "" {
		cfg.Environment = envEnv
	}

	return cfg
}

// ResolveActor returns the effective actor identity: config, then DT_ACTOR,
// then USER, then "unknown".
func ResolveActor(dtDir string) string {
	if actor := LoadLocalConfigWithEnv(dtDir).Actor; actor != "" {
		return actor
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// CommitteeRequiredDefault reads the default committee-required setting for
// new deals. Unset means true; committee review is opt-out, not opt-in.
func CommitteeRequiredDefault(dtDir string) bool {
	cfg := LoadLocalConfig(dtDir)
	if cfg.CommitteeRequired == nil {
		return true
	}
	return *cfg.CommitteeRequired
}
