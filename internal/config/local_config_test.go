package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return dir
}

func TestLoadLocalConfig(t *testing.T) {
	tests := []struct {
		name       string
		configYAML string
		wantDBPath string
		wantActor  string
		wantTenant string
	}{
		{
			name:       "empty config",
			configYAML: "",
		},
		{
			name:       "all fields",
			configYAML: "db-path: /tmp/deals.db\nactor: jordan\ndefault-tenant: crestmark\n",
			wantDBPath: "/tmp/deals.db",
			wantActor:  "jordan",
			wantTenant: "crestmark",
		},
		{
			name:       "commented fields do not match",
			configYAML: "# actor: ghost\ndb-path: deals.db\n",
			wantDBPath: "deals.db",
		},
		{
			name:       "quoted values",
			configYAML: `actor: "jordan"` + "\n",
			wantActor:  "jordan",
		},
		{
			name:       "malformed yaml yields empty config",
			configYAML: "actor: [unclosed\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadLocalConfig(writeConfig(t, tt.configYAML))
			assert.NotNil(t, cfg)
			assert.Equal(t, tt.wantDBPath, cfg.DBPath)
			assert.Equal(t, tt.wantActor, cfg.Actor)
			assert.Equal(t, tt.wantTenant, cfg.DefaultTenant)
		})
	}
}

func TestLoadLocalConfigMissingFile(t *testing.T) {
	cfg := LoadLocalConfig(t.TempDir())
	assert.NotNil(t, cfg)
	assert.Empty(t, cfg.DBPath)
	assert.Nil(t, cfg.CommitteeRequired)
}

func TestLoadLocalConfigWithEnv(t *testing.T) {
	dir := writeConfig(t, "db-path: from-file.db\nactor: file-actor\n")

	t.Setenv("DT_DB_PATH", "from-env.db")
	t.Setenv("DT_ACTOR", "")
	t.Setenv("DT_ENV", "development")

	cfg := LoadLocalConfigWithEnv(dir)
	assert.Equal(t, "from-env.db", cfg.DBPath, "env should override the file")
	assert.Equal(t, "file-actor", cfg.Actor, "empty env should not override the file")
	assert.Equal(t, "development", cfg.Environment)
}

func TestResolveActor(t *testing.T) {
	dir := writeConfig(t, "actor: configured\n")
	t.Setenv("DT_ACTOR", "")
	t.Setenv("USER", "shell-user")

	assert.Equal(t, "configured", ResolveActor(dir))

	t.Setenv("DT_ACTOR", "env-actor")
	assert.Equal(t, "env-actor", ResolveActor(writeConfig(t, "")))

	t.Setenv("DT_ACTOR", "")
	assert.Equal(t, "shell-user", ResolveActor(writeConfig(t, "")))

	t.Setenv("USER", "")
	assert.Equal(t, "unknown", ResolveActor(writeConfig(t, "")))
}

func TestCommitteeRequiredDefault(t *testing.T) {
	tests := []struct {
		name       string
		configYAML string
		want       bool
	}{
		{"unset defaults to true", "", true},
		{"explicit true", "committee-required: true\n", true},
		{"explicit false", "committee-required: false\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommitteeRequiredDefault(writeConfig(t, tt.configYAML)))
		})
	}
}
