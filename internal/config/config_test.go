package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/logging"
)

const sample = `version: 0
default: shared
stores:
  login:
    type: keychain
    backend:
      type: keyring
  shared:
    type: protected
    backend:
      type: sqlite
      dsn: /tmp/credstore.db
      access_groups: [team.app, team.shared]
      age_identity: ~/.config/credstore/key.txt
      timeout_ms: 1500
    options:
      cloud-sync: false
      access-policy: after-first-unlock
`

func TestParse(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "shared", def.Default)
	assert.Equal(t, []string{"login", "shared"}, def.StoreNames())

	shared, err := def.GetStore("shared")
	require.NoError(t, err)
	assert.Equal(t, "protected", shared.Type)
	assert.Equal(t, "sqlite", shared.Backend.Type)
	assert.Equal(t, []string{"team.app", "team.shared"}, shared.Backend.AccessGroups)
	assert.Equal(t, 1500*time.Millisecond, shared.Backend.Timeout())
	assert.Equal(t, map[string]string{"cloud-sync": "false", "access-policy": "after-first-unlock"}, shared.Options)

	_, err = def.GetStore("missing")
	var ce dserrors.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Suggestion, "login, shared")
}

func TestParseSingleStoreIsDefault(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte("stores:\n  only:\n    type: keychain\n"))
	require.NoError(t, err)
	assert.Equal(t, "only", def.Default)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "bad_yaml", input: "stores: [unclosed"},
		{name: "empty", input: ""},
		{name: "no_stores", input: "version: 0\nstores: {}\n"},
		{name: "bad_version", input: "version: 2\nstores:\n  a:\n    type: keychain\n"},
		{name: "unknown_store_type", input: "stores:\n  a:\n    type: vault\n"},
		{name: "unknown_backend_type", input: "stores:\n  a:\n    type: keychain\n    backend:\n      type: s3\n"},
		{name: "unknown_top_level_key", input: "providers: {}\nstores:\n  a:\n    type: keychain\n"},
		{name: "unknown_backend_key", input: "stores:\n  a:\n    type: keychain\n    backend:\n      region: us-east-1\n"},
		{name: "option_list", input: "stores:\n  a:\n    type: keychain\n    options:\n      keychain: [User]\n"},
		{name: "missing_default", input: "default: b\nstores:\n  a:\n    type: keychain\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.input))
			var ce dserrors.ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "credstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg := &Config{Path: path, Logger: logging.Discard()}
	require.NoError(t, cfg.Load())
	assert.Equal(t, "shared", cfg.Definition.Default)

	missing := &Config{Path: filepath.Join(dir, "nope.yaml"), Logger: logging.Discard()}
	require.NoError(t, missing.Load())
	assert.Equal(t, DefaultDefinition(), missing.Definition)

	preset := &Config{Path: path, Definition: &Definition{Default: "x"}}
	require.NoError(t, preset.Load())
	assert.Equal(t, "x", preset.Definition.Default)
}
