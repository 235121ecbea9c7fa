// Package config loads credstore.yaml, the file that names the credential
// stores available to the CLI and the backend each one runs on.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/logging"
)

//go:embed schema.json
var schema string

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	MetricsFile    string
	Definition     *Definition
}

// Definition represents the credstore.yaml structure
type Definition struct {
	Version int                    `yaml:"version"`
	Default string                 `yaml:"default,omitempty"`
	Stores  map[string]StoreConfig `yaml:"stores"`
}

// StoreConfig configures one named credential store
type StoreConfig struct {
	Type    string            `yaml:"type"`
	Backend BackendConfig     `yaml:"backend,omitempty"`
	Options map[string]string `yaml:"options,omitempty"`
}

// BackendConfig selects and configures the storage a store runs on
type BackendConfig struct {
	Type                 string   `yaml:"type,omitempty"`
	DSN                  string   `yaml:"dsn,omitempty"`
	AccessGroups         []string `yaml:"access_groups,omitempty"`
	KeychainsUnavailable []string `yaml:"keychains_unavailable,omitempty"`
	KeychainsReadOnly    []string `yaml:"keychains_read_only,omitempty"`
	AgeIdentity          string   `yaml:"age_identity,omitempty"`
	TimeoutMs            int      `yaml:"timeout_ms,omitempty"`
}

// Timeout returns the configured query timeout, or zero for the backend
// default.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// DefaultDefinition is used when no configuration file exists: a single
// legacy store on the OS keyring.
func DefaultDefinition() *Definition {
	return &Definition{
		Default: "login",
		Stores: map[string]StoreConfig{
			"login": {Type: "keychain", Backend: BackendConfig{Type: "keyring"}},
		},
	}
}

// Load reads and parses the configuration file. A missing file at the
// default path falls back to DefaultDefinition.
func (c *Config) Load() error {
	if c.Definition != nil {
		return nil
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Logger != nil {
				c.Logger.Debug("no configuration at %s, using the OS keyring", c.Path)
			}
			c.Definition = DefaultDefinition()
			return nil
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Parse validates data against the configuration schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
			Err:        err,
		}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "configuration does not match the expected structure",
			Suggestion: "Store options must be strings or booleans",
			Err:        err,
		}
	}

	if def.Default == "" && len(def.Stores) == 1 {
		for name := range def.Stores {
			def.Default = name
		}
	}
	if def.Default != "" {
		if _, ok := def.Stores[def.Default]; !ok {
			return nil, dserrors.ConfigError{
				Field:      "default",
				Value:      def.Default,
				Message:    "default store is not defined",
				Suggestion: "Available stores: " + strings.Join(def.StoreNames(), ", "),
			}
		}
	}
	return &def, nil
}

func validate(raw interface{}) error {
	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	first := result.Errors()[0]
	return dserrors.ConfigError{
		Field:      first.Field(),
		Value:      first.Value(),
		Message:    strings.Join(messages, "; "),
		Suggestion: "Store types are keychain or protected; backend types are memory, keyring, sqlite, postgres or mysql",
	}
}

// StoreNames returns the configured store names, sorted.
func (d *Definition) StoreNames() []string {
	names := make([]string, 0, len(d.Stores))
	for name := range d.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStore returns the configuration for a named store
func (d *Definition) GetStore(name string) (StoreConfig, error) {
	store, ok := d.Stores[name]
	if !ok {
		return StoreConfig{}, dserrors.ConfigError{
			Field:      "store",
			Value:      name,
			Message:    "store not found",
			Suggestion: "Available stores: " + strings.Join(d.StoreNames(), ", "),
		}
	}
	return store, nil
}
