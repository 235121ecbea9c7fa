// Package registry holds the named credential stores a program works with.
//
// A Registry is an explicit value passed to whoever needs a store; there is
// no process-wide default store.
package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/keychain"
	"github.com/systmms/credstore/internal/logging"
	"github.com/systmms/credstore/internal/metrics"
	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/internal/platform/memory"
	"github.com/systmms/credstore/internal/platform/oskeyring"
	"github.com/systmms/credstore/internal/platform/sqlstore"
	"github.com/systmms/credstore/internal/protected"
	"github.com/systmms/credstore/pkg/credential"
)

// Registered is a store together with the configuration it was built from.
type Registered struct {
	Name    string
	Config  config.StoreConfig
	Store   credential.Store
	Storage platform.Storage
}

// Registry maps names to stores. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stores  map[string]*Registered
	def     string
	closers []io.Closer
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{stores: make(map[string]*Registered)}
}

// Add registers a store. The first store added becomes the default.
func (r *Registry) Add(reg *Registered) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[reg.Name]; ok {
		return fmt.Errorf("store %q is already registered", reg.Name)
	}
	r.stores[reg.Name] = reg
	if r.def == "" {
		r.def = reg.Name
	}
	return nil
}

// SetDefault selects the store returned for an empty name.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[name]; !ok {
		return r.notFound(name)
	}
	r.def = name
	return nil
}

// Get returns the named store, or the default store for "".
func (r *Registry) Get(name string) (*Registered, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.def
	}
	reg, ok := r.stores[name]
	if !ok {
		return nil, r.notFound(name)
	}
	return reg, nil
}

// Default returns the name of the default store.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Names returns the registered store names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) notFound(name string) error {
	return dserrors.ConfigError{
		Field:      "store",
		Value:      name,
		Message:    "store not found",
		Suggestion: "Available stores: " + strings.Join(r.names(), ", "),
	}
}

// Close releases backend connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Options are shared by every store built from a definition.
type Options struct {
	Logger        *logging.Logger
	Recorder      metrics.Recorder
	Authenticator platform.Authenticator
}

// FromDefinition builds every store in def.
func FromDefinition(ctx context.Context, def *config.Definition, opts Options) (*Registry, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop{}
	}
	r := New()
	for _, name := range def.StoreNames() {
		sc := def.Stores[name]
		storage, closer, err := openBackend(ctx, sc, opts)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("store %q: %w", name, err)
		}
		if closer != nil {
			r.closers = append(r.closers, closer)
		}
		store, err := buildStore(name, sc, storage, opts)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("store %q: %w", name, err)
		}
		if err := r.Add(&Registered{Name: name, Config: sc, Store: store, Storage: storage}); err != nil {
			_ = r.Close()
			return nil, err
		}
		opts.Logger.Debug("registered store %s (%s on %s)", name, sc.Type, backendType(sc))
	}
	if def.Default != "" {
		if err := r.SetDefault(def.Default); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

func backendType(sc config.StoreConfig) string {
	if sc.Backend.Type != "" {
		return sc.Backend.Type
	}
	return "keyring"
}

func buildStore(name string, sc config.StoreConfig, storage platform.Storage, opts Options) (credential.Store, error) {
	switch sc.Type {
	case "keychain":
		return keychain.NewWithConfiguration(sc.Options, storage,
			keychain.WithLogger(opts.Logger), keychain.WithRecorder(opts.Recorder), keychain.WithName(name))
	case "protected":
		if backendType(sc) == "keyring" {
			return nil, &credential.NotSupportedError{Reason: "the OS keyring backend has no protected data store"}
		}
		return protected.NewWithConfiguration(sc.Options, storage,
			protected.WithLogger(opts.Logger), protected.WithRecorder(opts.Recorder), protected.WithName(name))
	default:
		return nil, dserrors.ConfigError{
			Field:      "type",
			Value:      sc.Type,
			Message:    "unknown store type",
			Suggestion: "Use keychain or protected",
		}
	}
}

func openBackend(ctx context.Context, sc config.StoreConfig, opts Options) (platform.Storage, io.Closer, error) {
	b := sc.Backend
	switch backendType(sc) {
	case "keyring":
		return oskeyring.New(), nil, nil
	case "memory":
		return memory.New(memory.Options{
			AccessGroups:      b.AccessGroups,
			Keychains:         availableKeychains(b.KeychainsUnavailable),
			ReadOnlyKeychains: b.KeychainsReadOnly,
			Authenticator:     opts.Authenticator,
		}), nil, nil
	default:
		dialect, err := sqlstore.DialectFor(b.Type)
		if err != nil {
			return nil, nil, err
		}
		sqlOpts := sqlstore.Options{
			AccessGroups:      b.AccessGroups,
			Keychains:         availableKeychains(b.KeychainsUnavailable),
			ReadOnlyKeychains: b.KeychainsReadOnly,
			Authenticator:     opts.Authenticator,
			Timeout:           b.Timeout(),
		}
		if b.AgeIdentity != "" {
			sealer, err := readSealer(b.AgeIdentity)
			if err != nil {
				return nil, nil, err
			}
			sqlOpts.Sealer = sealer
		}
		dsn := b.DSN
		if dialect.Name() == sqlstore.SQLite.Name() {
			dsn = expandHome(dsn)
		}
		s, err := sqlstore.Open(ctx, dialect, dsn, sqlOpts)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

func availableKeychains(unavailable []string) []string {
	if len(unavailable) == 0 {
		return nil
	}
	var out []string
	for _, d := range keychain.Domains() {
		keep := true
		for _, u := range unavailable {
			if strings.EqualFold(u, d.String()) {
				keep = false
			}
		}
		if keep {
			out = append(out, d.String())
		}
	}
	return out
}

func readSealer(path string) (*sqlstore.AgeSealer, error) {
	f, err := os.Open(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("opening age identity: %w", err)
	}
	defer func() { _ = f.Close() }()
	return sqlstore.ReadAgeSealer(f)
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
