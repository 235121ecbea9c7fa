// Package keychain is the legacy credential store: one of four fixed
// keychain domains, selected when the store is built and optionally
// overridden per entry.
//
// Every credential in this store is pinned by construction, so resolving
// an entry is a plain existence check and can never be ambiguous.
package keychain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/credstore/internal/attributes"
	"github.com/systmms/credstore/internal/logging"
	"github.com/systmms/credstore/internal/metrics"
	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/pkg/credential"
)

// Vendor describes this store implementation.
const Vendor = "Legacy keychain store, https://github.com/systmms/credstore"

// Config is the closed store configuration.
type Config struct {
	Keychain Domain
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.log = l.With("keychain") }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) { s.rec = r }
}

// WithName sets the store name reported in metrics. Defaults to "keychain".
func WithName(name string) Option {
	return func(s *Store) { s.name = name }
}

// Store is the legacy keychain store. It is immutable after construction
// and safe for concurrent use.
type Store struct {
	id      string
	name    string
	cfg     Config
	storage platform.Storage
	log     *logging.Logger
	rec     metrics.Recorder
}

// New creates a store on the User domain.
func New(storage platform.Storage, opts ...Option) *Store {
	return NewWithConfig(Config{Keychain: User}, storage, opts...)
}

// NewWithConfig creates a store from a closed configuration.
func NewWithConfig(cfg Config, storage platform.Storage, opts ...Option) *Store {
	s := &Store{
		id: fmt.Sprintf("%s, version %s, instantiated at %s, %s",
			"Legacy keychain store", credential.Version, time.Now().Format(time.RFC3339Nano), uuid.NewString()),
		name:    "keychain",
		cfg:     cfg,
		storage: storage,
		log:     logging.Discard(),
		rec:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWithConfiguration creates a store from string options. The only
// recognized key is "keychain".
func NewWithConfiguration(config map[string]string, storage platform.Storage, opts ...Option) (*Store, error) {
	parsed, err := attributes.Parse([]string{"keychain"}, config)
	if err != nil {
		return nil, err
	}
	cfg := Config{Keychain: User}
	if name, ok := parsed["keychain"]; ok {
		if cfg.Keychain, err = ParseDomain(name); err != nil {
			return nil, err
		}
	}
	return NewWithConfig(cfg, storage, opts...), nil
}

// Vendor implements credential.Store.
func (s *Store) Vendor() string { return Vendor }

// ID implements credential.Store.
func (s *Store) ID() string { return s.id }

// Config returns the store configuration.
func (s *Store) Config() Config { return s.cfg }

// Persistence implements credential.Store.
func (s *Store) Persistence() credential.Persistence {
	return credential.PersistenceUntilDelete
}

// Build implements credential.Store. The "keychain" modifier overrides the
// store's domain for this entry.
func (s *Store) Build(service, user string, modifiers map[string]string) (*credential.Entry, error) {
	cred, err := s.newCred(service, user, modifiers)
	if err != nil {
		return nil, err
	}
	return credential.NewEntry(cred), nil
}

func (s *Store) newCred(service, user string, modifiers map[string]string) (*Cred, error) {
	if service == "" {
		return nil, credential.Invalid("service", "cannot be empty")
	}
	if user == "" {
		return nil, credential.Invalid("user", "cannot be empty")
	}
	parsed, err := attributes.Parse([]string{"keychain"}, modifiers)
	if err != nil {
		return nil, err
	}
	domain := s.cfg.Keychain
	if name, ok := parsed["keychain"]; ok {
		if domain, err = ParseDomain(name); err != nil {
			return nil, err
		}
	}
	return &Cred{store: s, domain: domain, service: service, account: user}, nil
}

// Search implements credential.Store.
//
// Recognized keys are "service", "user", "keychain" (defaults to the
// store's domain) and "show-authentication-ui", which is accepted for
// parity with the protected store; legacy items never prompt.
func (s *Store) Search(spec map[string]string) (entries []*credential.Entry, err error) {
	start := time.Now()
	defer func() {
		s.observe("search", start, err)
		if err == nil {
			s.rec.SearchResults(s.name, len(entries))
		}
	}()

	parsed, err := attributes.Parse([]string{"service", "user", "keychain", "*show-authentication-ui"}, spec)
	if err != nil {
		return nil, err
	}
	domain := s.cfg.Keychain
	if name, ok := parsed["keychain"]; ok {
		if domain, err = ParseDomain(name); err != nil {
			return nil, err
		}
	}

	found, err := s.storage.Search(platform.SearchOptions{
		Keychain: domain.String(),
		Service:  parsed["service"],
		Account:  parsed["user"],
	})
	if platform.IsNotFound(err) {
		return []*credential.Entry{}, nil
	}
	if err != nil {
		return nil, platform.Decode(err, platform.VariantLegacy)
	}

	entries = make([]*credential.Entry, 0, len(found))
	for _, attrs := range found {
		entries = append(entries, credential.NewEntry(&Cred{
			store:   s,
			domain:  domain,
			service: attrs.Service,
			account: attrs.Account,
		}))
	}
	return entries, nil
}

func (s *Store) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	s.rec.Operation(s.name, op, err, elapsed)
	if !s.log.DebugEnabled() {
		return
	}
	if err != nil {
		s.log.Debug("%s failed after %s: %v", op, elapsed, err)
		return
	}
	s.log.Debug("%s ok in %s", op, elapsed)
}

var _ credential.Store = (*Store)(nil)
