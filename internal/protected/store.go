// Package protected is the credential store for the protected data store:
// secrets partitioned by access group, in either the local or the
// cloud-synchronized scope, each created under an access policy.
//
// Entries built without an access group are specifiers. Reading, writing
// and deleting through a specifier follows the platform's default group
// order, but resolving one with GetCredential searches every visible group
// and reports an AmbiguousError when more than one secret matches.
package protected

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/credstore/internal/accesspolicy"
	"github.com/systmms/credstore/internal/attributes"
	"github.com/systmms/credstore/internal/logging"
	"github.com/systmms/credstore/internal/metrics"
	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/pkg/credential"
)

// Vendor describes this store implementation.
const Vendor = "Protected data store, https://github.com/systmms/credstore"

var (
	storeKeys    = []string{"access-group", "*cloud-sync", "access-policy", "*require-user-presence", "policy-set"}
	modifierKeys = []string{"access-group", "access-policy", "*require-user-presence"}
	searchKeys   = []string{"service", "user", "account", "access-group", "*show-authentication-ui"}
)

// Config is the closed store configuration.
type Config struct {
	// AccessGroup pins every entry to one group. Empty leaves entries
	// unpinned unless they carry their own access-group modifier.
	AccessGroup string

	// CloudSynchronize selects the cloud-synchronized scope.
	CloudSynchronize bool

	// AccessPolicy is used for entries that do not request one.
	AccessPolicy accesspolicy.Policy

	// Policies is the recognized policy subset. The zero value is
	// accesspolicy.Full.
	Policies accesspolicy.Set
}

// DefaultConfig is the configuration of New.
func DefaultConfig() Config {
	return Config{AccessPolicy: accesspolicy.Default, Policies: accesspolicy.Full}
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.log = l.With("protected") }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) { s.rec = r }
}

// WithName sets the store name reported in metrics. Defaults to "protected".
func WithName(name string) Option {
	return func(s *Store) { s.name = name }
}

// Store is the protected credential store. It is immutable after
// construction and safe for concurrent use.
type Store struct {
	id      string
	name    string
	cfg     Config
	storage platform.Storage
	log     *logging.Logger
	rec     metrics.Recorder
}

// New creates a store with DefaultConfig.
func New(storage platform.Storage, opts ...Option) *Store {
	s, _ := NewWithConfig(DefaultConfig(), storage, opts...)
	return s
}

// NewWithConfig creates a store from a closed configuration. It fails if
// the default policy is not recognized or cannot be used with the
// configured sync scope.
func NewWithConfig(cfg Config, storage platform.Storage, opts ...Option) (*Store, error) {
	if !cfg.Policies.Contains(cfg.AccessPolicy) {
		return nil, credential.Invalid("access-policy", "unknown value: "+cfg.AccessPolicy.Kebab())
	}
	if err := accesspolicy.CheckSync(cfg.AccessPolicy, cfg.CloudSynchronize); err != nil {
		return nil, err
	}
	s := &Store{
		id: fmt.Sprintf("%s, version %s, instantiated at %s, %s",
			"Protected data store", credential.Version, time.Now().Format(time.RFC3339Nano), uuid.NewString()),
		name:    "protected",
		cfg:     cfg,
		storage: storage,
		log:     logging.Discard(),
		rec:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewWithConfiguration creates a store from string options.
//
// Recognized keys are "access-group", "cloud-sync", "access-policy",
// "require-user-presence" and "policy-set". Unknown keys are rejected.
func NewWithConfiguration(config map[string]string, storage platform.Storage, opts ...Option) (*Store, error) {
	parsed, err := attributes.Parse(storeKeys, config)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if cfg.Policies, err = accesspolicy.ParseSet(parsed["policy-set"]); err != nil {
		return nil, err
	}
	if group, ok := parsed["access-group"]; ok {
		if group == "" {
			return nil, credential.Invalid("access-group", "cannot be empty")
		}
		cfg.AccessGroup = group
	}
	cfg.CloudSynchronize, _ = attributes.Bool(parsed, "cloud-sync")
	if cfg.AccessPolicy, _, err = cfg.Policies.Resolve(parsed, accesspolicy.Default); err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, storage, opts...)
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

// Build implements credential.Store.
//
// The "access-group", "access-policy" and "require-user-presence"
// modifiers override the store's configuration for this entry. The
// sync scope is fixed by the store.
func (s *Store) Build(service, user string, modifiers map[string]string) (*credential.Entry, error) {
	if service == "" {
		return nil, credential.Invalid("service", "cannot be empty")
	}
	if user == "" {
		return nil, credential.Invalid("user", "cannot be empty")
	}
	parsed, err := attributes.Parse(modifierKeys, modifiers)
	if err != nil {
		return nil, err
	}
	group := s.cfg.AccessGroup
	if g, ok := parsed["access-group"]; ok {
		if g == "" {
			return nil, credential.Invalid("access-group", "cannot be empty")
		}
		group = g
	}
	policy, _, err := s.cfg.Policies.Resolve(parsed, s.cfg.AccessPolicy)
	if err != nil {
		return nil, err
	}
	if err := accesspolicy.CheckSync(policy, s.cfg.CloudSynchronize); err != nil {
		return nil, err
	}
	return credential.NewEntry(&Cred{
		store:   s,
		service: service,
		account: user,
		group:   group,
		policy:  policy,
	}), nil
}

// Search implements credential.Store.
//
// Recognized keys are "service", "user" (or its alias "account"),
// "access-group" and "show-authentication-ui". Matching is exact. Without an access-group
// filter the store's own group applies, if it has one. Items protected by
// user presence are skipped unless show-authentication-ui is true.
func (s *Store) Search(spec map[string]string) (entries []*credential.Entry, err error) {
	start := time.Now()
	defer func() {
		s.observe("search", start, err)
		if err == nil {
			s.rec.SearchResults(s.name, len(entries))
		}
	}()

	parsed, err := attributes.Parse(searchKeys, spec)
	if err != nil {
		return nil, err
	}
	account := parsed["user"]
	if a, ok := parsed["account"]; ok {
		if _, both := parsed["user"]; both && a != account {
			return nil, credential.Invalid("account", "conflicts with user")
		}
		account = a
	}
	group := s.cfg.AccessGroup
	if g, ok := parsed["access-group"]; ok {
		if g == "" {
			return nil, credential.Invalid("access-group", "cannot be empty")
		}
		group = g
	}
	showUI, _ := attributes.Bool(parsed, "show-authentication-ui")

	found, err := s.find(platform.SearchOptions{
		Service:           parsed["service"],
		Account:           account,
		AccessGroup:       group,
		Synchronizable:    s.cfg.CloudSynchronize,
		SkipAuthenticated: !showUI,
	})
	if err != nil {
		return nil, err
	}
	entries = make([]*credential.Entry, 0, len(found))
	for _, attrs := range found {
		entries = append(entries, credential.NewEntry(s.wrap(attrs, group)))
	}
	return entries, nil
}

// find runs a platform search, folding "not found" into an empty result.
func (s *Store) find(opts platform.SearchOptions) ([]platform.Attributes, error) {
	found, err := s.storage.Search(opts)
	if platform.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, platform.Decode(err, platform.VariantProtected)
	}
	return found, nil
}

// wrap builds a resolved wrapper for a search result. The platform does not
// report an item's access policy, so wrappers carry the default policy; it
// only takes effect if the item is deleted and recreated through the
// wrapper.
func (s *Store) wrap(attrs platform.Attributes, fallbackGroup string) *Cred {
	group := attrs.AccessGroup
	if group == "" {
		s.log.Warn("search result for %q/%q has no access group; keeping %q", attrs.Service, attrs.Account, fallbackGroup)
		group = fallbackGroup
	}
	return &Cred{
		store:   s,
		service: attrs.Service,
		account: attrs.Account,
		group:   group,
		policy:  accesspolicy.Default,
	}
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
