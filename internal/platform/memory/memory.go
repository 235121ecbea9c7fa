// Package memory is an in-process secure-storage capability.
//
// It models the semantics of the platform stores closely enough to run the
// credential stores against it: legacy keychain domains, protected access
// groups with a default group, cloud-synchronized and local scopes, and
// items that require interactive authentication. Secrets are kept sealed in
// memguard enclaves.
package memory

import (
	"sort"
	"sync"

	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/internal/secure"
)

// DefaultAccessGroup is the application access group used when Options
// lists none.
const DefaultAccessGroup = "default"

// Options configure a Storage.
type Options struct {
	// AccessGroups are the protected-store groups visible to the
	// application. The first one is its default group.
	AccessGroups []string

	// Keychains are the legacy domains that exist. Nil means every domain
	// exists.
	Keychains []string

	// ReadOnlyKeychains reject writes and deletes.
	ReadOnlyKeychains []string

	// Authenticator is consulted before a presence-protected item is
	// released. Nil allows every request.
	Authenticator platform.Authenticator
}

type slot struct {
	keychain, service, account, group string
	sync                              bool
}

type item struct {
	secret *secure.SecureBuffer
	access platform.AccessControl
}

// Storage is an in-memory platform.Storage. It is safe for concurrent use;
// each call holds the store lock for its whole duration.
type Storage struct {
	mu       sync.RWMutex
	groups   []string
	keychain map[string]bool
	readOnly map[string]bool
	auth     platform.Authenticator
	items    map[slot]*item
}

// New creates an empty Storage.
func New(opts Options) *Storage {
	s := &Storage{
		groups:   opts.AccessGroups,
		readOnly: make(map[string]bool),
		auth:     opts.Authenticator,
		items:    make(map[slot]*item),
	}
	if len(s.groups) == 0 {
		s.groups = []string{DefaultAccessGroup}
	}
	if s.auth == nil {
		s.auth = platform.AllowAuthentication
	}
	if opts.Keychains != nil {
		s.keychain = make(map[string]bool, len(opts.Keychains))
		for _, k := range opts.Keychains {
			s.keychain[k] = true
		}
	}
	for _, k := range opts.ReadOnlyKeychains {
		s.readOnly[k] = true
	}
	return s
}

// DefaultGroup returns the application's default access group.
func (s *Storage) DefaultGroup() string {
	return s.groups[0]
}

// Len returns the number of stored items.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Storage) groupIndex(group string) int {
	for i, g := range s.groups {
		if g == group {
			return i
		}
	}
	return -1
}

func (s *Storage) checkKeychain(keychain string, write bool) error {
	if keychain == "" {
		return nil
	}
	if s.keychain != nil && !s.keychain[keychain] {
		return platform.Errorf(platform.StatusNoSuchKeychain, "keychain %s does not exist", keychain)
	}
	if write && s.readOnly[keychain] {
		return platform.Errorf(platform.StatusReadOnly, "keychain %s is read-only", keychain)
	}
	return nil
}

func (s *Storage) checkGroup(group string) error {
	if group != "" && s.groupIndex(group) < 0 {
		return platform.Errorf(platform.StatusMissingEntitlement, "access group %s is not available to this application", group)
	}
	return nil
}

// resolve finds the slot loc refers to. Callers hold the lock.
func (s *Storage) resolve(loc platform.Location) (slot, *item, error) {
	if err := s.checkKeychain(loc.Keychain, false); err != nil {
		return slot{}, nil, err
	}
	if loc.Keychain != "" {
		k := slot{keychain: loc.Keychain, service: loc.Service, account: loc.Account}
		if it, ok := s.items[k]; ok {
			return k, it, nil
		}
		return slot{}, nil, platform.Errorf(platform.StatusItemNotFound, "")
	}
	if err := s.checkGroup(loc.AccessGroup); err != nil {
		return slot{}, nil, err
	}
	groups := s.groups
	if loc.AccessGroup != "" {
		groups = []string{loc.AccessGroup}
	}
	for _, group := range groups {
		k := slot{service: loc.Service, account: loc.Account, group: group, sync: loc.Synchronizable}
		if it, ok := s.items[k]; ok {
			return k, it, nil
		}
	}
	return slot{}, nil, platform.Errorf(platform.StatusItemNotFound, "")
}

func (s *Storage) authenticate(loc platform.Location, it *item) error {
	if !it.access.UserPresence {
		return nil
	}
	if err := s.auth(loc); err != nil {
		if _, ok := err.(*platform.Error); ok {
			return err
		}
		return platform.Wrap(platform.StatusAuthFailed, err)
	}
	return nil
}

// Set implements platform.Storage. Replacing an existing item changes only
// its data; the access control it was created with is kept.
func (s *Storage) Set(loc platform.Location, secret []byte, access *platform.AccessControl) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKeychain(loc.Keychain, true); err != nil {
		return err
	}
	k := slot{keychain: loc.Keychain, service: loc.Service, account: loc.Account}
	if loc.Keychain == "" {
		if err := s.checkGroup(loc.AccessGroup); err != nil {
			return err
		}
		k.group = loc.AccessGroup
		if k.group == "" {
			k.group = s.DefaultGroup()
		}
		k.sync = loc.Synchronizable
	}
	buf, err := secure.NewSecureBuffer(secret)
	if err != nil {
		return platform.Wrap(platform.StatusIO, err)
	}
	if existing, ok := s.items[k]; ok {
		existing.secret.Destroy()
		existing.secret = buf
		return nil
	}
	it := &item{secret: buf}
	if access != nil {
		it.access = *access
	}
	s.items[k] = it
	return nil
}

// Fetch implements platform.Storage.
func (s *Storage) Fetch(loc platform.Location) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, it, err := s.resolve(loc)
	if err != nil {
		return nil, err
	}
	if err := s.authenticate(loc, it); err != nil {
		return nil, err
	}
	secret, err := it.secret.Copy()
	if err != nil {
		return nil, platform.Wrap(platform.StatusIO, err)
	}
	return secret, nil
}

// Exists implements platform.Storage.
func (s *Storage) Exists(loc platform.Location) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, _, err := s.resolve(loc)
	return err
}

// Delete implements platform.Storage. Only the item selected by default
// resolution is removed.
func (s *Storage) Delete(loc platform.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKeychain(loc.Keychain, true); err != nil {
		return err
	}
	k, it, err := s.resolve(loc)
	if err != nil {
		return err
	}
	it.secret.Destroy()
	delete(s.items, k)
	return nil
}

// Search implements platform.Storage. Like the platform, it reports
// StatusItemNotFound when nothing matches.
func (s *Storage) Search(opts platform.SearchOptions) ([]platform.Attributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkKeychain(opts.Keychain, false); err != nil {
		return nil, err
	}
	if opts.Keychain == "" {
		if err := s.checkGroup(opts.AccessGroup); err != nil {
			return nil, err
		}
	}

	type match struct {
		attrs platform.Attributes
		rank  int
	}
	var matches []match
	for k, it := range s.items {
		if k.keychain != opts.Keychain {
			continue
		}
		if opts.Service != "" && k.service != opts.Service {
			continue
		}
		if opts.Account != "" && k.account != opts.Account {
			continue
		}
		if k.keychain == "" {
			if opts.AccessGroup != "" && k.group != opts.AccessGroup {
				continue
			}
			if k.sync != opts.Synchronizable {
				continue
			}
		}
		attrs := platform.Attributes{
			Keychain:       k.keychain,
			Service:        k.service,
			Account:        k.account,
			AccessGroup:    k.group,
			Synchronizable: k.sync,
		}
		if it.access.UserPresence {
			if opts.SkipAuthenticated {
				continue
			}
			if err := s.authenticate(attrs.Location(), it); err != nil {
				return nil, err
			}
		}
		matches = append(matches, match{attrs: attrs, rank: s.groupIndex(k.group)})
	}
	if len(matches) == 0 {
		return nil, platform.Errorf(platform.StatusItemNotFound, "")
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.attrs.Service != b.attrs.Service {
			return a.attrs.Service < b.attrs.Service
		}
		if a.attrs.Account != b.attrs.Account {
			return a.attrs.Account < b.attrs.Account
		}
		return a.rank < b.rank
	})
	out := make([]platform.Attributes, len(matches))
	for i, m := range matches {
		out[i] = m.attrs
	}
	return out, nil
}

var _ platform.Storage = (*Storage)(nil)
