// Package sqlstore is a secure-storage capability kept in a SQL database.
//
// One table holds every item, keyed by (keychain, service, account,
// access_group, synchronizable). Legacy items have an empty access group;
// protected items have an empty keychain. Secrets may be sealed with age
// before they are written.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/systmms/credstore/internal/platform"
)

// DefaultTimeout bounds every database round trip.
const DefaultTimeout = 5 * time.Second

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

	// Sealer encrypts secrets at rest. Nil stores them as given.
	Sealer Sealer

	// Timeout bounds each query. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Storage implements platform.Storage on database/sql.
type Storage struct {
	db       *sql.DB
	dialect  Dialect
	groups   []string
	keychain map[string]bool
	readOnly map[string]bool
	auth     platform.Authenticator
	sealer   Sealer
	timeout  time.Duration
}

// Open connects to dsn, creates the item table if needed and returns a
// Storage that owns the connection.
func Open(ctx context.Context, dialect Dialect, dsn string, opts Options) (*Storage, error) {
	db, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if dialect.Name() == SQLite.Name() {
		// SQLite serializes writers; one connection avoids "database is locked".
		db.SetMaxOpenConns(1)
	}
	s := New(db, dialect, opts)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The table must exist or Migrate must be
// called before use.
func New(db *sql.DB, dialect Dialect, opts Options) *Storage {
	s := &Storage{
		db:       db,
		dialect:  dialect,
		groups:   opts.AccessGroups,
		readOnly: make(map[string]bool),
		auth:     opts.Authenticator,
		sealer:   opts.Sealer,
		timeout:  opts.Timeout,
	}
	if len(s.groups) == 0 {
		s.groups = []string{DefaultAccessGroup}
	}
	if s.auth == nil {
		s.auth = platform.AllowAuthentication
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
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

// Migrate creates the item table.
func (s *Storage) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create %s table: %w", Table, err)
	}
	return nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DefaultGroup returns the application's default access group.
func (s *Storage) DefaultGroup() string {
	return s.groups[0]
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

func (s *Storage) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

type row struct {
	group  string
	access platform.AccessControl
	secret []byte
}

// locate finds the row loc refers to, applying default group resolution
// for unpinned protected locations.
func (s *Storage) locate(ctx context.Context, loc platform.Location, withSecret bool) (row, error) {
	if err := s.checkKeychain(loc.Keychain, false); err != nil {
		return row{}, err
	}
	if loc.Keychain == "" {
		if err := s.checkGroup(loc.AccessGroup); err != nil {
			return row{}, err
		}
	}

	columns := "access_group, protection, require_auth"
	if withSecret {
		columns += ", secret"
	}
	q := &query{dialect: s.dialect}
	q.where("keychain", loc.Keychain)
	q.where("service", loc.Service)
	q.where("account", loc.Account)
	if loc.Keychain != "" {
		q.where("access_group", "")
		q.where("synchronizable", false)
	} else {
		q.where("synchronizable", loc.Synchronizable)
		if loc.AccessGroup != "" {
			q.where("access_group", loc.AccessGroup)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM "+Table+q.clause(), q.args...)
	if err != nil {
		return row{}, translate(err)
	}
	defer func() { _ = rows.Close() }()

	best, bestRank := row{}, -1
	for rows.Next() {
		var (
			r          row
			protection string
		)
		dest := []interface{}{&r.group, &protection, &r.access.UserPresence}
		if withSecret {
			dest = append(dest, &r.secret)
		}
		if err := rows.Scan(dest...); err != nil {
			return row{}, translate(err)
		}
		if r.access.Protection, err = platform.ParseProtection(protection); err != nil {
			return row{}, &platform.Error{Code: platform.StatusIO, Message: "reading stored access control", Err: err}
		}
		rank := 0
		if loc.Keychain == "" {
			rank = s.groupIndex(r.group)
			if rank < 0 {
				continue
			}
		}
		if bestRank < 0 || rank < bestRank {
			best, bestRank = r, rank
		}
	}
	if err := rows.Err(); err != nil {
		return row{}, translate(err)
	}
	if bestRank < 0 {
		return row{}, platform.Errorf(platform.StatusItemNotFound, "")
	}
	return best, nil
}

func (s *Storage) authenticate(loc platform.Location) error {
	if err := s.auth(loc); err != nil {
		var perr *platform.Error
		if errors.As(err, &perr) {
			return err
		}
		return platform.Wrap(platform.StatusAuthFailed, err)
	}
	return nil
}

// Set implements platform.Storage. Replacing an existing item changes only
// its data; the access control it was created with is kept.
func (s *Storage) Set(loc platform.Location, secret []byte, access *platform.AccessControl) error {
	if err := s.checkKeychain(loc.Keychain, true); err != nil {
		return err
	}
	group, sync := "", false
	if loc.Keychain == "" {
		if err := s.checkGroup(loc.AccessGroup); err != nil {
			return err
		}
		group, sync = loc.AccessGroup, loc.Synchronizable
		if group == "" {
			group = s.DefaultGroup()
		}
	}
	control := platform.AccessControl{}
	if access != nil {
		control = *access
	}
	stored := secret
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(secret)
		if err != nil {
			return &platform.Error{Code: platform.StatusIO, Message: "sealing secret", Err: err}
		}
		stored = sealed
	}

	ctx, cancel := s.withTimeout()
	defer cancel()
	_, err := s.db.ExecContext(ctx, s.dialect.insert(),
		loc.Keychain, loc.Service, loc.Account, group, sync,
		control.Protection.String(), control.UserPresence, stored)
	return translate(err)
}

// Fetch implements platform.Storage.
func (s *Storage) Fetch(loc platform.Location) ([]byte, error) {
	ctx, cancel := s.withTimeout()
	defer cancel()

	r, err := s.locate(ctx, loc, true)
	if err != nil {
		return nil, err
	}
	if r.access.UserPresence {
		loc.AccessGroup = r.group
		if err := s.authenticate(loc); err != nil {
			return nil, err
		}
	}
	if s.sealer == nil {
		return r.secret, nil
	}
	secret, err := s.sealer.Open(r.secret)
	if err != nil {
		return nil, &platform.Error{Code: platform.StatusIO, Message: "opening sealed secret", Err: err}
	}
	return secret, nil
}

// Exists implements platform.Storage.
func (s *Storage) Exists(loc platform.Location) error {
	ctx, cancel := s.withTimeout()
	defer cancel()

	_, err := s.locate(ctx, loc, false)
	return err
}

// Delete implements platform.Storage. Only the item selected by default
// resolution is removed.
func (s *Storage) Delete(loc platform.Location) error {
	if err := s.checkKeychain(loc.Keychain, true); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout()
	defer cancel()

	r, err := s.locate(ctx, loc, false)
	if err != nil {
		return err
	}
	sync := loc.Synchronizable && loc.Keychain == ""
	q := &query{dialect: s.dialect}
	q.where("keychain", loc.Keychain)
	q.where("service", loc.Service)
	q.where("account", loc.Account)
	q.where("access_group", r.group)
	q.where("synchronizable", sync)
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+Table+q.clause(), q.args...)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return platform.Errorf(platform.StatusItemNotFound, "")
	}
	return nil
}

// Search implements platform.Storage. Like the platform, it reports
// StatusItemNotFound when nothing matches.
func (s *Storage) Search(opts platform.SearchOptions) ([]platform.Attributes, error) {
	if err := s.checkKeychain(opts.Keychain, false); err != nil {
		return nil, err
	}
	q := &query{dialect: s.dialect}
	q.where("keychain", opts.Keychain)
	if opts.Service != "" {
		q.where("service", opts.Service)
	}
	if opts.Account != "" {
		q.where("account", opts.Account)
	}
	if opts.Keychain == "" {
		if err := s.checkGroup(opts.AccessGroup); err != nil {
			return nil, err
		}
		if opts.AccessGroup != "" {
			q.where("access_group", opts.AccessGroup)
		}
		q.where("synchronizable", opts.Synchronizable)
	}

	ctx, cancel := s.withTimeout()
	defer cancel()
	rows, err := s.db.QueryContext(ctx,
		"SELECT keychain, service, account, access_group, synchronizable, require_auth FROM "+Table+q.clause(), q.args...)
	if err != nil {
		return nil, translate(err)
	}
	defer func() { _ = rows.Close() }()

	type match struct {
		attrs platform.Attributes
		rank  int
	}
	var matches []match
	for rows.Next() {
		var (
			a           platform.Attributes
			requireAuth bool
		)
		if err := rows.Scan(&a.Keychain, &a.Service, &a.Account, &a.AccessGroup, &a.Synchronizable, &requireAuth); err != nil {
			return nil, translate(err)
		}
		rank := 0
		if a.Keychain == "" {
			rank = s.groupIndex(a.AccessGroup)
			if rank < 0 {
				continue
			}
		}
		if requireAuth {
			if opts.SkipAuthenticated {
				continue
			}
			if err := s.authenticate(a.Location()); err != nil {
				return nil, err
			}
		}
		matches = append(matches, match{attrs: a, rank: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
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

// translate maps database failures to platform statuses. Connection
// failures mean the store is unavailable; everything else is an I/O error.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return platform.Wrap(platform.StatusItemNotFound, err)
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return platform.Wrap(platform.StatusNotAvailable, err)
	default:
		return platform.Wrap(platform.StatusIO, err)
	}
}

var _ platform.Storage = (*Storage)(nil)
