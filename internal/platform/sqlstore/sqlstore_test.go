package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credstore/internal/platform"
)

func openSQLite(t *testing.T, opts Options) *Storage {
	t.Helper()
	s, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "credstore.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func statusOf(t *testing.T, err error) platform.Status {
	t.Helper()
	var perr *platform.Error
	require.ErrorAs(t, err, &perr)
	return perr.Code
}

func TestSQLiteLegacyRoundTrip(t *testing.T) {
	t.Parallel()

	s := openSQLite(t, Options{})
	loc := platform.Location{Keychain: "User", Service: "svc", Account: "acct"}

	require.NoError(t, s.Set(loc, []byte("first"), nil))
	require.NoError(t, s.Set(loc, []byte("second"), nil))

	got, err := s.Fetch(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	require.NoError(t, s.Delete(loc))
	assert.Equal(t, platform.StatusItemNotFound, statusOf(t, s.Exists(loc)))
	assert.Equal(t, platform.StatusItemNotFound, statusOf(t, s.Delete(loc)))
}

func TestSQLiteKeychainDomains(t *testing.T) {
	t.Parallel()

	s := openSQLite(t, Options{Keychains: []string{"User", "System"}, ReadOnlyKeychains: []string{"System"}})

	err := s.Set(platform.Location{Keychain: "Dynamic", Service: "s", Account: "a"}, []byte("x"), nil)
	assert.Equal(t, platform.StatusNoSuchKeychain, statusOf(t, err))

	err = s.Set(platform.Location{Keychain: "System", Service: "s", Account: "a"}, []byte("x"), nil)
	assert.Equal(t, platform.StatusReadOnly, statusOf(t, err))

	_, err = s.Fetch(platform.Location{Keychain: "System", Service: "s", Account: "a"})
	assert.Equal(t, platform.StatusItemNotFound, statusOf(t, err))
}

func TestSQLiteDefaultGroupResolution(t *testing.T) {
	t.Parallel()

	s := openSQLite(t, Options{AccessGroups: []string{"team.app", "team.shared"}})
	shared := platform.Location{Service: "svc", Account: "acct", AccessGroup: "team.shared"}
	unpinned := platform.Location{Service: "svc", Account: "acct"}

	require.NoError(t, s.Set(shared, []byte("shared"), nil))
	got, err := s.Fetch(unpinned)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got)

	require.NoError(t, s.Set(unpinned, []byte("app"), nil))
	got, err = s.Fetch(unpinned)
	require.NoError(t, err)
	assert.Equal(t, []byte("app"), got)

	require.NoError(t, s.Delete(unpinned))
	got, err = s.Fetch(unpinned)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got)

	err = s.Set(platform.Location{Service: "svc", Account: "acct", AccessGroup: "other.team"}, []byte("x"), nil)
	assert.Equal(t, platform.StatusMissingEntitlement, statusOf(t, err))
}

func TestSQLiteOverwriteKeepsAccessControl(t *testing.T) {
	t.Parallel()

	prompts := 0
	s := openSQLite(t, Options{Authenticator: func(platform.Location) error {
		prompts++
		return nil
	}})
	loc := platform.Location{Service: "svc", Account: "acct"}

	require.NoError(t, s.Set(loc, []byte("one"), &platform.AccessControl{Protection: platform.AccessibleWhenUnlocked, UserPresence: true}))
	require.NoError(t, s.Set(loc, []byte("two"), nil))

	got, err := s.Fetch(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
	assert.Equal(t, 1, prompts)

	require.NoError(t, s.Exists(loc))
	assert.Equal(t, 1, prompts)
}

func TestSQLiteSearch(t *testing.T) {
	t.Parallel()

	s := openSQLite(t, Options{AccessGroups: []string{"b", "a"}})
	require.NoError(t, s.Set(platform.Location{Service: "svc", Account: "x", AccessGroup: "a"}, []byte("1"), nil))
	require.NoError(t, s.Set(platform.Location{Service: "svc", Account: "x", AccessGroup: "b"}, []byte("2"), nil))
	require.NoError(t, s.Set(platform.Location{Service: "svc", Account: "w", AccessGroup: "a"}, []byte("3"),
		&platform.AccessControl{UserPresence: true}))
	require.NoError(t, s.Set(platform.Location{Service: "svc", Account: "x", Synchronizable: true}, []byte("4"), nil))

	found, err := s.Search(platform.SearchOptions{Service: "svc", SkipAuthenticated: true})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "b", found[0].AccessGroup)
	assert.Equal(t, "a", found[1].AccessGroup)

	found, err = s.Search(platform.SearchOptions{Service: "svc"})
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "w", found[0].Account)

	found, err = s.Search(platform.SearchOptions{Service: "svc", Synchronizable: true})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Synchronizable)
	assert.Equal(t, "b", found[0].AccessGroup)

	_, err = s.Search(platform.SearchOptions{Service: "nothing"})
	assert.Equal(t, platform.StatusItemNotFound, statusOf(t, err))
}

func TestSQLiteSealedSecrets(t *testing.T) {
	t.Parallel()

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	sealer, err := NewAgeSealer(identity.String())
	require.NoError(t, err)
	assert.Equal(t, identity.Recipient().String(), sealer.Recipient())

	s := openSQLite(t, Options{Sealer: sealer})
	loc := platform.Location{Keychain: "User", Service: "svc", Account: "acct"}
	secret := []byte{0x00, 0xff, 's', 'e', 'c'}

	require.NoError(t, s.Set(loc, secret, nil))

	var stored []byte
	require.NoError(t, s.db.QueryRow("SELECT secret FROM "+Table).Scan(&stored))
	assert.NotEqual(t, secret, stored)

	got, err := s.Fetch(loc)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestReadAgeSealer(t *testing.T) {
	t.Parallel()

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	file := "# created: 2026-01-01\n# public key: " + identity.Recipient().String() + "\n" + identity.String() + "\n"
	sealer, err := ReadAgeSealer(strings.NewReader(file))
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("hello"))
	require.NoError(t, err)
	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), opened)

	_, err = NewAgeSealer("not a key")
	assert.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "sqlite", want: "sqlite"},
		{input: "PostgreSQL", want: "postgres"},
		{input: "mariadb", want: "mysql"},
		{input: "sqlserver", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			d, err := DialectFor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestPostgresPlaceholders(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := New(db, Postgres, Options{})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credstore_items (keychain, service, account, access_group, synchronizable, protection, require_auth, secret) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT")).
		WithArgs("", "svc", "acct", "default", false, "ak", false, []byte("pw")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Set(platform.Location{Service: "svc", Account: "acct"}, []byte("pw"),
		&platform.AccessControl{Protection: platform.AccessibleWhenUnlocked})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUpsert(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := New(db, MySQL, Options{})
	mock.ExpectExec(regexp.QuoteMeta("VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE secret = VALUES(secret)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(platform.Location{Keychain: "User", Service: "svc", Account: "acct"}, []byte("pw"), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLKeyColumnsAreCaseSensitive(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := New(db, MySQL, Options{})
	for _, column := range []string{"keychain VARCHAR(32)", "service VARCHAR(191)", "account VARCHAR(191)", "access_group VARCHAR(191)"} {
		assert.Contains(t, MySQL.schema, column+" CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL")
	}
	mock.ExpectExec(regexp.QuoteMeta("service VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRejectsUnknownProtection(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := New(db, SQLite, Options{})
	mock.ExpectQuery("SELECT access_group, protection, require_auth, secret FROM credstore_items").
		WillReturnRows(sqlmock.NewRows([]string{"access_group", "protection", "require_auth", "secret"}).
			AddRow("", "sometimes", false, []byte("pw")))

	_, err = s.Fetch(platform.Location{Keychain: "User", Service: "s", Account: "a"})
	assert.Equal(t, platform.StatusIO, statusOf(t, err))
	assert.Contains(t, err.Error(), "reading stored access control")
}

func TestTranslateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want platform.Status
	}{
		{name: "conn_done", err: sql.ErrConnDone, want: platform.StatusNotAvailable},
		{name: "deadline", err: context.DeadlineExceeded, want: platform.StatusNotAvailable},
		{name: "other", err: errors.New("syntax error"), want: platform.StatusIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			s := New(db, SQLite, Options{})
			mock.ExpectQuery("SELECT access_group, protection, require_auth, secret FROM credstore_items").
				WillReturnError(tt.err)

			_, err = s.Fetch(platform.Location{Keychain: "User", Service: "s", Account: "a"})
			assert.Equal(t, tt.want, statusOf(t, err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFetchOpensSealedRow(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	sealer, err := NewAgeSealer(identity.String())
	require.NoError(t, err)

	s := New(db, SQLite, Options{Sealer: sealer})
	mock.ExpectQuery("SELECT access_group, protection, require_auth, secret FROM credstore_items").
		WillReturnRows(sqlmock.NewRows([]string{"access_group", "protection", "require_auth", "secret"}).
			AddRow("", "ak", false, []byte("not age ciphertext")))

	_, err = s.Fetch(platform.Location{Keychain: "User", Service: "s", Account: "a"})
	assert.Equal(t, platform.StatusIO, statusOf(t, err))
}
