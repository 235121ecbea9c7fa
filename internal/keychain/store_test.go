package keychain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/internal/platform/memory"
	"github.com/systmms/credstore/internal/platform/oskeyring"
	"github.com/systmms/credstore/internal/platform/sqlstore"
	"github.com/systmms/credstore/pkg/credential"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func TestContractMemory(t *testing.T) {
	storage := memory.New(memory.Options{})
	credential.RunContractTests(t, credential.ContractTest{
		CreateStore: func(t *testing.T) credential.Store { return New(storage) },
	})
}

func TestContractSQLite(t *testing.T) {
	storage, err := sqlstore.Open(context.Background(), sqlstore.SQLite, filepath.Join(t.TempDir(), "keychain.db"), sqlstore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	credential.RunContractTests(t, credential.ContractTest{
		CreateStore: func(t *testing.T) credential.Store { return New(storage) },
	})
}

// The go-keyring mock provider is a bare map, so the parallel round trips
// run against lockedKeyring instead.
func TestContractOSKeyring(t *testing.T) {
	storage := oskeyring.New()
	credential.RunContractTests(t, credential.ContractTest{
		CreateStore:     func(t *testing.T) credential.Store { return New(storage) },
		SkipConcurrency: true,
	})
}

func TestContractOSKeyringClient(t *testing.T) {
	storage := oskeyring.NewWithClient(&lockedKeyring{items: make(map[[2]string]string)})
	credential.RunContractTests(t, credential.ContractTest{
		CreateStore: func(t *testing.T) credential.Store { return New(storage) },
	})
}

type lockedKeyring struct {
	mu    sync.Mutex
	items map[[2]string]string
}

func (k *lockedKeyring) Get(service, user string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.items[[2]string{service, user}]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (k *lockedKeyring) Set(service, user, password string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.items[[2]string{service, user}] = password
	return nil
}

func (k *lockedKeyring) Delete(service, user string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	key := [2]string{service, user}
	if _, ok := k.items[key]; !ok {
		return keyring.ErrNotFound
	}
	delete(k.items, key)
	return nil
}

func TestParseDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Domain
		wantErr bool
	}{
		{input: "User", want: User},
		{input: "system", want: System},
		{input: "COMMON", want: Common},
		{input: "dynamic", want: Dynamic},
		{input: "login", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDomain(tt.input)
			if tt.wantErr {
				var invalid *credential.InvalidError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, "keychain", invalid.Parameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWithConfiguration(t *testing.T) {
	t.Parallel()

	storage := memory.New(memory.Options{})

	s, err := NewWithConfiguration(map[string]string{"keychain": "system"}, storage)
	require.NoError(t, err)
	assert.Equal(t, System, s.Config().Keychain)

	s, err = NewWithConfiguration(nil, storage)
	require.NoError(t, err)
	assert.Equal(t, User, s.Config().Keychain)

	_, err = NewWithConfiguration(map[string]string{"access-group": "x"}, storage)
	var invalid *credential.InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "access-group", invalid.Parameter)

	_, err = NewWithConfiguration(map[string]string{"keychain": "nope"}, storage)
	assert.Equal(t, credential.KindInvalid, credential.KindOf(err))
}

func TestBuildDomainOverride(t *testing.T) {
	t.Parallel()

	storage := memory.New(memory.Options{})
	s := New(storage)

	user, err := s.Build("svc", "acct", nil)
	require.NoError(t, err)
	common, err := s.Build("svc", "acct", map[string]string{"keychain": "Common"})
	require.NoError(t, err)

	require.NoError(t, user.SetPassword("in user"))
	require.NoError(t, common.SetPassword("in common"))

	got, err := user.GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "in user", got)
	got, err = common.GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "in common", got)

	attrs, err := common.GetAttributes()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"keychain": "Common"}, attrs)
	assert.Equal(t, credential.Scope{Kind: credential.ScopeLegacy, Keychain: "Common"}, common.Scope())

	_, err = s.Build("svc", "acct", map[string]string{"keychain": "Nowhere"})
	assert.Equal(t, credential.KindInvalid, credential.KindOf(err))
	_, err = s.Build("svc", "acct", map[string]string{"access-policy": "default"})
	assert.Equal(t, credential.KindInvalid, credential.KindOf(err))
}

func TestGetCredentialIsExistenceCheck(t *testing.T) {
	t.Parallel()

	s := New(memory.New(memory.Options{}))
	entry, err := s.Build("svc", "acct", nil)
	require.NoError(t, err)

	_, err = entry.GetCredential()
	assert.ErrorIs(t, err, credential.ErrNoEntry)
	_, err = entry.GetAttributes()
	assert.ErrorIs(t, err, credential.ErrNoEntry)

	require.NoError(t, entry.SetPassword("pw"))
	resolved, err := entry.GetCredential()
	require.NoError(t, err)
	assert.Same(t, entry, resolved)
}

func TestStorageAccessFailures(t *testing.T) {
	t.Parallel()

	storage := memory.New(memory.Options{
		Keychains:         []string{"User", "System"},
		ReadOnlyKeychains: []string{"System"},
	})

	tests := []struct {
		name     string
		keychain string
		op       func(e *credential.Entry) error
	}{
		{name: "missing_domain_read", keychain: "Dynamic", op: func(e *credential.Entry) error { _, err := e.GetSecret(); return err }},
		{name: "missing_domain_write", keychain: "Dynamic", op: func(e *credential.Entry) error { return e.SetPassword("x") }},
		{name: "read_only_write", keychain: "System", op: func(e *credential.Entry) error { return e.SetPassword("x") }},
		{name: "read_only_delete", keychain: "System", op: func(e *credential.Entry) error { return e.DeleteCredential() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := NewWithConfiguration(map[string]string{"keychain": tt.keychain}, storage)
			require.NoError(t, err)
			entry, err := s.Build("svc", "acct", nil)
			require.NoError(t, err)

			err = tt.op(entry)
			var noAccess *credential.NoStorageAccessError
			require.ErrorAs(t, err, &noAccess)
			var perr *platform.Error
			assert.ErrorAs(t, err, &perr, "cause must be kept")
		})
	}
}

func TestOSKeyringOnlyReachesUser(t *testing.T) {
	s, err := NewWithConfiguration(map[string]string{"keychain": "System"}, oskeyring.New())
	require.NoError(t, err)
	entry, err := s.Build("svc", "acct", nil)
	require.NoError(t, err)

	err = entry.SetPassword("x")
	assert.Equal(t, credential.KindNoStorageAccess, credential.KindOf(err))

	_, err = New(oskeyring.New()).Search(nil)
	assert.Equal(t, credential.KindNotSupported, credential.KindOf(err))
}

func TestSearch(t *testing.T) {
	t.Parallel()

	storage := memory.New(memory.Options{})
	s := New(storage)
	for _, pair := range [][2]string{{"svc-a", "alice"}, {"svc-a", "bob"}, {"svc-b", "alice"}} {
		e, err := s.Build(pair[0], pair[1], nil)
		require.NoError(t, err)
		require.NoError(t, e.SetPassword("pw"))
	}
	other, err := s.Build("svc-a", "carol", map[string]string{"keychain": "System"})
	require.NoError(t, err)
	require.NoError(t, other.SetPassword("pw"))

	tests := []struct {
		name string
		spec map[string]string
		want int
	}{
		{name: "everything_in_domain", spec: nil, want: 3},
		{name: "by_service", spec: map[string]string{"service": "svc-a"}, want: 2},
		{name: "by_user", spec: map[string]string{"user": "alice"}, want: 2},
		{name: "exact", spec: map[string]string{"service": "svc-b", "user": "alice"}, want: 1},
		{name: "other_domain", spec: map[string]string{"keychain": "system"}, want: 1},
		{name: "case_sensitive", spec: map[string]string{"service": "SVC-A"}, want: 0},
		{name: "nothing", spec: map[string]string{"service": "missing"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries, err := s.Search(tt.spec)
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
			assert.NotNil(t, entries)
		})
	}

	_, err = s.Search(map[string]string{"access-group": "x"})
	assert.Equal(t, credential.KindInvalid, credential.KindOf(err))
}

type recordingRecorder struct {
	mu      sync.Mutex
	ops     []string
	results []int
}

func (r *recordingRecorder) Operation(store, operation string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, store+"/"+operation+"/"+credential.KindOf(err).String())
}

func (r *recordingRecorder) SearchResults(_ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, n)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := &recordingRecorder{}
	s := New(memory.New(memory.Options{}), WithRecorder(rec), WithName("login"))
	entry, err := s.Build("svc", "acct", nil)
	require.NoError(t, err)

	require.NoError(t, entry.SetPassword("pw"))
	_, _ = entry.GetPassword()
	require.NoError(t, entry.DeleteCredential())
	err = entry.DeleteCredential()
	assert.True(t, errors.Is(err, credential.ErrNoEntry))
	_, err = s.Search(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"login/set_secret/ok",
		"login/get_secret/ok",
		"login/delete_credential/ok",
		"login/delete_credential/no_entry",
		"login/search/ok",
	}, rec.ops)
	assert.Equal(t, []int{0}, rec.results)
}
