package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credstore/internal/platform"
)

func statusOf(t *testing.T, err error) platform.Status {
	t.Helper()
	var perr *platform.Error
	require.ErrorAs(t, err, &perr)
	return perr.Code
}

func TestLegacyRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	loc := platform.Location{Keychain: "User", Service: "svc", Account: "acct"}

	require.NoError(t, s.Set(loc, []byte("one"), nil))
	require.NoError(t, s.Set(loc, []byte("two"), nil))
	assert.Equal(t, 1, s.Len())

	got, err := s.Fetch(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	_, err = s.Fetch(platform.Location{Keychain: "System", Service: "svc", Account: "acct"})
	assert.Equal(t, platform.StatusItemNotFound, statusOf(t, err))

	require.NoError(t, s.Delete(loc))
	assert.Equal(t, platform.StatusItemNotFound, statusOf(t, s.Exists(loc)))
}

func TestKeychainAvailability(t *testing.T) {
	t.Parallel()

	s := New(Options{Keychains: []string{"User", "System"}, ReadOnlyKeychains: []string{"System"}})

	err := s.Set(platform.Location{Keychain: "Dynamic", Service: "s", Account: "a"}, []byte("x"), nil)
	assert.Equal(t, platform.StatusNoSuchKeychain, statusOf(t, err))

	err = s.Set(platform.Location{Keychain: "System", Service: "s", Account: "a"}, []byte("x"), nil)
	assert.Equal(t, platform.StatusReadOnly, statusOf(t, err))

	_, err = s.Search(platform.SearchOptions{Keychain: "Dynamic"})
	assert.Equal(t, platform.StatusNoSuchKeychain, statusOf(t, err))
}

func TestDefaultGroupResolution(t *testing.T) {
	t.Parallel()

	s := New(Options{AccessGroups: []string{"team.app", "team.shared"}})
	assert.Equal(t, "team.app", s.DefaultGroup())

	shared := platform.Location{Service: "svc", Account: "acct", AccessGroup: "team.shared"}
	require.NoError(t, s.Set(shared, []byte("shared"), nil))

	unpinned := platform.Location{Service: "svc", Account: "acct"}
	got, err := s.Fetch(unpinned)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got, "falls back to the next visible group")

	require.NoError(t, s.Set(unpinned, []byte("default"), nil))
	got, err = s.Fetch(unpinned)
	require.NoError(t, err)
	assert.Equal(t, []byte("default"), got, "default group wins")

	require.NoError(t, s.Delete(unpinned))
	got, err = s.Fetch(unpinned)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got, "delete removes only the resolved item")
}

func TestMissingEntitlement(t *testing.T) {
	t.Parallel()

	s := New(Options{AccessGroups: []string{"team.app"}})
	err := s.Set(platform.Location{Service: "s", Account: "a", AccessGroup: "other.app"}, []byte("x"), nil)
	assert.Equal(t, platform.StatusMissingEntitlement, statusOf(t, err))
}

func TestSyncScopesAreSeparate(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	local := platform.Location{Service: "s", Account: "a"}
	synced := platform.Location{Service: "s", Account: "a", Synchronizable: true}

	require.NoError(t, s.Set(local, []byte("local"), nil))
	_, err := s.Fetch(synced)
	assert.Equal(t, platform.StatusItemNotFound, statusOf(t, err))

	require.NoError(t, s.Set(synced, []byte("synced"), nil))
	got, err := s.Fetch(synced)
	require.NoError(t, err)
	assert.Equal(t, []byte("synced"), got)

	results, err := s.Search(platform.SearchOptions{Synchronizable: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Synchronizable)
}

func TestSearchSkipsAuthenticatedItems(t *testing.T) {
	t.Parallel()

	prompts := 0
	s := New(Options{Authenticator: func(platform.Location) error {
		prompts++
		return nil
	}})
	presence := &platform.AccessControl{Protection: platform.AccessibleWhenUnlocked, UserPresence: true}

	require.NoError(t, s.Set(platform.Location{Service: "plain", Account: "a"}, []byte("x"), nil))
	require.NoError(t, s.Set(platform.Location{Service: "guarded", Account: "a"}, []byte("y"), presence))

	results, err := s.Search(platform.SearchOptions{SkipAuthenticated: true})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 0, prompts)

	results, err = s.Search(platform.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, prompts)
}

func TestAuthenticationFailure(t *testing.T) {
	t.Parallel()

	s := New(Options{Authenticator: func(platform.Location) error {
		return errors.New("touch id dismissed")
	}})
	loc := platform.Location{Service: "s", Account: "a"}
	require.NoError(t, s.Set(loc, []byte("x"), &platform.AccessControl{UserPresence: true}))

	_, err := s.Fetch(loc)
	assert.Equal(t, platform.StatusAuthFailed, statusOf(t, err))
	assert.NoError(t, s.Exists(loc), "existence checks never prompt")
}

func TestSearchNothingIsNotFound(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	_, err := s.Search(platform.SearchOptions{Service: "nothing"})
	assert.True(t, platform.IsNotFound(err))
}

func TestSearchOrdering(t *testing.T) {
	t.Parallel()

	s := New(Options{AccessGroups: []string{"g1", "g2"}})
	for _, loc := range []platform.Location{
		{Service: "b", Account: "x", AccessGroup: "g2"},
		{Service: "b", Account: "x", AccessGroup: "g1"},
		{Service: "a", Account: "y", AccessGroup: "g2"},
	} {
		require.NoError(t, s.Set(loc, []byte("v"), nil))
	}

	results, err := s.Search(platform.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Service)
	assert.Equal(t, "g1", results[1].AccessGroup)
	assert.Equal(t, "g2", results[2].AccessGroup)
}

func TestSetDoesNotRetainCallerSlice(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	loc := platform.Location{Keychain: "User", Service: "s", Account: "a"}
	secret := []byte("abc")
	require.NoError(t, s.Set(loc, secret, nil))
	secret[0] = 'z'

	got, err := s.Fetch(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
