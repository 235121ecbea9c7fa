// Package oskeyring is a secure-storage capability backed by the operating
// system keyring (macOS Keychain, Secret Service on Linux, Windows
// Credential Manager) through zalando/go-keyring.
//
// The OS keyring API only reaches the login keychain, so this capability
// serves the legacy "User" domain only. It has no access groups, no cloud
// scope and no enumeration: those requests fail with StatusUnimplemented or
// StatusMissingEntitlement.
package oskeyring

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/systmms/credstore/internal/platform"
)

// Keychain is the only legacy domain the OS keyring reaches.
const Keychain = "User"

// Client abstracts the go-keyring package functions so tests can inject
// failures.
type Client interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
	Delete(service, user string) error
}

type keyringClient struct{}

func (keyringClient) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (keyringClient) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}
func (keyringClient) Delete(service, user string) error { return keyring.Delete(service, user) }

// Storage implements platform.Storage on the OS keyring.
type Storage struct {
	client Client
}

// New returns a Storage that talks to the OS keyring.
func New() *Storage {
	return &Storage{client: keyringClient{}}
}

// NewWithClient returns a Storage using client.
func NewWithClient(client Client) *Storage {
	return &Storage{client: client}
}

func check(loc platform.Location) error {
	if loc.Keychain == "" {
		return platform.Errorf(platform.StatusUnimplemented, "the OS keyring has no protected data store")
	}
	if loc.Keychain != Keychain {
		return platform.Errorf(platform.StatusNoSuchKeychain, "the OS keyring only reaches the %s keychain, not %s", Keychain, loc.Keychain)
	}
	if loc.AccessGroup != "" || loc.Synchronizable {
		return platform.Errorf(platform.StatusMissingEntitlement, "the OS keyring has no access groups or cloud scope")
	}
	return nil
}

// Set stores the secret base64-encoded, since keyring backends only accept
// text.
func (s *Storage) Set(loc platform.Location, secret []byte, access *platform.AccessControl) error {
	if err := check(loc); err != nil {
		return err
	}
	if access != nil && access.UserPresence {
		return platform.Errorf(platform.StatusUnimplemented, "the OS keyring cannot require user presence")
	}
	return translate(s.client.Set(loc.Service, loc.Account, base64.StdEncoding.EncodeToString(secret)))
}

// Fetch implements platform.Storage.
func (s *Storage) Fetch(loc platform.Location) ([]byte, error) {
	if err := check(loc); err != nil {
		return nil, err
	}
	encoded, err := s.client.Get(loc.Service, loc.Account)
	if err != nil {
		return nil, translate(err)
	}
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &platform.Error{Code: platform.StatusIO, Message: "keyring item was not written by credstore", Err: err}
	}
	return secret, nil
}

// Exists implements platform.Storage.
func (s *Storage) Exists(loc platform.Location) error {
	if err := check(loc); err != nil {
		return err
	}
	_, err := s.client.Get(loc.Service, loc.Account)
	return translate(err)
}

// Delete implements platform.Storage.
func (s *Storage) Delete(loc platform.Location) error {
	if err := check(loc); err != nil {
		return err
	}
	return translate(s.client.Delete(loc.Service, loc.Account))
}

// Search is not available from the OS keyring API.
func (s *Storage) Search(platform.SearchOptions) ([]platform.Attributes, error) {
	return nil, platform.Errorf(platform.StatusUnimplemented, "the OS keyring cannot enumerate credentials")
}

// translate maps go-keyring failures to platform statuses.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return platform.Wrap(platform.StatusItemNotFound, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "org.freedesktop.secrets"),
		strings.Contains(msg, "dbus"),
		strings.Contains(msg, "not available"):
		return platform.Wrap(platform.StatusNotAvailable, err)
	case strings.Contains(msg, "access denied"),
		strings.Contains(msg, "user denied"),
		strings.Contains(msg, "canceled"):
		return platform.Wrap(platform.StatusAuthFailed, err)
	default:
		return platform.Wrap(platform.StatusIO, err)
	}
}

var _ platform.Storage = (*Storage)(nil)
