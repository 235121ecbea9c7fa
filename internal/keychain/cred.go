package keychain

import (
	"fmt"
	"time"

	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/pkg/credential"
)

// Cred is a credential in one legacy keychain domain.
type Cred struct {
	store   *Store
	domain  Domain
	service string
	account string
}

// Domain returns the keychain domain the credential lives in.
func (c *Cred) Domain() Domain { return c.domain }

func (c *Cred) location() platform.Location {
	return platform.Location{
		Keychain: c.domain.String(),
		Service:  c.service,
		Account:  c.account,
	}
}

// SetSecret implements credential.Credential.
func (c *Cred) SetSecret(secret []byte) (err error) {
	start := time.Now()
	defer func() { c.store.observe("set_secret", start, err) }()

	return platform.Decode(c.store.storage.Set(c.location(), secret, nil), platform.VariantLegacy)
}

// GetSecret implements credential.Credential.
func (c *Cred) GetSecret() (secret []byte, err error) {
	start := time.Now()
	defer func() { c.store.observe("get_secret", start, err) }()

	secret, err = c.store.storage.Fetch(c.location())
	if err != nil {
		return nil, platform.Decode(err, platform.VariantLegacy)
	}
	return secret, nil
}

// GetAttributes returns the synthesized "keychain" attribute.
func (c *Cred) GetAttributes() (attrs map[string]string, err error) {
	start := time.Now()
	defer func() { c.store.observe("get_attributes", start, err) }()

	if err = c.store.storage.Exists(c.location()); err != nil {
		return nil, platform.Decode(err, platform.VariantLegacy)
	}
	return map[string]string{"keychain": c.domain.String()}, nil
}

// DeleteCredential implements credential.Credential.
func (c *Cred) DeleteCredential() (err error) {
	start := time.Now()
	defer func() { c.store.observe("delete_credential", start, err) }()

	return platform.Decode(c.store.storage.Delete(c.location()), platform.VariantLegacy)
}

// GetCredential checks that the credential exists. Legacy credentials are
// always pinned, so the receiver is its own resolution.
func (c *Cred) GetCredential() (resolved credential.Credential, err error) {
	start := time.Now()
	defer func() { c.store.observe("get_credential", start, err) }()

	if err = c.store.storage.Exists(c.location()); err != nil {
		return nil, platform.Decode(err, platform.VariantLegacy)
	}
	return nil, nil
}

// GetSpecifiers implements credential.Credential.
func (c *Cred) GetSpecifiers() (string, string, bool) {
	return c.service, c.account, true
}

// Scope implements credential.Credential.
func (c *Cred) Scope() credential.Scope {
	return credential.Scope{Kind: credential.ScopeLegacy, Keychain: c.domain.String()}
}

func (c *Cred) String() string {
	return fmt.Sprintf("keychain.Cred{service: %q, account: %q, keychain: %s}", c.service, c.account, c.domain)
}

var _ credential.Credential = (*Cred)(nil)
