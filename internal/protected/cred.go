package protected

import (
	"fmt"
	"time"

	"github.com/systmms/credstore/internal/accesspolicy"
	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/pkg/credential"
)

// Cred is a credential in the protected data store. It is a specifier
// while group is empty and a resolved wrapper once it carries one.
type Cred struct {
	store   *Store
	service string
	account string
	group   string
	policy  accesspolicy.Policy
}

// AccessGroup returns the pinned access group, or "" for a specifier.
func (c *Cred) AccessGroup() string { return c.group }

// Policy returns the access policy used when the secret is created.
func (c *Cred) Policy() accesspolicy.Policy { return c.policy }

func (c *Cred) location() platform.Location {
	return platform.Location{
		Service:        c.service,
		Account:        c.account,
		AccessGroup:    c.group,
		Synchronizable: c.store.cfg.CloudSynchronize,
	}
}

// SetSecret implements credential.Credential. An existing secret keeps the
// access policy it was created with.
func (c *Cred) SetSecret(secret []byte) (err error) {
	start := time.Now()
	defer func() { c.store.observe("set_secret", start, err) }()

	access := c.policy.AccessControl()
	return platform.Decode(c.store.storage.Set(c.location(), secret, &access), platform.VariantProtected)
}

// GetSecret implements credential.Credential.
func (c *Cred) GetSecret() (secret []byte, err error) {
	start := time.Now()
	defer func() { c.store.observe("get_secret", start, err) }()

	secret, err = c.store.storage.Fetch(c.location())
	if err != nil {
		return nil, platform.Decode(err, platform.VariantProtected)
	}
	return secret, nil
}

// GetAttributes reports no attributes; it only checks for existence.
func (c *Cred) GetAttributes() (attrs map[string]string, err error) {
	start := time.Now()
	defer func() { c.store.observe("get_attributes", start, err) }()

	if err = c.store.storage.Exists(c.location()); err != nil {
		return nil, platform.Decode(err, platform.VariantProtected)
	}
	return map[string]string{}, nil
}

// DeleteCredential implements credential.Credential.
func (c *Cred) DeleteCredential() (err error) {
	start := time.Now()
	defer func() { c.store.observe("delete_credential", start, err) }()

	return platform.Decode(c.store.storage.Delete(c.location()), platform.VariantProtected)
}

// GetCredential resolves the credential to the one secret it identifies.
//
// A pinned credential only needs an existence check. A specifier is
// resolved by searching every visible access group, including items that
// require user presence: zero matches is ErrNoEntry, one match yields a
// wrapper pinned to its group, and more than one is an AmbiguousError
// carrying a wrapper per match.
func (c *Cred) GetCredential() (resolved credential.Credential, err error) {
	start := time.Now()
	defer func() { c.store.observe("get_credential", start, err) }()

	if c.group != "" {
		if err = c.store.storage.Exists(c.location()); err != nil {
			return nil, platform.Decode(err, platform.VariantProtected)
		}
		return nil, nil
	}

	found, err := c.store.find(platform.SearchOptions{
		Service:        c.service,
		Account:        c.account,
		Synchronizable: c.store.cfg.CloudSynchronize,
	})
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, credential.ErrNoEntry
	case 1:
		return c.store.wrap(found[0], c.group), nil
	default:
		candidates := make([]*credential.Entry, 0, len(found))
		for _, attrs := range found {
			candidates = append(candidates, credential.NewEntry(c.store.wrap(attrs, c.group)))
		}
		c.store.log.Debug("%q/%q matches %d credentials", c.service, c.account, len(found))
		return nil, &credential.AmbiguousError{Candidates: candidates}
	}
}

// GetSpecifiers implements credential.Credential.
func (c *Cred) GetSpecifiers() (string, string, bool) {
	return c.service, c.account, true
}

// Scope implements credential.Credential.
func (c *Cred) Scope() credential.Scope {
	return credential.Scope{
		Kind:             credential.ScopeProtected,
		AccessGroup:      c.group,
		CloudSynchronize: c.store.cfg.CloudSynchronize,
		AccessPolicy:     c.policy.Kebab(),
	}
}

func (c *Cred) String() string {
	return fmt.Sprintf("protected.Cred{service: %q, account: %q, access-group: %q, cloud-sync: %t, policy: %s}",
		c.service, c.account, c.group, c.store.cfg.CloudSynchronize, c.policy.Kebab())
}

var _ credential.Credential = (*Cred)(nil)
