// Package platform defines the opaque secure-storage capability that the
// credential stores are built on, and the mapping from its status codes to
// the credential error taxonomy.
//
// Backends live in subpackages: memory (in-process), oskeyring (the OS
// keyring via go-keyring) and sqlstore (database/sql).
package platform

// Location selects one physical slot.
//
// Service and Account are matched exactly. An empty AccessGroup asks the
// backend to apply its default resolution: reads and deletes prefer the
// application's default group and then the other visible groups in order;
// writes go to the default group.
type Location struct {
	// Keychain names the legacy keychain domain. Empty selects the protected store.
	Keychain       string
	Service        string
	Account        string
	AccessGroup    string
	Synchronizable bool
}

// SearchOptions filters a search. Empty string fields match anything.
type SearchOptions struct {
	Keychain       string
	Service        string
	Account        string
	AccessGroup    string
	Synchronizable bool

	// SkipAuthenticated omits items that would require interactive
	// authentication, so no prompt can appear during the search.
	SkipAuthenticated bool
}

// Attributes describe an item found by a search. The access policy of the
// item is never exposed.
type Attributes struct {
	Keychain       string
	Service        string
	Account        string
	AccessGroup    string
	Synchronizable bool
}

// Location returns the slot the attributes describe.
func (a Attributes) Location() Location {
	return Location{
		Keychain:       a.Keychain,
		Service:        a.Service,
		Account:        a.Account,
		AccessGroup:    a.AccessGroup,
		Synchronizable: a.Synchronizable,
	}
}

// Storage is the secure-storage capability.
//
// Every method is individually atomic. Failures are reported as *Error
// values; anything else is treated as an opaque platform failure.
type Storage interface {
	// Set creates or replaces the secret at loc. A nil access control lets
	// the backend choose its default protection.
	Set(loc Location, secret []byte, access *AccessControl) error

	// Fetch returns the secret at loc, prompting for authentication if the
	// item requires it.
	Fetch(loc Location) ([]byte, error)

	// Exists reports nil when an item is present at loc, without reading or
	// authenticating it.
	Exists(loc Location) error

	// Delete removes the item at loc.
	Delete(loc Location) error

	// Search returns the attributes of every matching item.
	Search(opts SearchOptions) ([]Attributes, error)
}

// Authenticator performs an interactive presence check before an item
// protected by user presence is released.
type Authenticator func(loc Location) error

// AllowAuthentication is an Authenticator that always succeeds.
func AllowAuthentication(Location) error { return nil }
