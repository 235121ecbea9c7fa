package credential

// Credential is the platform-specific half of an Entry.
//
// Implementations are immutable values. Any change in derived scope
// information produces a new Credential rather than mutating the receiver.
type Credential interface {
	// SetSecret creates or replaces the underlying secret.
	SetSecret(secret []byte) error

	// GetSecret returns the underlying secret.
	//
	// Returns ErrNoEntry if there is no matching secret.
	GetSecret() ([]byte, error)

	// GetAttributes returns the attributes exposed by the store for the
	// underlying secret. Returns ErrNoEntry if there is no matching secret.
	GetAttributes() (map[string]string, error)

	// DeleteCredential removes the underlying secret.
	//
	// Returns ErrNoEntry if there is no matching secret.
	DeleteCredential() error

	// GetCredential resolves this credential to the unique secret it
	// identifies.
	//
	// A nil Credential with a nil error means the receiver is already
	// resolved and exists. A non-nil Credential is a wrapper pinned to the
	// matched secret. Returns ErrNoEntry when nothing matches and an
	// AmbiguousError when more than one secret matches.
	GetCredential() (Credential, error)

	// GetSpecifiers returns the service and account of the credential.
	GetSpecifiers() (service, account string, ok bool)

	// Scope describes where the credential lives.
	Scope() Scope
}

// ScopeKind distinguishes the two families of physical store.
type ScopeKind int

const (
	// ScopeLegacy is one of the fixed keychain domains.
	ScopeLegacy ScopeKind = iota
	// ScopeProtected is the protected data store.
	ScopeProtected
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeLegacy:
		return "legacy"
	case ScopeProtected:
		return "protected"
	default:
		return "unknown"
	}
}

// Scope is the introspection view of a credential's physical location.
type Scope struct {
	Kind ScopeKind

	// Keychain names the legacy keychain domain. Empty for protected scopes.
	Keychain string

	// AccessGroup is the protected-store access group. Empty means the
	// credential has not been pinned to a group.
	AccessGroup string

	// CloudSynchronize reports whether the credential lives in the
	// cloud-synchronized protected store.
	CloudSynchronize bool

	// AccessPolicy is the canonical name of the policy used when the
	// credential is created. Empty for legacy scopes.
	AccessPolicy string
}

// Pinned reports whether the scope names exactly one physical location.
//
// Legacy scopes are always pinned. Protected scopes are pinned once they
// carry an access group.
func (s Scope) Pinned() bool {
	if s.Kind == ScopeLegacy {
		return true
	}
	return s.AccessGroup != ""
}

// Persistence describes how long a store keeps its credentials.
type Persistence int

const (
	// PersistenceUnspecified is the zero value.
	PersistenceUnspecified Persistence = iota
	// PersistenceProcessOnly credentials vanish when the process exits.
	PersistenceProcessOnly
	// PersistenceUntilReboot credentials vanish when the machine restarts.
	PersistenceUntilReboot
	// PersistenceUntilDelete credentials are kept until explicitly deleted.
	PersistenceUntilDelete
)

func (p Persistence) String() string {
	switch p {
	case PersistenceProcessOnly:
		return "process-only"
	case PersistenceUntilReboot:
		return "until-reboot"
	case PersistenceUntilDelete:
		return "until-delete"
	default:
		return "unspecified"
	}
}

// Store is a configured gateway to one physical secure-storage domain.
//
// Two stores with identical configuration behave identically but report
// distinct IDs. Stores are immutable after construction.
type Store interface {
	// Vendor is a static description of the store implementation.
	Vendor() string

	// ID is unique per instantiation. It is not stable across processes.
	ID() string

	// Build creates an entry for service and user. Per-entry modifiers take
	// precedence over the store's configuration. Build never touches
	// storage; it fails with an InvalidError before any storage call when
	// the request is malformed.
	Build(service, user string, modifiers map[string]string) (*Entry, error)

	// Search returns a wrapper entry for every credential matching spec.
	// A search that matches nothing returns an empty slice, never
	// ErrNoEntry.
	Search(spec map[string]string) ([]*Entry, error)

	// Persistence reports how long credentials are kept.
	Persistence() Persistence
}
