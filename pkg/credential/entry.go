package credential

import (
	"fmt"
	"unicode/utf8"
)

// Entry is the caller-facing handle around exactly one Credential.
type Entry struct {
	inner Credential
}

// NewEntry wraps a credential.
func NewEntry(cred Credential) *Entry {
	return &Entry{inner: cred}
}

// Credential returns the wrapped credential.
func (e *Entry) Credential() Credential {
	return e.inner
}

// SetPassword stores a UTF-8 password.
func (e *Entry) SetPassword(password string) error {
	return e.inner.SetSecret([]byte(password))
}

// GetPassword returns the stored secret as a string.
//
// Returns a BadEncodingError carrying the raw bytes if the secret is not
// valid UTF-8.
func (e *Entry) GetPassword() (string, error) {
	secret, err := e.inner.GetSecret()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(secret) {
		return "", &BadEncodingError{Secret: secret}
	}
	return string(secret), nil
}

// SetSecret stores arbitrary bytes.
func (e *Entry) SetSecret(secret []byte) error {
	return e.inner.SetSecret(secret)
}

// GetSecret returns the stored bytes.
func (e *Entry) GetSecret() ([]byte, error) {
	return e.inner.GetSecret()
}

// GetAttributes returns the store-exposed attributes of the secret.
func (e *Entry) GetAttributes() (map[string]string, error) {
	return e.inner.GetAttributes()
}

// DeleteCredential removes the underlying secret.
func (e *Entry) DeleteCredential() error {
	return e.inner.DeleteCredential()
}

// GetCredential resolves the entry to the unique secret it identifies.
//
// The entry itself is returned when it is already resolved.
func (e *Entry) GetCredential() (*Entry, error) {
	resolved, err := e.inner.GetCredential()
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return e, nil
	}
	return NewEntry(resolved), nil
}

// Specifiers returns the service and account of the entry.
func (e *Entry) Specifiers() (service, account string, ok bool) {
	return e.inner.GetSpecifiers()
}

// Scope describes where the entry's credential lives.
func (e *Entry) Scope() Scope {
	return e.inner.Scope()
}

func (e *Entry) String() string {
	service, account, ok := e.inner.GetSpecifiers()
	if !ok {
		return fmt.Sprintf("Entry{%v}", e.inner)
	}
	scope := e.inner.Scope()
	switch scope.Kind {
	case ScopeLegacy:
		return fmt.Sprintf("Entry{service: %q, account: %q, keychain: %s}", service, account, scope.Keychain)
	default:
		group := scope.AccessGroup
		if group == "" {
			group = "<default>"
		}
		return fmt.Sprintf("Entry{service: %q, account: %q, access-group: %s, cloud-sync: %t}",
			service, account, group, scope.CloudSynchronize)
	}
}
