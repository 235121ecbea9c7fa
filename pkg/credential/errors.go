package credential

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEntry is returned by single-credential operations that find nothing.
var ErrNoEntry = errors.New("no matching entry found in secure storage")

// InvalidError indicates that the caller supplied an unrecognized or
// malformed option. It is always detected before any storage call.
type InvalidError struct {
	// Parameter names the offending option.
	Parameter string

	// Reason explains what is wrong with it.
	Reason string
}

// Invalid builds an InvalidError.
func Invalid(parameter, reason string) *InvalidError {
	return &InvalidError{Parameter: parameter, Reason: reason}
}

// Error implements the error interface.
func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Parameter, e.Reason)
}

// AmbiguousError indicates that more than one secret matched an operation
// that requires a unique match.
//
// Each candidate is a resolved wrapper, so callers can pick one and proceed
// deterministically.
type AmbiguousError struct {
	Candidates []*Entry
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	groups := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		group := c.Scope().AccessGroup
		if group == "" {
			group = c.Scope().Keychain
		}
		groups = append(groups, group)
	}
	return fmt.Sprintf("entry is matched by %d credentials (%s)", len(e.Candidates), strings.Join(groups, ", "))
}

// NoStorageAccessError indicates that the physical store or domain is
// unavailable, read-only or absent.
type NoStorageAccessError struct {
	Err error
}

// Error implements the error interface.
func (e *NoStorageAccessError) Error() string {
	return fmt.Sprintf("couldn't access platform secure storage: %v", e.Err)
}

// Unwrap returns the platform cause.
func (e *NoStorageAccessError) Unwrap() error {
	return e.Err
}

// PlatformFailureError wraps any other platform-reported failure.
type PlatformFailureError struct {
	Err error
}

// Error implements the error interface.
func (e *PlatformFailureError) Error() string {
	return fmt.Sprintf("platform secure storage failure: %v", e.Err)
}

// Unwrap returns the platform cause.
func (e *PlatformFailureError) Unwrap() error {
	return e.Err
}

// NotSupportedError indicates that a requested configuration or operation
// is not available from this store.
type NotSupportedError struct {
	Reason string
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	return "not supported by this store: " + e.Reason
}

// BadEncodingError is returned by GetPassword when the secret is not UTF-8.
type BadEncodingError struct {
	Secret []byte
}

// Error implements the error interface.
func (e *BadEncodingError) Error() string {
	return "secret is not valid UTF-8"
}

// Kind classifies an error into the taxonomy.
type Kind int

const (
	KindNone Kind = iota
	KindNoEntry
	KindInvalid
	KindAmbiguous
	KindNoStorageAccess
	KindPlatformFailure
	KindNotSupported
	KindBadEncoding
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindNoEntry:
		return "no_entry"
	case KindInvalid:
		return "invalid"
	case KindAmbiguous:
		return "ambiguous"
	case KindNoStorageAccess:
		return "no_storage_access"
	case KindPlatformFailure:
		return "platform_failure"
	case KindNotSupported:
		return "not_supported"
	case KindBadEncoding:
		return "bad_encoding"
	default:
		return "other"
	}
}

// KindOf classifies err, looking through wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		invalid      *InvalidError
		ambiguous    *AmbiguousError
		noAccess     *NoStorageAccessError
		failure      *PlatformFailureError
		notSupported *NotSupportedError
		badEncoding  *BadEncodingError
	)
	switch {
	case errors.Is(err, ErrNoEntry):
		return KindNoEntry
	case errors.As(err, &invalid):
		return KindInvalid
	case errors.As(err, &ambiguous):
		return KindAmbiguous
	case errors.As(err, &noAccess):
		return KindNoStorageAccess
	case errors.As(err, &failure):
		return KindPlatformFailure
	case errors.As(err, &notSupported):
		return KindNotSupported
	case errors.As(err, &badEncoding):
		return KindBadEncoding
	default:
		return KindOther
	}
}
