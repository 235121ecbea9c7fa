package platform

import (
	"errors"

	"github.com/systmms/credstore/pkg/credential"
)

// Variant selects the mapping for codes whose meaning differs by store.
type Variant int

const (
	// VariantLegacy is the keychain-domain store.
	VariantLegacy Variant = iota
	// VariantProtected is the protected data store.
	VariantProtected
)

// Decode maps a backend failure into the credential error taxonomy.
//
// The original error is always kept as the cause of NoStorageAccessError
// and PlatformFailureError.
func Decode(err error, variant Variant) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if !errors.As(err, &perr) {
		return &credential.PlatformFailureError{Err: err}
	}
	switch perr.Code {
	case StatusItemNotFound:
		return credential.ErrNoEntry
	case StatusNotAvailable, StatusReadOnly, StatusNoSuchKeychain, StatusInvalidKeychain:
		return &credential.NoStorageAccessError{Err: err}
	case StatusMissingEntitlement:
		if variant == VariantLegacy {
			return &credential.NoStorageAccessError{Err: err}
		}
		return &credential.PlatformFailureError{Err: err}
	case StatusUnimplemented:
		return &credential.NotSupportedError{Reason: perr.Error()}
	default:
		return &credential.PlatformFailureError{Err: err}
	}
}

// IsNotFound reports whether err is a backend "item not found" failure.
func IsNotFound(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Code == StatusItemNotFound
}
