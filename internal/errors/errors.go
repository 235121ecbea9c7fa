package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/credstore/pkg/credential"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
	Err        error
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

// StoreError enhances a credential store failure with a suggestion based on
// its kind. The taxonomy error stays reachable through errors.As.
func StoreError(store, operation string, err error) error {
	if err == nil {
		return nil
	}
	ue := UserError{
		Message:    fmt.Sprintf("%s failed on store %q", operation, store),
		Details:    err.Error(),
		Suggestion: Suggestion(err),
		Err:        err,
	}
	var ambiguous *credential.AmbiguousError
	if errors.As(err, &ambiguous) {
		var groups []string
		for _, c := range ambiguous.Candidates {
			groups = append(groups, c.Scope().AccessGroup)
		}
		ue.Details = fmt.Sprintf("%d credentials match, in access groups: %s", len(groups), strings.Join(groups, ", "))
	}
	return ue
}

// Suggestion returns a hint for a credential error, or "" if there is none.
func Suggestion(err error) string {
	var invalid *credential.InvalidError
	switch credential.KindOf(err) {
	case credential.KindNoEntry:
		return "Check the service and user names; matching is exact and case-sensitive. Use 'credstore search' to list credentials"
	case credential.KindAmbiguous:
		return "Pin an access group with --modifier access-group=<group>"
	case credential.KindInvalid:
		if errors.As(err, &invalid) {
			return fmt.Sprintf("Check the value of '%s'", invalid.Parameter)
		}
	case credential.KindNoStorageAccess:
		return "The keychain or store is unavailable or read-only. Check the backend configuration with 'credstore stores'"
	case credential.KindNotSupported:
		return "This store or backend does not offer the operation. Choose another store with --store"
	case credential.KindBadEncoding:
		return "The secret is not text. Use 'credstore get --binary' to read the raw bytes"
	case credential.KindPlatformFailure:
		if IsRetryable(err) {
			return "The backend timed out or is throttling. Wait a moment and try again"
		}
		return "Run with --debug to see the underlying storage error"
	}
	return ""
}

// IsRetryable reports whether a backend failure is likely transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"broken pipe",
	"database is locked",
	"too many connections",
}

// SimplifyError turns an error that reached the top of a command into one
// a user can act on. Errors that already carry guidance are returned as is.
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var ue UserError
	if errors.As(err, &ue) {
		return err
	}
	var ce ConfigError
	if errors.As(err, &ce) {
		return err
	}

	if kind := credential.KindOf(err); kind != credential.KindOther {
		return UserError{
			Message:    "Credential store error",
			Details:    err.Error(),
			Suggestion: Suggestion(err),
			Err:        err,
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "yaml:"):
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
			Err:        err,
		}
	case strings.Contains(msg, "age identity"):
		return UserError{
			Message:    "Cannot use the age identity for sealed secrets",
			Details:    msg,
			Suggestion: "Generate one with 'age-keygen -o key.txt' and point backend.age_identity at it",
			Err:        err,
		}
	case strings.Contains(msg, "unable to open database file"), strings.Contains(msg, "permission denied"):
		return UserError{
			Message:    "Cannot open the backend database",
			Details:    msg,
			Suggestion: "Check that backend.dsn points to a writable location",
			Err:        err,
		}
	}

	return err
}
