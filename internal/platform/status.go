package platform

import "fmt"

// Status is a secure-storage result code.
//
// Values follow the Security framework's errSec codes so that failures from
// every backend read the same in logs and diagnostics.
type Status int32

const (
	StatusIO                    Status = -36
	StatusUnimplemented         Status = -4
	StatusUserCanceled          Status = -128
	StatusNotAvailable          Status = -25291
	StatusReadOnly              Status = -25292
	StatusAuthFailed            Status = -25293
	StatusNoSuchKeychain        Status = -25294
	StatusInvalidKeychain       Status = -25295
	StatusDuplicateItem         Status = -25299
	StatusItemNotFound          Status = -25300
	StatusInteractionNotAllowed Status = -25308
	StatusMissingEntitlement    Status = -34018
)

var statusText = map[Status]string{
	StatusIO:                    "I/O error",
	StatusUnimplemented:         "function or operation not implemented",
	StatusUserCanceled:          "user canceled the operation",
	StatusNotAvailable:          "no keychain is available",
	StatusReadOnly:              "read-only error",
	StatusAuthFailed:            "authorization/authentication failed",
	StatusNoSuchKeychain:        "the keychain does not exist",
	StatusInvalidKeychain:       "the keychain is not valid",
	StatusDuplicateItem:         "the item already exists",
	StatusItemNotFound:          "the item cannot be found",
	StatusInteractionNotAllowed: "interaction with the user is required",
	StatusMissingEntitlement:    "a required entitlement is missing",
}

func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return "unknown status"
}

// Error is a failure reported by a storage backend.
type Error struct {
	Code    Status
	Message string
	Err     error
}

// Errorf builds an Error with a formatted message.
func Errorf(code Status, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error carrying an underlying backend error.
func Wrap(code Status, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" {
		detail = e.Code.String()
	}
	return fmt.Sprintf("%s (OSStatus %d)", detail, int32(e.Code))
}

func (e *Error) Unwrap() error {
	return e.Err
}
