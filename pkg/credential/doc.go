// Package credential defines the contracts between callers and the secure
// credential stores in credstore.
//
// A credential is identified by a (service, account) pair plus a scope that
// says which physical secure store holds it. Stores turn a (service, account,
// modifiers) request into an Entry; entries read, write and delete the secret
// they identify.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                      CLI Commands                           │
//	│                  (cmd/credstore/commands/)                  │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│                  Store Registry                             │
//	│                 (internal/registry/)                        │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│            Store / Credential / Entry contracts             │
//	│                   (pkg/credential/)            ◄────────────┤
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│                Store Implementations                        │
//	│      (internal/keychain/, internal/protected/)              │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│            Secure Storage Capabilities                      │
//	│   (internal/platform/{memory,oskeyring,sqlstore})           │
//	└─────────────────────────────────────────────────────────────┘
//
// # Specifiers and Wrappers
//
// Every Entry wraps exactly one Credential. An entry built by a Store is a
// specifier: it names a service and account but may leave its scope open
// (for example, a protected-store entry without an access group). A
// specifier resolves, at call time, to whatever single secret the platform
// picks for it.
//
// An entry returned from Search, or from GetCredential on a specifier, is a
// wrapper: its scope is pinned to exactly one physical secret, so repeated
// operations on it can never be ambiguous.
//
// # Ambiguity
//
// Plain GetSecret, SetSecret and DeleteCredential on an unpinned specifier
// let the platform apply its default resolution order. GetCredential does
// not: when more than one physical secret matches, it fails with an
// AmbiguousError that carries one wrapper per candidate.
//
//	entry, err := store.Build("my-service", "alice", nil)
//	if err != nil {
//	    return err
//	}
//	wrapper, err := entry.GetCredential()
//	var ambiguous *credential.AmbiguousError
//	if errors.As(err, &ambiguous) {
//	    for _, candidate := range ambiguous.Candidates {
//	        fmt.Println(candidate.Scope().AccessGroup)
//	    }
//	}
//
// # Error Handling
//
// Every failure is one of a small set of kinds:
//   - ErrNoEntry: a single-item operation found nothing
//   - InvalidError: the caller supplied an unrecognized or malformed option
//   - AmbiguousError: more than one secret matched where one was required
//   - NoStorageAccessError: the physical store itself is unreachable
//   - PlatformFailureError: any other platform failure, with its cause
//   - NotSupportedError: the requested configuration is unavailable
//
// KindOf classifies any error, including wrapped ones.
//
// # Threading and Concurrency
//
// Stores and credentials are immutable after construction and may be shared
// between goroutines. Each storage call is as atomic as the underlying
// capability makes it; a read followed by a write is not transactional.
package credential
