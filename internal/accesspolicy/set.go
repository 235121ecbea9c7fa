package accesspolicy

import (
	"strings"

	"github.com/systmms/credstore/pkg/credential"
)

// Set is the subset of policies a store recognizes.
type Set struct {
	name    string
	members []Policy
}

var (
	// Full recognizes every policy.
	Full = Set{name: "full", members: []Policy{
		AfterFirstUnlock,
		AfterFirstUnlockThisDeviceOnly,
		WhenUnlocked,
		WhenUnlockedThisDeviceOnly,
		WhenPasscodeSetThisDeviceOnly,
		RequireUserPresence,
	}}

	// Portable recognizes the policies that exist on every protected store.
	Portable = Set{name: "portable", members: []Policy{
		AfterFirstUnlock,
		WhenUnlocked,
		RequireUserPresence,
	}}

	// Presence only distinguishes whether a live user is required.
	Presence = Set{name: "presence", members: []Policy{
		WhenUnlocked,
		RequireUserPresence,
	}}
)

var sets = map[string]Set{
	Full.name:     Full,
	Portable.name: Portable,
	Presence.name: Presence,
}

// ParseSet looks up a set by name, case-insensitively. Empty means Full.
func ParseSet(name string) (Set, error) {
	if name == "" {
		return Full, nil
	}
	set, ok := sets[strings.ToLower(name)]
	if !ok {
		return Set{}, credential.Invalid("policy-set", "unknown value: "+name+" (expected full, portable or presence)")
	}
	return set, nil
}

// Name returns the set's configuration name.
func (s Set) Name() string {
	if s.name == "" {
		return Full.name
	}
	return s.name
}

// Members returns the recognized policies, least restrictive first.
func (s Set) Members() []Policy {
	if s.members == nil {
		return Full.Members()
	}
	out := make([]Policy, len(s.members))
	copy(out, s.members)
	return out
}

// Contains reports whether p is recognized.
func (s Set) Contains(p Policy) bool {
	for _, m := range s.Members() {
		if m == p {
			return true
		}
	}
	return false
}

// Parse resolves input against the set.
func (s Set) Parse(input string) (Policy, error) {
	p, ok := lookup[strings.ToLower(input)]
	if !ok || !s.Contains(p) {
		return Default, credential.Invalid("access-policy", "unknown value: "+input)
	}
	return p, nil
}

// Resolve derives a policy from parsed options.
//
// It reads "access-policy" and the boolean "require-user-presence". When
// neither is present the fallback is returned with explicit false.
// "require-user-presence=false" keeps the fallback unless the fallback
// itself requires presence, in which case Default is used.
func (s Set) Resolve(options map[string]string, fallback Policy) (p Policy, explicit bool, err error) {
	named, hasNamed := options["access-policy"]
	presence, hasPresence := options["require-user-presence"]

	switch {
	case hasNamed && hasPresence:
		return Default, false, credential.Invalid("require-user-presence", "cannot be combined with access-policy")
	case hasNamed:
		p, err := s.Parse(named)
		if err != nil {
			return Default, false, err
		}
		return p, true, nil
	case hasPresence:
		if presence == "true" {
			return RequireUserPresence, true, nil
		}
		if fallback.RequiresPresence() {
			return Default, true, nil
		}
		return fallback, true, nil
	default:
		return fallback, false, nil
	}
}
