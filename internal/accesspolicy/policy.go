// Package accesspolicy resolves the condition under which a protected
// secret may be released.
//
// Policies are ordered from the widest exposure window to the narrowest:
//
//	AfterFirstUnlock < AfterFirstUnlockThisDeviceOnly < WhenUnlocked (default)
//	  < WhenUnlockedThisDeviceOnly < WhenPasscodeSetThisDeviceOnly
//	  < RequireUserPresence
//
// A store declares which subset of these it recognizes (see Set). Policy
// names are matched case-insensitively in kebab form ("when-unlocked") or
// compact camel form ("WhenUnlocked"); "default" always means WhenUnlocked.
package accesspolicy

import (
	"fmt"
	"strings"

	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/pkg/credential"
)

// Policy is an access policy for protected items.
type Policy int

const (
	AfterFirstUnlock Policy = iota
	AfterFirstUnlockThisDeviceOnly
	WhenUnlocked
	WhenUnlockedThisDeviceOnly
	WhenPasscodeSetThisDeviceOnly
	RequireUserPresence
)

// Default is the policy used when none is requested.
const Default = WhenUnlocked

var names = [...]struct{ camel, kebab string }{
	AfterFirstUnlock:               {"AfterFirstUnlock", "after-first-unlock"},
	AfterFirstUnlockThisDeviceOnly: {"AfterFirstUnlockThisDeviceOnly", "after-first-unlock-this-device-only"},
	WhenUnlocked:                   {"WhenUnlocked", "when-unlocked"},
	WhenUnlockedThisDeviceOnly:     {"WhenUnlockedThisDeviceOnly", "when-unlocked-this-device-only"},
	WhenPasscodeSetThisDeviceOnly:  {"WhenPasscodeSetThisDeviceOnly", "when-passcode-set-this-device-only"},
	RequireUserPresence:            {"RequireUserPresence", "require-user-presence"},
}

// lookup holds every accepted lower-case spelling.
var lookup = func() map[string]Policy {
	m := map[string]Policy{"default": Default}
	for p, n := range names {
		m[strings.ToLower(n.camel)] = Policy(p)
		m[n.kebab] = Policy(p)
	}
	return m
}()

func (p Policy) valid() bool {
	return p >= AfterFirstUnlock && p <= RequireUserPresence
}

// String returns the camel-case name.
func (p Policy) String() string {
	if !p.valid() {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return names[p].camel
}

// Kebab returns the kebab-case name.
func (p Policy) Kebab() string {
	if !p.valid() {
		return p.String()
	}
	return names[p].kebab
}

// RequiresPresence reports whether releasing the secret needs a live user.
func (p Policy) RequiresPresence() bool {
	return p == RequireUserPresence
}

// DeviceOnly reports whether the secret may never leave this device.
func (p Policy) DeviceOnly() bool {
	switch p {
	case AfterFirstUnlockThisDeviceOnly, WhenUnlockedThisDeviceOnly, WhenPasscodeSetThisDeviceOnly:
		return true
	}
	return false
}

// AccessControl maps the policy to the platform protection it is created
// with. RequireUserPresence keeps the default WhenUnlocked class and layers
// the presence requirement on top.
func (p Policy) AccessControl() platform.AccessControl {
	switch p {
	case AfterFirstUnlock:
		return platform.AccessControl{Protection: platform.AccessibleAfterFirstUnlock}
	case AfterFirstUnlockThisDeviceOnly:
		return platform.AccessControl{Protection: platform.AccessibleAfterFirstUnlockThisDeviceOnly}
	case WhenUnlockedThisDeviceOnly:
		return platform.AccessControl{Protection: platform.AccessibleWhenUnlockedThisDeviceOnly}
	case WhenPasscodeSetThisDeviceOnly:
		return platform.AccessControl{Protection: platform.AccessibleWhenPasscodeSetThisDeviceOnly}
	case RequireUserPresence:
		return platform.AccessControl{Protection: platform.AccessibleWhenUnlocked, UserPresence: true}
	default:
		return platform.AccessControl{Protection: platform.AccessibleWhenUnlocked}
	}
}

// CheckSync rejects policies that cannot be honored by a cloud-synchronized
// item. Presence cannot be verified during background sync, and device-only
// items never sync.
func CheckSync(p Policy, cloudSync bool) error {
	if !cloudSync {
		return nil
	}
	if p.RequiresPresence() {
		return credential.Invalid("access-policy", "require-user-presence cannot be used with cloud-sync")
	}
	if p.DeviceOnly() {
		return credential.Invalid("access-policy", p.Kebab()+" cannot be used with cloud-sync")
	}
	return nil
}
