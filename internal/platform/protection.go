package platform

import "fmt"

// Protection is the storage-level protection class of an item.
type Protection int

const (
	ProtectionDefault Protection = iota
	AccessibleAfterFirstUnlock
	AccessibleAfterFirstUnlockThisDeviceOnly
	AccessibleWhenUnlocked
	AccessibleWhenUnlockedThisDeviceOnly
	AccessibleWhenPasscodeSetThisDeviceOnly
)

var protectionNames = map[Protection]string{
	ProtectionDefault:                        "default",
	AccessibleAfterFirstUnlock:               "ck",
	AccessibleAfterFirstUnlockThisDeviceOnly: "cku",
	AccessibleWhenUnlocked:                   "ak",
	AccessibleWhenUnlockedThisDeviceOnly:     "aku",
	AccessibleWhenPasscodeSetThisDeviceOnly:  "akpu",
}

// String returns the kSecAttrAccessible code, which is also how the class is
// persisted.
func (p Protection) String() string {
	if name, ok := protectionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Protection(%d)", int(p))
}

// ParseProtection is the inverse of Protection.String.
func ParseProtection(s string) (Protection, error) {
	for p, name := range protectionNames {
		if name == s {
			return p, nil
		}
	}
	return ProtectionDefault, fmt.Errorf("unknown protection class %q", s)
}

// AccessControl is the protection requested when an item is created.
type AccessControl struct {
	Protection Protection

	// UserPresence requires interactive authentication whenever the item
	// is read. It is orthogonal to the protection class.
	UserPresence bool
}
