package keychain

import (
	"fmt"
	"strings"

	"github.com/systmms/credstore/pkg/credential"
)

// Domain is one of the fixed legacy keychain partitions.
type Domain int

const (
	User Domain = iota
	System
	Common
	Dynamic
)

var domainNames = [...]string{
	User:    "User",
	System:  "System",
	Common:  "Common",
	Dynamic: "Dynamic",
}

// Domains lists every domain in declaration order.
func Domains() []Domain {
	return []Domain{User, System, Common, Dynamic}
}

func (d Domain) String() string {
	if d < User || d > Dynamic {
		return fmt.Sprintf("Domain(%d)", int(d))
	}
	return domainNames[d]
}

// ParseDomain matches a domain name case-insensitively.
func ParseDomain(name string) (Domain, error) {
	for d, n := range domainNames {
		if strings.EqualFold(n, name) {
			return Domain(d), nil
		}
	}
	return User, credential.Invalid("keychain", fmt.Sprintf("'%s' is not User, System, Common, or Dynamic", name))
}
