// Package attributes parses string-keyed option maps against a fixed
// allow-list.
//
// An allowed key written as "name" accepts any string value. A key written
// as "*name" is boolean: its value must be "true" or "false"
// (case-insensitive) and is normalized to lower case. Any key that is not on
// the allow-list is rejected.
package attributes

import (
	"sort"
	"strings"

	"github.com/systmms/credstore/pkg/credential"
)

// Parse validates options against allowed and returns a normalized copy.
//
// A nil or empty options map yields an empty result.
func Parse(allowed []string, options map[string]string) (map[string]string, error) {
	keys := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		if name, ok := strings.CutPrefix(key, "*"); ok {
			keys[name] = true
		} else {
			keys[key] = false
		}
	}

	// Sorted so the first reported key is deterministic.
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make(map[string]string, len(options))
	for _, name := range names {
		value := options[name]
		boolean, ok := keys[name]
		if !ok {
			return nil, credential.Invalid(name, "unknown key")
		}
		if boolean {
			lower := strings.ToLower(value)
			if lower != "true" && lower != "false" {
				return nil, credential.Invalid(name, "must be true or false")
			}
			value = lower
		}
		result[name] = value
	}
	return result, nil
}

// Bool reads a boolean key normalized by Parse.
func Bool(parsed map[string]string, key string) (value, present bool) {
	v, ok := parsed[key]
	if !ok {
		return false, false
	}
	return v == "true", true
}
