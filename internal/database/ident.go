package database

import "strings"

// MaxIdentifierLen is the longest identifier ValidIdentifier accepts.
const MaxIdentifierLen = 30

// ValidIdentifier applies the conservative identifier rule used for
// savepoints and the table name: 1 to 30 bytes, the first an ASCII letter or
// underscore, the rest ASCII letters, digits, '_', '$' or '#'.
func ValidIdentifier(name string) bool {
	if len(name) == 0 || len(name) > MaxIdentifierLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
		case i > 0 && (c >= '0' && c <= '9' || c == '$' || c == '#'):
		default:
			return false
		}
	}
	return true
}

// NormalizeIdentifier upper-cases a valid identifier. The second result is
// false when name breaks the rule.
func NormalizeIdentifier(name string) (string, bool) {
	if !ValidIdentifier(name) {
		return "", false
	}
	return strings.ToUpper(name), true
}
