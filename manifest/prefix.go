package manifest

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a dependency name to a module segment.
// "my-app" -> "my_app", "myApp" -> "my_app", "Models" -> "models"
func ToSnakeCase(s string) string {
	var sb strings.Builder
	var prev rune
	for i, r := range s {
		switch {
		case r == '-' || r == '_' || r == ' ' || r == '.':
			if sb.Len() > 0 && prev != '_' {
				sb.WriteRune('_')
				prev = '_'
			}
			continue
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				sb.WriteRune('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
		prev = r
	}
	return strings.TrimSuffix(sb.String(), "_")
}

// reservedPrefixes are root segments owned by the runtime.
var reservedPrefixes = map[string]bool{
	"core": true,
}

// IsReservedPrefix reports whether the root segment of prefix belongs to
// the runtime. Only the root is checked: "vendor::core" is fine.
func IsReservedPrefix(prefix string) bool {
	root, _, _ := strings.Cut(prefix, "::")
	return reservedPrefixes[root]
}

// ValidPrefix reports whether prefix is a :: separated list of identifiers.
func ValidPrefix(prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, seg := range strings.Split(prefix, "::") {
		if seg == "" {
			return false
		}
		for i, r := range seg {
			if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
				continue
			}
			return false
		}
	}
	return true
}
