package bindgen

import (
	"strings"
	"unicode"
)

// ModuleName converts a Go import path to a TO2 module name.
// e.g., "encoding/json" → "go::encoding::json", "net/http" → "go::net::http"
func ModuleName(importPath string) string {
	var segs []string
	for _, part := range strings.Split(importPath, "/") {
		if part == "" {
			continue
		}
		segs = append(segs, identifier(SnakeCase(part)))
	}
	return "go::" + strings.Join(segs, "::")
}

// SnakeCase converts a Go name to a TO2 member name. Acronyms stay together.
// e.g., "HasPrefix" → "has_prefix", "ParseURL" → "parse_url",
// "URLPath" → "url_path"
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if r == '-' || r == '.' || r == ' ' {
			r = '_'
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ConstantName converts a Go constant name to the upper-case TO2 style.
// e.g., "MaxRune" → "MAX_RUNE"
func ConstantName(name string) string {
	return strings.ToUpper(SnakeCase(name))
}

// VarName converts a package name to the exported Go variable holding the
// generated module.
// e.g., "strings" → "Strings", "go-yaml" → "GoYaml"
func VarName(pkgName string) string {
	var b strings.Builder
	nextUpper := true
	for _, r := range pkgName {
		if r == '-' || r == '_' || r == '.' {
			nextUpper = true
			continue
		}
		if nextUpper {
			b.WriteRune(unicode.ToUpper(r))
			nextUpper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// identifier makes s usable as a module segment.
func identifier(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	if s == "" || unicode.IsDigit([]rune(s)[0]) {
		s = "_" + s
	}
	return s
}
