package config

import "regexp"

// placeholderPattern matches {placeholder} tokens in command argument
// templates, e.g. {database_url} or {output_path}.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Substitute replaces {placeholder} tokens in s with values from vars.
// Unknown placeholders are left in place so callers can detect them with
// FindUnresolved.
func Substitute(s string, vars map[string]string) string {
	if s == "" {
		return s
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// FindUnresolved returns all {placeholder} tokens remaining in s.
func FindUnresolved(s string) []string {
	return placeholderPattern.FindAllString(s, -1)
}
