package interpolate

import (
	"regexp"
	"sort"
	"strings"
)

// token matches {{ name }} placeholders, tolerating whitespace around the name.
var token = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_][A-Za-z0-9_.-]*)\s*\}\}`)

// Apply replaces every {{name}} token in text with the mapped value. Name
// matching is case-insensitive. Names absent from vars are substituted as
// empty string and reported back so callers can surface authoring typos.
// Substituted values are never re-scanned, so applying the result again is a
// no-op as long as values introduce no new tokens.
func Apply(text string, vars map[string]string) (string, []string) {
	lowered := make(map[string]string, len(vars))
	for name, value := range vars {
		lowered[strings.ToLower(name)] = value
	}

	missing := make(map[string]struct{})
	result := token.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.ToLower(strings.Trim(match, "{} \t"))
		if value, ok := lowered[name]; ok {
			return value
		}
		missing[name] = struct{}{}
		return ""
	})

	if len(missing) == 0 {
		return result, nil
	}
	unresolved := make([]string, 0, len(missing))
	for name := range missing {
		unresolved = append(unresolved, name)
	}
	sort.Strings(unresolved)
	return result, unresolved
}

// Tokens returns the distinct lowercased variable names referenced by text,
// in order of first appearance.
func Tokens(text string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, match := range token.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(match[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
