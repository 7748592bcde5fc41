package prompt

import (
	"regexp"
	"strings"
)

// variablePattern matches bracket placeholders like [subject]. Nested
// brackets are not allowed inside a name.
var variablePattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// ExtractVariables returns the distinct placeholder names in text, in order of
// first appearance. It returns nil when text is not a template.
func ExtractVariables(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

// IsTemplate reports whether text contains at least one placeholder.
func IsTemplate(text string) bool {
	return variablePattern.MatchString(text)
}

// Compile replaces every [name] with values[name]. Placeholders without a
// value are left as-is so an incomplete compile stays visibly incomplete.
func Compile(text string, values map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1] // strip [ and ]
		if val, ok := values[key]; ok {
			return val
		}
		return match
	})
}

// AllFilled reports whether every name has a non-blank value.
func AllFilled(names []string, values map[string]string) bool {
	return len(MissingVariables(names, values)) == 0
}

// MissingVariables returns the names whose value is absent or whitespace only.
func MissingVariables(names []string, values map[string]string) []string {
	var missing []string
	for _, n := range names {
		if strings.TrimSpace(values[n]) == "" {
			missing = append(missing, n)
		}
	}
	return missing
}
