package ir

import "strings"

// Reference markers stand in for another resource's attribute until the
// referenced resource is realized. They are produced by the document loader
// and substituted by the executor. Format: ref://<name>/<attribute-path>.
const refPrefix = "ref://"

// MakeRef builds a reference marker for name's attribute path.
func MakeRef(name, attr string) string {
	return refPrefix + name + "/" + attr
}

// IsRef reports whether v is a reference marker.
func IsRef(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, refPrefix)
}

// ParseRef splits a reference marker into target name and attribute path.
func ParseRef(s string) (name, attr string, ok bool) {
	if !strings.HasPrefix(s, refPrefix) {
		return "", "", false
	}
	rest := s[len(refPrefix):]
	i := strings.Index(rest, "/")
	if i < 0 {
		return rest, "", rest != ""
	}
	return rest[:i], rest[i+1:], rest[:i] != ""
}

// CollectRefs walks a value tree and returns the target names of every
// reference marker it contains, deduplicated.
func CollectRefs(v any) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			if name, _, ok := ParseRef(val); ok && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		case map[string]any:
			for _, v := range val {
				walk(v)
			}
		case []any:
			for _, v := range val {
				walk(v)
			}
		}
	}
	walk(v)
	return names
}
