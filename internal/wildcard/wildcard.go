// Package wildcard implements *-glob matching for model allow-lists and
// pricing table keys. "*" matches any run of characters (including none);
// every other character is literal. Matching is case-insensitive.
package wildcard

import (
	"regexp"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	compiled = map[string]*regexp.Regexp{}
)

// Match reports whether text matches the glob pattern.
func Match(pattern, text string) bool {
	re := compile(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(text)
}

// FindFirst returns the first pattern that matches text, preferring an exact
// (case-insensitive) match over a wildcard match. The second return value is
// false when nothing matches.
func FindFirst(patterns []string, text string) (string, bool) {
	for _, p := range patterns {
		if strings.EqualFold(p, text) {
			return p, true
		}
	}
	for _, p := range patterns {
		if Match(p, text) {
			return p, true
		}
	}
	return "", false
}

// compile translates a glob into an anchored case-insensitive regexp. Compiled
// patterns are cached — the pattern set is config-defined and small, and the
// same patterns are consulted on every request.
func compile(pattern string) *regexp.Regexp {
	mu.RLock()
	re, ok := compiled[pattern]
	mu.RUnlock()
	if ok {
		return re
	}

	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := "(?i)^" + strings.Join(parts, ".*") + "$"

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}

	mu.Lock()
	compiled[pattern] = re
	mu.Unlock()
	return re
}
