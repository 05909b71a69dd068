// Package collect turns the raw fragments handed over by a scraper into an
// ordered set of unique candidate strings.
package collect

import "unicode/utf8"

// MinLength is the shortest fragment (in characters) kept as a candidate.
// Anything shorter is incidental UI noise.
const MinLength = 6

// Set is an insertion-ordered set of candidates. The zero value is ready to use.
type Set struct {
	seen  map[string]struct{}
	items []string
}

// Add records s unless it is too short or already present. It reports
// whether s was added.
func (c *Set) Add(s string) bool {
	if utf8.RuneCountInString(s) < MinLength {
		return false
	}
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, dup := c.seen[s]; dup {
		return false
	}
	c.seen[s] = struct{}{}
	c.items = append(c.items, s)
	return true
}

// Items returns the candidates in first-occurrence order. The returned slice
// is a copy.
func (c *Set) Items() []string {
	out := make([]string, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Set) Len() int {
	return len(c.items)
}

// Collect filters and dedupes fragments, preserving first-occurrence order.
func Collect(fragments []string) []string {
	var s Set
	for _, f := range fragments {
		s.Add(f)
	}
	return s.Items()
}
