// Package tracker merges manual entries and fetched source bodies into
// a deduplicated, insertion-ordered list of tracker URIs.
package tracker

import (
	"bufio"
	"regexp"
	"strings"
)

// Accepted tracker URI schemes; everything else is dropped by the line
// filter.
var schemeRe = regexp.MustCompile(`^(?i)(udp|http|https|wss)://`)

// Set is an insertion-ordered set of tracker URI strings. The first
// occurrence fixes an entry's position; later duplicates are no-ops.
type Set struct {
	seen  map[string]struct{}
	order []string
}

func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add runs one line through the shared filter and inserts it if it
// survives. Reports whether the line was added.
func (s *Set) Add(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}
	if !schemeRe.MatchString(line) {
		return false
	}
	if _, dup := s.seen[line]; dup {
		return false
	}
	s.seen[line] = struct{}{}
	s.order = append(s.order, line)
	return true
}

// AddLines filters every line of a fetched body into the set.
func (s *Set) AddLines(body string) {
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s.Add(sc.Text())
	}
}

func (s *Set) Entries() []string { return s.order }

func (s *Set) Len() int { return len(s.order) }

func (s *Set) Join(sep string) string { return strings.Join(s.order, sep) }

// Aggregate builds the result set: manual entries first, in given
// order, then each body's lines in source order.
func Aggregate(manual []string, bodies []string) *Set {
	set := NewSet()
	for _, m := range manual {
		set.Add(m)
	}
	for _, b := range bodies {
		set.AddLines(b)
	}
	return set
}
