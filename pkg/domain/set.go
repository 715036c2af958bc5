package domain

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Set holds unique lowercase domains.
type Set struct {
	m map[string]struct{}
}

func NewSet(domains ...string) *Set {
	s := &Set{m: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		s.Add(d)
	}
	return s
}

// Add folds case and reports whether the domain was new.
func (s *Set) Add(domain string) bool {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return false
	}
	if _, ok := s.m[d]; ok {
		return false
	}
	s.m[d] = struct{}{}
	return true
}

func (s *Set) Contains(domain string) bool {
	if s == nil {
		return false
	}
	_, ok := s.m[strings.ToLower(domain)]
	return ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

// Union adds every member of other and returns how many were new.
func (s *Set) Union(other *Set) int {
	if other == nil {
		return 0
	}
	added := 0
	for d := range other.m {
		if s.Add(d) {
			added++
		}
	}
	return added
}

// Sorted returns the members in byte-wise ascending order. Rendered lists
// rely on this order so successive versions diff cleanly.
func (s *Set) Sorted() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.m))
	for d := range s.m {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Normalize folds case, removes duplicates and unions the previous list
// when one is given. Neither input is modified.
func Normalize(domains []string, previous *Set) *Set {
	s := NewSet(domains...)
	s.Union(previous)
	return s
}

// ParseList reads a rendered list of any supported format back into a set.
// Header lines are skipped; the second return value counts lines that did
// not yield a valid domain.
func ParseList(r io.Reader) (*Set, int, error) {
	set := NewSet()
	rejected := 0
	ext := NewExtractor()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		token, ok := ext.Extract(Record{Text: scanner.Text()})
		if !ok {
			continue
		}
		d, err := Validate(token)
		if err != nil {
			rejected++
			continue
		}
		set.Add(d)
	}

	if err := scanner.Err(); err != nil {
		return nil, rejected, fmt.Errorf("error reading list: %w", err)
	}

	return set, rejected, nil
}
