package domain

import "strings"

// Matches reports whether domain contains at least one keyword. The
// comparison is case-sensitive.
func Matches(domain string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(domain, k) {
			return true
		}
	}
	return false
}

// KeywordFilter keeps themed subsets of large lists. An empty filter keeps
// everything.
type KeywordFilter struct {
	Keywords   []string
	IgnoreCase bool
}

func NewKeywordFilter(keywords []string, ignoreCase bool) *KeywordFilter {
	f := &KeywordFilter{IgnoreCase: ignoreCase}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if ignoreCase {
			k = strings.ToLower(k)
		}
		f.Keywords = append(f.Keywords, k)
	}
	return f
}

func (f *KeywordFilter) Empty() bool {
	return f == nil || len(f.Keywords) == 0
}

func (f *KeywordFilter) Keep(domain string) bool {
	if f.Empty() {
		return true
	}
	if f.IgnoreCase {
		domain = strings.ToLower(domain)
	}
	return Matches(domain, f.Keywords)
}
