package domain

import (
	"net"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/net/idna"
)

var DebugLog func(string, ...interface{})

// Record is one raw input line. Structured records hold a JSON object.
type Record struct {
	Text       string
	Structured bool
}

// Selector projects the domain-bearing field out of a structured record.
// Every Match entry must equal the record's value at that path for the
// record to be considered.
type Selector struct {
	Field string
	Match map[string]string
}

const DefaultField = "domain"

// Step is one stage of the extraction chain. ok=false drops the record.
type Step func(s string) (out string, ok bool)

type Extractor struct {
	selector Selector
	steps    []Step
}

type Option func(*Extractor)

func WithSelector(sel Selector) Option {
	return func(e *Extractor) {
		if sel.Field == "" {
			sel.Field = DefaultField
		}
		e.selector = sel
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		selector: Selector{Field: DefaultField},
		steps: []Step{
			SkipComment,
			HostsEntry,
			StripScheme,
			StripPath,
			StripPort,
			StripAdblock,
			TrimSpace,
			ToASCII,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract turns one record into a candidate token. The token is not
// validated.
func (e *Extractor) Extract(r Record) (string, bool) {
	s := r.Text
	if r.Structured {
		var ok bool
		if s, ok = e.project(s); !ok {
			return "", false
		}
	}

	for _, step := range e.steps {
		var ok bool
		if s, ok = step(s); !ok {
			return "", false
		}
	}
	return s, s != ""
}

func (e *Extractor) project(line string) (string, bool) {
	if !gjson.Valid(line) {
		return "", false
	}
	for path, want := range e.selector.Match {
		if gjson.Get(line, path).String() != want {
			return "", false
		}
	}
	v := gjson.Get(line, e.selector.Field)
	if v.Type != gjson.String {
		return "", false
	}
	return v.String(), true
}

// SkipComment drops blank lines, '#' and '!' comments and markdown
// separators made of dashes.
func SkipComment(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if t == "" || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "!") {
		return "", false
	}
	if strings.Trim(t, "- \t") == "" {
		return "", false
	}
	return s, true
}

var hostsBoilerplate = map[string]bool{
	"localhost":             true,
	"localhost.localdomain": true,
	"local":                 true,
	"broadcasthost":         true,
	"0.0.0.0":               true,
}

// HostsEntry reduces "<ip> <name> [alias...] [# comment]" to <name>; one
// record yields one token, so aliases are dropped. Lines that do not start
// with an IP address pass through unchanged.
func HostsEntry(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) < 2 || net.ParseIP(fields[0]) == nil {
		return s, true
	}
	name := fields[1]
	if strings.HasPrefix(name, "#") {
		return "", false
	}
	lower := strings.ToLower(name)
	if hostsBoilerplate[lower] || strings.HasPrefix(lower, "ip6-") {
		return "", false
	}
	if DebugLog != nil {
		if extra := aliasCount(fields[2:]); extra > 0 {
			DebugLog("hosts entry %q: keeping %s, dropping %d alias(es)", s, name, extra)
		}
	}
	return name, true
}

// aliasCount counts the host names after the first one, up to a comment.
func aliasCount(fields []string) int {
	n := 0
	for _, f := range fields {
		if strings.HasPrefix(f, "#") {
			break
		}
		n++
	}
	return n
}

func StripScheme(s string) (string, bool) {
	if i := strings.Index(s, "://"); i >= 0 {
		return s[i+3:], true
	}
	return s, true
}

func StripPath(s string) (string, bool) {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i], true
	}
	return s, true
}

func StripPort(s string) (string, bool) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 || i == len(s)-1 {
		return s, true
	}
	for _, c := range s[i+1:] {
		if c < '0' || c > '9' {
			return s, true
		}
	}
	return s[:i], true
}

// StripAdblock removes the "||" anchor and the "^" separator together
// with any "$modifiers" after it.
func StripAdblock(s string) (string, bool) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "||")
	if i := strings.IndexByte(t, '^'); i >= 0 {
		t = t[:i]
	}
	return t, true
}

func TrimSpace(s string) (string, bool) {
	return strings.TrimSpace(s), true
}

// ToASCII converts internationalized names to punycode. ASCII input is
// returned untouched so case is preserved for the keyword filter.
func ToASCII(s string) (string, bool) {
	if isASCII(s) {
		return s, true
	}
	if !utf8.ValidString(s) {
		return "", false
	}
	ascii, err := idna.ToASCII(s)
	if err != nil {
		return "", false
	}
	return ascii, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
