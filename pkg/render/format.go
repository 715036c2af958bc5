package render

import (
	"sort"
	"strings"
)

// Format renders one domain per line in a target list syntax.
type Format interface {
	Name() string
	CommentPrefix() string
	Line(domain string) string
	// SyntaxHint is written into the header to describe entry lines.
	SyntaxHint() string
}

type Hosts struct{}

func (Hosts) Name() string              { return "hosts" }
func (Hosts) CommentPrefix() string     { return "#" }
func (Hosts) Line(domain string) string { return "0.0.0.0 " + domain }
func (Hosts) SyntaxHint() string        { return "Syntax: Hosts (0.0.0.0 domain)" }

type Adblock struct{}

func (Adblock) Name() string              { return "adblock" }
func (Adblock) CommentPrefix() string     { return "!" }
func (Adblock) Line(domain string) string { return "||" + domain + "^" }
func (Adblock) SyntaxHint() string        { return "Syntax: Adblock Plus / AdGuard (||domain^)" }

type Plain struct{}

func (Plain) Name() string              { return "plain" }
func (Plain) CommentPrefix() string     { return "#" }
func (Plain) Line(domain string) string { return domain }
func (Plain) SyntaxHint() string        { return "Syntax: Domains (one per line)" }

var registry = map[string]Format{}

var aliases = map[string]string{
	"adguard": "adblock",
	"abp":     "adblock",
	"domains": "plain",
	"simple":  "plain",
}

func init() {
	Register(Hosts{})
	Register(Adblock{})
	Register(Plain{})
}

// Register adds a format. Later registrations under the same name replace
// earlier ones.
func Register(f Format) {
	registry[f.Name()] = f
}

func Lookup(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	f, ok := registry[name]
	return f, ok
}

// Names lists the registered formats in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
