package cmd

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/samogod/blockforge/pkg/config"
)

func TestAdHocList(t *testing.T) {
	inputs = []string{"https://example.org/hosts.txt", "local.txt", "records.JSONL"}
	listName = "adhoc"
	field = "host"
	defer func() { inputs, field = nil, "" }()

	l := adHocList()
	if l.Name != "adhoc" || len(l.Sources) != 3 {
		t.Fatalf("list = %+v", l)
	}

	remote, text, jsonl := l.Sources[0], l.Sources[1], l.Sources[2]
	if remote.URL != "https://example.org/hosts.txt" || remote.Name != "example.org" {
		t.Errorf("remote source = %+v", remote)
	}
	if text.Path != "local.txt" || text.Format != "" {
		t.Errorf("text source = %+v", text)
	}
	if jsonl.Format != config.SourceJSONL || jsonl.Field != "host" {
		t.Errorf("jsonl source = %+v", jsonl)
	}

	cfg := config.Default()
	cfg.Lists = []config.ListConfig{l}
	if err := cfg.Finalize(); err != nil {
		t.Errorf("ad-hoc list does not validate: %v", err)
	}
}

func TestCheckQuiet(t *testing.T) {
	checkQuiet = true
	defer func() { checkQuiet = false }()

	var out bytes.Buffer
	checkCmd.SetOut(&out)
	checkCmd.SetIn(strings.NewReader("# comment\n0.0.0.0 ads.example.com\n-bad.com\n||Tracker.example^\n"))

	if err := runCheck(checkCmd, nil); err != nil {
		t.Fatal(err)
	}
	if out.String() != "ads.example.com\ntracker.example\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"-silent", "-l", "ads", "-tz=UTC"}, []string{"--silent", "-l", "ads", "--tz=UTC"}},
		{[]string{"check", "-quiet", "-verbose"}, []string{"check", "--quiet", "--verbose"}},
		{[]string{"track", "-all", "-status", "new"}, []string{"track", "--all", "--status", "new"}},
		{[]string{"check", "-q", "--", "-bad.com"}, []string{"check", "-q", "--", "-bad.com"}},
		{[]string{"check", "-bad.com"}, []string{"check", "-bad.com"}},
	}

	for _, tt := range tests {
		if got := normalizeArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("normalizeArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
