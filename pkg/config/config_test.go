package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
default_settings:
  timeout: 10
  retries: 1
  output_dir: out
lists:
  - name: ads
    keywords: [ads, track]
    sources:
      - url: https://example.org/hosts.txt
      - path: local.txt
  - name: cdn
    title: CDN hosts
    formats: [plain, AdGuard]
    on_source_failure: abort
    sources:
      - name: records
        path: records.jsonl
        format: jsonl
        field: host
        match:
          type: cdn
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ds := cfg.DefaultSettings
	if ds.Timeout != 10 || ds.Retries != 1 {
		t.Errorf("timeout/retries = %d/%d", ds.Timeout, ds.Retries)
	}
	if ds.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %d, want default %d", ds.RetryDelay, DefaultRetryDelay)
	}
	if ds.Timezone != DefaultTimezone {
		t.Errorf("Timezone = %q", ds.Timezone)
	}
	if ds.OutputDir != "out" {
		t.Errorf("OutputDir = %q", ds.OutputDir)
	}

	ads := cfg.Lists[0]
	if ads.Title != "ads" {
		t.Errorf("Title = %q, want list name", ads.Title)
	}
	if !reflect.DeepEqual(ads.Formats, DefaultFormats) {
		t.Errorf("Formats = %v, want %v", ads.Formats, DefaultFormats)
	}
	if ads.OnSourceFailure != PolicySkip {
		t.Errorf("OnSourceFailure = %q", ads.OnSourceFailure)
	}
	if src := ads.Sources[0]; src.Name != src.URL || src.Format != SourceText || !src.IsRemote() {
		t.Errorf("source defaults not applied: %+v", src)
	}
	if ads.Sources[1].Location() != "local.txt" {
		t.Errorf("Location = %q", ads.Sources[1].Location())
	}

	cdn := cfg.Lists[1]
	if !reflect.DeepEqual(cdn.Formats, []string{"plain", "adguard"}) {
		t.Errorf("Formats = %v", cdn.Formats)
	}
	if cdn.Sources[0].Match["type"] != "cdn" || cdn.Sources[0].Field != "host" {
		t.Errorf("selector not parsed: %+v", cdn.Sources[0])
	}

	if cfg.FetchTimeout() != 10*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout())
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != DefaultTimezone {
		t.Errorf("Location = %v, %v", loc, err)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad timeout", "default_settings: {timeout: -1}\nlists: []", "timeout"},
		{"bad timezone", "default_settings: {timezone: Mars/Base}\nlists: []", "timezone"},
		{"no sources", "lists: [{name: a}]", "at least one source"},
		{"no name", "lists: [{sources: [{path: a.txt}]}]", "name is required"},
		{"slash in name", "lists: [{name: a/b, sources: [{path: a.txt}]}]", "path separators"},
		{"url and path", "lists: [{name: a, sources: [{url: 'http://x', path: a.txt}]}]", "exactly one"},
		{"unknown format", "lists: [{name: a, formats: [dnsmasq], sources: [{path: a.txt}]}]", "unknown format"},
		{"unknown policy", "lists: [{name: a, on_source_failure: retry, sources: [{path: a.txt}]}]", "on_source_failure"},
		{"remote jsonl", "lists: [{name: a, sources: [{url: 'http://x', format: jsonl}]}]", "local files"},
		{"duplicate", "lists: [{name: a, sources: [{path: a.txt}]}, {name: a, sources: [{path: b.txt}]}]", "duplicate"},
		{"db without host", "database: {enabled: true}\nlists: []", "database host"},
		{"malformed", "lists: [", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSelectLists(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	all, _ := cfg.SelectLists("")
	if len(all) != 2 {
		t.Errorf("SelectLists(\"\") returned %d lists", len(all))
	}

	one, err := cfg.SelectLists(" cdn ,")
	if err != nil || len(one) != 1 || one[0].Name != "cdn" {
		t.Errorf("SelectLists(cdn) = %v, %v", one, err)
	}

	if _, err := cfg.SelectLists("missing"); err == nil {
		t.Error("expected error for unknown list")
	}
}

func TestManagerLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockforge.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if err := m.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(m.GetConfig().Lists) != 2 {
		t.Errorf("loaded %d lists", len(m.GetConfig().Lists))
	}

	missing := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if err := missing.LoadConfig(); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("LoadConfig on missing file: %v", err)
	}
}

func TestFinalizeAfterOverride(t *testing.T) {
	cfg := Default()
	cfg.Lists = []ListConfig{{Name: "adhoc", Sources: []SourceConfig{{Path: "in.jsonl", Format: SourceJSONL}}}}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.Lists[0].Sources[0].Name != "in.jsonl" {
		t.Errorf("source name = %q", cfg.Lists[0].Sources[0].Name)
	}

	cfg.Lists[0].Formats = []string{"bogus"}
	if err := cfg.Finalize(); err == nil {
		t.Error("expected validation error after override")
	}
}
