package render

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/samogod/blockforge/pkg/domain"
)

func testHeader(t *testing.T) Header {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Karachi")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return Header{
		Title:       "Test List",
		Description: "unit test",
		Sources:     []string{"https://example.org/hosts.txt", "local.txt"},
		GeneratedAt: time.Date(2024, 3, 1, 10, 30, 45, 0, time.UTC),
		Location:    loc,
	}
}

func TestRenderHosts(t *testing.T) {
	set := domain.NewSet("foo.bar", "baz.qux")
	f, _ := Lookup("hosts")

	out := Render(set, f, testHeader(t))
	if out.Count != 2 {
		t.Errorf("Count = %d, want 2", out.Count)
	}

	want := strings.Join([]string{
		"# Title: Test List",
		"# Description: unit test",
		"# Last modified: 2024-03-01 15:30 PKT",
		"# Number of unique domains: 2",
		"# Syntax: Hosts (0.0.0.0 domain)",
		"# Sources:",
		"#   https://example.org/hosts.txt",
		"#   local.txt",
		"#",
		"0.0.0.0 baz.qux",
		"0.0.0.0 foo.bar",
		"",
	}, "\n")
	if got := string(out.Body); got != want {
		t.Errorf("unexpected body:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderAdblock(t *testing.T) {
	set := domain.NewSet("foo.bar")
	f, ok := Lookup("AdGuard")
	if !ok {
		t.Fatal("adguard alias not registered")
	}

	h := testHeader(t)
	h.Expires = "1 day"
	body := string(Render(set, f, h).Body)

	for _, line := range []string{
		"! Title: Test List\n",
		"! Expires: 1 day\n",
		"! Number of unique domains: 1\n",
		"! Syntax: Adblock Plus / AdGuard (||domain^)\n",
		"!\n||foo.bar^\n",
	} {
		if !strings.Contains(body, line) {
			t.Errorf("adblock body missing %q:\n%s", line, body)
		}
	}
}

func TestRenderExpiresOnlyAdblock(t *testing.T) {
	h := testHeader(t)
	h.Expires = "1 day"

	for _, name := range []string{"hosts", "plain"} {
		f, _ := Lookup(name)
		if body := string(Render(domain.NewSet("a.example"), f, h).Body); strings.Contains(body, "Expires") {
			t.Errorf("%s output carries an Expires line", name)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	f, _ := Lookup("plain")
	out := Render(domain.NewSet(), f, testHeader(t))

	if out.Count != 0 {
		t.Errorf("Count = %d, want 0", out.Count)
	}
	if !strings.Contains(string(out.Body), "# Number of unique domains: 0\n") {
		t.Errorf("missing zero count:\n%s", out.Body)
	}
	if !strings.HasSuffix(string(out.Body), "#\n") {
		t.Errorf("empty list should end after the header:\n%s", out.Body)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	set := domain.NewSet("foo.bar", "baz.qux", "xn--bcher-kva.example")

	for _, name := range Names() {
		f, _ := Lookup(name)
		parsed, _, err := domain.ParseList(strings.NewReader(string(Render(set, f, testHeader(t)).Body)))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if strings.Join(parsed.Sorted(), ",") != strings.Join(set.Sorted(), ",") {
			t.Errorf("%s: parsed %v, want %v", name, parsed.Sorted(), set.Sorted())
		}
	}
}

func TestTimestampDefaultsToUTC(t *testing.T) {
	ts := Timestamp(time.Date(2024, 1, 2, 3, 4, 59, 0, time.UTC), nil)
	if ts != "2024-01-02 03:04 UTC" {
		t.Errorf("Timestamp = %q", ts)
	}
}

func TestLookup(t *testing.T) {
	for alias, want := range map[string]string{
		"hosts":   "hosts",
		"ABP":     "adblock",
		"adblock": "adblock",
		"domains": "plain",
		" plain ": "plain",
	} {
		f, ok := Lookup(alias)
		if !ok || f.Name() != want {
			t.Errorf("Lookup(%q) = %v, %v; want %s", alias, f, ok, want)
		}
	}
	if _, ok := Lookup("dnsmasq"); ok {
		t.Error("Lookup(dnsmasq) should fail")
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lists", "test-hosts.txt")

	if err := WriteAtomic(path, []byte("first\n")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := WriteAtomic(path, []byte("second\n")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second\n" {
		t.Errorf("content = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteAtomicFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// the parent "directory" is a regular file
	path := filepath.Join(blocker, "out.txt")
	err := WriteAtomic(path, []byte("data"))
	if !errors.Is(err, ErrRender) {
		t.Fatalf("err = %v, want ErrRender", err)
	}

	var re *RenderError
	if !errors.As(err, &re) || re.Path != path {
		t.Errorf("err = %#v, want RenderError for %s", err, path)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("partial file written")
	}
}

func TestFileName(t *testing.T) {
	f, _ := Lookup("adguard")
	if got := FileName("ads", f); got != "ads-adblock.txt" {
		t.Errorf("FileName = %q", got)
	}
}
