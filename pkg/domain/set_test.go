package domain

import (
	"reflect"
	"strings"
	"testing"
)

func TestKeywordFilter(t *testing.T) {
	domains := []string{"ads.example.com", "safe.org", "tracker.net"}

	f := NewKeywordFilter([]string{"ads", "track"}, false)
	var kept []string
	for _, d := range domains {
		if f.Keep(d) {
			kept = append(kept, d)
		}
	}
	if want := []string{"ads.example.com", "tracker.net"}; !reflect.DeepEqual(kept, want) {
		t.Errorf("kept %v, want %v", kept, want)
	}

	if !NewKeywordFilter(nil, false).Keep("anything.example") {
		t.Error("empty filter must keep everything")
	}
	if !NewKeywordFilter([]string{""}, false).Empty() {
		t.Error("empty keywords must be dropped")
	}

	if NewKeywordFilter([]string{"ads"}, false).Keep("ADS.example.com") {
		t.Error("keyword match must be case-sensitive by default")
	}
	if !NewKeywordFilter([]string{"Ads"}, true).Keep("ADS.example.com") {
		t.Error("ignore-case filter must match across case")
	}
}

func TestNormalize(t *testing.T) {
	set := Normalize([]string{"FOO.BAR", "baz.qux", "foo.bar", "Baz.Qux"}, nil)

	want := []string{"baz.qux", "foo.bar"}
	if got := set.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted() = %v, want %v", got, want)
	}

	again := Normalize(set.Sorted(), nil)
	if !reflect.DeepEqual(again.Sorted(), want) {
		t.Errorf("Normalize is not idempotent: %v", again.Sorted())
	}
}

func TestNormalizeMergesPrevious(t *testing.T) {
	previous := NewSet("old.example", "shared.example")
	set := Normalize([]string{"new.example", "SHARED.example"}, previous)

	for _, d := range previous.Sorted() {
		if !set.Contains(d) {
			t.Errorf("merged set lost previous domain %s", d)
		}
	}
	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}
	if previous.Len() != 2 {
		t.Errorf("previous set was modified: %v", previous.Sorted())
	}
}

func TestSortedOrder(t *testing.T) {
	set := NewSet("b.example", "a-b.example", "a.example", "a0.example")
	want := []string{"a-b.example", "a.example", "a0.example", "b.example"}
	if got := set.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted() = %v, want %v", got, want)
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"hosts", "# Title: test\n# Number of unique domains: 2\n#\n0.0.0.0 baz.qux\n0.0.0.0 foo.bar\n"},
		{"adblock", "! Title: test\n!\n||baz.qux^\n||foo.bar^\n"},
		{"plain", "# Title: test\n#\nbaz.qux\nfoo.bar\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, rejected, err := ParseList(strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("ParseList: %v", err)
			}
			if rejected != 0 {
				t.Errorf("rejected = %d, want 0", rejected)
			}
			if want := []string{"baz.qux", "foo.bar"}; !reflect.DeepEqual(set.Sorted(), want) {
				t.Errorf("Sorted() = %v, want %v", set.Sorted(), want)
			}
		})
	}
}
