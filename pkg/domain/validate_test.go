package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	label63 := strings.Repeat("a", 63)
	// 63*3 + 61 + 3 dots = 253
	exact := strings.Join([]string{label63, label63, label63, strings.Repeat("b", 61)}, ".")
	tooLong := exact + "c"

	tests := []struct {
		token string
		valid bool
	}{
		{"a.co", true},
		{"example.com", true},
		{"xn--abc.com", true},
		{"FOO.BAR", true},
		{"sub-domain.example.org", true},
		{"localhost", true},
		{label63 + ".com", true},
		{exact, true},

		{"", false},
		{"-bad.com", false},
		{"bad-.com", false},
		{".example.com", false},
		{"example.com.", false},
		{"exa mple.com", false},
		{"exa_mple.com", false},
		{"example..com", false},
		{"a-.example.com", false},
		{strings.Repeat("a", 64) + ".com", false},
		{tooLong, false},
		{"192.168.1.1", false},
		{"::1", false},
	}

	for _, tt := range tests {
		got, err := Validate(tt.token)
		if tt.valid {
			if err != nil {
				t.Errorf("Validate(%q) unexpected error: %v", tt.token, err)
			} else if got != tt.token {
				t.Errorf("Validate(%q) = %q, want token unchanged", tt.token, got)
			}
			continue
		}
		if err == nil {
			t.Errorf("Validate(%q) = %q, want rejection", tt.token, got)
			continue
		}
		if !errors.Is(err, ErrRejected) {
			t.Errorf("Validate(%q) error %v does not wrap ErrRejected", tt.token, err)
		}
	}
}

func TestValidateLengthBoundary(t *testing.T) {
	token := strings.Repeat("a", 63) + "." + strings.Repeat("b", 63) + "." + strings.Repeat("c", 63) + "." + strings.Repeat("d", 62)

	if len(token) != MaxLength+1 {
		t.Fatalf("fixture length %d", len(token))
	}

	_, err := Validate(token)
	var re *RejectError
	if !errors.As(err, &re) {
		t.Fatalf("expected RejectError for 254 characters, got %v", err)
	}
	if re.Token != token {
		t.Errorf("RejectError.Token = %q", re.Token)
	}
}
