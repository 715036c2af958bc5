package domain

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

const MaxLength = 253

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

var ErrRejected = errors.New("invalid domain")

// RejectError carries the offending token so verbose runs can report it.
type RejectError struct {
	Token  string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected %q: %s", e.Token, e.Reason)
}

func (e *RejectError) Unwrap() error {
	return ErrRejected
}

// Validate accepts a candidate token as a whole or rejects it. Case is
// left as given; Normalize folds it.
func Validate(token string) (string, error) {
	reject := func(reason string) (string, error) {
		return "", &RejectError{Token: token, Reason: reason}
	}

	switch {
	case token == "":
		return reject("empty")
	case len(token) > MaxLength:
		return reject(fmt.Sprintf("longer than %d characters", MaxLength))
	case strings.HasPrefix(token, ".") || strings.HasSuffix(token, "."):
		return reject("leading or trailing dot")
	case strings.HasPrefix(token, "-") || strings.HasSuffix(token, "-"):
		return reject("leading or trailing hyphen")
	case net.ParseIP(token) != nil:
		return reject("IP address")
	}

	for _, label := range strings.Split(token, ".") {
		if !labelPattern.MatchString(label) {
			return reject(fmt.Sprintf("bad label %q", label))
		}
	}

	return token, nil
}

func IsValid(token string) bool {
	_, err := Validate(token)
	return err == nil
}
