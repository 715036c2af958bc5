package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/samogod/blockforge/pkg/config"
	"github.com/samogod/blockforge/pkg/domain"
	"github.com/samogod/blockforge/pkg/session"
)

var DebugLog func(string, ...interface{})

const (
	TypeText = "text"
	TypeJSON = "json"
)

// Result is one raw record from a source, or the error that ended it.
type Result struct {
	Type   string
	Source string
	Value  string
	Error  error
}

func (r Result) Record() domain.Record {
	return domain.Record{Text: r.Value, Structured: r.Type == TypeJSON}
}

// Source yields the raw records of one input. The channel is closed when
// the input is exhausted; an error, if any, is the last value sent.
type Source interface {
	Run(ctx context.Context, s *session.Session) <-chan Result

	Name() string

	// Location is the path or URL, listed verbatim in rendered headers.
	Location() string
}

var (
	ErrInputNotFound = errors.New("input not found")
	ErrInputEmpty    = errors.New("input is empty")
	ErrFetch         = errors.New("fetch failed")
)

type InputErrorKind string

const (
	KindNotFound InputErrorKind = "not_found"
	KindEmpty    InputErrorKind = "empty"
)

// InputError is fatal to a run and never retried.
type InputError struct {
	Kind InputErrorKind
	Path string
	Err  error
}

func (e *InputError) Error() string {
	base := fmt.Sprintf("input %s: %s", e.Path, e.Kind)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *InputError) Unwrap() []error {
	sentinel := ErrInputNotFound
	if e.Kind == KindEmpty {
		sentinel = ErrInputEmpty
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// FetchError is returned once every attempt at a remote source failed.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// IsFatal reports whether err must abort the run regardless of the
// source failure policy.
func IsFatal(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// FromConfig builds the source described by sc.
func FromConfig(sc config.SourceConfig) Source {
	switch {
	case sc.IsRemote():
		return NewRemoteSource(sc.Name, sc.URL)
	case sc.Format == config.SourceJSONL:
		return NewJSONLSource(sc.Name, sc.Path)
	default:
		return NewFileSource(sc.Name, sc.Path)
	}
}
