package sources

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/samogod/blockforge/pkg/session"
)

const maxLineSize = 4 * 1024 * 1024

// File reads a local list, one record per line. JSONL files yield
// structured records.
type File struct {
	name       string
	path       string
	structured bool
}

func NewFileSource(name, path string) *File {
	return &File{name: name, path: path}
}

func NewJSONLSource(name, path string) *File {
	return &File{name: name, path: path, structured: true}
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Location() string {
	return f.path
}

func (f *File) Run(ctx context.Context, _ *session.Session) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		file, err := os.Open(f.path)
		if err != nil {
			// unreadable files are reported like missing ones
			if !errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("failed to open file: %w", err)
			}
			results <- Result{Source: f.name, Error: &InputError{Kind: KindNotFound, Path: f.path, Err: err}}
			return
		}
		defer file.Close()

		typ := TypeText
		if f.structured {
			typ = TypeJSON
		}

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		count := 0
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			count++

			select {
			case results <- Result{Type: typ, Source: f.name, Value: line}:
			case <-ctx.Done():
				results <- Result{Source: f.name, Error: ctx.Err()}
				return
			}
		}

		// a cancelled read is incomplete even if every line was sent
		if err := ctx.Err(); err != nil {
			results <- Result{Source: f.name, Error: err}
			return
		}

		if err := scanner.Err(); err != nil {
			results <- Result{Source: f.name, Error: fmt.Errorf("error reading %s: %w", f.path, err)}
			return
		}

		if count == 0 {
			results <- Result{Source: f.name, Error: &InputError{Kind: KindEmpty, Path: f.path}}
			return
		}

		if DebugLog != nil {
			DebugLog("read %d records from %s", count, f.path)
		}
	}()

	return results
}
