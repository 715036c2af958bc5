package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrRender = errors.New("render failed")

// RenderError means a rendered list could not be written. No partial file
// is left at Path.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}

// WriteAtomic replaces path with data. The content goes to a temporary
// file in the same directory which is synced and renamed over path only
// once fully written.
func WriteAtomic(path string, data []byte) (err error) {
	fail := func(e error) error {
		return &RenderError{Path: path, Err: e}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(err)
	}

	return nil
}

// FileName is the output name of list in format f.
func FileName(list string, f Format) string {
	return fmt.Sprintf("%s-%s.txt", list, f.Name())
}
