package cache

import (
	"path/filepath"
	"testing"
)

func TestStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "fetch.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	const url = "https://example.org/hosts.txt"

	if _, ok, err := store.Get(url); err != nil || ok {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	if err := store.Put(url, `"abc"`, []byte("foo.bar\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, ok, err := store.Get(url)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if e.ETag != `"abc"` || string(e.Body) != "foo.bar\n" || e.FetchedAt.IsZero() {
		t.Errorf("entry = %+v", e)
	}

	if err := store.Put(url, `"def"`, []byte("baz.qux\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, _, _ = store.Get(url)
	if e.ETag != `"def"` || string(e.Body) != "baz.qux\n" {
		t.Errorf("entry not replaced: %+v", e)
	}
}

func TestStoreSkipsMissingETag(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "fetch.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Put("https://example.org/a", "", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get("https://example.org/a"); ok {
		t.Error("response without ETag was cached")
	}
}

func TestCloseNil(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil store: %v", err)
	}
}
