// write_test.go tests [Write] for basic correctness, overwrite semantics,
// permissions, and cleanup of temp files on failure.

package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWriteBasic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	data := []byte("hello world")

	if err := Write(path, data, 0o644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestWriteOverwriteExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overwrite.txt")

	if err := Write(path, []byte("original"), 0o644); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(path, []byte("updated"), 0o644); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "updated" {
		t.Errorf("content = %q, want %q", got, "updated")
	}
}

func TestWriteConcurrentDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	const n = 20

	// Each goroutine writes its own file to avoid OS-level rename contention
	// (Windows does not permit atomic rename over a target that is open by
	// another process).
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			path := filepath.Join(dir, fmt.Sprintf("concurrent-%d.txt", i))
			if err := Write(path, []byte(fmt.Sprintf("writer-%d", i)), 0o644); err != nil {
				t.Errorf("concurrent Write %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("concurrent-%d.txt", i))
		got, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("ReadFile %d: %v", i, err)
			continue
		}
		if want := fmt.Sprintf("writer-%d", i); string(got) != want {
			t.Errorf("file %d: got %q, want %q", i, got, want)
		}
	}

	// No temp files should remain.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if matched, _ := filepath.Match("*.tmp.*", e.Name()); matched {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWritePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perms.txt")

	if err := Write(path, []byte("secret"), 0o600); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	// On Windows, permission bits are limited; check that the file is at
	// least owner-readable and writable.
	if got := info.Mode().Perm(); got&0o600 == 0 {
		t.Errorf("permissions = %o, expected at least owner rw", got)
	}
}

func TestWriteCleanupOnFailure(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "no-such-dir", "file.txt")

	if err := Write(badPath, []byte("data"), 0o644); err == nil {
		t.Fatal("expected error for nonexistent directory")
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		t.Errorf("unexpected file left behind: %s", e.Name())
	}
}
