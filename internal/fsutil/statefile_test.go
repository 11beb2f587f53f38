package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")

	if err := WriteFileAtomic(path, []byte("kanagawa"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	token, err := ReadToken(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if token != "kanagawa" {
		t.Fatalf("expected kanagawa, got %q", token)
	}
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")

	if err := WriteFileAtomic(path, []byte("nordic"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("gruvbox"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	token, err := ReadToken(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if token != "gruvbox" {
		t.Fatalf("expected gruvbox, got %q", token)
	}
}

func TestWriteFileAtomicCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state")

	if err := WriteFileAtomic(path, []byte("nordic"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")

	if err := WriteFileAtomic(path, []byte("nordic"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".prism-state-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestReadTokenMissingFile(t *testing.T) {
	token, err := ReadToken(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestReadTokenTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(path, []byte("nordic\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	token, err := ReadToken(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if token != "nordic" {
		t.Fatalf("expected nordic, got %q", token)
	}
}
