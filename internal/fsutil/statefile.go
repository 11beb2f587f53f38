// Package fsutil holds the filesystem primitives the sync core depends on.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// WriteFileAtomic replaces path with payload in one step: the payload is
// written to a temp file in the same directory, synced, and renamed into
// place. A concurrent reader observes either the old content or the new,
// never a partial write.
func WriteFileAtomic(path string, payload []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".prism-state-")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)
	if _, err := tempFile.Write(payload); err != nil {
		_ = tempFile.Close()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tempName, perm); err != nil {
		return err
	}
	return os.Rename(tempName, path)
}

// ReadToken reads the whole file and returns its content as a single token
// with surrounding whitespace trimmed. A missing file yields ("", nil): an
// absent state file is a normal first-run condition for callers.
func ReadToken(path string) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(payload)), nil
}
