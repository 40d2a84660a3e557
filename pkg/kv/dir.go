// ABOUTME: Directory-backed Sink storing one file per key
// ABOUTME: Writes atomically via temp file + rename so readers never see partial records

package kv

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Dir stores each key as <dir>/<escaped key>.json.
type Dir struct {
	root string
}

// NewDir creates a Dir sink rooted at root, creating the directory if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, url.PathEscape(key)+".json")
}

// Get reads the file for key. A missing file is reported as ok=false.
func (d *Dir) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes value for key atomically using write-rename.
func (d *Dir) Set(key, value string) error {
	path := d.path(key)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, []byte(value), 0o600); err != nil {
		return fmt.Errorf("writing temp %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", key, err)
	}
	return nil
}
