package assetcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Clear removes the output root and everything cached under it.
// A missing root is not an error.
func Clear(root string) error {
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("cannot remove %s: %w", root, err)
	}
	return nil
}

// ClearExt removes the files directly under root whose extension is one of
// exts (given with or without the leading dot, case-insensitive) and
// returns how many were removed. Pages in subdirectories are untouched.
func ClearExt(root string, exts ...string) (int, error) {
	want := make(map[string]bool, len(exts))
	for _, ext := range exts {
		want["."+strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot read %s: %w", root, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !want[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := os.Remove(filepath.Join(root, entry.Name())); err != nil {
			return removed, fmt.Errorf("cannot remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
