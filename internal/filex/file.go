// Package filex holds filesystem helpers for the client's local state.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureParentDir creates the directory that will hold file, owner-only, and
// returns its absolute path. SQLite URI and in-memory DSNs are left alone and
// yield "".
func EnsureParentDir(file string) (string, error) {
	if file == "" || strings.Contains(file, ":memory:") || strings.HasPrefix(file, "file:") {
		return "", nil
	}

	dir, err := filepath.Abs(filepath.Dir(file))
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", file, err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
