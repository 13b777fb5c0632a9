// Package filex holds small filesystem helpers shared by the server and the
// command-line tools.
package filex

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyFile is returned by ReadSecret for a file with no content.
var ErrEmptyFile = errors.New("file is empty")

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// ReadSecret reads key material from path. A single trailing newline is
// dropped so that `echo secret > file` works for HMAC keys; PEM blocks are
// unaffected.
func ReadSecret(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	b = bytes.TrimSuffix(b, []byte("\n"))
	b = bytes.TrimSuffix(b, []byte("\r"))
	if len(b) == 0 {
		return nil, fmt.Errorf("read %s: %w", path, ErrEmptyFile)
	}
	return b, nil
}
