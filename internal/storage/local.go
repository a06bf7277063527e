package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores uploaded documents on the application host's disk.
// Object names are generated (uuid + original extension) so concurrent
// uploads never collide; the original filename is kept as metadata on
// the Document row only.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: root}, nil
}

// MakeObjectName builds a unique stored filename keeping the original
// extension (lowercased).
func (l *Local) MakeObjectName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return uuid.NewString() + ext
}

// Path returns the absolute path of a stored object.
func (l *Local) Path(name string) string {
	return filepath.Join(l.root, name)
}

// Save writes the object to disk and returns its path.
func (l *Local) Save(name string, r io.Reader) (string, error) {
	dst := l.Path(name)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	return dst, nil
}

// Open opens a stored object for reading.
func (l *Local) Open(path string) (*os.File, error) {
	return os.Open(path)
}

// Delete removes an object by path. Idempotent: a missing file is
// treated as already deleted.
func (l *Local) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// BulkDelete removes multiple objects, ignoring missing files. The
// first real error is returned after attempting every path.
func (l *Local) BulkDelete(paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := l.Delete(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
