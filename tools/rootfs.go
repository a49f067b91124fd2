package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// RootFS adapts an *os.Root into the writable filesystem shape the file
// tools use, keeping os.Root's traversal containment for both reads and
// writes.
type RootFS struct {
	root *os.Root
}

var _ fs.FS = (*RootFS)(nil)

// NewRootFS wraps a directory root for use with WithFS.
func NewRootFS(root *os.Root) *RootFS {
	return &RootFS{root: root}
}

func (r *RootFS) Open(name string) (fs.File, error) {
	return r.root.Open(name)
}

// WriteFile creates or truncates a file under the root.
func (r *RootFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	f, err := r.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// MkdirAll creates a directory path under the root, segment by segment.
func (r *RootFS) MkdirAll(dir string, perm os.FileMode) error {
	dir = path.Clean(dir)
	if dir == "." || dir == "/" {
		return nil
	}

	var built string
	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		built = path.Join(built, segment)
		if err := r.root.Mkdir(built, perm); err != nil {
			if os.IsExist(err) {
				continue
			}
			return fmt.Errorf("mkdir %s: %w", built, err)
		}
	}
	return nil
}
