// store.go - Backends that resolve a requested filename inside the base directory.
package server

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned by a Store when the name does not resolve to a
// regular file inside the base directory.
var ErrNotFound = errors.New("file not found")

// Store resolves filenames against a fixed base location.
type Store interface {
	// Open returns the named file. Names that are not a single local path
	// element, directories and missing files all yield ErrNotFound.
	Open(ctx context.Context, name string) (*Object, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Describe returns a short human readable location, used in logs.
	Describe() string
}

// Object is an opened file ready to be streamed to a client.
type Object struct {
	Content     io.ReadSeekCloser
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string // empty when the backend has no opinion
}

// Close releases the underlying content.
func (o *Object) Close() error {
	if o == nil || o.Content == nil {
		return nil
	}
	return o.Content.Close()
}

// validFileName reports whether name is a single, local path element.
// Anything that could climb out of the base directory is refused here before
// a backend ever sees it.
func validFileName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	return filepath.IsLocal(name)
}
