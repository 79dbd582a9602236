package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LocalStore serves files from a directory on disk. All opens go through an
// os.Root, so symlinks pointing outside the directory cannot be followed.
type LocalStore struct {
	dir  string
	root *os.Root
}

// NewLocalStore opens dir as the base directory.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("base directory is empty")
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open base directory: %w", err)
	}
	return &LocalStore{dir: dir, root: root}, nil
}

// Open implements Store.
func (s *LocalStore) Open(_ context.Context, name string) (*Object, error) {
	if !validFileName(name) {
		return nil, ErrNotFound
	}

	f, err := s.root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		// Missing files and root escapes look the same to the client.
		return nil, ErrNotFound
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, ErrNotFound
	}

	return &Object{
		Content: f,
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Ping checks the base directory is still there.
func (s *LocalStore) Ping(_ context.Context) error {
	info, err := s.root.Stat(".")
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// Describe implements Store.
func (s *LocalStore) Describe() string {
	return "dir:" + s.dir
}

// Close releases the directory handle.
func (s *LocalStore) Close() error {
	return s.root.Close()
}
