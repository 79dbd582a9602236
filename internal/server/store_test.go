package server

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidFileName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.pdf", true},
		{".bashrc", true},
		{"with space.txt", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../etc/passwd", false},
		{"a/b.txt", false},
		{"/etc/passwd", false},
		{`..\boot.ini`, false},
		{"nul\x00byte", false},
		{strings.Repeat("a", 256), false},
	}

	for _, tt := range tests {
		if got := validFileName(tt.name); got != tt.want {
			t.Errorf("validFileName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLocalStore_Open(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	obj, err := store.Open(context.Background(), "a.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj.Content)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "alpha" || obj.Size != 5 || obj.Name != "a.txt" || obj.ModTime.IsZero() {
		t.Errorf("unexpected object %+v body=%q", obj, body)
	}

	for _, name := range []string{"missing.txt", "sub", "../a.txt", ""} {
		if _, err := store.Open(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestLocalStore_Ping(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "base")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if got := store.Describe(); got != "dir:"+dir {
		t.Errorf("Describe() = %q", got)
	}
}

func TestNewLocalStore_Errors(t *testing.T) {
	if _, err := NewLocalStore(""); err == nil {
		t.Error("expected error for empty directory")
	}
	if _, err := NewLocalStore(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestObjectClose_Nil(t *testing.T) {
	var o *Object
	if err := o.Close(); err != nil {
		t.Errorf("nil object Close: %v", err)
	}
}
