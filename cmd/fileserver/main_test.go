package main

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"file-server/internal/server"
)

func TestGetenvDefault(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		def      string
		envValue string
		want     string
	}{
		{
			name:     "env var set",
			key:      "TEST_VAR_SET",
			def:      "default",
			envValue: "custom",
			want:     "custom",
		},
		{
			name:     "env var empty",
			key:      "TEST_VAR_EMPTY",
			def:      "default",
			envValue: "",
			want:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			got := getenvDefault(tt.key, tt.def)
			if got != tt.want {
				t.Errorf("getenvDefault(%q, %q) = %q, want %q", tt.key, tt.def, got, tt.want)
			}
		})
	}
}

func TestGetenvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{"unset", "", 7},
		{"number", "120", 120},
		{"garbage", "lots", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envValue)
			if got := getenvInt("TEST_INT_VAR", 7); got != tt.want {
				t.Errorf("getenvInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOpenStore_LocalDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FS_S3_ENDPOINT", "")
	t.Setenv("FS_BASE_DIR", dir)

	store, err := openStore()
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if _, ok := store.(*server.LocalStore); !ok {
		t.Fatalf("expected *server.LocalStore, got %T", store)
	}
	if got, want := store.Describe(), "dir:"+dir; got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestOpenStore_MissingDir(t *testing.T) {
	t.Setenv("FS_S3_ENDPOINT", "")
	t.Setenv("FS_BASE_DIR", filepath.Join(t.TempDir(), "nope"))

	if _, err := openStore(); err == nil {
		t.Fatal("expected error for missing base directory")
	}
}

func TestGetenvBool(t *testing.T) {
	tests := map[string]bool{
		"":      false,
		"true":  true,
		"1":     true,
		"false": false,
		"nope":  false,
	}
	for in, want := range tests {
		t.Setenv("TEST_BOOL_VAR", in)
		if got := getenvBool("TEST_BOOL_VAR", false); got != want {
			t.Errorf("getenvBool(%q) = %v, want %v", in, got, want)
		}
	}
}

// setRunEnv points run at a fresh base directory with every optional backend off.
func setRunEnv(t *testing.T, addr string) {
	t.Helper()
	for _, key := range []string{
		"FS_S3_ENDPOINT", "FS_S3_ACCESS_KEY", "FS_S3_SECRET_KEY", "FS_BUCKET", "FS_S3_PREFIX",
		"FS_DATABASE_URL", "FS_RATE_LIMIT", "FS_TRUST_PROXY", "FS_LOG_FORMAT", "FS_LOG_LEVEL", "FS_ENV",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("FS_BASE_DIR", t.TempDir())
	t.Setenv("FS_ADDR", addr)
}

func TestRun_RejectsBarePort(t *testing.T) {
	setRunEnv(t, "5000")

	err := run()
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !strings.Contains(err.Error(), "FS_ADDR") {
		t.Errorf("error %q does not mention FS_ADDR", err)
	}
}

func TestRun_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	setRunEnv(t, ln.Addr().String())

	err = run()
	if err == nil {
		t.Fatal("expected bind failure")
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		t.Errorf("expected EADDRINUSE, got %v", err)
	}
}
