package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"file-server/internal/db"
	"file-server/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Printf("service=fileserver msg=%q err=%v", "fatal", err)
		os.Exit(1)
	}
}

// run wires the server and blocks until it stops. Every resource it opens is
// released by a defer before it returns, including on error paths.
func run() error {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("service=fileserver msg=%q err=%v", "dotenv_load_failed", err)
	}

	if err := server.ValidateAllConfiguration(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	server.WarnOnOptionalMissingConfig()

	addr := getenvDefault("FS_ADDR", server.DefaultAddr)

	build := server.BuildInfo{
		Version: getenvDefault("FS_VERSION", "dev"),
		Commit:  getenvDefault("FS_COMMIT", "unknown"),
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	cfg := server.Config{
		Addr:       addr,
		Build:      build,
		Store:      store,
		RateLimit:  getenvInt("FS_RATE_LIMIT", 0),
		TrustProxy: getenvBool("FS_TRUST_PROXY", false),
	}

	// Download audit (optional)
	if dsn := os.Getenv("FS_DATABASE_URL"); dsn != "" {
		dbConn, err := db.Open(dsn)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() { _ = dbConn.Close() }()

		log.Printf("service=fileserver msg=%q", "running_migrations")
		if err := db.RunMigrations(dsn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Printf("service=fileserver msg=%q", "migrations_complete")

		cfg.DB = dbConn
		cfg.Downloads = db.NewDownloadLog(dbConn)
	}

	srv := server.New(cfg)

	// Serve in the background so we can wait on signals.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=fileserver msg=%q addr=%s store=%s version=%s commit=%s",
			"starting", addr, store.Describe(), build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("service=fileserver msg=%q signal=%s", "shutting_down", sig.String())
		// Give in-flight downloads 5 seconds to finish.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Printf("service=fileserver msg=%q", "shutdown_complete")
		return nil
	case err := <-errCh:
		// Bind failures (address in use) land here.
		return fmt.Errorf("serve: %w", err)
	}
}

// openStore picks the bucket when FS_S3_ENDPOINT is set, else the base directory.
func openStore() (server.Store, error) {
	if endpoint := os.Getenv("FS_S3_ENDPOINT"); endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.NewMinioStore(ctx, server.MinioConfig{
			Endpoint:  endpoint,
			AccessKey: os.Getenv("FS_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("FS_S3_SECRET_KEY"),
			Bucket:    os.Getenv("FS_BUCKET"),
			Prefix:    os.Getenv("FS_S3_PREFIX"),
		})
	}
	return server.NewLocalStore(getenvDefault("FS_BASE_DIR", server.DefaultBaseDir))
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt is getenvDefault for integers; unparsable values yield def.
func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getenvBool is getenvDefault for booleans; unparsable values yield def.
func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Compile-time check that *sql.DB still satisfies the server's ping hook.
var _ server.Pinger = (*sql.DB)(nil)
