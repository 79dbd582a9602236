package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig describes a bucket used in place of a base directory.
type MinioConfig struct {
	Endpoint  string // "minio:9000" or "https://s3.example.com"
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // optional key prefix, e.g. "public/"
}

// MinioStore serves objects from a MinIO / S3 bucket. Storage calls run
// through a circuit breaker so a dead backend fails fast with 503.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	prefix  string
	breaker *CircuitBreaker
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// normalisePrefix turns "public", "/public/" and "public/" into "public/".
func normalisePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// NewMinioStore connects to the bucket and checks that it exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	// Sanity check: bucket must exist.
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  normalisePrefix(cfg.Prefix),
		breaker: NewCircuitBreaker(5, 30*time.Second),
	}, nil
}

// Open implements Store.
func (s *MinioStore) Open(ctx context.Context, name string) (*Object, error) {
	if !validFileName(name) {
		return nil, ErrNotFound
	}

	var (
		obj      *minio.Object
		info     minio.ObjectInfo
		notFound bool
	)
	err := s.breaker.Execute(func() error {
		o, err := s.client.GetObject(ctx, s.bucket, s.prefix+name, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		// GetObject is lazy; Stat forces the request so missing keys show up now.
		st, err := o.Stat()
		if err != nil {
			_ = o.Close()
			if isMinioNotFound(err) {
				// A missing key says nothing about backend health.
				notFound = true
				return nil
			}
			return err
		}
		obj, info = o, st
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", name, err)
	}
	if notFound {
		return nil, ErrNotFound
	}

	return &Object{
		Content:     obj,
		Name:        name,
		Size:        info.Size,
		ModTime:     info.LastModified,
		ContentType: info.ContentType,
	}, nil
}

// Ping checks the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	return s.breaker.Execute(func() error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("bucket does not exist: %s", s.bucket)
		}
		return nil
	})
}

// Describe implements Store.
func (s *MinioStore) Describe() string {
	return "s3:" + s.bucket + "/" + s.prefix
}

// Breaker exposes the storage circuit breaker for health reporting.
func (s *MinioStore) Breaker() *CircuitBreaker {
	return s.breaker
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}

// isUnavailable reports whether err means the storage backend is shedding load.
func isUnavailable(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
