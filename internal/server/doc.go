// Package server implements the HTTP side of the file server: the greeting
// page, GET /files/{filename} backed by a Store (a local directory or a
// MinIO bucket), probes, metrics and the middleware chain. The production
// binary and the tests build it through New.
package server
