// Package storage keeps comment attachments on local disk or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when the named object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ErrInvalidName is returned for names that could escape the storage root.
var ErrInvalidName = errors.New("storage: invalid object name")

// Store holds attachment bytes under flat, generated names.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Delete removes name. Removing an absent object is not an error.
	Delete(ctx context.Context, name string) error
}

// ValidName reports whether name is a single path element.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
