// Package storage mirrors finalized library files to a secondary location.
//
// A mission uploads every COMPLETE track through [Storage] after tagging. Mirror failures
// are logged by the caller and never change a track's status.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/aether/internal/shared"
)

// Storage is a write-only library mirror.
type Storage interface {
	// Upload copies the file at localPath to the mirror under name.
	Upload(ctx context.Context, localPath, name string) error
	// Exists reports whether name is already present in the mirror.
	Exists(ctx context.Context, name string) (bool, error)
}

// New builds the mirror selected by cfg. It returns nil for the "none" backend.
func New(ctx context.Context, cfg shared.StorageConfig) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalStorage(cfg.MirrorDir)
	case "gcs":
		return NewGCSStorage(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// objectName joins a prefix and a file name with forward slashes.
func objectName(prefix, name string) string {
	name = strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
