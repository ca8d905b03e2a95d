// Package storagedriver defines the opaque byte-store contract every
// storage backend implements, plus the driver registry used to select one
// by config. Keys are opaque to the provider; the file registry constructs
// them as <workspaceId>/<projectId>/<pool>/<random> where pool is one of
// uploads, files, or artifacts.
package storagedriver

import (
	"context"
	"io"

	"github.com/octopus-bim/octopus/pkg/rhttp/global"
)

// Provider is the narrow capability set every storage backend exposes.
type Provider interface {
	// ProviderID is the stable string recorded on each File row so that
	// multiple providers may coexist.
	ProviderID() string

	// Put atomically persists the stream under key. Overwrite semantics on
	// a duplicate key are provider-specific but must be all-or-nothing from
	// the reader's perspective.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// OpenRead returns a stream for key, or nil, nil if the key is absent.
	OpenRead(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key's bytes. Idempotent: deleting an absent key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key currently resolves to bytes.
	Exists(ctx context.Context, key string) (bool, error)

	// Size returns the byte length of key's content, or nil if absent.
	Size(ctx context.Context, key string) (*int64, error)
}

// Registry is the driver-name -> constructor map used to select a Provider
// implementation from config (storage.provider).
var Registry = global.NewRegistry[Provider]()
