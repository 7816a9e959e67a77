package secrets

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeySeed    = "agent_seed"
	KeyAddress = "agent_address"
)

var (
	// ErrNotFound is returned for absent keys and for values that can no
	// longer be decoded or decrypted.
	ErrNotFound = errors.New("secret not found")
	// ErrUnavailable wraps failures of the storage medium itself.
	ErrUnavailable = errors.New("secret store unavailable")
)

// Store is a small string key/value store for wallet material.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
