// Package storage is the client's local persistent key/value storage, the
// analog of a browser's localStorage. Values are opaque bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("storage: key not found")
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Change reports that Key was written or removed by another process or
// another store sharing the same backing data. Own writes are not reported.
type Change struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed,omitempty"`
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Watch streams external changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Change, error)
	Close() error
}

// Publisher is the slice of the event bus Bridge needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// Bridge forwards external changes from s to pub under topic until ctx is done.
func Bridge(ctx context.Context, s Store, pub Publisher, topic string) error {
	changes, err := s.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch storage: %w", err)
	}
	for change := range changes {
		pub.Publish(ctx, topic, change)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
