package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Common errors returned by memory operations.
var (
	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("memory: invalid key")

	// ErrInvalidValue is returned when a value cannot be encoded as JSON.
	ErrInvalidValue = errors.New("memory: invalid value")

	// ErrStorageFailed is returned when the underlying backend fails.
	ErrStorageFailed = errors.New("memory: storage operation failed")
)

// DefaultTTL applies when a caller passes a non-positive TTL.
const DefaultTTL = 30 * time.Minute

// Collaborator is the key-value memory semgate writes validation results to
// and rules read hints from. Values are encoded as JSON; Retrieve returns the
// encoded bytes. TTLs are whole seconds at this boundary.
//
// Store reports whether the value was written. Retrieve reports whether the
// key exists and has not expired.
type Collaborator interface {
	Store(ctx context.Context, key string, value any, ttlSeconds int) (bool, error)
	Retrieve(ctx context.Context, key string) ([]byte, bool, error)
}

// Item is a stored value with its lifetime.
type Item struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the item has expired at now.
func (i Item) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Decode unmarshals a retrieved value into v.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return nil
}

func encode(key string, value any) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return data, nil
}

func ttlOf(ttlSeconds int) time.Duration {
	if ttlSeconds <= 0 {
		return DefaultTTL
	}
	return time.Duration(ttlSeconds) * time.Second
}
