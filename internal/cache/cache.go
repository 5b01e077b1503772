// Package cache provides a small cache abstraction with two backends:
// memory (in-process, dev and testing) and redis (distributed, production).
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Client defines the cache operations.
type Client interface {
	// Get fetches a value, ErrNotFound when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks the backend connection.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New builds a client for the configured driver.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.Prefix), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, errors.New("cache: unknown driver " + cfg.Driver)
	}
}
