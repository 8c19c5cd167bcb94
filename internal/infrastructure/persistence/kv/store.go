// Package kv defines the flat key-value record contract the engagement hub
// persists through: one JSON blob per progress record, one per session
// pointer, plus a plain integer counter for the global display counter.
// Backends live in sibling packages (memory here, redis, postgres).
package kv

import (
	"context"
	"errors"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrKeyNotFound is returned when the requested key does not exist.
	ErrKeyNotFound = errors.New("kv: key not found")

	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("kv: key cannot be empty")

	// ErrUnavailable is returned when the backend cannot be reached.
	// Callers treat it as a soft failure and fall back to defaults.
	ErrUnavailable = errors.New("kv: backend unavailable")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY LAYOUT
// ══════════════════════════════════════════════════════════════════════════════

// Key prefixes for namespacing records.
const (
	// PrefixProgress is the prefix for per-visitor progress records.
	PrefixProgress = "progress:"

	// PrefixSession is the prefix for session pointer records.
	PrefixSession = "session:"

	// CounterDisplay is the key of the global display counter shown on
	// the landing page.
	CounterDisplay = "counter:display"
)

// ProgressKey returns the record key for a visitor's progress blob.
func ProgressKey(visitorID string) string {
	return PrefixProgress + visitorID
}

// SessionKey returns the record key for a visitor's session pointer.
func SessionKey(visitorID string) string {
	return PrefixSession + visitorID
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Store is the backend contract. Values are opaque byte blobs (JSON by
// convention); counters are a separate primitive because redis and
// postgres both have a cheaper native increment than read-modify-write.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	// The write is all-or-nothing for a single key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically adds delta to the integer counter under key and
	// returns the new value. A missing counter starts at zero.
	Incr(ctx context.Context, key string, delta int64) (int64, error)

	// GetCounter returns the counter value; a missing counter is zero.
	GetCounter(ctx context.Context, key string) (int64, error)

	// Ping reports backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
