// Package session holds short-lived keyed state (sessions, one-time codes,
// rate-limit windows, idempotency keys) behind one interface so that tests run
// against memory and deployments share Redis.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("session: key not found")

// Kind namespaces keys so different concerns never collide.
type Kind string

const (
	KindSession     Kind = "session"
	KindOTP         Kind = "otp"
	KindRateLimit   Kind = "ratelimit"
	KindIdempotency Kind = "idempotency"
)

// Key addresses one entry.
type Key struct {
	Kind    Kind
	Subject string
}

// String renders the storage key, e.g. "ratelimit:jane@example.com".
func (k Key) String() string {
	return string(k.Kind) + ":" + strings.ToLower(strings.TrimSpace(k.Subject))
}

// Store is implemented by MemoryStore and RedisStore.
type Store interface {
	// Put stores value under key for ttl; ttl <= 0 means no expiry.
	Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key Key) ([]byte, error)
	Delete(ctx context.Context, key Key) error
	// Incr increments a counter, starting its ttl window on first increment.
	Incr(ctx context.Context, key Key, window time.Duration) (int64, error)
}
