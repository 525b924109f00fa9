// Package session persists web sessions in redis with a postgres fallback.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is the stored payload. Values round-trip through JSON, so numbers
// come back as float64.
type Session struct {
	Values map[string]any `json:"values"`
	MaxAge int            `json:"max_age"` // seconds; <= 0 means the store default
}

// Backend is a single session store. Get returns ErrNotFound on a miss and
// Destroy is a no-op for unknown ids.
type Backend interface {
	Get(ctx context.Context, sid string) (*Session, error)
	Set(ctx context.Context, sid string, s *Session, ttl time.Duration) error
	Touch(ctx context.Context, sid string, s *Session, ttl time.Duration) error
	Destroy(ctx context.Context, sid string) error
}
