package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrNotFound   = errors.New("storage: document not found")
	ErrInvalidKey = errors.New("storage: invalid key")
	ErrClosed     = errors.New("storage: closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": one JSON document per key under the Path directory
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the state layer.
type Store interface {
	// Load returns the document stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the document under key atomically.
	Save(ctx context.Context, key string, doc []byte) error
	// Update runs a read-modify-write under the key's lock. cur is nil when
	// the key does not exist. Returning an error from fn aborts the write.
	Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// AuditEntry records one executed action.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Status string    `json:"status"`
	Target string    `json:"target,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Error  string    `json:"error,omitempty"`
	Count  int       `json:"count,omitempty"`
	TookMS int64     `json:"took_ms"`
}

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

func checkKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
