package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Doc is a versioned document. Version starts at 1 and increases by one per
// committed write.
type Doc struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
	Version uint64          `json:"version"`
}

// Write describes one key mutation inside an atomic batch. Version is the
// version the writer read before building the batch; zero means the key must
// not exist yet.
type Write struct {
	Key     string
	Value   json.RawMessage
	Version uint64
}

// Snapshot is one historical version of a document.
type Snapshot struct {
	TxID       string          `json:"tx_id"`
	Version    uint64          `json:"version"`
	Value      json.RawMessage `json:"value"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Store is a versioned key-value abstraction with optimistic concurrency.
// Apply commits all writes or none: if any key's current version differs from
// the version recorded in its Write, the whole batch fails with ErrConflict.
type Store interface {
	Get(ctx context.Context, key string) (Doc, error)
	Apply(ctx context.Context, txID string, writes []Write) error
	// Query scans keys under prefix in lexicographic order, starting strictly
	// after cursor. It returns at most pageSize docs plus a cursor to resume,
	// empty when the scan is exhausted.
	Query(ctx context.Context, prefix string, pageSize int, cursor string) ([]Doc, string, error)
	// History returns all committed versions of key, oldest first.
	History(ctx context.Context, key string) ([]Snapshot, error)
}

var (
	ErrNotFound    = errors.New("key not found")
	ErrConflict    = errors.New("version conflict")
	ErrUnavailable = errors.New("store unavailable")
)
