package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemory implements Store with in-process concurrency safety. Every
// committed write keeps a full snapshot so History can replay the document.
type InMemory struct {
	mu   sync.RWMutex
	docs map[string]*entry
}

type entry struct {
	current  Doc
	versions []Snapshot
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[string]*entry)}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Get(ctx context.Context, key string) (Doc, error) {
	if err := ctxErr(ctx); err != nil {
		return Doc{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[key]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return copyDoc(e.current), nil
}

func (s *InMemory) Apply(ctx context.Context, txID string, writes []Write) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every write before touching anything so the batch is
	// all-or-nothing.
	for _, w := range writes {
		e, ok := s.docs[w.Key]
		if !ok {
			if w.Version != 0 {
				return ErrConflict
			}
			continue
		}
		if e.current.Version != w.Version {
			return ErrConflict
		}
	}

	now := time.Now().UTC()
	for _, w := range writes {
		e, ok := s.docs[w.Key]
		if !ok {
			e = &entry{}
			s.docs[w.Key] = e
		}
		value := append([]byte(nil), w.Value...)
		e.current = Doc{Key: w.Key, Value: value, Version: w.Version + 1}
		e.versions = append(e.versions, Snapshot{
			TxID:       txID,
			Version:    w.Version + 1,
			Value:      value,
			RecordedAt: now,
		})
	}
	return nil
}

func (s *InMemory) Query(ctx context.Context, prefix string, pageSize int, cursor string) ([]Doc, string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, "", err
	}
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 100
	}
	s.mu.RLock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		if strings.HasPrefix(k, prefix) && k > cursor {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var res []Doc
	for _, k := range keys {
		if len(res) >= pageSize {
			break
		}
		res = append(res, copyDoc(s.docs[k].current))
	}
	s.mu.RUnlock()

	next := ""
	if len(res) == pageSize && len(keys) > pageSize {
		next = res[len(res)-1].Key
	}
	return res, next, nil
}

func (s *InMemory) History(ctx context.Context, key string) ([]Snapshot, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Snapshot, len(e.versions))
	for i, v := range e.versions {
		out[i] = v
		out[i].Value = append([]byte(nil), v.Value...)
	}
	return out, nil
}

func copyDoc(d Doc) Doc {
	out := d
	out.Value = append([]byte(nil), d.Value...)
	return out
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrUnavailable
	default:
		return nil
	}
}
