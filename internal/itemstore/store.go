// Package itemstore holds the client's copy of the board list. The whole
// list is replaced on every successful pull; readers get copies.
package itemstore

import (
	"context"
	"log/slog"
	"sync"

	"arkdrop/internal/models"
)

// Lister fetches a full snapshot from the server.
type Lister interface {
	List(ctx context.Context) (models.ListSnapshot, error)
}

// Store is the in-memory list shared by the sync channel, the TTL clock
// and the renderer.
type Store struct {
	mu       sync.RWMutex
	snapshot models.ListSnapshot
	version  uint64
	subs     map[chan struct{}]struct{}
	logger   *slog.Logger
}

// New returns an empty store.
func New() *Store {
	return &Store{
		snapshot: models.ListSnapshot{List: []models.Item{}},
		subs:     make(map[chan struct{}]struct{}),
		logger:   slog.Default().With("component", "itemstore"),
	}
}

// Replace swaps in a new snapshot wholesale and wakes subscribers.
func (s *Store) Replace(snapshot models.ListSnapshot) {
	next := snapshot.Clone()
	if next.List == nil {
		next.List = []models.Item{}
	}

	s.mu.Lock()
	s.snapshot = next
	s.version++
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current list.
func (s *Store) Snapshot() models.ListSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// ExpireSeconds returns the retention window of the last snapshot.
func (s *Store) ExpireSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.ExpireSeconds
}

// Version counts successful replacements.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel that receives a tick after each Replace.
// Ticks coalesce when the reader is slow. The cancel func releases it.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

// Pull fetches the list and replaces the store on success. On failure
// the previous snapshot is left as is.
func (s *Store) Pull(ctx context.Context, lister Lister) error {
	snapshot, err := lister.List(ctx)
	if err != nil {
		s.logger.Warn("list pull failed", "error", err)
		return err
	}
	s.Replace(snapshot)
	s.logger.Debug("list pulled", "items", len(snapshot.List), "expire_seconds", snapshot.ExpireSeconds)
	return nil
}
