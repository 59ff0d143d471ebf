// Package session owns the per-view resources: one item store, one sync
// channel and one TTL clock, created on mount and released on unmount.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"arkdrop/internal/itemstore"
	"arkdrop/internal/metrics"
	"arkdrop/internal/syncchan"
	"arkdrop/internal/ttl"
)

// ErrUnmounted is returned when mounting a session that was torn down.
var ErrUnmounted = errors.New("session already unmounted")

// Options wires a Session.
type Options struct {
	Lister itemstore.Lister
	Dialer syncchan.Dialer
	Sync   syncchan.Options
	Units  ttl.Units
	Tick   time.Duration
	// Render receives countdown rows on every clock tick. Nil disables
	// the clock.
	Render func([]ttl.Row)
	// OnError receives failed background pulls so the view can show
	// them. The store keeps its previous list.
	OnError func(error)
}

// Session is one mounted view.
type Session struct {
	Store   *itemstore.Store
	Channel *syncchan.Channel
	Clock   *ttl.Clock

	lister  itemstore.Lister
	onError func(error)
	logger  *slog.Logger

	mu        sync.Mutex
	mounted   bool
	unmounted bool
}

// New builds an unmounted session.
func New(opts Options) *Session {
	s := &Session{
		Store:   itemstore.New(),
		lister:  opts.Lister,
		onError: opts.OnError,
		logger:  slog.Default().With("component", "session"),
	}
	s.Channel = syncchan.New(opts.Dialer, s, opts.Sync)
	s.Channel.OnNotify(func(ctx context.Context) {
		if err := s.Pull(ctx); err != nil {
			s.report("pull on notify failed", err)
		}
	})
	if opts.Render != nil {
		s.Clock = ttl.NewClock(s.Store, opts.Units, opts.Tick, opts.Render)
	}
	return s
}

// Pull refreshes the store from the server.
func (s *Session) Pull(ctx context.Context) error {
	start := time.Now()
	err := s.Store.Pull(ctx, s.lister)
	metrics.RecordListPull(time.Since(start), err == nil)
	return err
}

// Mount pulls the list, opens the sync channel and starts the clock. A
// failed initial pull is reported; the view stays usable with an empty
// list until the next successful pull.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return ErrUnmounted
	}
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	s.mu.Unlock()

	if err := s.Pull(ctx); err != nil {
		s.report("initial pull failed", err)
	}
	if err := s.Channel.Connect(ctx); err != nil {
		return err
	}
	if s.Clock != nil {
		s.Clock.Start()
	}
	return nil
}

func (s *Session) report(msg string, err error) {
	s.logger.Warn(msg, "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}

// Unmount stops the clock and closes the channel.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return
	}
	s.unmounted = true
	s.mu.Unlock()

	if s.Clock != nil {
		s.Clock.Stop()
	}
	_ = s.Channel.Close()
}
