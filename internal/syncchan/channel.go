// Package syncchan propagates "the list changed" between clients over a
// push transport, falling back to a direct pull when no push link is up.
package syncchan

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"arkdrop/internal/metrics"
	"arkdrop/internal/retry"
)

// NotifyPayload is the only message peers exchange.
const NotifyPayload = "list_change"

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("sync channel closed")

// State is the lifecycle of a channel.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reconnect policies.
const (
	ReconnectOff     = "off"
	ReconnectBackoff = "backoff"
)

// Puller refreshes the local list from the server.
type Puller interface {
	Pull(ctx context.Context) error
}

// PullFunc adapts a function to Puller.
type PullFunc func(ctx context.Context) error

func (f PullFunc) Pull(ctx context.Context) error { return f(ctx) }

// Handler runs for every notification received from a peer.
type Handler func(ctx context.Context)

// Options configures a Channel.
type Options struct {
	Reconnect string
	Backoff   retry.Config
	Logger    *slog.Logger
}

// Channel owns one push link. Transport events are funneled into a
// single dispatch loop which is the only place state advances past
// Connecting.
type Channel struct {
	dialer  Dialer
	puller  Puller
	opts    Options
	logger  *slog.Logger
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	conn      Conn
	handlers  []Handler
	shut      bool
	cancel    context.CancelFunc
	done      chan struct{}
	ready     chan struct{}
	readyOnce *sync.Once
}

// New returns an idle channel. puller may be nil when no fallback pull
// is wanted.
func New(dialer Dialer, puller Puller, opts Options) *Channel {
	if opts.Reconnect != ReconnectBackoff {
		opts.Reconnect = ReconnectOff
	}
	if opts.Backoff.InitialWait <= 0 {
		opts.Backoff = retry.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		dialer: dialer,
		puller: puller,
		opts:   opts,
		logger: logger.With("component", "sync"),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnNotify registers a handler for incoming notifications.
func (c *Channel) OnNotify(handler Handler) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
}

// Connect opens the push link in the background. It is a no-op while
// connecting or open.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shut {
		return ErrClosed
	}
	if c.state == StateConnecting || c.state == StateOpen {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events := make(chan Event, 16)
	done := make(chan struct{})
	pumpDone := make(chan struct{})

	c.cancel = cancel
	c.done = done
	c.ready = make(chan struct{})
	c.readyOnce = &sync.Once{}
	c.setStateLocked(StateConnecting)

	go func() {
		defer close(pumpDone)
		c.pump(loopCtx, events)
	}()
	go func() {
		defer close(done)
		c.dispatch(loopCtx, events)
		<-pumpDone
	}()
	return nil
}

// WaitReady blocks until the first connection attempt settles, either
// open or closed.
func (c *Channel) WaitReady(ctx context.Context) State {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if ready == nil {
		return c.State()
	}
	select {
	case <-ready:
	case <-ctx.Done():
	}
	return c.State()
}

// Notify tells peers the list changed. With no open link it pulls the
// list directly instead. Transport failures are logged, not returned.
func (c *Channel) Notify(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if open && conn != nil {
		err := c.write(conn, NotifyPayload)
		if err == nil {
			metrics.RecordNotificationSent()
			return nil
		}
		c.logger.Warn("notify failed, pulling directly", "error", err)
	}

	if c.puller == nil {
		return nil
	}
	return c.puller.Pull(ctx)
}

// Close tears the channel down. It is safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.shut = true
	cancel, done, conn := c.cancel, c.done, c.conn
	c.conn = nil
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (c *Channel) write(conn Conn, payload string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(payload)
}

// pump dials and reads, turning transport activity into events. It owns
// the events channel and closes it on exit.
func (c *Channel) pump(ctx context.Context, events chan<- Event) {
	defer close(events)
	attempt := 0
	for {
		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			events <- Event{Kind: EventErrored, Err: err}
		} else if ctx.Err() != nil {
			_ = conn.Close()
			return
		} else {
			attempt = 0
			c.mu.Lock()
			if c.shut {
				c.mu.Unlock()
				_ = conn.Close()
				return
			}
			c.conn = conn
			c.mu.Unlock()
			events <- Event{Kind: EventOpened}
			c.read(ctx, conn, events)
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			_ = conn.Close()
		}

		if ctx.Err() != nil {
			return
		}
		retrying := c.opts.Reconnect == ReconnectBackoff
		events <- Event{Kind: EventClosed, Retrying: retrying}
		if !retrying {
			return
		}

		wait := c.opts.Backoff.Delay(attempt)
		attempt++
		c.logger.Debug("reconnecting", "attempt", attempt, "wait", wait)
		if err := retry.Wait(ctx, wait); err != nil {
			return
		}
	}
}

func (c *Channel) read(ctx context.Context, conn Conn, events chan<- Event) {
	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				events <- Event{Kind: EventErrored, Err: err}
			}
			return
		}
		events <- Event{Kind: EventMessage, Payload: payload}
	}
}

func (c *Channel) dispatch(ctx context.Context, events <-chan Event) {
	for ev := range events {
		metrics.RecordSyncEvent(ev.Kind.String())
		switch ev.Kind {
		case EventOpened:
			c.transition(StateOpen)
			c.markReady()
			c.logger.Info("sync channel open")
		case EventMessage:
			if ev.Payload != NotifyPayload {
				c.logger.Debug("ignoring sync message", "payload", ev.Payload)
				continue
			}
			c.mu.Lock()
			handlers := append([]Handler(nil), c.handlers...)
			c.mu.Unlock()
			for _, handler := range handlers {
				handler(ctx)
			}
		case EventErrored:
			c.logger.Warn("sync transport error", "error", ev.Err)
		case EventClosed:
			if ev.Retrying {
				c.transition(StateConnecting)
			} else {
				c.transition(StateClosed)
				c.markReady()
			}
			c.logger.Info("sync channel closed", "retrying", ev.Retrying)
		}
	}
	c.markReady()
}

// transition moves to next unless the channel was shut down meanwhile.
func (c *Channel) transition(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shut {
		return
	}
	c.setStateLocked(next)
}

func (c *Channel) setStateLocked(next State) {
	c.state = next
	metrics.SetSyncState(int(next))
}

func (c *Channel) markReady() {
	c.mu.Lock()
	ready, once := c.ready, c.readyOnce
	c.mu.Unlock()
	if once != nil {
		once.Do(func() { close(ready) })
	}
}
