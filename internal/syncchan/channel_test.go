package syncchan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"arkdrop/internal/retry"
)

type fakeConn struct {
	incoming  chan string
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	sent []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan string, 8), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (string, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-c.closed:
		return "", errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(payload string) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// fakeDialer hands out queued results in order, repeating the last one.
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	dials   int
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.dials
	if idx >= len(d.results) {
		idx = len(d.results) - 1
	}
	d.dials++
	res := d.results[idx]
	if res.err != nil {
		return nil, res.err
	}
	return res.conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type countingPuller struct {
	n atomic.Int32
}

func (p *countingPuller) Pull(context.Context) error {
	p.n.Add(1)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func openChannel(t *testing.T, opts Options) (*Channel, *fakeConn, *fakeDialer, *countingPuller) {
	t.Helper()
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{{conn: conn}}}
	puller := &countingPuller{}
	ch := New(dialer, puller, opts)
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if state := ch.WaitReady(context.Background()); state != StateOpen {
		t.Fatalf("expected open, got %s", state)
	}
	t.Cleanup(func() { _ = ch.Close() })
	return ch, conn, dialer, puller
}

func TestConnectIsIdempotent(t *testing.T) {
	ch, _, dialer, _ := openChannel(t, Options{})
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if dialer.Dials() != 1 {
		t.Fatalf("expected one dial, got %d", dialer.Dials())
	}
}

func TestEachNotificationRunsHandlerOnce(t *testing.T) {
	ch, conn, _, _ := openChannel(t, Options{})
	var pulls atomic.Int32
	ch.OnNotify(func(context.Context) { pulls.Add(1) })

	conn.incoming <- NotifyPayload
	conn.incoming <- "hello"
	conn.incoming <- NotifyPayload

	waitFor(t, "two pulls", func() bool { return pulls.Load() == 2 })
	time.Sleep(10 * time.Millisecond)
	if got := pulls.Load(); got != 2 {
		t.Fatalf("expected exactly 2 pulls, got %d", got)
	}
}

func TestNotifyWhenOpenSendsPayload(t *testing.T) {
	ch, conn, _, puller := openChannel(t, Options{})
	if err := ch.Notify(context.Background()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sent := conn.Sent(); len(sent) != 1 || sent[0] != NotifyPayload {
		t.Fatalf("unexpected sent messages %v", sent)
	}
	if puller.n.Load() != 0 {
		t.Fatalf("expected no direct pull while open")
	}
}

func TestNotifyWhenIdlePullsDirectly(t *testing.T) {
	puller := &countingPuller{}
	ch := New(&fakeDialer{results: []dialResult{{err: errors.New("unused")}}}, puller, Options{})
	if ch.State() != StateIdle {
		t.Fatalf("expected idle, got %s", ch.State())
	}
	if err := ch.Notify(context.Background()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if puller.n.Load() != 1 {
		t.Fatalf("expected one direct pull, got %d", puller.n.Load())
	}
}

func TestDialFailureWithoutReconnectCloses(t *testing.T) {
	dialer := &fakeDialer{results: []dialResult{{err: errors.New("refused")}}}
	puller := &countingPuller{}
	ch := New(dialer, puller, Options{Reconnect: ReconnectOff})
	defer ch.Close()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect should not surface transport errors: %v", err)
	}
	if state := ch.WaitReady(context.Background()); state != StateClosed {
		t.Fatalf("expected closed, got %s", state)
	}
	time.Sleep(10 * time.Millisecond)
	if dialer.Dials() != 1 {
		t.Fatalf("expected no redial, got %d dials", dialer.Dials())
	}

	if err := ch.Notify(context.Background()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if puller.n.Load() != 1 {
		t.Fatalf("expected direct pull after close, got %d", puller.n.Load())
	}
}

func TestRemoteCloseWithoutReconnect(t *testing.T) {
	ch, conn, _, _ := openChannel(t, Options{})
	_ = conn.Close()
	waitFor(t, "closed state", func() bool { return ch.State() == StateClosed })
}

func TestBackoffReconnects(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []dialResult{
		{err: errors.New("refused")},
		{conn: conn},
	}}
	ch := New(dialer, &countingPuller{}, Options{
		Reconnect: ReconnectBackoff,
		Backoff:   retry.Config{InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2},
	})
	defer ch.Close()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "open after retry", func() bool { return ch.State() == StateOpen })
	if dialer.Dials() != 2 {
		t.Fatalf("expected 2 dials, got %d", dialer.Dials())
	}
}

func TestCloseStopsChannel(t *testing.T) {
	ch, conn, _, _ := openChannel(t, Options{})
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if ch.State() != StateClosed {
		t.Fatalf("expected closed, got %s", ch.State())
	}
	select {
	case <-conn.closed:
	default:
		t.Fatal("expected connection closed")
	}
	if err := ch.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
