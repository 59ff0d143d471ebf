package ttl

import (
	"sync"
	"time"

	"arkdrop/internal/models"
)

// Row pairs an item with its countdown.
type Row struct {
	Item models.Item `json:"item"`
	TTL  Info        `json:"ttl"`
}

// Source supplies the items to count down.
type Source interface {
	Snapshot() models.ListSnapshot
}

// Clock recomputes countdowns on a fixed interval while started.
type Clock struct {
	source   Source
	units    Units
	interval time.Duration
	render   func([]Row)

	// Now is the time source; tests replace it.
	Now func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewClock returns a stopped clock. interval defaults to one second.
func NewClock(source Source, units Units, interval time.Duration, render func([]Row)) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{
		source:   source,
		units:    units,
		interval: interval,
		render:   render,
		Now:      time.Now,
	}
}

// Rows computes countdowns for the current snapshot.
func (c *Clock) Rows() []Row {
	snapshot := c.source.Snapshot()
	now := c.Now()
	rows := make([]Row, 0, len(snapshot.List))
	for _, item := range snapshot.List {
		rows = append(rows, Row{Item: item, TTL: ComputeWith(c.units, item, snapshot.ExpireSeconds, now)})
	}
	return rows
}

// Tick recomputes once and hands the rows to the render callback.
func (c *Clock) Tick() {
	rows := c.Rows()
	if c.render != nil {
		c.render(rows)
	}
}

// Start begins ticking. Calling Start on a running clock is a no-op.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

// Stop halts ticking and waits for the ticker goroutine to exit.
func (c *Clock) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the clock is started.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Clock) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Tick()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}
