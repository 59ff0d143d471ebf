// Package clipboard reads images from the system clipboard and turns
// clipboard changes into paste events.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrUnsupported is returned when no clipboard tool is available.
var ErrUnsupported = errors.New("no clipboard reader available on this system")

// Item is one entry of a paste event. Read may fail; callers skip such
// items.
type Item struct {
	MIMEType string
	Read     func() ([]byte, error)
}

// IsImage reports whether the item carries image data.
func (i Item) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(i.MIMEType), "image/")
}

// BytesItem wraps in-memory data as an Item.
func BytesItem(mimeType string, data []byte) Item {
	return Item{
		MIMEType: mimeType,
		Read: func() ([]byte, error) {
			return bytes.Clone(data), nil
		},
	}
}

// Source lists what the clipboard currently holds.
type Source interface {
	Items(ctx context.Context) ([]Item, error)
}

// Watcher emits a batch of items for each paste event. The channel is
// closed when ctx ends.
type Watcher interface {
	Watch(ctx context.Context) (<-chan []Item, error)
}

// PollWatcher turns a Source into paste events by polling it and
// emitting whenever the image content changes.
type PollWatcher struct {
	Source   Source
	Interval time.Duration

	last [32]byte
}

// NewPollWatcher returns a watcher with a default interval of 350ms.
func NewPollWatcher(source Source, interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = 350 * time.Millisecond
	}
	return &PollWatcher{Source: source, Interval: interval}
}

// Watch primes the current clipboard so only later changes count.
func (w *PollWatcher) Watch(ctx context.Context) (<-chan []Item, error) {
	if w.Source == nil {
		return nil, ErrUnsupported
	}
	ch := make(chan []Item, 1)

	if _, sum, err := w.snapshot(ctx); err == nil {
		w.last = sum
	}

	t := time.NewTicker(w.Interval)
	go func() {
		defer t.Stop()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				items, sum, err := w.snapshot(ctx)
				if err != nil || len(items) == 0 || sum == w.last {
					continue
				}
				w.last = sum
				select {
				case ch <- items:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// snapshot reads every image item once and fingerprints the batch.
func (w *PollWatcher) snapshot(ctx context.Context) ([]Item, [32]byte, error) {
	var sum [32]byte
	items, err := w.Source.Items(ctx)
	if err != nil {
		return nil, sum, err
	}

	h, _ := blake2b.New256(nil)
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if !item.IsImage() || item.Read == nil {
			continue
		}
		data, err := item.Read()
		if err != nil || len(data) == 0 {
			continue
		}
		h.Write([]byte(item.MIMEType))
		h.Write(data)
		out = append(out, BytesItem(item.MIMEType, data))
	}
	copy(sum[:], h.Sum(nil))
	return out, sum, nil
}
