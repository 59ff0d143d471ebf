// Package upload holds the composer draft and submits it as one
// multipart create with progress.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"arkdrop/internal/api"
	"arkdrop/internal/clipboard"
	"arkdrop/internal/metrics"
)

// ErrBusy rejects draft edits and submits while an upload runs.
var ErrBusy = errors.New("upload in progress")

// Submitter sends a create request. The dispatcher implements it so
// validation and list refresh are shared with other mutations.
type Submitter interface {
	Create(ctx context.Context, req api.CreateRequest) (string, error)
}

// State is a read-only view of the draft.
type State struct {
	Content    string     `json:"content"`
	Files      []FileInfo `json:"files"`
	TotalSize  int64      `json:"total_size"`
	Uploading  bool       `json:"uploading"`
	Progress   int        `json:"progress"`
	Generation uint64     `json:"generation"`
}

// Pipeline is the composer draft plus its in-flight upload.
type Pipeline struct {
	submit  Submitter
	watcher clipboard.Watcher
	logger  *slog.Logger

	// Now stamps pasted file names; tests replace it.
	Now func() time.Time

	mu         sync.Mutex
	content    string
	files      []File
	uploading  bool
	progress   int
	generation uint64
	pasteSeq   int
	onChange   func(State)
	onPaste    func(int)

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// New returns an empty draft. watcher may be nil when clipboard capture
// is unavailable.
func New(submit Submitter, watcher clipboard.Watcher) *Pipeline {
	return &Pipeline{
		submit:     submit,
		watcher:    watcher,
		logger:     slog.Default().With("component", "upload"),
		Now:        time.Now,
		generation: 1,
	}
}

// OnChange registers a callback invoked after every draft change,
// including progress updates. It runs without the draft lock held.
func (p *Pipeline) OnChange(fn func(State)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// OnPaste registers a callback invoked with the number of images each
// clipboard paste appended. Draft changes from submits or edits do not
// trigger it.
func (p *Pipeline) OnPaste(fn func(n int)) {
	p.mu.Lock()
	p.onPaste = fn
	p.mu.Unlock()
}

// State returns a copy of the draft.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Pipeline) stateLocked() State {
	infos := make([]FileInfo, 0, len(p.files))
	var total int64
	for _, f := range p.files {
		infos = append(infos, f.Info())
		total += f.Size
	}
	return State{
		Content:    p.content,
		Files:      infos,
		TotalSize:  total,
		Uploading:  p.uploading,
		Progress:   p.progress,
		Generation: p.generation,
	}
}

// SetContent replaces the draft text.
func (p *Pipeline) SetContent(content string) error {
	return p.edit(func() { p.content = content })
}

// AddFiles appends to the selection; existing files are kept.
func (p *Pipeline) AddFiles(files ...File) error {
	return p.edit(func() { p.files = append(p.files, files...) })
}

// RemoveFile drops the file at index i.
func (p *Pipeline) RemoveFile(i int) error {
	return p.edit(func() {
		if i < 0 || i >= len(p.files) {
			return
		}
		p.files = append(p.files[:i], p.files[i+1:]...)
	})
}

func (p *Pipeline) edit(fn func()) error {
	p.mu.Lock()
	if p.uploading {
		p.mu.Unlock()
		return ErrBusy
	}
	fn()
	state, notify := p.stateLocked(), p.onChange
	p.mu.Unlock()

	if notify != nil {
		notify(state)
	}
	return nil
}

// Submit uploads the draft. The draft is cleared and a new generation
// issued on success; on failure it is left intact for a retry.
func (p *Pipeline) Submit(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.uploading {
		p.mu.Unlock()
		return "", ErrBusy
	}
	req := api.CreateRequest{
		Content: p.content,
		Files:   make([]api.FilePart, 0, len(p.files)),
	}
	for _, f := range p.files {
		req.Files = append(req.Files, f.part())
	}
	p.uploading = true
	p.progress = 0
	state, notify := p.stateLocked(), p.onChange
	p.mu.Unlock()
	if notify != nil {
		notify(state)
	}

	var sent atomic.Int64
	req.Progress = func(n, total int64) {
		sent.Store(n)
		p.setProgress(api.Percent(n, total))
	}

	payload, err := p.submit.Create(ctx, req)

	p.mu.Lock()
	p.uploading = false
	p.progress = 0
	if err == nil {
		p.content = ""
		p.files = nil
		p.generation++
	}
	state, notify = p.stateLocked(), p.onChange
	p.mu.Unlock()
	if notify != nil {
		notify(state)
	}

	if err != nil {
		p.logger.Debug("upload failed, draft kept", "error", err)
		return "", err
	}
	metrics.RecordUpload(sent.Load())
	return payload, nil
}

func (p *Pipeline) setProgress(pct int) {
	p.mu.Lock()
	if pct == p.progress {
		p.mu.Unlock()
		return
	}
	p.progress = pct
	state, notify := p.stateLocked(), p.onChange
	p.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}
