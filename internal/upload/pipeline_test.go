package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"arkdrop/internal/api"
	"arkdrop/internal/clipboard"
	"arkdrop/internal/dispatch"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []api.CreateRequest
	bodies   []map[string]string
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeSubmitter) Create(_ context.Context, req api.CreateRequest) (string, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}

	body := map[string]string{}
	var total int64
	for _, file := range req.Files {
		total += file.Size
	}
	var sent int64
	for _, file := range req.Files {
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		body[file.Name] = string(data)
		sent += int64(len(data))
		if req.Progress != nil {
			req.Progress(sent, total)
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "OK", nil
}

func TestSubmitSuccessClearsDraft(t *testing.T) {
	sub := &fakeSubmitter{}
	p := New(sub, nil)

	var progress []int
	p.OnChange(func(s State) {
		if s.Uploading {
			progress = append(progress, s.Progress)
		}
	})

	if err := p.SetContent("hello"); err != nil {
		t.Fatalf("set content: %v", err)
	}
	if err := p.AddFiles(FromBytes("a.txt", "text/plain", []byte("aaaa")), FromBytes("b.txt", "text/plain", []byte("bbbb"))); err != nil {
		t.Fatalf("add files: %v", err)
	}
	before := p.State()
	if before.TotalSize != 8 || len(before.Files) != 2 {
		t.Fatalf("unexpected draft %+v", before)
	}

	if _, err := p.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	after := p.State()
	if after.Content != "" || len(after.Files) != 0 || after.Uploading || after.Progress != 0 {
		t.Fatalf("expected cleared draft, got %+v", after)
	}
	if after.Generation != before.Generation+1 {
		t.Fatalf("expected new generation, got %d -> %d", before.Generation, after.Generation)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("expected progress to reach 100, got %v", progress)
	}
	if got := sub.bodies[0]["b.txt"]; got != "bbbb" {
		t.Fatalf("unexpected uploaded body %q", got)
	}
	if sub.requests[0].Content != "hello" {
		t.Fatalf("unexpected content %q", sub.requests[0].Content)
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("network down")}
	p := New(sub, nil)
	_ = p.SetContent("keep me")
	_ = p.AddFiles(FromBytes("x.bin", "", []byte{1, 2, 3}))
	gen := p.State().Generation

	if _, err := p.Submit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	state := p.State()
	if state.Content != "keep me" || len(state.Files) != 1 || state.Uploading {
		t.Fatalf("expected preserved draft, got %+v", state)
	}
	if state.Generation != gen {
		t.Fatalf("generation changed on failure")
	}

	sub.err = nil
	if _, err := p.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(sub.requests) != 2 || sub.bodies[1]["x.bin"] != "\x01\x02\x03" {
		t.Fatalf("retry did not resend draft: %+v", sub.bodies)
	}
}

func TestEditsRejectedWhileUploading(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{}), started: make(chan struct{})}
	p := New(sub, nil)
	_ = p.SetContent("x")

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background())
		done <- err
	}()
	<-sub.started

	if err := p.SetContent("y"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from SetContent, got %v", err)
	}
	if err := p.AddFiles(FromBytes("a", "", nil)); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from AddFiles, got %v", err)
	}
	if _, err := p.Paste([]clipboard.Item{clipboard.BytesItem("image/png", []byte("p"))}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from Paste, got %v", err)
	}
	if _, err := p.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from Submit, got %v", err)
	}
	if !p.State().Uploading {
		t.Fatal("expected uploading state")
	}

	close(sub.block)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
}

type noopAPI struct{ calls int }

func (a *noopAPI) Create(context.Context, api.CreateRequest) (string, error) {
	a.calls++
	return "OK", nil
}
func (a *noopAPI) Favorite(context.Context, int64) (string, error) { return "", nil }
func (a *noopAPI) Delete(context.Context, int64) (string, error)   { return "", nil }
func (a *noopAPI) Clean(context.Context) (string, error)           { return "", nil }

func TestEmptySubmitGoesThroughValidation(t *testing.T) {
	client := &noopAPI{}
	p := New(dispatch.New(dispatch.Deps{API: client}), nil)
	gen := p.State().Generation

	if _, err := p.Submit(context.Background()); !errors.Is(err, dispatch.ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no request, got %d", client.calls)
	}
	if state := p.State(); state.Uploading || state.Generation != gen {
		t.Fatalf("unexpected state after rejected submit %+v", state)
	}
}

var pasteName = regexp.MustCompile(`^paste-1700000000123-(\d+)-[0-9a-f]{8}\.(png|jpg)$`)

func TestPasteAppendsImages(t *testing.T) {
	p := New(&fakeSubmitter{}, nil)
	p.Now = func() time.Time { return time.UnixMilli(1700000000123) }
	_ = p.AddFiles(FromBytes("existing.pdf", "application/pdf", []byte("pdf")))

	n, err := p.Paste([]clipboard.Item{
		clipboard.BytesItem("image/png", []byte("one")),
		clipboard.BytesItem("text/plain", []byte("not an image")),
		{MIMEType: "image/gif", Read: func() ([]byte, error) { return nil, errors.New("gone") }},
		clipboard.BytesItem("image/jpeg", []byte("two")),
	})
	if err != nil {
		t.Fatalf("paste: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pasted files, got %d", n)
	}

	files := p.State().Files
	if len(files) != 3 || files[0].Name != "existing.pdf" {
		t.Fatalf("expected existing selection kept, got %+v", files)
	}
	for i, want := range []string{"png", "jpg"} {
		m := pasteName.FindStringSubmatch(files[i+1].Name)
		if m == nil || m[2] != want {
			t.Fatalf("unexpected pasted name %q", files[i+1].Name)
		}
	}
	if files[1].Name == files[2].Name {
		t.Fatal("pasted names must be unique")
	}
	if files[1].ContentType != "image/png" || files[1].Size != 3 {
		t.Fatalf("unexpected pasted file %+v", files[1])
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"image/png":                ".png",
		"image/jpeg":               ".jpg",
		"IMAGE/PNG; charset=x":     ".png",
		"image/x-icon":             ".xicon",
		"image/":                   ".bin",
		"application/octet-stream": ".octetstream",
	}
	for in, want := range tests {
		if got := extensionFor(in); got != want {
			t.Fatalf("extensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

type chanWatcher struct {
	events chan []clipboard.Item
}

func (w chanWatcher) Watch(ctx context.Context) (<-chan []clipboard.Item, error) {
	out := make(chan []clipboard.Item)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case items := <-w.events:
				select {
				case out <- items:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func TestComposerListensForPastes(t *testing.T) {
	watcher := chanWatcher{events: make(chan []clipboard.Item)}
	p := New(&fakeSubmitter{}, watcher)

	if err := p.OpenComposer(context.Background()); err != nil {
		t.Fatalf("open composer: %v", err)
	}
	if err := p.OpenComposer(context.Background()); err != nil {
		t.Fatalf("second open: %v", err)
	}
	watcher.events <- []clipboard.Item{clipboard.BytesItem("image/png", []byte("a")), clipboard.BytesItem("image/png", []byte("b"))}

	deadline := time.Now().Add(2 * time.Second)
	for len(p.State().Files) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for pasted files, have %d", len(p.State().Files))
		}
		time.Sleep(2 * time.Millisecond)
	}

	p.CloseComposer()
	if p.ComposerOpen() {
		t.Fatal("expected composer closed")
	}
	select {
	case watcher.events <- []clipboard.Item{clipboard.BytesItem("image/png", []byte("c"))}:
		t.Fatal("listener still attached after close")
	case <-time.After(20 * time.Millisecond):
	}
	if got := len(p.State().Files); got != 2 {
		t.Fatalf("expected 2 files, got %d", got)
	}
}

func TestOnPasteFiresOnlyForPastes(t *testing.T) {
	watcher := chanWatcher{events: make(chan []clipboard.Item)}
	p := New(&fakeSubmitter{err: errors.New("boom")}, watcher)
	pastes := make(chan int, 4)
	p.OnPaste(func(n int) { pastes <- n })

	if err := p.OpenComposer(context.Background()); err != nil {
		t.Fatalf("open composer: %v", err)
	}
	defer p.CloseComposer()

	watcher.events <- []clipboard.Item{clipboard.BytesItem("image/png", []byte("a")), clipboard.BytesItem("text/plain", []byte("t"))}
	select {
	case n := <-pastes:
		if n != 1 {
			t.Fatalf("expected 1 pasted image, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for paste callback")
	}

	if _, err := p.Submit(context.Background()); err == nil {
		t.Fatal("expected submit failure")
	}
	if err := p.SetContent("note"); err != nil {
		t.Fatalf("set content: %v", err)
	}
	select {
	case n := <-pastes:
		t.Fatalf("unexpected paste callback (%d) for a non-paste change", n)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	typed := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(typed, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	file, err := FromPath(typed)
	if err != nil {
		t.Fatalf("from path: %v", err)
	}
	if file.Name != "note.txt" || file.Size != 5 || !strings.HasPrefix(file.ContentType, "text/plain") {
		t.Fatalf("unexpected file %+v", file.Info())
	}

	sniffed := filepath.Join(dir, "image")
	if err := os.WriteFile(sniffed, []byte("\x89PNG\r\n\x1a\nrest"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	file, err = FromPath(sniffed)
	if err != nil {
		t.Fatalf("from path: %v", err)
	}
	if file.ContentType != "image/png" {
		t.Fatalf("expected sniffed png, got %q", file.ContentType)
	}

	if _, err := FromPath(dir); err == nil {
		t.Fatal("expected directory to be rejected")
	}
}
