package upload

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"arkdrop/internal/clipboard"
)

var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
	"image/svg+xml": ".svg",
	"image/heic":    ".heic",
	"image/avif":    ".avif",
}

// Paste appends every readable image among items to the selection and
// returns how many were added. Unreadable items are skipped.
func (p *Pipeline) Paste(items []clipboard.Item) (int, error) {
	p.mu.Lock()
	busy := p.uploading
	p.mu.Unlock()
	if busy {
		return 0, ErrBusy
	}

	files := make([]File, 0, len(items))
	for _, item := range items {
		if !item.IsImage() || item.Read == nil {
			continue
		}
		data, err := item.Read()
		if err != nil || len(data) == 0 {
			p.logger.Debug("skipping clipboard item", "mime", item.MIMEType, "error", err)
			continue
		}
		files = append(files, FromBytes(p.pasteName(item.MIMEType, data), item.MIMEType, data))
	}
	if len(files) == 0 {
		return 0, nil
	}
	if err := p.AddFiles(files...); err != nil {
		return 0, err
	}
	return len(files), nil
}

func (p *Pipeline) pasteName(mimeType string, data []byte) string {
	p.mu.Lock()
	p.pasteSeq++
	n := p.pasteSeq
	p.mu.Unlock()

	sum := blake2b.Sum256(data)
	return fmt.Sprintf("paste-%d-%d-%s%s", p.Now().UnixMilli(), n, hex.EncodeToString(sum[:4]), extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if ext, ok := imageExtensions[mimeType]; ok {
		return ext
	}
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok || sub == "" {
		return ".bin"
	}
	sub = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, sub)
	if sub == "" {
		return ".bin"
	}
	return "." + sub
}

// OpenComposer starts listening for clipboard pastes. It is a no-op when
// already listening or when no watcher is configured.
func (p *Pipeline) OpenComposer(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil || p.watchCancel != nil {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	events, err := p.watcher.Watch(watchCtx)
	if err != nil {
		cancel()
		return err
	}
	done := make(chan struct{})
	p.watchCancel = cancel
	p.watchDone = done

	go func() {
		defer close(done)
		for items := range events {
			n, err := p.Paste(items)
			if err != nil {
				p.logger.Debug("paste ignored", "error", err)
				continue
			}
			if n == 0 {
				continue
			}
			p.logger.Debug("pasted images", "count", n)
			p.mu.Lock()
			onPaste := p.onPaste
			p.mu.Unlock()
			if onPaste != nil {
				onPaste(n)
			}
		}
	}()
	return nil
}

// CloseComposer stops listening for pastes and waits for the listener
// to exit.
func (p *Pipeline) CloseComposer() {
	p.mu.Lock()
	cancel, done := p.watchCancel, p.watchDone
	p.watchCancel, p.watchDone = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// ComposerOpen reports whether a paste listener is attached.
func (p *Pipeline) ComposerOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchCancel != nil
}
