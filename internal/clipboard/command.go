package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandSource reads the clipboard through external tools.
type CommandSource struct {
	// Types lists the MIME types on offer, one per line. Nil means the
	// tool only ever offers Fixed.
	Types []string
	// Read returns the argv that prints the clipboard as mimeType.
	Read func(mimeType string) []string
	// Fixed is the single type offered when Types is nil.
	Fixed string
}

// Items returns one lazily read item per image type on offer.
func (s CommandSource) Items(ctx context.Context) ([]Item, error) {
	types := []string{s.Fixed}
	if len(s.Types) > 0 {
		out, err := run(ctx, s.Types)
		if err != nil {
			return nil, err
		}
		types = types[:0]
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				types = append(types, line)
			}
		}
	}

	items := make([]Item, 0, len(types))
	for _, mimeType := range types {
		if mimeType == "" || !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
			continue
		}
		argv := s.Read(mimeType)
		items = append(items, Item{
			MIMEType: mimeType,
			Read: func() ([]byte, error) {
				return run(ctx, argv)
			},
		})
		// Tools offer the same image under several types; one is enough.
		break
	}
	return items, nil
}

func run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty clipboard command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	return out.Bytes(), nil
}

// WaylandSource reads the clipboard with wl-paste.
func WaylandSource() CommandSource {
	return CommandSource{
		Types: []string{"wl-paste", "--list-types"},
		Read: func(mimeType string) []string {
			return []string{"wl-paste", "--no-newline", "--type", mimeType}
		},
	}
}

// X11Source reads the clipboard with xclip.
func X11Source() CommandSource {
	return CommandSource{
		Types: []string{"xclip", "-selection", "clipboard", "-t", "TARGETS", "-o"},
		Read: func(mimeType string) []string {
			return []string{"xclip", "-selection", "clipboard", "-t", mimeType, "-o"}
		},
	}
}
