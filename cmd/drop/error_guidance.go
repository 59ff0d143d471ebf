package main

import (
	"context"
	"errors"
	"net"

	"arkdrop/internal/api"
	"arkdrop/internal/clipboard"
	"arkdrop/internal/dispatch"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	switch {
	case errors.Is(err, dispatch.ErrEmptySubmission):
		lines = append(lines, "hint: pass text with -m, a note with -f, or files as arguments.")
		return uniqueLines(lines)
	case errors.Is(err, errNotTerminal):
		lines = append(lines, "hint: pass --yes to skip confirmation in scripts.")
		return uniqueLines(lines)
	case errors.Is(err, dispatch.ErrCanceled):
		return []string{"canceled"}
	case errors.Is(err, clipboard.ErrUnsupported):
		lines = append(lines, "hint: install wl-clipboard (Wayland), xclip (X11) or pngpaste (macOS).")
		return uniqueLines(lines)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 401:
			lines = append(lines, "hint: log in with: drop login")
		case apiErr.Status == 429:
			lines = append(lines, "hint: too many failed logins; wait a few minutes and retry.")
		case apiErr.Status == 404 && apiErr.Code == "":
			lines = append(lines, "hint: verify DROP_API_URL points to a drop server.")
		case apiErr.Status >= 500:
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase DROP_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a drop server is running at DROP_API_URL.",
			"hint: start one locally with: drop srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
