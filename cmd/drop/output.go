package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"arkdrop/internal/format"
	"arkdrop/internal/models"
	"arkdrop/internal/ttl"
)

const contentPreviewWidth = 60

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeRows(w io.Writer, rows []ttl.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(board is empty)")
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, formatRow(row)); err != nil {
			return err
		}
	}
	return nil
}

// formatRow renders one item as "★ #12  30m0s  text  [2 files, 1.5 MB]".
func formatRow(row ttl.Row) string {
	item := row.Item
	star := " "
	if item.Favorite {
		star = "★"
	}

	left := "-"
	if row.TTL.TimeLeft != nil {
		left = *row.TTL.TimeLeft
	}

	parts := []string{fmt.Sprintf("%s #%-4d %-10s", star, item.ID, left)}
	if item.HasContent() {
		parts = append(parts, preview(item.Content, contentPreviewWidth))
	}
	if n := len(item.Attachments); n > 0 {
		parts = append(parts, fmt.Sprintf("[%s, %s]", plural(n, "file"), format.HumanSize(totalSize(item.Attachments))))
	}
	return strings.Join(parts, "  ")
}

func writeItemDetail(w io.Writer, item models.Item, info ttl.Info) error {
	lines := []string{
		fmt.Sprintf("id: %d", item.ID),
		fmt.Sprintf("created_at: %s", formatUnix(item.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatUnix(item.UpdatedAt)),
		fmt.Sprintf("favorite: %t", item.Favorite),
	}
	if info.TimeLeft != nil {
		lines = append(lines, fmt.Sprintf("expires_in: %s", *info.TimeLeft))
	}
	if len(item.Attachments) > 0 {
		lines = append(lines, "attachments:")
		for _, att := range item.Attachments {
			lines = append(lines, fmt.Sprintf("  - %s (%s, %s)", att.FileName, att.ContentType, format.HumanSize(att.FileSize)))
		}
	}
	if item.HasContent() {
		lines = append(lines, "", item.Content)
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func preview(content string, width int) string {
	line := strings.TrimSpace(content)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i]) + " …"
	}
	runes := []rune(line)
	if len(runes) > width {
		return string(runes[:width-1]) + "…"
	}
	return line
}

func totalSize(atts []models.Attachment) int64 {
	var total int64
	for _, a := range atts {
		total += a.FileSize
	}
	return total
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
