package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// noteFrontMatter is the optional YAML header of a note file.
type noteFrontMatter struct {
	Files []string `yaml:"files"`
	Title string   `yaml:"title"`
}

// note is a parsed markdown file ready to become a draft.
type note struct {
	Content string
	Files   []string
}

func parseMarkdown(input string) (noteFrontMatter, string, error) {
	var front noteFrontMatter
	input = strings.ReplaceAll(input, "\r\n", "\n")
	content := input

	lines := strings.Split(input, "\n")
	if len(lines) >= 2 && strings.TrimSpace(lines[0]) == "---" {
		end := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return front, "", fmt.Errorf("front matter not closed")
		}
		frontText := strings.Join(lines[1:end], "\n")
		if err := yaml.Unmarshal([]byte(frontText), &front); err != nil {
			return front, "", fmt.Errorf("front matter: %w", err)
		}
		content = strings.Join(lines[end+1:], "\n")
	}

	return front, strings.TrimSpace(content), nil
}

// parseNote resolves attachment paths relative to the note's directory.
func parseNote(path, input string) (note, error) {
	front, body, err := parseMarkdown(input)
	if err != nil {
		return note{}, fmt.Errorf("%s: %w", path, err)
	}

	content := body
	if title := strings.TrimSpace(front.Title); title != "" {
		if content == "" {
			content = title
		} else {
			content = title + "\n\n" + content
		}
	}

	base := filepath.Dir(path)
	files := make([]string, 0, len(front.Files))
	for _, f := range front.Files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !filepath.IsAbs(f) {
			f = filepath.Join(base, f)
		}
		files = append(files, f)
	}
	return note{Content: content, Files: files}, nil
}
