package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"arkdrop/internal/clipboard"
	"arkdrop/internal/config"
	"arkdrop/internal/dispatch"
	"arkdrop/internal/format"
	"arkdrop/internal/upload"
)

type createCmdOptions struct {
	message  string
	filePath string
	stdin    bool
	paste    bool
}

type createResult struct {
	Response string            `json:"response"`
	Files    []upload.FileInfo `json:"files"`
}

func newCreateCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	opts := &createCmdOptions{}
	cmd := &cobra.Command{
		Use:   "create [file...]",
		Short: "Post text and files to the board",
		Long: "Post text and files to the board. Text comes from --message, --stdin or the\n" +
			"body of a markdown note (--file) whose front matter may list files to attach.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), cfg, opts, out, args)
		},
	}

	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "text content")
	cmd.Flags().StringVarP(&opts.filePath, "file", "f", "", "markdown note to post")
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "read text content from stdin")
	cmd.Flags().BoolVar(&opts.paste, "paste", false, "attach images from the clipboard")
	return cmd
}

func runCreate(ctx context.Context, cfg *config.Config, opts *createCmdOptions, out *outputFlags, args []string) error {
	return withDispatcher(ctx, cfg, true, func(d *dispatch.Dispatcher) error {
		pipeline := upload.New(d, nil)
		if err := fillDraft(ctx, pipeline, opts, args); err != nil {
			return err
		}

		draft := pipeline.State()
		if len(draft.Files) > 0 && !out.structured() {
			fmt.Fprintf(os.Stderr, "uploading %s (%s)\n", plural(len(draft.Files), "file"), format.HumanSize(draft.TotalSize))
		}
		if isTerminal(os.Stderr) && !out.structured() {
			pipeline.OnChange(progressPrinter(os.Stderr))
		}

		resp, err := pipeline.Submit(ctx)
		if err != nil {
			return err
		}
		if out.structured() {
			return writeJSON(createResult{Response: resp, Files: draft.Files})
		}
		return writePlain("%s\n", resp)
	})
}

// fillDraft gathers text and files from every requested source.
func fillDraft(ctx context.Context, p *upload.Pipeline, opts *createCmdOptions, args []string) error {
	var content []string
	paths := append([]string(nil), args...)

	if opts.filePath != "" {
		data, err := os.ReadFile(opts.filePath)
		if err != nil {
			return err
		}
		n, err := parseNote(opts.filePath, string(data))
		if err != nil {
			return err
		}
		if n.Content != "" {
			content = append(content, n.Content)
		}
		paths = append(paths, n.Files...)
	}
	if opts.message != "" {
		content = append(content, opts.message)
	}
	if opts.stdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if text := strings.TrimRight(string(data), "\n"); text != "" {
			content = append(content, text)
		}
	}
	if err := p.SetContent(strings.Join(content, "\n\n")); err != nil {
		return err
	}

	for _, path := range paths {
		f, err := upload.FromPath(path)
		if err != nil {
			return err
		}
		if err := p.AddFiles(f); err != nil {
			return err
		}
	}

	if opts.paste {
		source, err := clipboard.Detect()
		if err != nil {
			return err
		}
		items, err := source.Items(ctx)
		if err != nil {
			return fmt.Errorf("read clipboard: %w", err)
		}
		n, err := p.Paste(items)
		if err != nil {
			return err
		}
		if n == 0 {
			return errNoClipboardImage
		}
	}
	return nil
}

var errNoClipboardImage = errors.New("clipboard holds no image")

func progressPrinter(w io.Writer) func(upload.State) {
	var mu sync.Mutex
	last := -1
	return func(s upload.State) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case s.Uploading && s.Progress != last:
			last = s.Progress
			fmt.Fprintf(w, "\r%3d%%", s.Progress)
		case !s.Uploading && last >= 0:
			last = -1
			fmt.Fprint(w, "\r    \r")
		}
	}
}
