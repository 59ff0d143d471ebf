package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"arkdrop/internal/api"
	"arkdrop/internal/config"
	"arkdrop/internal/format"
	"arkdrop/internal/models"
	"arkdrop/internal/ttl"
)

type downloadResult struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
}

func newGetCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var (
		dir       string
		force     bool
		noContent bool
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an item and download its attachments",
		Args:  requireExactlyArgs(1, "item id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				snap, err := client.List(cmd.Context())
				if err != nil {
					return err
				}
				item, ok := snap.Find(ids[0])
				if !ok {
					return fmt.Errorf("item %d not found", ids[0])
				}

				var results []downloadResult
				for _, att := range item.Attachments {
					res, err := downloadAttachment(cmd, client, att, dir, force)
					if err != nil {
						return err
					}
					results = append(results, res)
					if !out.structured() {
						fmt.Fprintf(os.Stderr, "saved %s (%s)\n", res.Path, format.HumanSize(res.Bytes))
					}
				}

				if out.structured() {
					return writeJSON(map[string]any{"item": item, "downloads": results})
				}
				if noContent {
					return nil
				}
				info := ttl.ComputeWith(ttl.UnitsFor(cfg.TTL.Locale), item, snap.ExpireSeconds, time.Now())
				return writeItemDetail(os.Stdout, item, info)
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "output", "o", ".", "directory for downloaded files")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&noContent, "quiet", false, "only download, do not print the item")

	return cmd
}

// downloadAttachment saves att under its original file name.
func downloadAttachment(cmd *cobra.Command, client *api.Client, att models.Attachment, dir string, force bool) (downloadResult, error) {
	name, err := localFileName(att)
	if err != nil {
		return downloadResult{}, err
	}
	path := filepath.Join(dir, name)

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !force {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return downloadResult{}, fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return downloadResult{}, err
	}

	n, err := client.Download(cmd.Context(), att.FilePath, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return downloadResult{}, fmt.Errorf("download %s: %w", att.FileName, err)
	}
	return downloadResult{FileName: att.FileName, Path: path, Bytes: n}, nil
}

// localFileName picks a name inside the output directory: the display
// name, else the storage key, never a path component that escapes it.
func localFileName(att models.Attachment) (string, error) {
	for _, candidate := range []string{att.FileName, att.FilePath} {
		name := filepath.Base(filepath.FromSlash(strings.ReplaceAll(candidate, "\\", "/")))
		switch name {
		case "", ".", "..", string(filepath.Separator):
			continue
		}
		return name, nil
	}
	return "", fmt.Errorf("attachment %d has no usable file name", att.ID)
}
