package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"arkdrop/internal/api"
	"arkdrop/internal/config"
	"arkdrop/internal/models"
	"arkdrop/internal/ttl"
)

func newListCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var (
		favorites bool
		images    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items on the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				snap, err := client.List(cmd.Context())
				if err != nil {
					return err
				}
				snap.List = filterItems(snap.List, favorites, images)
				if out.structured() {
					return writeJSON(snap)
				}
				return writeRows(os.Stdout, buildRows(snap, ttl.UnitsFor(cfg.TTL.Locale), time.Now()))
			})
		},
	}

	cmd.Flags().BoolVar(&favorites, "favorites", false, "only favorite items")
	cmd.Flags().BoolVar(&images, "images", false, "only items with image attachments")

	return cmd
}

func buildRows(snap models.ListSnapshot, units ttl.Units, now time.Time) []ttl.Row {
	rows := make([]ttl.Row, 0, len(snap.List))
	for _, item := range snap.List {
		rows = append(rows, ttl.Row{Item: item, TTL: ttl.ComputeWith(units, item, snap.ExpireSeconds, now)})
	}
	return rows
}

func filterItems(items []models.Item, favorites, images bool) []models.Item {
	if !favorites && !images {
		return items
	}
	out := make([]models.Item, 0, len(items))
	for _, item := range items {
		if favorites && !item.Favorite {
			continue
		}
		if images && len(item.Images()) == 0 {
			continue
		}
		out = append(out, item)
	}
	return out
}
