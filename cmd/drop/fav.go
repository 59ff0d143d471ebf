package main

import (
	"github.com/spf13/cobra"

	"arkdrop/internal/config"
	"arkdrop/internal/dispatch"
)

func newFavCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "fav <id>...",
		Aliases: []string{"favorite"},
		Short:   "Toggle the favorite star on items",
		Args:    requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return withDispatcher(cmd.Context(), cfg, true, func(d *dispatch.Dispatcher) error {
				for _, id := range ids {
					if err := d.Favorite(cmd.Context(), id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
