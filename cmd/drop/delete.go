package main

import (
	"github.com/spf13/cobra"

	"arkdrop/internal/config"
	"arkdrop/internal/dispatch"
)

func newDeleteCmd(cfg *config.Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete items and their files",
		Args:    requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}
			return withDispatcher(cmd.Context(), cfg, yes, func(d *dispatch.Dispatcher) error {
				for _, id := range ids {
					if err := d.Delete(cmd.Context(), id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
