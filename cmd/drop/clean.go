package main

import (
	"github.com/spf13/cobra"

	"arkdrop/internal/config"
	"arkdrop/internal/dispatch"
)

func newCleanCmd(cfg *config.Config) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every item on the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cmd.Context(), cfg, yes, func(d *dispatch.Dispatcher) error {
				return d.Clean(cmd.Context())
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
