package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arkdrop/internal/config"
	"arkdrop/internal/format"
)

type outputFlags struct {
	json bool
	yaml bool
}

func (o *outputFlags) structured() bool {
	return o.json || o.yaml
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	out := &outputFlags{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "drop",
		Short:         "Drop is a shared board for text snippets and files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			if out.json && out.yaml {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			if out.yaml {
				outputFormatter = format.YAMLFormatter{}
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&out.json, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&out.yaml, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newListCmd(cfg, out),
		newCreateCmd(cfg, out),
		newGetCmd(cfg, out),
		newFavCmd(cfg),
		newDeleteCmd(cfg),
		newCleanCmd(cfg),
		newWatchCmd(cfg),
		newLoginCmd(cfg),
		newLogoutCmd(),
		newConfigCmd(cfg),
		newSrvCmd(cfg),
		newMigrateCmd(cfg, out),
	)

	return cmd
}
