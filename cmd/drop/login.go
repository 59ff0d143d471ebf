package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"arkdrop/internal/api"
	"arkdrop/internal/auth"
	"arkdrop/internal/config"
)

func newLoginCmd(cfg *config.Config) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with the board password and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(os.Stdin, os.Stderr, "Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}

			return withClient(cfg, func(client *api.Client) error {
				token, err := client.Login(cmd.Context(), password)
				if err != nil {
					return err
				}
				if printOnly {
					return writePlain("%s\n", token)
				}

				path, err := config.GlobalPath()
				if err != nil {
					return err
				}
				if err := config.SetKey(path, "token", token); err != nil {
					return err
				}
				if expires, ok := auth.ExpiresAt(token); ok {
					fmt.Fprintf(os.Stderr, "logged in; token valid until %s\n", expires.Local().Format(time.DateTime))
				} else {
					fmt.Fprintln(os.Stderr, "logged in")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the token instead of saving it")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GlobalPath()
			if err != nil {
				return err
			}
			return config.SetKey(path, "token", "")
		},
	}
}
