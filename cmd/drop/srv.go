package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"arkdrop/internal/auth"
	"arkdrop/internal/blobstore"
	"arkdrop/internal/config"
	"arkdrop/internal/server"
	"arkdrop/internal/store"
)

const (
	dbFileName   = "arkdrop.db"
	filesDirName = "files"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srv",
		Short: "Run a drop board server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "server")

			password := strings.TrimSpace(cfg.Server.Password)
			addr, err := server.ListenAddr(cfg.Server.Listen, password != "")
			if err != nil {
				return err
			}
			expireAfter, err := cfg.AutoExpire()
			if err != nil {
				return err
			}

			dataDir := serverDataDir(cfg)
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}

			dbPath := filepath.Join(dataDir, dbFileName)
			logger.Info("opening database", "path", dbPath)
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			bs, err := blobstore.NewLocalFiles(filepath.Join(dataDir, filesDirName))
			if err != nil {
				return err
			}

			gate, err := auth.NewGate(password, auth.DefaultTokenTTL)
			if err != nil {
				return err
			}
			if !gate.Enabled() {
				logger.Warn("no password configured; the board is open to anyone who can reach it")
			}

			srv, err := server.New(server.Options{
				Addr:        addr,
				Store:       st,
				Blobs:       bs,
				Gate:        gate,
				ExpireAfter: expireAfter,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cfg.Server.Listen, "listen", cfg.Server.Listen, "listen address")
	cmd.Flags().StringVar(&cfg.Server.DataDir, "data-dir", cfg.Server.DataDir, "directory for the database and files")
	return cmd
}

func serverDataDir(cfg *config.Config) string {
	if dir := strings.TrimSpace(cfg.Server.DataDir); dir != "" {
		return dir
	}
	return "."
}
