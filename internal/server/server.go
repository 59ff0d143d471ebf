package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"arkdrop/internal/auth"
	"arkdrop/internal/blobstore"
	"arkdrop/internal/store"
)

const (
	allowRemoteEnvKey    = "DROP_ALLOW_REMOTE"
	readHeaderTimeout    = 5 * time.Second
	idleTimeout          = 60 * time.Second
	shutdownTimeout      = 10 * time.Second
	defaultCleanInterval = time.Minute

	loginMaxFailures = 5
	loginWindow      = 5 * time.Minute
	loginBlockedFor  = 5 * time.Minute
)

// Options configures a Server.
type Options struct {
	Addr  string
	Store store.ItemStore
	Blobs blobstore.BlobStore
	Gate  *auth.Gate
	// ExpireAfter removes non-favorite items idle for longer than this.
	// Zero keeps items forever.
	ExpireAfter   time.Duration
	CleanInterval time.Duration
	Logger        *slog.Logger
}

// Server is the drop board HTTP backend.
type Server struct {
	addr          string
	store         store.ItemStore
	blobs         blobstore.BlobStore
	gate          *auth.Gate
	hub           *Hub
	expireAfter   time.Duration
	cleanInterval time.Duration
	loginLimiter  *loginRateLimiter
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a new server instance.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if opts.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := opts.Gate
	if gate == nil {
		var err error
		if gate, err = auth.NewGate("", 0); err != nil {
			return nil, err
		}
	}
	interval := opts.CleanInterval
	if interval <= 0 {
		interval = defaultCleanInterval
	}

	return &Server{
		addr:          opts.Addr,
		store:         opts.Store,
		blobs:         opts.Blobs,
		gate:          gate,
		hub:           NewHub(logger),
		expireAfter:   opts.ExpireAfter,
		cleanInterval: interval,
		loginLimiter:  newLoginRateLimiter(loginMaxFailures, loginWindow, loginBlockedFor),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Hub returns the notification hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves until ctx is canceled, then shuts down
// gracefully. The expiry cleaner runs for the lifetime of the server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "auth", s.gate.Enabled(), "auto_expire", s.expireAfter.String())
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	cleanCtx, stopClean := context.WithCancel(ctx)
	defer stopClean()
	go s.runCleaner(cleanCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr validates a listen address. Binding a specific non-loopback
// host without a password requires DROP_ALLOW_REMOTE=true.
func ListenAddr(listen string, passwordSet bool) (string, error) {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return "", fmt.Errorf("listen address is required")
	}
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if !passwordSet && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q without a password requires %s=true", host, allowRemoteEnvKey)
	}
	return listen, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
