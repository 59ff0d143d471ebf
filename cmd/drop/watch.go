package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"arkdrop/internal/clipboard"
	"arkdrop/internal/config"
	"arkdrop/internal/dispatch"
	"arkdrop/internal/metrics"
	"arkdrop/internal/retry"
	"arkdrop/internal/session"
	"arkdrop/internal/syncchan"
	"arkdrop/internal/ttl"
	"arkdrop/internal/upload"
)

const metricsShutdownTimeout = 2 * time.Second

type watchOptions struct {
	metricsAddr string
	paste       bool
}

func newWatchCmd(cfg *config.Config) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the board live with expiry countdowns",
		Long: "Follow the board live. The list refreshes whenever another client announces a\n" +
			"change; countdowns tick locally. With --paste, images copied to the clipboard\n" +
			"are posted as new items.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.paste, "paste", false, "post clipboard images as they are copied")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, opts *watchOptions) error {
	client := newClient(cfg)
	wsURL, err := client.WebSocketURL(cfg.Sync.Channel, cfg.Sync.Echo)
	if err != nil {
		return err
	}

	view := &boardView{out: os.Stdout, tty: isTerminal(os.Stdout), units: ttl.UnitsFor(cfg.TTL.Locale)}
	if view.tty {
		// Log lines would be wiped by the next redraw; show them in the
		// header instead.
		prev := slog.Default()
		slog.SetDefault(slog.New(&statusLogHandler{view: view, next: prev.Handler()}))
		defer slog.SetDefault(prev)
	}

	sessOpts := session.Options{
		Lister: client,
		Dialer: syncchan.WebSocketDialer{URL: wsURL, Header: client.AuthHeader()},
		Sync: syncchan.Options{
			Reconnect: cfg.Sync.Reconnect,
			Backoff:   retry.DefaultConfig(),
		},
		Units: view.units,
		Tick:  cfg.TickInterval(),
		OnError: func(err error) {
			view.Error("refresh failed: " + dispatch.Reason(err))
		},
	}
	if view.tty {
		sessOpts.Render = view.redraw
	}
	sess := session.New(sessOpts)
	view.state = sess.Channel.State

	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr)
		defer stop()
	}

	changes, unsubscribe := sess.Store.Subscribe()
	defer unsubscribe()

	if err := sess.Mount(ctx); err != nil {
		return err
	}
	defer sess.Unmount()

	if opts.paste {
		source, err := clipboard.Detect()
		if err != nil {
			return err
		}
		d := dispatch.New(dispatch.Deps{
			API:       client,
			Notifier:  sess.Channel,
			Puller:    sess,
			Confirmer: dispatch.AlwaysConfirm{},
			Messenger: view,
			NoEcho:    !cfg.Sync.Echo,
		})
		stop, err := startPasteUploads(ctx, upload.New(d, clipboard.NewPollWatcher(source, 0)))
		if err != nil {
			return err
		}
		defer stop()
	}

	view.refresh(sess)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			view.refresh(sess)
		}
	}
}

// startPasteUploads opens the composer and submits the draft once per
// paste. A failed upload keeps the draft and waits for the next paste.
func startPasteUploads(ctx context.Context, pipeline *upload.Pipeline) (func(), error) {
	pending := make(chan struct{}, 1)
	pipeline.OnPaste(func(int) {
		select {
		case pending <- struct{}{}:
		default:
		}
	})

	submitCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-submitCtx.Done():
				return
			case <-pending:
				if _, err := pipeline.Submit(submitCtx); err != nil && !errors.Is(err, upload.ErrBusy) {
					slog.Warn("paste upload failed", "error", err)
				}
			}
		}
	}()

	if err := pipeline.OpenComposer(submitCtx); err != nil {
		cancel()
		<-done
		return nil, err
	}
	return func() {
		pipeline.CloseComposer()
		cancel()
		<-done
	}, nil
}

func serveMetrics(addr string) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// boardView renders the board. On a terminal it redraws in place on
// every clock tick; otherwise it appends one listing per change.
type boardView struct {
	out   io.Writer
	tty   bool
	units ttl.Units
	state func() syncchan.State

	mu     sync.Mutex
	status string
}

func (v *boardView) refresh(sess *session.Session) {
	if v.tty && sess.Clock != nil {
		sess.Clock.Tick()
		return
	}
	snap := sess.Store.Snapshot()
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "--- %s  %s\n", time.Now().Format(time.TimeOnly), plural(len(snap.List), "item"))
	_ = writeRows(v.out, buildRows(snap, v.units, time.Now()))
}

func (v *boardView) redraw(rows []ttl.Row) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprint(v.out, "\033[H\033[2J")
	header := fmt.Sprintf("drop  sync: %s  %s", v.state(), time.Now().Format(time.TimeOnly))
	if v.status != "" {
		header += "  " + v.status
	}
	fmt.Fprintln(v.out, header)
	fmt.Fprintln(v.out)
	_ = writeRows(v.out, rows)
}

func (v *boardView) Success(msg string) {
	v.setStatus(msg)
}

func (v *boardView) Error(msg string) {
	v.setStatus(msg)
}

// statusLogHandler shows log records in the board header. Level
// filtering follows the handler it replaces.
type statusLogHandler struct {
	view *boardView
	next slog.Handler
}

func (h *statusLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *statusLogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	h.view.setStatus(b.String())
	return nil
}

func (h *statusLogHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *statusLogHandler) WithGroup(string) slog.Handler { return h }

func (v *boardView) setStatus(msg string) {
	v.mu.Lock()
	v.status = msg
	tty := v.tty
	v.mu.Unlock()
	if !tty {
		fmt.Fprintln(os.Stderr, msg)
	}
}
