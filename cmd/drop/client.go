package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"arkdrop/internal/api"
	"arkdrop/internal/auth"
	"arkdrop/internal/config"
	"arkdrop/internal/dispatch"
	"arkdrop/internal/retry"
	"arkdrop/internal/syncchan"
)

const notifyConnectTimeout = 2 * time.Second

func newClient(cfg *config.Config) *api.Client {
	client := api.NewClient(cfg.APIURL)
	client.SetTimeout(cfg.Timeout())
	client.SetToken(cfg.Token)
	if cfg.Token != "" && !auth.Authenticated(cfg.Token, time.Now()) {
		slog.Warn("stored token has expired; run: drop login")
	}
	return client
}

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	return fn(newClient(cfg))
}

func newChannel(cfg *config.Config, client *api.Client, puller syncchan.Puller) (*syncchan.Channel, error) {
	wsURL, err := client.WebSocketURL(cfg.Sync.Channel, cfg.Sync.Echo)
	if err != nil {
		return nil, err
	}
	dialer := syncchan.WebSocketDialer{URL: wsURL, Header: client.AuthHeader()}
	return syncchan.New(dialer, puller, syncchan.Options{
		Reconnect: cfg.Sync.Reconnect,
		Backoff:   retry.DefaultConfig(),
	}), nil
}

// withDispatcher runs fn with a dispatcher whose successful mutations
// are announced to other clients. One-shot commands have no local list
// to refresh, so a closed channel simply skips the announcement.
func withDispatcher(ctx context.Context, cfg *config.Config, assumeYes bool, fn func(*dispatch.Dispatcher) error) error {
	return withClient(cfg, func(client *api.Client) error {
		deps := dispatch.Deps{
			API:       client,
			Confirmer: newConfirmer(assumeYes),
			Messenger: stderrMessenger{},
		}

		ch, err := newChannel(cfg, client, nil)
		if err != nil {
			return err
		}
		defer ch.Close()
		if err := ch.Connect(ctx); err != nil {
			return err
		}
		waitCtx, cancel := context.WithTimeout(ctx, notifyConnectTimeout)
		state := ch.WaitReady(waitCtx)
		cancel()
		if state != syncchan.StateOpen {
			slog.Debug("sync channel unavailable; peers will not be notified", "state", state.String())
		}
		deps.Notifier = ch

		return fn(dispatch.New(deps))
	})
}

// stderrMessenger keeps stdout free for command output.
type stderrMessenger struct{}

func (stderrMessenger) Success(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

func (stderrMessenger) Error(msg string) {
	slog.Debug("mutation failed", "message", msg)
}
