// Package dispatch sends board mutations and keeps every client's list
// fresh afterwards. There are no optimistic local edits: the list only
// changes through a pull.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"arkdrop/internal/api"
	"arkdrop/internal/metrics"
	"arkdrop/internal/syncchan"
)

var (
	// ErrEmptySubmission rejects a create with neither text nor files.
	ErrEmptySubmission = errors.New("please enter content or choose a file")
	// ErrCanceled is returned when a confirmation is declined.
	ErrCanceled = errors.New("canceled")
)

// API is the subset of the REST client used for mutations.
type API interface {
	Create(ctx context.Context, req api.CreateRequest) (string, error)
	Favorite(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64) (string, error)
	Clean(ctx context.Context) (string, error)
}

// Notifier is the sync channel as seen by the dispatcher.
type Notifier interface {
	State() syncchan.State
	Notify(ctx context.Context) error
}

// Puller refreshes the local list.
type Puller interface {
	Pull(ctx context.Context) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Messenger shows short user-visible messages.
type Messenger interface {
	Success(msg string)
	Error(msg string)
}

// AlwaysConfirm approves every prompt.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(string) (bool, error) { return true, nil }

// Deps wires a Dispatcher. Notifier and Messenger may be nil. A nil
// Confirmer declines every prompt.
type Deps struct {
	API       API
	Notifier  Notifier
	Puller    Puller
	Confirmer Confirmer
	Messenger Messenger
	Logger    *slog.Logger
	// NoEcho is set when the channel does not deliver our own
	// notifications back to us; the local list is then pulled directly
	// after notifying peers.
	NoEcho bool
}

// Dispatcher runs one mutation at a time per call; it keeps no state of
// its own between calls.
type Dispatcher struct {
	api      API
	notifier Notifier
	puller   Puller
	confirm  Confirmer
	messages Messenger
	logger   *slog.Logger
	noEcho   bool
}

// New builds a Dispatcher.
func New(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		api:      deps.API,
		notifier: deps.Notifier,
		puller:   deps.Puller,
		confirm:  deps.Confirmer,
		messages: deps.Messenger,
		logger:   logger.With("component", "dispatch"),
		noEcho:   deps.NoEcho,
	}
}

// Create submits a new item. Empty submissions never reach the network.
func (d *Dispatcher) Create(ctx context.Context, req api.CreateRequest) (string, error) {
	if req.Empty() {
		d.fail(ErrEmptySubmission.Error())
		return "", ErrEmptySubmission
	}
	payload, err := d.api.Create(ctx, req)
	if err := d.finish(ctx, "create", "Created", err); err != nil {
		return "", err
	}
	return payload, nil
}

// Favorite toggles the star on one item.
func (d *Dispatcher) Favorite(ctx context.Context, id int64) error {
	_, err := d.api.Favorite(ctx, id)
	return d.finish(ctx, "favorite", "Favorite toggled", err)
}

// Delete removes one item after confirmation.
func (d *Dispatcher) Delete(ctx context.Context, id int64) error {
	if err := d.ask(fmt.Sprintf("Delete item %d?", id)); err != nil {
		return err
	}
	_, err := d.api.Delete(ctx, id)
	return d.finish(ctx, "delete", "Deleted", err)
}

// Clean removes every item after confirmation.
func (d *Dispatcher) Clean(ctx context.Context) error {
	if err := d.ask("Delete ALL items on the board?"); err != nil {
		return err
	}
	_, err := d.api.Clean(ctx)
	return d.finish(ctx, "clean", "Board cleared", err)
}

func (d *Dispatcher) ask(prompt string) error {
	if d.confirm == nil {
		return ErrCanceled
	}
	ok, err := d.confirm.Confirm(prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCanceled
	}
	return nil
}

// finish reports the outcome and, on success, refreshes the list either
// through peers or with one direct pull. A failed refresh is reported
// after the success message so it stays visible.
func (d *Dispatcher) finish(ctx context.Context, op, success string, err error) error {
	metrics.RecordMutation(op, err == nil)
	if err != nil {
		d.fail(fmt.Sprintf("%s failed: %s", op, Reason(err)))
		return fmt.Errorf("%s: %w", op, err)
	}

	if d.messages != nil {
		d.messages.Success(success)
	}
	d.refresh(ctx)
	return nil
}

func (d *Dispatcher) refresh(ctx context.Context) {
	if d.notifier != nil && d.notifier.State() == syncchan.StateOpen {
		if err := d.notifier.Notify(ctx); err != nil {
			d.logger.Warn("notify after mutation failed", "error", err)
		}
		if !d.noEcho {
			return
		}
	}
	if d.puller == nil {
		return
	}
	if err := d.puller.Pull(ctx); err != nil {
		d.logger.Warn("pull after mutation failed", "error", err)
		d.fail("refresh failed: " + Reason(err))
	}
}

func (d *Dispatcher) fail(msg string) {
	if d.messages != nil {
		d.messages.Error(msg)
	}
}

// Reason extracts the server-provided reason from err, falling back to
// the error text.
func Reason(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Reason() != "" {
		return apiErr.Reason()
	}
	return err.Error()
}
