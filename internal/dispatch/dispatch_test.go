package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"arkdrop/internal/api"
	"arkdrop/internal/syncchan"
)

type fakeAPI struct {
	calls []string
	err   error
}

func (f *fakeAPI) Create(_ context.Context, req api.CreateRequest) (string, error) {
	f.calls = append(f.calls, "create:"+req.Content)
	return "OK", f.err
}

func (f *fakeAPI) Favorite(context.Context, int64) (string, error) {
	f.calls = append(f.calls, "favorite")
	return "OK", f.err
}

func (f *fakeAPI) Delete(context.Context, int64) (string, error) {
	f.calls = append(f.calls, "delete")
	return "OK", f.err
}

func (f *fakeAPI) Clean(context.Context) (string, error) {
	f.calls = append(f.calls, "clean")
	return "OK", f.err
}

type fakeNotifier struct {
	state    syncchan.State
	notifies int
}

func (n *fakeNotifier) State() syncchan.State { return n.state }

func (n *fakeNotifier) Notify(context.Context) error {
	n.notifies++
	return nil
}

type fakePuller struct {
	pulls int
	err   error
}

func (p *fakePuller) Pull(context.Context) error {
	p.pulls++
	return p.err
}

type fakeMessenger struct {
	successes []string
	errors    []string
}

func (m *fakeMessenger) Success(msg string) { m.successes = append(m.successes, msg) }
func (m *fakeMessenger) Error(msg string)   { m.errors = append(m.errors, msg) }

type answer bool

func (a answer) Confirm(string) (bool, error) { return bool(a), nil }

type harness struct {
	api      *fakeAPI
	notifier *fakeNotifier
	puller   *fakePuller
	messages *fakeMessenger
	d        *Dispatcher
}

func newHarness(state syncchan.State, confirm Confirmer) *harness {
	h := &harness{
		api:      &fakeAPI{},
		notifier: &fakeNotifier{state: state},
		puller:   &fakePuller{},
		messages: &fakeMessenger{},
	}
	h.d = New(Deps{API: h.api, Notifier: h.notifier, Puller: h.puller, Confirmer: confirm, Messenger: h.messages})
	return h
}

func TestCreateRejectsEmptySubmission(t *testing.T) {
	h := newHarness(syncchan.StateOpen, AlwaysConfirm{})
	_, err := h.d.Create(context.Background(), api.CreateRequest{})
	if !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
	if len(h.api.calls) != 0 {
		t.Fatalf("expected no request, got %v", h.api.calls)
	}
	if len(h.messages.errors) != 1 || h.messages.errors[0] != ErrEmptySubmission.Error() {
		t.Fatalf("expected validation message, got %v", h.messages.errors)
	}
}

func TestSuccessRefreshesByChannelState(t *testing.T) {
	tests := []struct {
		name     string
		state    syncchan.State
		notifies int
		pulls    int
	}{
		{name: "open notifies", state: syncchan.StateOpen, notifies: 1, pulls: 0},
		{name: "closed pulls", state: syncchan.StateClosed, notifies: 0, pulls: 1},
		{name: "idle pulls", state: syncchan.StateIdle, notifies: 0, pulls: 1},
		{name: "connecting pulls", state: syncchan.StateConnecting, notifies: 0, pulls: 1},
	}

	ops := map[string]func(*Dispatcher) error{
		"create": func(d *Dispatcher) error {
			_, err := d.Create(context.Background(), api.CreateRequest{Content: "x"})
			return err
		},
		"favorite": func(d *Dispatcher) error { return d.Favorite(context.Background(), 1) },
		"delete":   func(d *Dispatcher) error { return d.Delete(context.Background(), 1) },
		"clean":    func(d *Dispatcher) error { return d.Clean(context.Background()) },
	}

	for _, tc := range tests {
		for op, run := range ops {
			t.Run(tc.name+"/"+op, func(t *testing.T) {
				h := newHarness(tc.state, AlwaysConfirm{})
				if err := run(h.d); err != nil {
					t.Fatalf("%s: %v", op, err)
				}
				if h.notifier.notifies != tc.notifies || h.puller.pulls != tc.pulls {
					t.Fatalf("expected %d notifies/%d pulls, got %d/%d", tc.notifies, tc.pulls, h.notifier.notifies, h.puller.pulls)
				}
				if len(h.messages.successes) != 1 {
					t.Fatalf("expected success message, got %v", h.messages.successes)
				}
			})
		}
	}
}

func TestOpenChannelWithoutEchoAlsoPulls(t *testing.T) {
	h := newHarness(syncchan.StateOpen, AlwaysConfirm{})
	h.d = New(Deps{API: h.api, Notifier: h.notifier, Puller: h.puller, Messenger: h.messages, NoEcho: true})

	if err := h.d.Favorite(context.Background(), 3); err != nil {
		t.Fatalf("favorite: %v", err)
	}
	if h.notifier.notifies != 1 || h.puller.pulls != 1 {
		t.Fatalf("expected 1 notify and 1 pull, got %d/%d", h.notifier.notifies, h.puller.pulls)
	}
}

func TestFailedRefreshIsReported(t *testing.T) {
	h := newHarness(syncchan.StateClosed, AlwaysConfirm{})
	h.puller.err = &api.APIError{Status: 500, Message: "database is locked"}

	if err := h.d.Favorite(context.Background(), 3); err != nil {
		t.Fatalf("mutation itself succeeded, got %v", err)
	}
	if h.puller.pulls != 1 {
		t.Fatalf("expected one pull, got %d", h.puller.pulls)
	}
	if len(h.messages.errors) != 1 || h.messages.errors[0] != "refresh failed: database is locked" {
		t.Fatalf("expected refresh failure message, got %v", h.messages.errors)
	}
	if len(h.messages.successes) != 1 {
		t.Fatalf("expected success message for the mutation, got %v", h.messages.successes)
	}
}

func TestFailureSurfacesServerReason(t *testing.T) {
	h := newHarness(syncchan.StateOpen, AlwaysConfirm{})
	h.api.err = &api.APIError{Status: 500, Message: "disk full"}

	err := h.d.Favorite(context.Background(), 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if h.notifier.notifies != 0 || h.puller.pulls != 0 {
		t.Fatal("expected no refresh after failure")
	}
	if len(h.messages.errors) != 1 || !strings.Contains(h.messages.errors[0], "disk full") {
		t.Fatalf("expected server reason in message, got %v", h.messages.errors)
	}
	if len(h.api.calls) != 1 {
		t.Fatalf("expected no retry, got %v", h.api.calls)
	}
}

func TestFailureFallsBackToTransportText(t *testing.T) {
	h := newHarness(syncchan.StateClosed, AlwaysConfirm{})
	h.api.err = errors.New("connection refused")

	if _, err := h.d.Create(context.Background(), api.CreateRequest{Content: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(h.messages.errors[0], "connection refused") {
		t.Fatalf("expected transport text, got %v", h.messages.errors)
	}
}

func TestDeclinedConfirmationIssuesNoRequest(t *testing.T) {
	for _, confirm := range []Confirmer{answer(false), nil} {
		h := newHarness(syncchan.StateOpen, confirm)
		if err := h.d.Delete(context.Background(), 1); !errors.Is(err, ErrCanceled) {
			t.Fatalf("expected ErrCanceled, got %v", err)
		}
		if err := h.d.Clean(context.Background()); !errors.Is(err, ErrCanceled) {
			t.Fatalf("expected ErrCanceled, got %v", err)
		}
		if len(h.api.calls) != 0 {
			t.Fatalf("expected no requests, got %v", h.api.calls)
		}
	}
}

func TestReason(t *testing.T) {
	if got := Reason(&api.APIError{Status: 400, Message: "bad"}); got != "bad" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := Reason(errors.New("boom")); got != "boom" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := Reason(&api.APIError{Status: 503}); !strings.Contains(got, "503") {
		t.Fatalf("expected status fallback, got %q", got)
	}
}
