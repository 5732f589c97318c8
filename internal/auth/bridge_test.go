package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spm/internal/shared"
)

func quietLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

func waitFor(t *testing.T, b *Bridge, timeout time.Duration) (Grant, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return b.Wait(ctx)
}

func TestBridge(t *testing.T) {
	t.Run("push resolves", func(t *testing.T) {
		b := NewBridge(nil, quietLogger())
		b.Begin("verifier-1")

		if !b.Awaiting() {
			t.Fatal("expected bridge to be awaiting")
		}
		if !b.Notify("code-1") {
			t.Fatal("expected push to resolve the login")
		}

		grant, err := waitFor(t, b, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if grant.Code != "code-1" || grant.Verifier != "verifier-1" {
			t.Errorf("unexpected grant %+v", grant)
		}
		if b.Awaiting() {
			t.Error("expected bridge to stop awaiting after resolution")
		}
	})

	t.Run("first producer wins", func(t *testing.T) {
		b := NewBridge(nil, quietLogger())
		b.Begin("v")

		if !b.Notify("first") {
			t.Fatal("expected first offer to win")
		}
		if b.Notify("second") {
			t.Error("expected second offer to be dropped")
		}

		grant, _ := waitFor(t, b, time.Second)
		if grant.Code != "first" {
			t.Errorf("expected first code, got %s", grant.Code)
		}
	})

	t.Run("buffer path resolves", func(t *testing.T) {
		mailbox := NewMailbox()
		b := NewBridge(nil, quietLogger(), PollSource{Name: "buffer", Source: mailbox, Interval: 10 * time.Millisecond})
		b.Begin("v")
		mailbox.Put("buffered")

		grant, err := waitFor(t, b, 2*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if grant.Code != "buffered" {
			t.Errorf("expected buffered code, got %s", grant.Code)
		}
	})

	t.Run("pull path resolves", func(t *testing.T) {
		mailbox := NewMailbox()
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			var body PendingCode
			if code, _ := mailbox.Take(r.Context()); code != "" {
				body.Code = &code
			}
			json.NewEncoder(w).Encode(body)
		}))
		defer srv.Close()

		b := NewBridge(nil, quietLogger(), PollSource{
			Name:     "pull",
			Source:   NewHTTPCodeSource(srv.URL, srv.Client()),
			Interval: 10 * time.Millisecond,
		})
		b.Begin("v")

		time.Sleep(30 * time.Millisecond)
		mailbox.Put("pulled")

		grant, err := waitFor(t, b, 2*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if grant.Code != "pulled" {
			t.Errorf("expected pulled code, got %s", grant.Code)
		}
		if requests.Load() < 2 {
			t.Errorf("expected repeated polling, got %d requests", requests.Load())
		}
	})

	t.Run("begin drains stale buffered code", func(t *testing.T) {
		mailbox := NewMailbox()
		mailbox.Put("stale")

		b := NewBridge(nil, quietLogger(), PollSource{Name: "buffer", Source: mailbox, Interval: 10 * time.Millisecond})
		b.Begin("v")

		_, err := waitFor(t, b, 100*time.Millisecond)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected timeout since the stale code is discarded, got %v", err)
		}
	})

	t.Run("gate drops codes when session exists", func(t *testing.T) {
		var hasSession atomic.Bool
		hasSession.Store(true)

		b := NewBridge(hasSession.Load, quietLogger())
		b.Begin("v")

		if b.Notify("code") {
			t.Error("expected offer to be dropped while a session exists")
		}

		hasSession.Store(false)
		if !b.Notify("code") {
			t.Error("expected offer to be accepted once no session exists")
		}
	})

	t.Run("cancel drops late deliveries", func(t *testing.T) {
		mailbox := NewMailbox()
		b := NewBridge(nil, quietLogger(), PollSource{Name: "buffer", Source: mailbox, Interval: 5 * time.Millisecond})
		b.Begin("v")
		b.Cancel()

		if b.Awaiting() {
			t.Error("expected bridge not to be awaiting after cancel")
		}
		if b.Notify("late") {
			t.Error("expected late push to be dropped")
		}

		mailbox.Put("late-buffered")
		time.Sleep(30 * time.Millisecond)
		if code, _ := mailbox.Take(context.Background()); code != "late-buffered" {
			t.Error("expected pollers to have stopped after cancel")
		}

		if _, err := waitFor(t, b, 50*time.Millisecond); !errors.Is(err, shared.ErrNoPendingLogin) {
			t.Errorf("expected ErrNoPendingLogin, got %v", err)
		}
	})

	t.Run("Reject", func(t *testing.T) {
		b := NewBridge(nil, quietLogger())
		b.Begin("v")

		denied := &AuthorizationError{Code: "access_denied"}
		if !b.Reject(denied) {
			t.Fatal("expected reject to resolve the login")
		}

		_, err := waitFor(t, b, time.Second)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("begin supersedes pending login", func(t *testing.T) {
		b := NewBridge(nil, quietLogger())
		b.Begin("old")

		done := make(chan error, 1)
		go func() {
			_, err := waitFor(t, b, time.Second)
			done <- err
		}()
		time.Sleep(20 * time.Millisecond)

		b.Begin("new")
		if err := <-done; !errors.Is(err, shared.ErrNoPendingLogin) {
			t.Errorf("expected first waiter to be superseded, got %v", err)
		}

		b.Notify("code")
		grant, err := waitFor(t, b, time.Second)
		if err != nil || grant.Verifier != "new" {
			t.Errorf("expected grant for the new verifier, got %+v, %v", grant, err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		b := NewBridge(nil, quietLogger())
		b.Begin("v")

		_, err := waitFor(t, b, 20*time.Millisecond)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
		if b.Awaiting() {
			t.Error("expected timeout to clear awaiting")
		}
	})

	t.Run("wait without login", func(t *testing.T) {
		b := NewBridge(nil, quietLogger())
		if _, err := waitFor(t, b, 10*time.Millisecond); !errors.Is(err, shared.ErrNoPendingLogin) {
			t.Errorf("expected ErrNoPendingLogin, got %v", err)
		}
	})
}
