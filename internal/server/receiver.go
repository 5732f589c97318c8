package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spm/internal/auth"
	"github.com/desertthunder/spm/internal/shared"
)

// CredentialStore is the persisted OAuth client configuration served by /config and /save-config.
type CredentialStore interface {
	Load() shared.Credentials
	Save(clientID string) error
}

type saveConfigRequest struct {
	ClientID string `json:"clientId"`
}

type saveConfigResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Receiver is the loopback HTTP listener that the provider redirects to after consent.
//
// Handlers only touch the mailbox and the credential store.
type Receiver struct {
	addr     string
	mailbox  *auth.Mailbox
	creds    CredentialStore
	router   *BasicRouter
	logger   *log.Logger
	mu       sync.RWMutex
	notifier auth.Notifier
	srv      *http.Server
	listener net.Listener
}

// NewReceiver creates a [Receiver] bound to addr once started.
func NewReceiver(addr string, mailbox *auth.Mailbox, creds CredentialStore, logger *log.Logger) *Receiver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	r := &Receiver{
		addr:    addr,
		mailbox: mailbox,
		creds:   creds,
		router:  NewBasicRouter(),
		logger:  shared.WithLogger(logger, "component", "receiver"),
	}

	r.router.Use(RecoverMiddleware(r.logger), LoggingMiddleware(r.logger))
	r.router.Handle(http.MethodGet, "/callback", http.HandlerFunc(r.handleCallback))
	r.router.Handle(http.MethodGet, "/get-pending-code", http.HandlerFunc(r.handlePendingCode))
	r.router.Handle(http.MethodGet, "/config", http.HandlerFunc(r.handleConfig))
	r.router.Handle(http.MethodPost, "/save-config", http.HandlerFunc(r.handleSaveConfig))
	return r
}

// SetNotifier installs the push path to a login waiting in this process. nil removes it.
func (r *Receiver) SetNotifier(n auth.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

func (r *Receiver) currentNotifier() auth.Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notifier
}

// Handler returns the receiver's routes.
func (r *Receiver) Handler() http.Handler {
	return r.router
}

// Start binds the listener and serves in the background. A bind failure is returned immediately.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.srv != nil {
		return fmt.Errorf("receiver already started on %s", r.listener.Addr())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.addr)
	if err != nil {
		return fmt.Errorf("%w: failed to bind %s: %v", shared.ErrServiceUnavailable, r.addr, err)
	}

	r.listener = ln
	r.srv = &http.Server{
		Handler:           r.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("receiver stopped", "error", err)
		}
	}(r.srv)

	r.logger.Info("callback receiver listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before [Receiver.Start].
func (r *Receiver) Addr() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.addr
}

// Shutdown stops the listener.
func (r *Receiver) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	srv := r.srv
	r.srv = nil
	r.listener = nil
	r.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// handleCallback stages the code and pushes it to a waiting login.
//
// An error redirect renders the failure page and leaves the mailbox untouched.
func (r *Receiver) handleCallback(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	if reason := q.Get("error"); reason != "" {
		r.logger.Warn("authorization denied", "error", reason)
		if n := r.currentNotifier(); n != nil {
			n.Reject(&auth.AuthorizationError{Code: reason, Description: q.Get("error_description")})
		}
		r.render(w, http.StatusOK, failurePage(reason))
		return
	}

	code := q.Get("code")
	if code == "" {
		r.render(w, http.StatusBadRequest, failurePage("missing authorization code"))
		return
	}

	r.mailbox.Put(code)
	r.logger.Info("authorization code received", "code_len", len(code))

	if n := r.currentNotifier(); n != nil && n.Notify(code) {
		r.mailbox.Withdraw(code)
	}

	r.render(w, http.StatusOK, successPage())
}

func (r *Receiver) render(w http.ResponseWriter, status int, page callbackPage) {
	if err := renderPage(w, status, page); err != nil {
		r.logger.Error("failed to render callback page", "error", err)
	}
}

// handlePendingCode is the read-once pull endpoint.
func (r *Receiver) handlePendingCode(w http.ResponseWriter, req *http.Request) {
	var body auth.PendingCode
	if code, _ := r.mailbox.Take(req.Context()); code != "" {
		body.Code = &code
	}
	writeJSON(w, http.StatusOK, body)
}

func (r *Receiver) handleConfig(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.creds.Load())
}

func (r *Receiver) handleSaveConfig(w http.ResponseWriter, req *http.Request) {
	var body saveConfigRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, saveConfigResponse{Error: "invalid request body"})
		return
	}

	if err := r.creds.Save(body.ClientID); err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, saveConfigResponse{Error: "client id is required"})
			return
		}
		r.logger.Error("failed to save configuration", "error", err)
		writeJSON(w, http.StatusInternalServerError, saveConfigResponse{Error: fmt.Sprintf("failed to save configuration: %v", err)})
		return
	}

	r.logger.Info("configuration saved")
	writeJSON(w, http.StatusOK, saveConfigResponse{Success: true, Message: "Configuration saved"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
