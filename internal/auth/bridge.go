package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spm/internal/shared"
)

// Notifier receives the outcome of a callback in the process that is waiting for it.
type Notifier interface {
	// Notify offers code and reports whether it resolved a pending login.
	Notify(code string) bool
	// Reject ends a pending login with err and reports whether one was pending.
	Reject(err error) bool
}

// Grant is a delivered authorization code with the verifier of the login it belongs to.
type Grant struct {
	Code     string
	Verifier string
}

// PollSource is a [CodeSource] polled every Interval while a login is awaiting.
type PollSource struct {
	Name     string
	Source   CodeSource
	Interval time.Duration
}

// pending is a single-resolution login. done is closed exactly once.
type pending struct {
	verifier string
	once     sync.Once
	done     chan struct{}
	grant    Grant
	err      error
	stop     context.CancelFunc
}

func (p *pending) resolve(grant Grant, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.grant, p.err = grant, err
		close(p.done)
		p.stop()
		resolved = true
	})
	return resolved
}

func (p *pending) resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Bridge hands an authorization code to the waiting login exactly once.
//
// At most one login is pending; [Bridge.Begin] supersedes any earlier one.
type Bridge struct {
	mu         sync.Mutex
	current    *pending
	sources    []PollSource
	hasSession func() bool
	logger     *log.Logger
}

// NewBridge creates a [Bridge] that polls sources while a login is awaiting.
//
// hasSession gates every offer: codes arriving after a session exists are dropped. It may be nil.
func NewBridge(hasSession func() bool, logger *log.Logger, sources ...PollSource) *Bridge {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Bridge{
		sources:    sources,
		hasSession: hasSession,
		logger:     shared.WithLogger(logger, "component", "bridge"),
	}
}

// Begin starts awaiting a code for verifier. A login already pending is cancelled and its verifier discarded.
//
// Sources that buffer codes in memory are drained first so a code from an earlier attempt is not paired with verifier.
func (b *Bridge) Begin(verifier string) {
	ctx, stop := context.WithCancel(context.Background())
	p := &pending{verifier: verifier, done: make(chan struct{}), stop: stop}

	b.mu.Lock()
	if prev := b.current; prev != nil {
		prev.resolve(Grant{}, fmt.Errorf("%w: superseded by a new login", shared.ErrNoPendingLogin))
	}
	b.current = p
	b.mu.Unlock()

	for _, src := range b.sources {
		if d, ok := src.Source.(interface{ Drain() }); ok {
			d.Drain()
		}
		go b.poll(ctx, p, src)
	}

	b.logger.Debug("awaiting authorization code", "sources", len(b.sources))
}

// poll offers codes from src until p resolves.
func (b *Bridge) poll(ctx context.Context, p *pending, src PollSource) {
	interval := src.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !b.gate(p) {
			continue
		}

		code, err := src.Source.Take(ctx)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Debug("poll failed", "source", src.Name, "error", err)
			}
			continue
		}
		if code == "" {
			continue
		}

		if b.offer(p, code) {
			b.logger.Info("authorization code delivered", "source", src.Name)
		}
	}
}

// gate reports whether p may still accept a code.
func (b *Bridge) gate(p *pending) bool {
	b.mu.Lock()
	current := b.current == p && !p.resolved()
	b.mu.Unlock()

	if !current {
		return false
	}
	return b.hasSession == nil || !b.hasSession()
}

// offer resolves p with code. The current check and the resolution happen under one lock so a concurrent
// [Bridge.Cancel] or [Bridge.Begin] always wins over a late code.
func (b *Bridge) offer(p *pending, code string) bool {
	if !b.gate(p) {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != p {
		return false
	}
	return p.resolve(Grant{Code: code, Verifier: p.verifier}, nil)
}

// Notify implements [Notifier]. It is the push path.
func (b *Bridge) Notify(code string) bool {
	b.mu.Lock()
	p := b.current
	b.mu.Unlock()

	if p == nil || code == "" {
		return false
	}

	ok := b.offer(p, code)
	if ok {
		b.logger.Info("authorization code delivered", "source", "push")
	}
	return ok
}

// Reject implements [Notifier].
func (b *Bridge) Reject(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return false
	}
	return b.current.resolve(Grant{}, err)
}

// Awaiting reports whether a login is pending and unresolved.
func (b *Bridge) Awaiting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil && !b.current.resolved()
}

// Cancel stops awaiting. Codes offered afterwards are dropped.
func (b *Bridge) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p := b.current; p != nil {
		b.current = nil
		p.resolve(Grant{}, fmt.Errorf("%w: login cancelled", shared.ErrNoPendingLogin))
	}
}

// Wait blocks until the pending login resolves or ctx is done.
//
// The verifier is handed out with the code once and the login is cleared either way.
func (b *Bridge) Wait(ctx context.Context) (Grant, error) {
	b.mu.Lock()
	p := b.current
	b.mu.Unlock()

	if p == nil {
		return Grant{}, shared.ErrNoPendingLogin
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		p.resolve(Grant{}, ctx.Err())
	}

	b.mu.Lock()
	if b.current == p {
		b.current = nil
	}
	b.mu.Unlock()

	if p.err != nil {
		if errors.Is(p.err, context.DeadlineExceeded) {
			return Grant{}, fmt.Errorf("%w: no authorization code received", shared.ErrTimeout)
		}
		return Grant{}, p.err
	}
	return p.grant, nil
}
