package auth

import (
	"context"
	"sync"
)

// CodeSource yields a staged authorization code, or "" when none is pending.
type CodeSource interface {
	Take(ctx context.Context) (string, error)
}

// Mailbox holds at most one undelivered authorization code.
//
// Reading clears the slot under the same lock, so a code is handed out at most once.
type Mailbox struct {
	mu   sync.Mutex
	code string
}

// NewMailbox creates an empty [Mailbox].
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Put stages code, replacing any undelivered one.
func (m *Mailbox) Put(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
}

// Take returns the staged code and clears the slot. It returns "" when nothing is pending.
func (m *Mailbox) Take(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := m.code
	m.code = ""
	return code, nil
}

// Withdraw clears the slot if it still holds code.
func (m *Mailbox) Withdraw(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if code == "" || m.code != code {
		return false
	}
	m.code = ""
	return true
}

// Drain discards any staged code.
func (m *Mailbox) Drain() {
	m.Put("")
}
