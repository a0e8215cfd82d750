// Package cancel provides a one-shot cancellation signal shared by the steps
// of a single workflow run.
//
// A Token fires at most once. Firing is monotonic and safe to call from any
// goroutine; observers registered with OnFire are invoked exactly once, either
// at trigger time or immediately when registered after the fact. Detach
// invalidates a token once its run has finished so that a stale timer can
// never reach observers that belong to a later run.
package cancel

import (
	"context"
	"errors"
	"sync"
)

// Reason describes why a token fired
type Reason string

const (
	// ReasonNone is reported by a token that has not fired
	ReasonNone Reason = ""
	// ReasonTimeout is used when the run deadline elapsed
	ReasonTimeout Reason = "timeout"
	// ReasonCanceled is used for an explicit user cancellation
	ReasonCanceled Reason = "canceled"
	// ReasonSuperseded is used when a newer run replaced this one
	ReasonSuperseded Reason = "superseded"
)

// ErrFired is the context cause attached to contexts bound to a fired token
var ErrFired = errors.New("cancellation token fired")

// Token is a one-shot, observable cancellation signal
type Token struct {
	mu        sync.Mutex
	fired     bool
	detached  bool
	reason    Reason
	done      chan struct{}
	observers []func(Reason)
	// bound cancels contexts from Bind; they run before observers
	bound []func()
}

// New creates an unfired token
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Trigger fires the token with the given reason. It returns true only for the
// call that actually fired it; later calls and calls on a detached token are
// no-ops.
func (t *Token) Trigger(reason Reason) bool {
	t.mu.Lock()
	if t.fired || t.detached {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.reason = reason
	close(t.done)
	bound, observers := t.bound, t.observers
	t.bound, t.observers = nil, nil
	t.mu.Unlock()

	for _, fn := range bound {
		fn()
	}
	for _, fn := range observers {
		fn(reason)
	}
	return true
}

// Fired reports whether the token has fired
func (t *Token) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Reason returns the reason the token fired with, or ReasonNone
func (t *Token) Reason() Reason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Done returns a channel that is closed when the token fires. A token that is
// detached without firing never closes it.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// OnFire registers fn to run once when the token fires. If the token already
// fired, fn runs immediately on the calling goroutine. Registration on a
// detached, unfired token is dropped.
func (t *Token) OnFire(fn func(Reason)) {
	t.mu.Lock()
	if t.fired {
		reason := t.reason
		t.mu.Unlock()
		fn(reason)
		return
	}
	if t.detached {
		t.mu.Unlock()
		return
	}
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Detach invalidates the token: pending observers are dropped and any later
// Trigger is ignored. The fired state, if any, is preserved.
func (t *Token) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached = true
	t.observers = nil
	t.bound = nil
}

// Detached reports whether Detach has been called
func (t *Token) Detached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detached
}

// Bind derives a context from parent that is canceled with ErrFired as its
// cause when the token fires. Bound contexts are canceled before any OnFire
// observer runs, so in-flight I/O is aborted even while an observer blocks.
// The returned CancelFunc must be called once the bound operation completes.
func (t *Token) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	release := func() { cancel(context.Canceled) }

	t.mu.Lock()
	switch {
	case t.fired:
		t.mu.Unlock()
		cancel(ErrFired)
		return ctx, release
	case t.detached:
		t.mu.Unlock()
		return ctx, release
	}
	t.bound = append(t.bound, func() { cancel(ErrFired) })
	t.mu.Unlock()

	return ctx, release
}
