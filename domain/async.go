package domain

import (
	"context"
	"sync"
)

// AsyncBase is the embeddable base for asynchronous domains. The blocking
// start/stop protocol is provided by StartWith and Stop; concrete domains
// implement Start by delegating their run loop to StartWith.
//
// Execution happens on whatever goroutine calls Start. Stop is safe to call
// concurrently from any goroutine and requests cooperative termination: the
// run loop must watch the stop channel it is handed.
type AsyncBase struct {
	Base

	runMu         sync.Mutex
	running       bool
	stopRequested bool
	stopCh        chan struct{}

	cbMu     sync.Mutex
	startCbs []func(ctx context.Context)
	stopCbs  []func()
}

// OnStart registers a callback fired after setup, before the blocking run
// loop is entered.
func (a *AsyncBase) OnStart(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.startCbs = append(a.startCbs, fn)
}

// OnStop registers a callback fired when a stop is requested, before the
// domain actually halts. Collaborators get a chance to react to the imminent
// stop while the domain is still running.
func (a *AsyncBase) OnStop(fn func()) {
	if fn == nil {
		return
	}
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.stopCbs = append(a.stopCbs, fn)
}

// StartWith runs the blocking start protocol: mark running, fire start
// callbacks, invoke run until it returns. run must return promptly once the
// stop channel is closed or the context is cancelled.
//
// When StartWith returns the domain is stopped but still initialized; both
// Start and Cleanup are valid afterwards.
func (a *AsyncBase) StartWith(ctx context.Context, run func(ctx context.Context, stop <-chan struct{}) error) error {
	if !a.Initialized() {
		return ErrNotInitialized
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.stopRequested = false
	a.stopCh = make(chan struct{})
	stop := a.stopCh
	a.runMu.Unlock()

	a.cbMu.Lock()
	startCbs := append([]func(ctx context.Context){}, a.startCbs...)
	a.cbMu.Unlock()
	for _, cb := range startCbs {
		cb(ctx)
	}

	var err error
	if run != nil {
		err = run(ctx, stop)
	} else {
		// Default run: block until a stop is requested.
		select {
		case <-stop:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	a.runMu.Lock()
	a.running = false
	a.runMu.Unlock()
	return err
}

// Start blocks until Stop is called or the context is cancelled.
func (a *AsyncBase) Start(ctx context.Context) error {
	return a.StartWith(ctx, nil)
}

// Stop requests termination of a running domain. It fires the stop callbacks
// exactly once per run and returns immediately; it does not wait for the run
// loop to exit. Stopping a domain that is not running is a no-op.
func (a *AsyncBase) Stop() error {
	a.runMu.Lock()
	if !a.running || a.stopRequested {
		a.runMu.Unlock()
		return nil
	}
	a.stopRequested = true
	stopCh := a.stopCh
	a.runMu.Unlock()

	a.cbMu.Lock()
	stopCbs := append([]func(){}, a.stopCbs...)
	a.cbMu.Unlock()
	for _, cb := range stopCbs {
		cb()
	}

	close(stopCh)
	return nil
}

// Running reports whether the domain is currently inside a run.
func (a *AsyncBase) Running() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.running
}

var _ Async = (*AsyncBase)(nil)
