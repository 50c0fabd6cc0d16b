package domain

import (
	"context"
	"sync"
)

// ThreadBase is the embeddable base for asynchronous domains that own their
// worker goroutine. StartWorker spawns the worker and returns without
// blocking; completion is exposed through two one-shot signals: Started
// (worker setup finished) and Done (worker run exited, result in Err).
type ThreadBase struct {
	AsyncBase

	workerMu  sync.Mutex
	working   bool
	startedCh chan struct{}
	startErr  error
	doneCh    chan struct{}
	runErr    error
}

// StartWorker spawns the worker goroutine, running setup then run on it.
// Calling StartWorker while the worker is already running is a no-op
// returning nil. A setup failure is carried through both the Started and Done
// signals.
func (t *ThreadBase) StartWorker(ctx context.Context, setup func(ctx context.Context) error, run func(ctx context.Context, stop <-chan struct{}) error) error {
	if !t.Initialized() {
		return ErrNotInitialized
	}
	t.workerMu.Lock()
	if t.working {
		t.workerMu.Unlock()
		return nil
	}
	t.working = true
	t.startedCh = make(chan struct{})
	t.startErr = nil
	t.doneCh = make(chan struct{})
	t.runErr = nil
	startedCh := t.startedCh
	doneCh := t.doneCh
	t.workerMu.Unlock()

	var startedOnce sync.Once
	signalStarted := func(err error) {
		startedOnce.Do(func() {
			t.workerMu.Lock()
			t.startErr = err
			t.workerMu.Unlock()
			close(startedCh)
		})
	}

	go func() {
		err := t.StartWith(ctx, func(ctx context.Context, stop <-chan struct{}) error {
			if setup != nil {
				if serr := setup(ctx); serr != nil {
					signalStarted(serr)
					return serr
				}
			}
			signalStarted(nil)
			if run == nil {
				select {
				case <-stop:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return run(ctx, stop)
		})
		// StartWith may fail before entering the run; release waiters
		// either way.
		signalStarted(err)

		t.workerMu.Lock()
		t.working = false
		t.runErr = err
		t.workerMu.Unlock()
		close(doneCh)
	}()
	return nil
}

// Started returns a channel closed once the most recent worker finished its
// setup; StartedErr carries the setup outcome.
func (t *ThreadBase) Started() <-chan struct{} {
	t.workerMu.Lock()
	defer t.workerMu.Unlock()
	if t.startedCh == nil {
		return closedChan()
	}
	return t.startedCh
}

// StartedErr returns the setup outcome of the most recent worker. Only valid
// after Started is signalled.
func (t *ThreadBase) StartedErr() error {
	t.workerMu.Lock()
	defer t.workerMu.Unlock()
	return t.startErr
}

// Done returns a channel closed once the most recent worker has exited. The
// run outcome is available through Err. Callers wanting a timeout race Done
// against their own timer and call Stop on expiry.
func (t *ThreadBase) Done() <-chan struct{} {
	t.workerMu.Lock()
	defer t.workerMu.Unlock()
	if t.doneCh == nil {
		return closedChan()
	}
	return t.doneCh
}

// Err returns the run outcome of the most recent worker. Only valid after
// Done is signalled.
func (t *ThreadBase) Err() error {
	t.workerMu.Lock()
	defer t.workerMu.Unlock()
	return t.runErr
}

// Wait blocks until the most recent worker has exited and returns its
// outcome. Waiting on a domain that was never started returns nil.
func (t *ThreadBase) Wait() error {
	<-t.Done()
	return t.Err()
}

// Start spawns the worker without blocking the caller. Concrete thread
// domains with their own setup or run loop shadow this method and delegate to
// StartWorker.
func (t *ThreadBase) Start(ctx context.Context) error {
	return t.StartWorker(ctx, nil, nil)
}

// Stop signals the worker to exit and joins it: when Stop returns the worker
// goroutine has fully exited and a subsequent Start is safe.
func (t *ThreadBase) Stop() error {
	t.workerMu.Lock()
	working := t.working
	startedCh := t.startedCh
	doneCh := t.doneCh
	t.workerMu.Unlock()

	if !working || doneCh == nil {
		return nil
	}

	// Wait for the worker to enter its run so the stop request cannot
	// race ahead of it.
	if startedCh != nil {
		<-startedCh
	}
	if err := t.AsyncBase.Stop(); err != nil {
		return err
	}
	<-doneCh
	return nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

var _ Async = (*ThreadBase)(nil)
