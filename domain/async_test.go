package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAsyncStartRequiresInit(t *testing.T) {
	var a AsyncBase
	if err := a.Start(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestAsyncStartBlocksUntilStop(t *testing.T) {
	var a AsyncBase
	ctx := context.Background()
	if err := a.Init(ctx, nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	startDone := make(chan error, 1)
	go func() { startDone <- a.Start(ctx) }()

	select {
	case err := <-startDone:
		t.Fatalf("start returned before stop: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	for !a.Running() {
		time.Sleep(time.Millisecond)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-startDone; err != nil {
		t.Fatalf("start: %v", err)
	}

	// Start works again after a stop.
	go func() { startDone <- a.Start(ctx) }()
	for !a.Running() {
		time.Sleep(time.Millisecond)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := <-startDone; err != nil {
		t.Fatalf("second start: %v", err)
	}
}

func TestAsyncStartStopCallbacks(t *testing.T) {
	rec := &recorder{}
	var a AsyncBase
	ctx := context.Background()
	if err := a.Init(ctx, nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	a.OnStart(func(ctx context.Context) { rec.add("start") })
	a.OnStop(func() {
		// Stop callbacks fire while the domain is still running.
		if !a.Running() {
			rec.add("stop-after-halt")
			return
		}
		rec.add("stop")
	})

	entered := make(chan struct{})
	startDone := make(chan error, 1)
	go func() {
		startDone <- a.StartWith(ctx, func(ctx context.Context, stop <-chan struct{}) error {
			close(entered)
			<-stop
			return nil
		})
	}()
	<-entered

	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-startDone; err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := rec.snapshot(); !equalEvents(got, []string{"start", "stop"}) {
		t.Fatalf("callback ordering mismatch: %v", got)
	}
}

func TestAsyncStopWithoutStart(t *testing.T) {
	var a AsyncBase
	if err := a.Stop(); err != nil {
		t.Fatalf("stop of idle domain: %v", err)
	}
}

func TestAsyncConcurrentStartRejected(t *testing.T) {
	var a AsyncBase
	ctx := context.Background()
	if err := a.Init(ctx, nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	entered := make(chan struct{})
	startDone := make(chan error, 1)
	go func() {
		startDone <- a.StartWith(ctx, func(ctx context.Context, stop <-chan struct{}) error {
			close(entered)
			<-stop
			return nil
		})
	}()
	<-entered

	if err := a.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	<-startDone
}
