package events

import (
	"errors"
	"testing"
	"time"
)

func TestEmitAndRecent(t *testing.T) {
	l := NewLog(4)
	l.Info(EventDomainInitialized, "clock", "")
	l.Error(EventDomainTickFailed, "clock", errors.New("boom"))

	evs := l.Recent(0)
	if len(evs) != 2 {
		t.Fatalf("got %d events", len(evs))
	}
	if evs[0].Type != EventDomainInitialized || evs[0].Severity != SeverityInfo {
		t.Fatalf("first event = %+v", evs[0])
	}
	if evs[1].Message != "boom" || evs[1].Severity != SeverityError {
		t.Fatalf("second event = %+v", evs[1])
	}
	if evs[0].Time.IsZero() {
		t.Fatal("time not stamped")
	}
}

func TestCapacity(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 10; i++ {
		l.Info(EventAppStateChanged, "app", "")
	}
	if got := len(l.Recent(0)); got != 3 {
		t.Fatalf("retained %d events, want 3", got)
	}
}

func TestRecentLimit(t *testing.T) {
	l := NewLog(10)
	l.Info(EventAppStarting, "app", "")
	l.Info(EventAppStarted, "app", "")
	evs := l.Recent(1)
	if len(evs) != 1 || evs[0].Type != EventAppStarted {
		t.Fatalf("recent(1) = %v", evs)
	}
}

func TestSubscribe(t *testing.T) {
	l := NewLog(10)
	ch, cancel := l.Subscribe(4)
	defer cancel()

	l.Info(EventDomainStarted, "clock", "")
	select {
	case ev := <-ch:
		if ev.Type != EventDomainStarted {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}

	cancel()
	l.Info(EventDomainStopped, "clock", "")
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("received after cancel: %+v", ev)
		}
	default:
	}
}
