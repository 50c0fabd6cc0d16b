// Package events provides structured event logging for the domain runtime.
// Events capture significant occurrences in the lifecycle of composed
// domains: initialization, ticks failing, workers starting and stopping, and
// application state changes.
package events

import (
	"sync"
	"time"
)

// EventType classifies the kind of runtime event.
type EventType string

const (
	// Domain lifecycle events
	EventDomainInitialized   EventType = "domain.initialized"
	EventDomainInitFailed    EventType = "domain.init_failed"
	EventDomainCleanedUp     EventType = "domain.cleaned_up"
	EventDomainTickFailed    EventType = "domain.tick_failed"
	EventDomainStarted       EventType = "domain.started"
	EventDomainStopRequested EventType = "domain.stop_requested"
	EventDomainStopped       EventType = "domain.stopped"

	// Application events
	EventAppStateChanged EventType = "app.state_changed"
	EventAppStarting     EventType = "app.starting"
	EventAppStarted      EventType = "app.started"
	EventAppStopping     EventType = "app.stopping"
	EventAppStopped      EventType = "app.stopped"

	// Cluster events
	EventStateSent     EventType = "cluster.state_sent"
	EventStateReceived EventType = "cluster.state_received"
	EventPeerLost      EventType = "cluster.peer_lost"
)

// Severity indicates the importance of an event.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Event is a single runtime occurrence.
type Event struct {
	Time     time.Time      `json:"time"`
	Type     EventType      `json:"type"`
	Severity Severity       `json:"severity"`
	Domain   string         `json:"domain,omitempty"`
	Message  string         `json:"message,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Log is a bounded in-memory event log. When full, the oldest events are
// dropped. Subscribers receive events best-effort: a full subscriber channel
// loses the event rather than blocking the emitter.
type Log struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	subs     []chan Event
}

// NewLog creates an event log retaining up to capacity events.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 256
	}
	return &Log{capacity: capacity}
}

// Emit appends an event, stamping its time if unset.
func (l *Log) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}

	l.mu.Lock()
	l.events = append(l.events, ev)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	subs := append([]chan Event{}, l.subs...)
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Info emits an informational event for a domain.
func (l *Log) Info(t EventType, domain, message string) {
	l.Emit(Event{Type: t, Severity: SeverityInfo, Domain: domain, Message: message})
}

// Error emits an error event for a domain.
func (l *Log) Error(t EventType, domain string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.Emit(Event{Type: t, Severity: SeverityError, Domain: domain, Message: msg})
}

// Recent returns up to n of the most recent events, oldest first. n <= 0
// returns everything retained.
func (l *Log) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Subscribe returns a channel receiving future events and a cancel function.
func (l *Log) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		for i, sub := range l.subs {
			if sub == ch {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
	}
	return ch, cancel
}
