// Package monitor exposes the runtime's introspection surface over HTTP.
// The monitor is a thread domain owning a small HTTP server: application
// status, the public domain registry, the recent event log, and Prometheus
// metrics.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/luminave/pulsekit/domain"
	"github.com/luminave/pulsekit/internal/events"
	"github.com/luminave/pulsekit/internal/metrics"
	"github.com/luminave/pulsekit/pkg/logger"
)

// StatusFunc reports the application's current status document.
type StatusFunc func() map[string]any

// Monitor serves the introspection endpoints on its own worker goroutine.
type Monitor struct {
	domain.ThreadBase

	mu        sync.Mutex
	addr      string
	listener  net.Listener
	server    *http.Server
	status    StatusFunc
	registry  *domain.Registry
	collector *metrics.Collector
	events    *events.Log
	log       *logger.Logger
}

// New creates a monitor listening on addr.
func New(addr string) *Monitor {
	m := &Monitor{addr: addr}
	m.SetOwner(m)
	return m
}

// SetStatusFunc registers the status document source.
func (m *Monitor) SetStatusFunc(fn StatusFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = fn
}

// SetRegistry attaches the public domain registry served at /domains.
func (m *Monitor) SetRegistry(r *domain.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = r
}

// SetCollector attaches the metrics collector served at /metrics.
func (m *Monitor) SetCollector(c *metrics.Collector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collector = c
}

// SetEvents attaches the event log served at /events.
func (m *Monitor) SetEvents(ev *events.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = ev
}

// SetLogger attaches a logger.
func (m *Monitor) SetLogger(l *logger.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = l
}

// Addr returns the bound listen address. Valid once Started is signalled.
func (m *Monitor) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return m.addr
	}
	return m.listener.Addr().String()
}

// Init assigns the console capability.
func (m *Monitor) Init(ctx context.Context, parent domain.Domain) error {
	return m.InitWith(ctx, parent, func(ctx context.Context) error {
		m.SetCapabilities(domain.CapConsoleIO)
		if m.addr == "" {
			return fmt.Errorf("monitor: listen address is required")
		}
		return nil
	})
}

// Start binds the listener and spawns the serve loop. A bind failure is
// surfaced through Started and Err.
func (m *Monitor) Start(ctx context.Context) error {
	return m.StartWorker(ctx, m.listen, m.run)
}

func (m *Monitor) listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("monitor: listen %s: %w", m.addr, err)
	}

	handler := m.routes()

	m.mu.Lock()
	m.listener = ln
	m.server = &http.Server{Handler: handler}
	log := m.log
	m.mu.Unlock()

	if log != nil {
		log.Infof("monitor: listening on %s", ln.Addr())
	}
	return nil
}

func (m *Monitor) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", m.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/domains", m.handleDomains).Methods(http.MethodGet)
	r.HandleFunc("/events", m.handleEvents).Methods(http.MethodGet)

	m.mu.Lock()
	collector := m.collector
	m.mu.Unlock()
	if collector != nil {
		r.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	}
	return r
}

func (m *Monitor) run(ctx context.Context, stop <-chan struct{}) error {
	m.mu.Lock()
	ln := m.listener
	srv := m.server
	m.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case <-stop:
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("monitor: serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	m.mu.Lock()
	m.listener = nil
	m.server = nil
	m.mu.Unlock()
	return nil
}

func (m *Monitor) handleStatus(w http.ResponseWriter, req *http.Request) {
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()

	doc := map[string]any{"time": time.Now()}
	if status != nil {
		for k, v := range status() {
			doc[k] = v
		}
	}
	writeJSON(w, doc)
}

func (m *Monitor) handleDomains(w http.ResponseWriter, req *http.Request) {
	m.mu.Lock()
	registry := m.registry
	m.mu.Unlock()

	type entry struct {
		ID           string    `json:"id"`
		Tag          string    `json:"tag"`
		Initialized  bool      `json:"initialized"`
		Capabilities string    `json:"capabilities"`
		TimeDelta    float64   `json:"time_delta"`
		RegisteredAt time.Time `json:"registered_at"`
	}

	var out []entry
	if registry != nil {
		for _, e := range registry.Entries() {
			out = append(out, entry{
				ID:           e.ID,
				Tag:          e.Tag,
				Initialized:  e.Domain.Initialized(),
				Capabilities: e.Domain.Capabilities().String(),
				TimeDelta:    e.Domain.TimeDelta(),
				RegisteredAt: e.RegisteredAt,
			})
		}
	}
	writeJSON(w, out)
}

func (m *Monitor) handleEvents(w http.ResponseWriter, req *http.Request) {
	m.mu.Lock()
	evlog := m.events
	m.mu.Unlock()

	if evlog == nil {
		writeJSON(w, []events.Event{})
		return
	}
	writeJSON(w, evlog.Recent(100))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
