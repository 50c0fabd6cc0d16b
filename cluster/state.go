package cluster

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/luminave/pulsekit/domain"
	"github.com/luminave/pulsekit/internal/events"
	"github.com/luminave/pulsekit/pkg/logger"
)

// StateMessage is one state snapshot on the wire.
type StateMessage struct {
	NodeID   string         `json:"node_id"`
	Hostname string         `json:"hostname"`
	Role     string         `json:"role"`
	Seq      uint64         `json:"seq"`
	Time     time.Time      `json:"time"`
	Values   map[string]any `json:"values,omitempty"`
}

// =============================================================================
// Sender
// =============================================================================

// StateSender broadcasts state snapshots to a receiving node at a fixed
// interval on its own worker goroutine.
type StateSender struct {
	domain.ThreadBase

	mu       sync.Mutex
	name     string
	nodeID   string
	hostname string
	role     Role
	target   string
	interval time.Duration
	source   func() map[string]any
	seq      uint64
	log      *logger.Logger
	events   *events.Log
}

// NewStateSender creates a sender pushing snapshots to the WebSocket endpoint
// at target (e.g. "ws://render1:9120/state") every interval.
func NewStateSender(target string, interval time.Duration) *StateSender {
	s := &StateSender{name: "state-sender", target: target, interval: interval}
	s.SetOwner(s)
	return s
}

// SetIdentity records the node identity stamped on outgoing snapshots.
func (s *StateSender) SetIdentity(hostname string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostname = hostname
	s.role = role
}

// SetSource registers the snapshot source, sampled once per send.
func (s *StateSender) SetSource(fn func() map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = fn
}

// SetLogger attaches a logger.
func (s *StateSender) SetLogger(l *logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// SetEvents attaches an event log.
func (s *StateSender) SetEvents(ev *events.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = ev
}

// NodeID returns the sender's node identifier. Available after Init.
func (s *StateSender) NodeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeID
}

// Init assigns the node identifier and the send capability.
func (s *StateSender) Init(ctx context.Context, parent domain.Domain) error {
	return s.InitWith(ctx, parent, func(ctx context.Context) error {
		s.SetCapabilities(domain.CapStateSend)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.target == "" {
			return fmt.Errorf("state sender: target endpoint is required")
		}
		if s.interval <= 0 {
			s.interval = 100 * time.Millisecond
		}
		if s.nodeID == "" {
			s.nodeID = uuid.NewString()
		}
		return nil
	})
}

// Start spawns the send loop without blocking the caller. The connection is
// established lazily so a not-yet-listening receiver delays rather than fails
// the start.
func (s *StateSender) Start(ctx context.Context) error {
	return s.StartWorker(ctx, nil, s.run)
}

func (s *StateSender) run(ctx context.Context, stop <-chan struct{}) error {
	s.mu.Lock()
	interval := s.interval
	target := s.target
	log := s.log
	evlog := s.events
	s.mu.Unlock()

	var conn *websocket.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if conn == nil {
			c, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
			if err != nil {
				if log != nil {
					log.WithError(err).Debugf("state sender: dial %s", target)
				}
				continue
			}
			conn = c
			if log != nil {
				log.Infof("state sender: connected to %s", target)
			}
		}

		msg := s.snapshot()
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			conn = nil
			if evlog != nil {
				evlog.Error(events.EventPeerLost, s.name, err)
			}
			if log != nil {
				log.WithError(err).Warn("state sender: write failed, reconnecting")
			}
			continue
		}
		if evlog != nil {
			evlog.Emit(events.Event{
				Type:    events.EventStateSent,
				Domain:  s.name,
				Message: fmt.Sprintf("seq %d", msg.Seq),
			})
		}
	}
}

func (s *StateSender) snapshot() StateMessage {
	s.mu.Lock()
	s.seq++
	msg := StateMessage{
		NodeID:   s.nodeID,
		Hostname: s.hostname,
		Role:     string(s.role),
		Seq:      s.seq,
		Time:     time.Now(),
	}
	source := s.source
	s.mu.Unlock()

	if source != nil {
		msg.Values = source()
	}
	return msg
}

// =============================================================================
// Receiver
// =============================================================================

// StateReceiver accepts state snapshots from sending nodes over WebSocket and
// retains the most recent one.
type StateReceiver struct {
	domain.ThreadBase

	mu       sync.Mutex
	name     string
	addr     string
	listener net.Listener
	server   *http.Server
	conns    map[*websocket.Conn]struct{}
	latest   *StateMessage
	onState  []func(StateMessage)
	log      *logger.Logger
	events   *events.Log

	upgrader websocket.Upgrader
}

// NewStateReceiver creates a receiver listening on addr (e.g. ":9120").
func NewStateReceiver(addr string) *StateReceiver {
	r := &StateReceiver{name: "state-receiver", addr: addr}
	r.SetOwner(r)
	return r
}

// OnState registers a callback invoked for every received snapshot, on the
// connection's goroutine.
func (r *StateReceiver) OnState(fn func(StateMessage)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onState = append(r.onState, fn)
}

// SetLogger attaches a logger.
func (r *StateReceiver) SetLogger(l *logger.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = l
}

// SetEvents attaches an event log.
func (r *StateReceiver) SetEvents(ev *events.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = ev
}

// Latest returns the most recent snapshot, if any.
func (r *StateReceiver) Latest() (StateMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return StateMessage{}, false
	}
	return *r.latest, true
}

// Addr returns the bound listen address. Valid once Started is signalled.
func (r *StateReceiver) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return r.addr
	}
	return r.listener.Addr().String()
}

// Init assigns the receive capability.
func (r *StateReceiver) Init(ctx context.Context, parent domain.Domain) error {
	return r.InitWith(ctx, parent, func(ctx context.Context) error {
		r.SetCapabilities(domain.CapStateReceive)
		if r.addr == "" {
			return fmt.Errorf("state receiver: listen address is required")
		}
		return nil
	})
}

// Start binds the listener and spawns the serve loop. A bind failure is
// surfaced through Started and Err.
func (r *StateReceiver) Start(ctx context.Context) error {
	return r.StartWorker(ctx, r.listen, r.run)
}

func (r *StateReceiver) listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("state receiver: listen %s: %w", r.addr, err)
	}

	router := mux.NewRouter()
	router.HandleFunc("/state", r.handleState)

	r.mu.Lock()
	r.listener = ln
	r.server = &http.Server{Handler: router}
	r.mu.Unlock()
	return nil
}

func (r *StateReceiver) run(ctx context.Context, stop <-chan struct{}) error {
	r.mu.Lock()
	ln := r.listener
	srv := r.server
	r.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case <-stop:
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("state receiver: serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	// Shutdown does not cover hijacked connections; close the open
	// WebSocket streams so their handler goroutines exit.
	r.mu.Lock()
	for c := range r.conns {
		c.Close()
	}
	r.conns = nil
	r.listener = nil
	r.server = nil
	r.mu.Unlock()
	return nil
}

func (r *StateReceiver) handleState(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	log := r.log
	evlog := r.events
	r.mu.Unlock()

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("state receiver: upgrade failed")
		}
		return
	}
	r.mu.Lock()
	if r.conns == nil {
		r.conns = make(map[*websocket.Conn]struct{})
	}
	r.conns[conn] = struct{}{}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.conns, conn)
		r.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg StateMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if evlog != nil {
				evlog.Error(events.EventPeerLost, r.name, err)
			}
			return
		}

		r.mu.Lock()
		r.latest = &msg
		cbs := append([]func(StateMessage){}, r.onState...)
		r.mu.Unlock()

		for _, cb := range cbs {
			cb(msg)
		}
		if evlog != nil {
			evlog.Emit(events.Event{
				Type:    events.EventStateReceived,
				Domain:  r.name,
				Message: fmt.Sprintf("seq %d from %s", msg.Seq, msg.Hostname),
			})
		}
	}
}
