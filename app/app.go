// Package app assembles domains into a runnable application.
// The App composes the main-loop, simulation, audio, monitor and cluster
// domains according to the node's role, drives their shared lifecycle, and
// exposes the aggregate state.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/luminave/pulsekit/cluster"
	"github.com/luminave/pulsekit/domain"
	"github.com/luminave/pulsekit/domains/audio"
	"github.com/luminave/pulsekit/domains/clock"
	"github.com/luminave/pulsekit/domains/simulation"
	"github.com/luminave/pulsekit/internal/config"
	"github.com/luminave/pulsekit/internal/events"
	"github.com/luminave/pulsekit/internal/metrics"
	"github.com/luminave/pulsekit/monitor"
	"github.com/luminave/pulsekit/param"
	"github.com/luminave/pulsekit/pkg/logger"
)

// State is the application lifecycle state.
type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// App composes and drives the domain graph for one node.
type App struct {
	mu       sync.Mutex
	cfg      *config.Config
	log      *logger.Logger
	events   *events.Log
	metrics  *metrics.Collector
	registry *domain.Registry

	hostname string
	role     cluster.Role

	clock    *clock.ClockDomain
	sim      *simulation.Domain
	audio    *audio.AudioDomain
	mon      *monitor.Monitor
	senders  []*cluster.StateSender
	receiver *cluster.StateReceiver

	params          map[string]param.Meta
	backendOverride audio.Backend

	state     State
	stateCbs  []func(State)
	startTime time.Time
	entries   []domain.Entry
}

// Option adjusts App construction.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithRegistry sets the public domain registry. Defaults to the process-wide
// registry.
func WithRegistry(r *domain.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithAudioBackend substitutes the audio backend. Defaults to the null
// backend.
func WithAudioBackend(b audio.Backend) Option {
	return func(a *App) { a.backendOverride = b }
}

// New builds an application from cfg. The node's role decides which domains
// are assembled; nothing is initialized or started yet.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	a := &App{
		cfg:      cfg,
		events:   events.NewLog(512),
		metrics:  metrics.NewCollector("pulsekit"),
		registry: domain.DefaultRegistry(),
		state:    StateCreated,
		params:   make(map[string]param.Meta),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.New(cfg.Logging)
	}

	if err := a.resolveRole(); err != nil {
		return nil, err
	}
	a.assemble()
	return a, nil
}

func (a *App) resolveRole() error {
	a.hostname = a.cfg.Node.Hostname
	if a.hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		a.hostname = h
	}

	if a.cfg.Node.Role != "" {
		role, err := cluster.ParseRole(a.cfg.Node.Role)
		if err != nil {
			return err
		}
		a.role = role
		return nil
	}

	if a.cfg.Cluster.RolesFile != "" {
		m, err := cluster.LoadRoleMap(a.cfg.Cluster.RolesFile)
		if err != nil {
			return err
		}
		a.role = m.Resolve(a.hostname)
		return nil
	}

	a.role = cluster.RoleDesktop
	return nil
}

func (a *App) assemble() {
	caps := a.role.Capabilities()

	// The clock drives the main loop on every node.
	a.clock = clock.New(a.cfg.App.FrameRate)
	a.clock.SetName(a.cfg.App.Name + "-clock")
	a.clock.SetCollector(a.metrics)
	a.clock.SetLogger(a.log)

	if caps.Has(domain.CapSimulator) {
		a.sim = simulation.New(a.cfg.App.SimulationTimestep)
		// Simulation steps before the rest of the frame.
		_ = a.clock.AddSubDomain(a.sim, true)
	}

	if caps.Has(domain.CapAudioIO) {
		a.audio = audio.New(audio.StreamConfig{
			SampleRate:   float64(a.cfg.Audio.SampleRate),
			BufferFrames: a.cfg.Audio.BufferFrames,
			Channels:     a.cfg.Audio.Channels,
		}, a.backendOverride)
		a.audio.SetCollector(a.metrics)
		a.audio.SetLogger(a.log)
	}

	if caps.Has(domain.CapStateSend) {
		interval := time.Duration(a.cfg.Cluster.StateInterval * float64(time.Second))
		for _, target := range a.cfg.Cluster.StateSendTo {
			s := cluster.NewStateSender(target, interval)
			s.SetIdentity(a.hostname, a.role)
			s.SetSource(a.snapshotParams)
			s.SetLogger(a.log)
			s.SetEvents(a.events)
			a.senders = append(a.senders, s)
		}
	}

	if caps.Has(domain.CapStateReceive) {
		a.receiver = cluster.NewStateReceiver(a.cfg.Cluster.StateListenAddr)
		a.receiver.SetLogger(a.log)
		a.receiver.SetEvents(a.events)
		a.receiver.OnState(a.applySnapshot)
	}

	if a.cfg.Monitor.Enabled {
		a.mon = monitor.New(a.cfg.Monitor.Addr)
		a.mon.SetStatusFunc(a.statusDoc)
		a.mon.SetRegistry(a.registry)
		a.mon.SetCollector(a.metrics)
		a.mon.SetEvents(a.events)
		a.mon.SetLogger(a.log)
	}
}

// Init initializes every assembled domain and registers the public ones.
func (a *App) Init(ctx context.Context) error {
	var errs []error
	for _, d := range a.domains() {
		if err := d.dom.Init(ctx, nil); err != nil {
			errs = append(errs, fmt.Errorf("init %s: %w", d.tag, err))
			a.events.Error(events.EventDomainInitFailed, d.tag, err)
			a.metrics.ObserveInitFailure(d.tag)
			continue
		}
		a.events.Info(events.EventDomainInitialized, d.tag, "")
		a.metrics.SetStatus(d.tag, metrics.StatusInitialized)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.domains() {
		a.entries = append(a.entries, a.registry.Add(d.tag, d.dom))
	}
	a.indexParams()
	return nil
}

func (a *App) indexParams() {
	if a.sim != nil {
		if p := a.sim.TimeScale(); p != nil {
			a.params[param.FullName(p)] = p
		}
	}
	if a.audio != nil {
		if p := a.audio.Gain(); p != nil {
			a.params[param.FullName(p)] = p
		}
	}
}

type taggedDomain struct {
	tag string
	dom domain.Domain
}

func (a *App) domains() []taggedDomain {
	var out []taggedDomain
	if a.clock != nil {
		out = append(out, taggedDomain{"clock", a.clock})
	}
	if a.sim != nil {
		// Initialized and cleaned through the clock's cascade; listed
		// for registry and status visibility.
		out = append(out, taggedDomain{"simulation", a.sim})
	}
	if a.audio != nil {
		out = append(out, taggedDomain{"audio", a.audio})
	}
	if a.receiver != nil {
		out = append(out, taggedDomain{"state-receiver", a.receiver})
	}
	for i, s := range a.senders {
		out = append(out, taggedDomain{fmt.Sprintf("state-sender-%d", i), s})
	}
	if a.mon != nil {
		out = append(out, taggedDomain{"monitor", a.mon})
	}
	return out
}

// threadDomains returns the asynchronous domains in start order.
func (a *App) threadDomains() []taggedDomain {
	var out []taggedDomain
	if a.mon != nil {
		out = append(out, taggedDomain{"monitor", a.mon})
	}
	if a.receiver != nil {
		out = append(out, taggedDomain{"state-receiver", a.receiver})
	}
	if a.audio != nil {
		out = append(out, taggedDomain{"audio", a.audio})
	}
	if a.clock != nil {
		out = append(out, taggedDomain{"clock", a.clock})
	}
	for i, s := range a.senders {
		out = append(out, taggedDomain{fmt.Sprintf("state-sender-%d", i), s})
	}
	return out
}

type starter interface {
	Start(ctx context.Context) error
	Started() <-chan struct{}
	StartedErr() error
	Stop() error
}

// Start brings every assembled domain up. It returns once all workers have
// completed their setup; a failing worker rolls the already-started ones back.
func (a *App) Start(ctx context.Context) error {
	if !a.setState(StateCreated, StateStarting) && !a.setState(StateStopped, StateStarting) {
		return fmt.Errorf("app cannot start from state %q", a.State())
	}
	a.events.Info(events.EventAppStarting, a.cfg.App.Name, string(a.role))
	a.log.WithField("role", a.role).Infof("%s starting on %s", a.cfg.App.Name, a.hostname)

	var started []starter
	for _, d := range a.threadDomains() {
		s, ok := d.dom.(starter)
		if !ok {
			continue
		}
		if err := s.Start(ctx); err != nil {
			a.rollback(started)
			return fmt.Errorf("start %s: %w", d.tag, err)
		}
		<-s.Started()
		if err := s.StartedErr(); err != nil {
			a.rollback(started)
			return fmt.Errorf("start %s: %w", d.tag, err)
		}
		started = append(started, s)
		a.events.Info(events.EventDomainStarted, d.tag, "")
	}

	a.mu.Lock()
	a.startTime = time.Now()
	a.mu.Unlock()
	a.mustSetState(StateRunning)
	a.events.Info(events.EventAppStarted, a.cfg.App.Name, "")
	return nil
}

func (a *App) rollback(started []starter) {
	for i := len(started) - 1; i >= 0; i-- {
		_ = started[i].Stop()
	}
	a.mustSetState(StateStopped)
}

// Stop halts every domain in reverse start order and cleans them up.
func (a *App) Stop(ctx context.Context) error {
	if !a.setState(StateRunning, StateStopping) {
		return nil
	}
	a.events.Info(events.EventAppStopping, a.cfg.App.Name, "")

	threads := a.threadDomains()
	var errs []error
	for i := len(threads) - 1; i >= 0; i-- {
		s, ok := threads[i].dom.(starter)
		if !ok {
			continue
		}
		a.events.Info(events.EventDomainStopRequested, threads[i].tag, "")
		if err := s.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", threads[i].tag, err))
		}
		a.events.Info(events.EventDomainStopped, threads[i].tag, "")
	}

	for _, d := range a.domains() {
		if err := d.dom.Cleanup(ctx, nil); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", d.tag, err))
		} else {
			a.events.Info(events.EventDomainCleanedUp, d.tag, "")
		}
		a.metrics.SetStatus(d.tag, metrics.StatusStopped)
	}

	a.mu.Lock()
	for _, e := range a.entries {
		a.registry.Remove(e.Domain)
	}
	a.entries = nil
	a.mu.Unlock()

	a.mustSetState(StateStopped)
	a.events.Info(events.EventAppStopped, a.cfg.App.Name, "")
	return errors.Join(errs...)
}

// Run starts the application and blocks until the context is cancelled, then
// stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.Stop(context.Background())
}

// =============================================================================
// State
// =============================================================================

// State returns the current application state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// OnStateChange registers a callback invoked after every state transition.
func (a *App) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCbs = append(a.stateCbs, fn)
}

func (a *App) setState(from, to State) bool {
	a.mu.Lock()
	if a.state != from {
		a.mu.Unlock()
		return false
	}
	a.state = to
	cbs := append([]func(State){}, a.stateCbs...)
	a.mu.Unlock()

	a.events.Info(events.EventAppStateChanged, a.cfg.App.Name, string(to))
	for _, cb := range cbs {
		cb(to)
	}
	return true
}

func (a *App) mustSetState(to State) {
	a.mu.Lock()
	a.state = to
	cbs := append([]func(State){}, a.stateCbs...)
	a.mu.Unlock()

	a.events.Info(events.EventAppStateChanged, a.cfg.App.Name, string(to))
	for _, cb := range cbs {
		cb(to)
	}
}

// =============================================================================
// State replication
// =============================================================================

func (a *App) snapshotParams() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	values := make(map[string]any, len(a.params)+1)
	if a.sim != nil {
		values["simulation/elapsed"] = a.sim.Elapsed()
	}
	for name, p := range a.params {
		values[name] = p.Value()
	}
	return values
}

func (a *App) applySnapshot(msg cluster.StateMessage) {
	a.mu.Lock()
	params := a.params
	a.mu.Unlock()

	for name, value := range msg.Values {
		p, ok := params[name]
		if !ok {
			continue
		}
		if err := p.SetValue(value); err != nil {
			a.log.WithError(err).Debugf("state apply: %s", name)
		}
	}
}

// =============================================================================
// Introspection
// =============================================================================

func (a *App) statusDoc() map[string]any {
	a.mu.Lock()
	startTime := a.startTime
	state := a.state
	a.mu.Unlock()

	doc := map[string]any{
		"name":     a.cfg.App.Name,
		"hostname": a.hostname,
		"role":     string(a.role),
		"state":    string(state),
	}
	if !startTime.IsZero() {
		doc["uptime_seconds"] = time.Since(startTime).Seconds()
	}

	domains := make(map[string]any)
	for _, d := range a.domains() {
		domains[d.tag] = map[string]any{
			"initialized":  d.dom.Initialized(),
			"capabilities": d.dom.Capabilities().String(),
			"time_delta":   d.dom.TimeDelta(),
		}
	}
	doc["domains"] = domains
	return doc
}

// Health reports the application's aggregate health: running, with every
// assembled domain initialized.
func (a *App) Health() bool {
	if a.State() != StateRunning {
		return false
	}
	for _, d := range a.domains() {
		if !d.dom.Initialized() {
			return false
		}
	}
	return true
}

// Role returns the node's resolved role.
func (a *App) Role() cluster.Role { return a.role }

// Hostname returns the node's resolved hostname.
func (a *App) Hostname() string { return a.hostname }

// Clock returns the main-loop domain.
func (a *App) Clock() *clock.ClockDomain { return a.clock }

// Simulation returns the simulation domain; nil when the role has no
// simulation capability.
func (a *App) Simulation() *simulation.Domain { return a.sim }

// Audio returns the audio domain; nil when the role has no audio capability.
func (a *App) Audio() *audio.AudioDomain { return a.audio }

// Monitor returns the monitor domain; nil when disabled.
func (a *App) Monitor() *monitor.Monitor { return a.mon }

// Receiver returns the state receiver; nil on non-receiving roles.
func (a *App) Receiver() *cluster.StateReceiver { return a.receiver }

// Senders returns the state senders; empty on non-sending roles.
func (a *App) Senders() []*cluster.StateSender { return a.senders }

// Events returns the application event log.
func (a *App) Events() *events.Log { return a.events }

// Metrics returns the application metrics collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }
