package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// =============================================================================
// Test Helpers
// =============================================================================

// recorder collects lifecycle events across domains.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

// tracer is a synchronous domain that records its lifecycle calls.
type tracer struct {
	SyncBase
	name     string
	rec      *recorder
	failInit bool
	failTick bool
	onTick   func() error
}

func newTracer(name string, rec *recorder) *tracer {
	p := &tracer{name: name, rec: rec}
	p.SetOwner(p)
	return p
}

func (p *tracer) Init(ctx context.Context, parent Domain) error {
	return p.InitWith(ctx, parent, func(ctx context.Context) error {
		if p.rec != nil {
			p.rec.add(p.name + ".init")
		}
		if p.failInit {
			return errors.New(p.name + " init failed")
		}
		return nil
	})
}

func (p *tracer) Cleanup(ctx context.Context, parent Domain) error {
	return p.CleanupWith(ctx, parent, func(ctx context.Context) error {
		if p.rec != nil {
			p.rec.add(p.name + ".cleanup")
		}
		return nil
	})
}

func (p *tracer) Tick() error {
	return p.TickPass(func() error {
		if p.rec != nil {
			p.rec.add(p.name + ".tick")
		}
		if p.onTick != nil {
			return p.onTick()
		}
		if p.failTick {
			return errors.New(p.name + " tick failed")
		}
		return nil
	})
}

func equalEvents(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestInitIdempotent(t *testing.T) {
	rec := &recorder{}
	d := newTracer("d", rec)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := d.Init(ctx, nil); err != nil {
			t.Fatalf("init %d: %v", i, err)
		}
	}
	if !d.Initialized() {
		t.Fatal("domain should be initialized")
	}
	if got := rec.snapshot(); !equalEvents(got, []string{"d.init"}) {
		t.Fatalf("setup should run once, got %v", got)
	}
}

func TestCleanupOnCleanDomainIsNoop(t *testing.T) {
	d := newTracer("d", &recorder{})
	if err := d.Cleanup(context.Background(), nil); err != nil {
		t.Fatalf("cleanup of clean domain: %v", err)
	}
}

func TestLifecycleOrdering(t *testing.T) {
	rec := &recorder{}
	d := newTracer("d", rec)
	a := newTracer("a", rec)
	b := newTracer("b", rec)
	ctx := context.Background()

	if err := d.AddSubDomain(a, true); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := d.AddSubDomain(b, false); err != nil {
		t.Fatalf("add b: %v", err)
	}

	if err := d.Init(ctx, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := d.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := d.Cleanup(ctx, nil); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	want := []string{
		"a.init", "d.init", "b.init",
		"a.tick", "d.tick", "b.tick",
		"a.cleanup", "d.cleanup", "b.cleanup",
	}
	if got := rec.snapshot(); !equalEvents(got, want) {
		t.Fatalf("ordering mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestInitFailureLeavesDomainUninitialized(t *testing.T) {
	rec := &recorder{}
	d := newTracer("d", rec)
	bad := newTracer("bad", rec)
	bad.failInit = true
	after := newTracer("after", rec)

	if err := d.AddSubDomain(bad, true); err != nil {
		t.Fatalf("add bad: %v", err)
	}
	if err := d.AddSubDomain(after, false); err != nil {
		t.Fatalf("add after: %v", err)
	}

	err := d.Init(context.Background(), nil)
	if err == nil {
		t.Fatal("init should fail when a sub-domain fails")
	}
	if d.Initialized() {
		t.Fatal("domain must be left uninitialized after failed init")
	}

	// No short-circuit: the post-list sub-domain must still be attempted.
	found := false
	for _, ev := range rec.snapshot() {
		if ev == "after.init" {
			found = true
		}
	}
	if !found {
		t.Fatal("post-list sub-domain was not attempted after failure")
	}
}

func TestTickFailureIsNonFatal(t *testing.T) {
	rec := &recorder{}
	d := newTracer("d", rec)
	bad := newTracer("bad", rec)
	bad.failTick = true

	ctx := context.Background()
	if err := d.AddSubDomain(bad, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := d.Init(ctx, nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	err := d.Tick()
	if err == nil {
		t.Fatal("tick should report sub-domain failure")
	}
	// The domain's own work still ran.
	got := rec.snapshot()
	if got[len(got)-1] != "d.tick" {
		t.Fatalf("own tick did not run after sub-domain failure: %v", got)
	}
}

func TestTickBeforeInit(t *testing.T) {
	d := newTracer("d", &recorder{})
	if err := d.Tick(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitAndCleanupCallbacks(t *testing.T) {
	rec := &recorder{}
	d := newTracer("d", rec)
	ctx := context.Background()

	d.OnInitialize(func(ctx context.Context) { rec.add("cb.init.1") })
	d.OnInitialize(func(ctx context.Context) { rec.add("cb.init.2") })
	d.OnCleanup(func(ctx context.Context) { rec.add("cb.cleanup") })

	if err := d.Init(ctx, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := d.Cleanup(ctx, nil); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	want := []string{"d.init", "cb.init.1", "cb.init.2", "cb.cleanup", "d.cleanup"}
	if got := rec.snapshot(); !equalEvents(got, want) {
		t.Fatalf("callback ordering mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestReinitAfterCleanup(t *testing.T) {
	rec := &recorder{}
	d := newTracer("d", rec)
	ctx := context.Background()

	if err := d.Init(ctx, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := d.Cleanup(ctx, nil); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := d.Init(ctx, nil); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	if !d.Initialized() {
		t.Fatal("domain should be initialized after re-init")
	}
}

// =============================================================================
// Parameter and Member Tests
// =============================================================================

type namedParam string

func (p namedParam) Name() string { return string(p) }

func TestParameters(t *testing.T) {
	d := newTracer("d", nil)
	d.AddParameter(namedParam("gain"))
	d.AddParameter(namedParam("rate"))
	d.AddParameter(nil)

	params := d.Parameters()
	if len(params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(params))
	}
	if params[0].Name() != "gain" || params[1].Name() != "rate" {
		t.Fatalf("parameter order mismatch: %v", params)
	}
}

func TestMemberRegistration(t *testing.T) {
	d := newTracer("d", nil)
	other := newTracer("other", nil)

	var m Member
	if err := m.RegisterWithDomain(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Idempotent against repeated parent pointers.
	if err := m.RegisterWithDomain(d); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if d.MemberCount() != 1 {
		t.Fatalf("expected 1 member, got %d", d.MemberCount())
	}
	if m.ParentDomain() != Domain(d) {
		t.Fatal("parent back-reference not set")
	}

	// Moving to another domain unregisters from the previous one.
	if err := m.RegisterWithDomain(other); err != nil {
		t.Fatalf("move: %v", err)
	}
	if d.MemberCount() != 0 || other.MemberCount() != 1 {
		t.Fatalf("member not moved: d=%d other=%d", d.MemberCount(), other.MemberCount())
	}

	if err := m.UnregisterFromDomain(); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if other.MemberCount() != 0 {
		t.Fatal("member not removed")
	}
	if err := m.UnregisterFromDomain(); err != nil {
		t.Fatalf("repeated unregister: %v", err)
	}
}

func TestCapabilitySet(t *testing.T) {
	c := CapNone.With(CapSimulator).With(CapAudioIO)
	if !c.Has(CapSimulator) || !c.Has(CapAudioIO) {
		t.Fatal("capability bits not set")
	}
	if c.Has(CapRendering) {
		t.Fatal("unexpected capability bit")
	}
	if c.Without(CapAudioIO).Has(CapAudioIO) {
		t.Fatal("capability bit not cleared")
	}
	if s := c.String(); s != "simulator|audio_io" {
		t.Fatalf("unexpected string: %q", s)
	}
	if s := CapNone.String(); s != "none" {
		t.Fatalf("unexpected zero string: %q", s)
	}
}
