package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Common errors
var (
	ErrNotInitialized     = errors.New("domain is not initialized")
	ErrAlreadyRunning     = errors.New("domain is already running")
	ErrNilSubDomain       = errors.New("sub-domain is nil")
	ErrDuplicateSubDomain = errors.New("sub-domain already present")
	ErrSubDomainNotFound  = errors.New("sub-domain not found")
	ErrNilParent          = errors.New("parent domain is nil")
)

// Parameter is a runtime-adjustable value owned outside the domain. The
// domain only holds a reference for introspection; thread-safety of reads and
// writes is the parameter type's responsibility.
type Parameter interface {
	Name() string
}

// Domain is the base lifecycle contract shared by all execution contexts.
type Domain interface {
	// Init performs domain-specific setup and cascades to sub-domains
	// (pre-list, own setup, post-list). Repeated calls on an initialized
	// domain are no-ops returning nil.
	Init(ctx context.Context, parent Domain) error

	// Cleanup mirrors Init. Calling it on an already-clean domain is a
	// no-op returning nil.
	Cleanup(ctx context.Context, parent Domain) error

	// Initialized reports whether Init has completed successfully.
	Initialized() bool

	// Capabilities returns the roles this domain can fulfill.
	Capabilities() Capability

	// TimeDelta returns the last measured or assigned step duration in
	// seconds. Zero for domains that do not track it.
	TimeDelta() float64
	SetTimeDelta(seconds float64)

	// Parameters returns references to the runtime parameters controlling
	// this domain. The referenced objects are externally owned.
	Parameters() []Parameter

	// AddSubDomain inserts sub into the pre-list (prepend true) or
	// post-list. If a pass is in flight the insertion is published at the
	// pass boundary and the call blocks until then; if the domain never
	// reaches that boundary the call blocks indefinitely. Callers that
	// cannot tolerate this must stop the domain before reconfiguring it.
	AddSubDomain(sub Synchronous, prepend bool) error

	// RemoveSubDomain removes sub; a nil sub removes all sub-domains.
	// Same boundary discipline as AddSubDomain.
	RemoveSubDomain(sub Synchronous) error

	// OnInitialize registers a callback invoked after successful Init, in
	// registration order.
	OnInitialize(fn func(ctx context.Context))

	// OnCleanup registers a callback invoked before Cleanup tears the
	// domain down, in registration order.
	OnCleanup(fn func(ctx context.Context))

	// RegisterMember and UnregisterMember track arbitrary objects whose
	// lifecycle this domain may choose to drive. Registration is
	// idempotent.
	RegisterMember(member any) error
	UnregisterMember(member any) error
}

// Synchronous is a domain whose unit of work is a single caller-driven tick.
// Synchronous domains never spawn goroutines; they execute entirely on the
// caller's goroutine.
type Synchronous interface {
	Domain

	// Tick performs exactly one unit of work: pre sub-domains, the
	// domain's own work, post sub-domains. A failing sub-domain pass is
	// reported but does not prevent the domain's own work from running.
	Tick() error
}

// Async is a domain with a blocking start/stop lifecycle. Start returns only
// when the run has ended; Stop may be called concurrently from another
// goroutine and requests cooperative termination.
type Async interface {
	Domain

	Start(ctx context.Context) error
	Stop() error

	// OnStart registers a callback fired after setup, before the blocking
	// loop is entered.
	OnStart(fn func(ctx context.Context))

	// OnStop registers a callback fired when a stop is requested, before
	// the domain actually halts.
	OnStop(fn func())
}

// =============================================================================
// Base - embeddable lifecycle machinery
// =============================================================================

// Base provides the common lifecycle machinery for all domains. The zero
// value is ready to use, so concrete domains can embed it by value and be
// constructed generically.
//
// Concrete domains with their own setup/teardown implement Init and Cleanup
// by delegating to InitWith and CleanupWith, which keep the sub-domain
// cascade and callback ordering correct.
type Base struct {
	mu           sync.Mutex
	owner        Domain
	initialized  bool
	timeDelta    float64
	capabilities Capability
	parameters   []Parameter
	initCbs      []func(ctx context.Context)
	cleanupCbs   []func(ctx context.Context)
	members      map[any]struct{}

	subs subDomainList
}

// Init performs the default initialization: sub-domain cascade only.
func (b *Base) Init(ctx context.Context, parent Domain) error {
	return b.InitWith(ctx, parent, nil)
}

// InitWith runs the full initialization protocol around setup: pre
// sub-domains, setup, post sub-domains. All stages are attempted even after a
// failure so that partial-failure state is fully surfaced; if any stage
// failed the domain is left uninitialized and the aggregate error returned.
func (b *Base) InitWith(ctx context.Context, parent Domain, setup func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	b.subs.beginPass()
	var errs []error
	if err := b.lifecycleSubdomains(ctx, true, subInit); err != nil {
		errs = append(errs, err)
	}
	if setup != nil {
		if err := setup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("domain setup: %w", err))
		}
	}
	if err := b.lifecycleSubdomains(ctx, false, subInit); err != nil {
		errs = append(errs, err)
	}
	b.subs.endPass()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	b.mu.Lock()
	b.initialized = true
	cbs := append([]func(ctx context.Context){}, b.initCbs...)
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(ctx)
	}
	return nil
}

// Cleanup performs the default teardown: sub-domain cascade only.
func (b *Base) Cleanup(ctx context.Context, parent Domain) error {
	return b.CleanupWith(ctx, parent, nil)
}

// CleanupWith mirrors InitWith. Cleanup callbacks fire first, while the
// domain is still initialized; the domain ends up uninitialized regardless of
// stage failures.
func (b *Base) CleanupWith(ctx context.Context, parent Domain, teardown func(ctx context.Context) error) error {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return nil
	}
	cbs := append([]func(ctx context.Context){}, b.cleanupCbs...)
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(ctx)
	}

	b.subs.beginPass()
	var errs []error
	if err := b.lifecycleSubdomains(ctx, true, subCleanup); err != nil {
		errs = append(errs, err)
	}
	if teardown != nil {
		if err := teardown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("domain teardown: %w", err))
		}
	}
	if err := b.lifecycleSubdomains(ctx, false, subCleanup); err != nil {
		errs = append(errs, err)
	}
	b.subs.endPass()

	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()

	return errors.Join(errs...)
}

// SetOwner records the concrete domain embedding this Base. Constructors call
// it with the domain they return so sub-domain cascades hand the owner to each
// sub-domain as its parent; without it sub-domains see a nil parent.
func (b *Base) SetOwner(d Domain) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner = d
}

// Owner returns the concrete domain embedding this Base, or nil when never
// set.
func (b *Base) Owner() Domain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// Initialized reports whether the domain has been initialized.
func (b *Base) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Capabilities returns the domain's capability set.
func (b *Base) Capabilities() Capability {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capabilities
}

// SetCapabilities assigns the domain's capability set. Concrete domains call
// this during setup.
func (b *Base) SetCapabilities(c Capability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capabilities = c
}

// TimeDelta returns the last step duration in seconds.
func (b *Base) TimeDelta() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeDelta
}

// SetTimeDelta records the step duration so it is available whenever the
// domain ticks.
func (b *Base) SetTimeDelta(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeDelta = seconds
}

// Parameters returns the registered parameter references.
func (b *Base) Parameters() []Parameter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Parameter{}, b.parameters...)
}

// AddParameter registers an externally-owned parameter for introspection.
func (b *Base) AddParameter(p Parameter) {
	if p == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parameters = append(b.parameters, p)
}

// OnInitialize registers an initialization callback.
func (b *Base) OnInitialize(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initCbs = append(b.initCbs, fn)
}

// OnCleanup registers a cleanup callback.
func (b *Base) OnCleanup(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanupCbs = append(b.cleanupCbs, fn)
}

// RegisterMember records member in the domain's bookkeeping. Repeated
// registration of the same member is a no-op.
func (b *Base) RegisterMember(member any) error {
	if member == nil {
		return errors.New("member is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.members == nil {
		b.members = make(map[any]struct{})
	}
	b.members[member] = struct{}{}
	return nil
}

// UnregisterMember removes member from the domain's bookkeeping.
func (b *Base) UnregisterMember(member any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members, member)
	return nil
}

// MemberCount returns the number of registered members.
func (b *Base) MemberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.members)
}
