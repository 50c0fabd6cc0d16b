package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// subEntry pairs a synchronous sub-domain with its pre/post placement.
type subEntry struct {
	sub     Synchronous
	prepend bool
}

// pendingOp is a buffered list mutation awaiting the next pass boundary.
type pendingOp struct {
	sub     Synchronous
	prepend bool
	remove  bool
	all     bool
}

// subDomainList is a double-buffered sub-domain collection. Passes iterate
// the active snapshot; mutations land in the pending list and are published
// into the active snapshot at the pass boundary (endPass). When no pass is in
// flight, mutations are published immediately.
type subDomainList struct {
	mu      sync.Mutex
	cond    *sync.Cond
	active  []subEntry
	pending []pendingOp
	inPass  bool
}

func (l *subDomainList) condition() *sync.Cond {
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}
	return l.cond
}

// beginPass marks a lifecycle pass in flight. Passes never overlap; a second
// caller waits for the first to finish.
func (l *subDomainList) beginPass() {
	l.mu.Lock()
	cond := l.condition()
	for l.inPass {
		cond.Wait()
	}
	l.inPass = true
	l.mu.Unlock()
}

// endPass is the pass boundary: pending mutations are published into the
// active snapshot and blocked mutators are released.
func (l *subDomainList) endPass() {
	l.mu.Lock()
	for _, op := range l.pending {
		l.applyLocked(op)
	}
	l.pending = nil
	l.inPass = false
	l.condition().Broadcast()
	l.mu.Unlock()
}

func (l *subDomainList) applyLocked(op pendingOp) {
	switch {
	case op.all:
		l.active = nil
	case op.remove:
		for i, e := range l.active {
			if e.sub == op.sub {
				l.active = append(l.active[:i], l.active[i+1:]...)
				break
			}
		}
	default:
		l.active = append(l.active, subEntry{sub: op.sub, prepend: op.prepend})
	}
}

func (l *subDomainList) contains(sub Synchronous) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.containsLocked(sub)
}

func (l *subDomainList) containsLocked(sub Synchronous) bool {
	for _, e := range l.active {
		if e.sub == sub {
			return true
		}
	}
	for _, op := range l.pending {
		if !op.remove && !op.all && op.sub == sub {
			return true
		}
	}
	return false
}

// add inserts sub. If a pass is in flight the call blocks until the pass
// boundary publishes the insertion; this wait is unbounded if the owning
// domain never finishes the pass.
func (l *subDomainList) add(sub Synchronous, prepend bool) error {
	if sub == nil {
		return ErrNilSubDomain
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.containsLocked(sub) {
		return ErrDuplicateSubDomain
	}
	op := pendingOp{sub: sub, prepend: prepend}
	if !l.inPass {
		l.applyLocked(op)
		return nil
	}
	l.pending = append(l.pending, op)
	cond := l.condition()
	for l.inPass {
		cond.Wait()
	}
	return nil
}

// remove deletes sub, or every sub-domain when sub is nil. Same boundary
// discipline as add.
func (l *subDomainList) remove(sub Synchronous) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	op := pendingOp{sub: sub, remove: true, all: sub == nil}
	if !op.all && !l.containsLocked(sub) {
		return ErrSubDomainNotFound
	}
	if !l.inPass {
		l.applyLocked(op)
		return nil
	}
	l.pending = append(l.pending, op)
	cond := l.condition()
	for l.inPass {
		cond.Wait()
	}
	return nil
}

// snapshot returns the sub-domains of one half of the active list, in
// insertion order. Only meaningful between beginPass and endPass, where the
// active list is stable.
func (l *subDomainList) snapshot(pre bool) []Synchronous {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Synchronous
	for _, e := range l.active {
		if e.prepend == pre {
			out = append(out, e.sub)
		}
	}
	return out
}

func (l *subDomainList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// =============================================================================
// Base - sub-domain operations
// =============================================================================

type subLifecycle int

const (
	subInit subLifecycle = iota
	subCleanup
	subTick
)

// AddSubDomain inserts sub into this domain's pre- or post-list. If this
// domain is already initialized the sub-domain is initialized against it
// first, so a tick occurring immediately after the insertion observes a ready
// sub-domain. A rejected duplicate is not touched.
func (b *Base) AddSubDomain(sub Synchronous, prepend bool) error {
	if sub == nil {
		return ErrNilSubDomain
	}
	if b.subs.contains(sub) {
		return ErrDuplicateSubDomain
	}
	if b.Initialized() && !sub.Initialized() {
		if err := sub.Init(context.Background(), b.Owner()); err != nil {
			return fmt.Errorf("initialize sub-domain: %w", err)
		}
	}
	return b.subs.add(sub, prepend)
}

// RemoveSubDomain removes sub from this domain; nil removes all sub-domains.
func (b *Base) RemoveSubDomain(sub Synchronous) error {
	return b.subs.remove(sub)
}

// SubDomainCount returns the number of published sub-domains.
func (b *Base) SubDomainCount() int {
	return b.subs.len()
}

// lifecycleSubdomains runs one init or cleanup half-pass. Every sub-domain is
// attempted; the aggregate error is the join of the individual failures.
func (b *Base) lifecycleSubdomains(ctx context.Context, pre bool, op subLifecycle) error {
	parent := b.Owner()
	var errs []error
	for _, sub := range b.subs.snapshot(pre) {
		var err error
		switch op {
		case subInit:
			err = sub.Init(ctx, parent)
		case subCleanup:
			err = sub.Cleanup(ctx, parent)
		case subTick:
			// The owner's measured step propagates down the composition
			// so sub-domains without their own clock can pace on it.
			if dt := b.TimeDelta(); dt != 0 {
				sub.SetTimeDelta(dt)
			}
			err = sub.Tick()
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TickPass runs one full tick pass: pre sub-domains, work, post sub-domains.
// A failing sub-domain half-pass is reported but does not stop the pass.
// Pending sub-domain list mutations are published when the pass ends.
//
// Synchronous domains call this from Tick; asynchronous domains that drive
// synchronous sub-domains call it once per iteration of their run loop.
func (b *Base) TickPass(work func() error) error {
	if !b.Initialized() {
		return ErrNotInitialized
	}
	b.subs.beginPass()
	defer b.subs.endPass()

	var errs []error
	if err := b.lifecycleSubdomains(context.Background(), true, subTick); err != nil {
		errs = append(errs, err)
	}
	if work != nil {
		if err := work(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.lifecycleSubdomains(context.Background(), false, subTick); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// =============================================================================
// Generic sub-domain factory
// =============================================================================

// NewSubDomain creates a zero-value instance of a synchronous domain type and
// adds it to parent. The Synchronous bound is enforced at compile time, so
// only tick-capable types can be composed as sub-domains.
//
// If parent is already initialized the new sub-domain is initialized against
// it before insertion; on initialization failure nothing is inserted and a
// nil handle is returned with the error.
func NewSubDomain[T any, PT interface {
	Synchronous
	*T
}](ctx context.Context, parent Domain, prepend bool) (PT, error) {
	if parent == nil {
		return nil, ErrNilParent
	}
	sub := PT(new(T))
	if o, ok := any(sub).(interface{ SetOwner(Domain) }); ok {
		o.SetOwner(sub)
	}
	if parent.Initialized() {
		if err := sub.Init(ctx, parent); err != nil {
			return nil, fmt.Errorf("initialize sub-domain: %w", err)
		}
	}
	if err := parent.AddSubDomain(sub, prepend); err != nil {
		return nil, err
	}
	return sub, nil
}
