package domain

import "sync"

// Member gives any object an optional back-reference to a lifecycle domain.
// Embedding Member lets an object register itself with a domain's bookkeeping
// without the domain knowing its concrete type; the domain may then choose to
// drive the member's own lifecycle.
//
// The back-reference is never an ownership reference: the member does not
// keep its parent alive and must be unregistered before the parent goes away.
type Member struct {
	mu     sync.Mutex
	parent Domain
}

// RegisterWithDomain registers the member with d and records d as the
// member's parent. Re-registering with the same domain is a no-op.
func (m *Member) RegisterWithDomain(d Domain) error {
	if d == nil {
		return ErrNilParent
	}
	m.mu.Lock()
	if m.parent == d {
		m.mu.Unlock()
		return nil
	}
	prev := m.parent
	m.parent = d
	m.mu.Unlock()

	if prev != nil {
		_ = prev.UnregisterMember(m)
	}
	return d.RegisterMember(m)
}

// UnregisterFromDomain removes the member from its parent's bookkeeping and
// clears the back-reference. Unregistering an unregistered member is a no-op.
func (m *Member) UnregisterFromDomain() error {
	m.mu.Lock()
	parent := m.parent
	m.parent = nil
	m.mu.Unlock()

	if parent == nil {
		return nil
	}
	return parent.UnregisterMember(m)
}

// ParentDomain returns the member's current parent, or nil.
func (m *Member) ParentDomain() Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parent
}
