package domain

// SyncBase is the embeddable base for synchronous domains: domains driven by
// explicit caller-issued ticks with no goroutine of their own.
//
// The state machine is Uninitialized -> Init -> Ready -> Tick (loops) ->
// Cleanup -> Uninitialized.
type SyncBase struct {
	Base
}

// Tick performs the default tick: pre sub-domains, nothing, post sub-domains.
// Concrete domains with their own per-tick work delegate to TickPass instead.
func (s *SyncBase) Tick() error {
	return s.TickPass(nil)
}

var _ Synchronous = (*SyncBase)(nil)
