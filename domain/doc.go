// Package domain implements the computation-domain lifecycle model.
//
// A domain is a unit of lifecycle-managed execution. Every domain supports
// Init/Cleanup; synchronous domains additionally expose a caller-driven Tick,
// asynchronous domains a blocking Start/Stop pair, and thread domains own
// their worker goroutine and expose completion through a one-shot done
// channel.
//
// Domains compose into a tree: each domain owns a list of synchronous
// sub-domains partitioned into a pre-list and a post-list. Within one
// Init/Tick/Cleanup pass the pre-list is always fully processed before the
// domain's own work, which completes before the post-list. Sub-domain list
// mutations are buffered and published at the end of the current pass, so a
// pass in flight always iterates a stable snapshot.
package domain
