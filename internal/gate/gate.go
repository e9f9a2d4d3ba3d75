// Package gate implements the non-blocking, non-reentrant mutex used
// to serialize the ISR-callable ingest path against the periodic
// maintenance tick (spec.md §4.5).
//
// A sleeping mutex is unavailable on the bare-metal target this module
// is written for, and a spinlock would deadlock if the ISR holder were
// ever re-entered; the documented trade-off is to drop on contention
// instead of waiting. Modeled on the atomic.Bool-based single-holder
// seal used for ISR-adjacent state in the example pack (see
// IntuitionAmiga-IntuitionEngine's machine_bus.go, which CompareAndSwaps
// a sealed atomic.Bool rather than taking a blocking lock).
package gate

import "sync/atomic"

// Gate is a single boolean test-and-set guard. The zero value is a
// free gate.
type Gate struct {
	held atomic.Bool
}

// TryAcquire attempts to take the gate, returning false immediately if
// it is already held. Never blocks.
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the gate. Calling Release without a matching
// successful TryAcquire is a caller error; the gate does not detect
// it, matching the spec's non-reentrant, trust-the-caller contract.
func (g *Gate) Release() {
	g.held.Store(false)
}

// Held reports whether the gate is currently taken. Intended for
// diagnostics/tests only; ordinary control flow should rely on the
// return value of TryAcquire, not a separate Held check, to avoid a
// race between the check and the acquire.
func (g *Gate) Held() bool {
	return g.held.Load()
}
