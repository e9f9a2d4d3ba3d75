// Package dtc implements the J1939 DM1 Diagnostic Trouble Code
// monitor: frame ingest (ISR-callable), multi-frame reassembly,
// candidate/active debouncing and a once-per-second maintenance tick,
// all guarded by a single non-blocking mutex gate so the ISR producer
// and the periodic-tick consumer cannot corrupt shared state.
//
// Monitor is the package's single public entry point; pkg/can,
// pkg/classifier, pkg/transport, pkg/dm1 and pkg/tracker implement its
// components and can be used standalone (e.g. in tests) but are wired
// together here for the common case.
package dtc

import (
	"log/slog"

	"github.com/oaklane/j1939dtc/internal/gate"
	"github.com/oaklane/j1939dtc/pkg/can"
	"github.com/oaklane/j1939dtc/pkg/classifier"
	"github.com/oaklane/j1939dtc/pkg/config"
	"github.com/oaklane/j1939dtc/pkg/dm1"
	"github.com/oaklane/j1939dtc/pkg/tracker"
	"github.com/oaklane/j1939dtc/pkg/transport"
)

// TrackedDTC is re-exported so callers don't need to import
// pkg/tracker just to receive the callback/snapshot payload.
type TrackedDTC = tracker.TrackedDTC

// Monitor composes the Frame Classifier, Multi-Frame Reassembler, DM1
// Parser and DTC Tracker behind the Mutex Gate described in spec.md
// §4.5, and implements the Periodic Maintainer of §4.6.
//
// Monitor's exported methods are the module's entire public API
// (spec.md §6): ProcessFrame is safe to call from a CAN RX interrupt,
// Tick is meant to be called at least once per second from the
// application's main loop, and neither blocks.
type Monitor struct {
	logger *slog.Logger

	gate        gate.Gate
	classifier  *classifier.Classifier
	reassembler *transport.Reassembler
	parser      *dm1.Parser
	tracker     *tracker.Tracker
}

// New creates a ready-to-use Monitor. filtering supplies the runtime
// tunables and table/slot capacities (see config.Default); a nil
// logger falls back to slog.Default().
func New(logger *slog.Logger, filtering config.Filtering) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	f := filtering

	t := tracker.New(logger, f.MaxCandidateDTCs, f.MaxActiveDTCs)
	t.SetFiltering(f.ActiveReadCount, f.ActiveTimeWindow, f.InactiveTimeout)

	r := transport.New(logger, f.MaxConcurrentMultiFrame, f.MaxMultiFrameDataSize)
	r.SetTimeout(f.MultiFrameTimeout)

	p := dm1.New(logger)

	c := classifier.New(p, logger, r)

	return &Monitor{
		logger:      logger.With("service", "[MONITOR]"),
		classifier:  c,
		reassembler: r,
		parser:      p,
		tracker:     t,
	}
}

// ProcessFrame ingests one CAN frame. Safe to call from a CAN receive
// interrupt. If the mutex gate is already held (by a concurrent tick
// or another ingest call), the frame is dropped silently — spec.md §4.5
// and §7 treat contention as an expected, non-error condition: the
// module favors liveness over completeness.
func (m *Monitor) ProcessFrame(canID uint32, data [8]byte, ts uint32) {
	if !m.gate.TryAcquire() {
		m.logger.Debug("gate contended, dropping frame", "can_id", canID)
		return
	}
	defer m.gate.Release()

	m.classifier.Dispatch(canID, data[:], ts, m.tracker)
}

// Tick runs the periodic maintainer (spec.md §4.6): ages the tracker
// and sweeps stale in-flight multi-frame slots, then — if the active
// set changed — notifies the registered subscriber and returns true.
// Must be called at least once per second. Returns false, with no
// state updated, if the gate is contended.
func (m *Monitor) Tick(ts uint32) bool {
	if !m.gate.TryAcquire() {
		return false
	}
	defer m.gate.Release()

	m.tracker.Age(ts)
	m.reassembler.Age(ts)
	return m.tracker.NotifyIfChanged()
}

// SetFiltering updates the promotion/aging/reassembly tunables
// described in spec.md §6. A zero argument leaves the corresponding
// parameter unchanged.
func (m *Monitor) SetFiltering(activeReadCount, activeTimeWindow, inactiveTimeout, multiFrameTimeout uint32) {
	if !m.gate.TryAcquire() {
		return
	}
	defer m.gate.Release()

	m.tracker.SetFiltering(activeReadCount, activeTimeWindow, inactiveTimeout)
	m.reassembler.SetTimeout(multiFrameTimeout)
}

// RegisterCallback installs the single subscriber notified from Tick
// when the active set changes. Replaces any previously registered
// callback. The callback runs under the gate; it must not call back
// into Monitor and should return quickly, since frames arriving while
// it runs will be dropped (spec.md §9).
func (m *Monitor) RegisterCallback(fn func([]TrackedDTC)) {
	if !m.gate.TryAcquire() {
		return
	}
	defer m.gate.Release()

	m.tracker.OnChange(fn)
}

// CopyDTCs copies the current active set into buf and reports how many
// entries were written. Returns false without copying anything if the
// gate is contended or buf is smaller than the active set.
func (m *Monitor) CopyDTCs(buf []TrackedDTC) (int, bool) {
	if !m.gate.TryAcquire() {
		return 0, false
	}
	defer m.gate.Release()

	active := m.tracker.Active()
	if len(buf) < len(active) {
		return 0, false
	}
	n := copy(buf, active)
	return n, true
}

// DynamicCopyDTCs returns a freshly allocated, caller-owned copy of the
// active set. This is the one place in the package's ingest/tick paths
// that allocates, and it is deliberately reserved for external
// snapshot consumers (spec.md §3 "the dynamic copy helper ... is the
// sole exception and operates on a snapshot"), never called from the
// hot path itself. Returns false if the gate is contended.
func (m *Monitor) DynamicCopyDTCs() ([]TrackedDTC, bool) {
	if !m.gate.TryAcquire() {
		return nil, false
	}
	defer m.gate.Release()

	active := m.tracker.Active()
	out := make([]TrackedDTC, len(active))
	copy(out, active)
	return out, true
}

// ActiveDTCs returns a direct reference to the live active list. The
// caller MUST hold the gate (via TakeMutex/GiveMutex) for as long as
// it uses the returned slice; this is the escape hatch spec.md §5
// describes for zero-copy, zero-allocation read-outs, and it offers no
// protection against misuse beyond this doc comment.
func (m *Monitor) ActiveDTCs() []TrackedDTC {
	return m.tracker.Active()
}

// TakeMutex attempts to take the gate for the caller's own use
// (e.g. around ActiveDTCs). Non-blocking; returns false if already
// held.
func (m *Monitor) TakeMutex() bool {
	return m.gate.TryAcquire()
}

// GiveMutex releases the gate taken by TakeMutex.
func (m *Monitor) GiveMutex() {
	m.gate.Release()
}

// Clear resets the candidate table, active table and multi-frame slot
// pool to empty, under the gate.
func (m *Monitor) Clear() {
	if !m.gate.TryAcquire() {
		return
	}
	defer m.gate.Release()

	m.tracker.Clear()
	m.reassembler.Clear()
}

// Frame is re-exported for callers that want to build a can.Frame
// before calling ProcessFrame, e.g. from a simulated bus.
type Frame = can.Frame
