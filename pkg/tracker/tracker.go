// Package tracker maintains the bounded candidate and active Diagnostic
// Trouble Code tables and applies the promotion/aging debounce rule.
//
// A Tracker is not safe for concurrent use; callers (the classifier's
// ingest path and the periodic maintainer) must serialize access to it
// themselves, which is exactly what the gate above it in this module
// does.
package tracker

import (
	"log/slog"
)

// DefaultMaxCandidates and DefaultMaxActive are the spec's default
// table capacities.
const (
	DefaultMaxCandidates = 40
	DefaultMaxActive     = 20
)

// DTC is the decoded identity plus its mutable lamp/occurrence
// attributes. Identity for lookup and equality purposes is
// (Src, SPN, FMI) only: CM and OC are observed attributes that legitimately
// change between broadcasts of the same fault.
type DTC struct {
	Src uint8
	SPN uint32 // 19 bits significant
	FMI uint8  // 5 bits significant
	CM  uint8  // 1 bit
	OC  uint8  // 7 bits

	MIL uint8 // 2 bits
	RSL uint8 // 2 bits
	AWL uint8 // 2 bits
	PL  uint8 // 2 bits
}

func sameIdentity(a, b DTC) bool {
	return a.Src == b.Src && a.SPN == b.SPN && a.FMI == b.FMI
}

// TrackedDTC is a DTC plus the bookkeeping the tracker needs to decide
// promotion and aging.
type TrackedDTC struct {
	DTC
	FirstSeen   uint32
	LastSeen    uint32
	Occurrences uint32
}

func (t *TrackedDTC) refresh(d DTC, ts uint32) {
	t.CM, t.OC = d.CM, d.OC
	t.MIL, t.RSL, t.AWL, t.PL = d.MIL, d.RSL, d.AWL, d.PL
	t.LastSeen = ts
}

// Tracker holds the candidate and active lists and the filtering
// tunables that govern promotion and aging. Lists are fixed-capacity
// slices allocated once at construction time; no allocation occurs on
// Observe or Age.
type Tracker struct {
	logger *slog.Logger

	candidates []TrackedDTC // len <= cap(candidates), insertion order preserved
	active     []TrackedDTC

	maxCandidates int
	maxActive     int

	activeReadCount  uint32
	activeTimeWindow uint32
	inactiveTimeout  uint32

	changed  bool
	callback func([]TrackedDTC)
}

// New creates a Tracker with the spec default filtering parameters
// (activeReadCount=10, activeTimeWindow=10s, inactiveTimeout=20s).
// maxCandidates/maxActive override the default table capacities; pass
// 0 for either to keep the spec default. A nil logger falls back to
// slog.Default().
func New(logger *slog.Logger, maxCandidates, maxActive int) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}

	t := &Tracker{
		logger:           logger.With("service", "[TRACKER]"),
		maxCandidates:    maxCandidates,
		maxActive:        maxActive,
		activeReadCount:  10,
		activeTimeWindow: 10,
		inactiveTimeout:  20,
	}
	t.candidates = make([]TrackedDTC, 0, t.maxCandidates)
	t.active = make([]TrackedDTC, 0, t.maxActive)
	return t
}

// SetFiltering updates the promotion/aging tunables. A zero value
// leaves the corresponding field unchanged, matching the runtime
// SetFiltering contract in spec.md §6.
func (t *Tracker) SetFiltering(activeReadCount, activeTimeWindow, inactiveTimeout uint32) {
	if activeReadCount != 0 {
		t.activeReadCount = activeReadCount
	}
	if activeTimeWindow != 0 {
		t.activeTimeWindow = activeTimeWindow
	}
	if inactiveTimeout != 0 {
		t.inactiveTimeout = inactiveTimeout
	}
}

// OnChange registers the single subscriber invoked when the active set
// changes. Registering again replaces any previous subscriber.
func (t *Tracker) OnChange(fn func([]TrackedDTC)) {
	t.callback = fn
}

// Observe applies one decoded DTC sighting to the tracker: refresh in
// place if already tracked, otherwise insert as a new candidate, then
// attempt promotion. Implements spec.md §4.4 Observe.
func (t *Tracker) Observe(d DTC, ts uint32) {
	if idx := indexOf(t.active, d); idx >= 0 {
		t.active[idx].refresh(d, ts)
		return
	}

	if idx := indexOf(t.candidates, d); idx >= 0 {
		cand := &t.candidates[idx]
		cand.refresh(d, ts)
		cand.Occurrences++
	} else {
		if len(t.candidates) >= t.maxCandidates {
			t.logger.Debug("candidate table full, dropping observation",
				"src", d.Src, "spn", d.SPN, "fmi", d.FMI)
			return
		}
		t.candidates = append(t.candidates, TrackedDTC{
			DTC:         d,
			FirstSeen:   ts,
			LastSeen:    ts,
			Occurrences: 1,
		})
	}

	t.promote(ts)
}

// promote scans the candidate list and moves any candidate that has
// met the occurrence/window rule into the active list.
func (t *Tracker) promote(ts uint32) {
	i := 0
	for i < len(t.candidates) {
		c := t.candidates[i]
		if elapsedLE(c.FirstSeen, ts, t.activeTimeWindow) && c.Occurrences >= t.activeReadCount {
			if len(t.active) >= t.maxActive {
				t.logger.Debug("active table full, dropping promotion",
					"src", c.Src, "spn", c.SPN, "fmi", c.FMI)
				// Do not re-queue: remove from candidates regardless,
				// matching spec.md §4.4 step 4 ("drop, do not re-queue").
				t.candidates = removeAt(t.candidates, i)
				continue
			}
			t.active = append(t.active, c)
			t.candidates = removeAt(t.candidates, i)
			t.changed = true
			t.logger.Info("promoted DTC to active",
				"src", c.Src, "spn", c.SPN, "fmi", c.FMI, "occurrences", c.Occurrences)
			continue
		}
		i++
	}
}

// Age implements spec.md §4.4 Age: drops candidates that failed to
// accumulate enough occurrences within their window, and ages active
// DTCs out after inactiveTimeout seconds of silence.
func (t *Tracker) Age(ts uint32) {
	i := 0
	for i < len(t.candidates) {
		c := t.candidates[i]
		if !elapsedLE(c.FirstSeen, ts, t.activeTimeWindow) {
			t.logger.Debug("candidate expired without promotion",
				"src", c.Src, "spn", c.SPN, "fmi", c.FMI, "occurrences", c.Occurrences)
			t.candidates = removeAt(t.candidates, i)
			continue
		}
		i++
	}

	i = 0
	for i < len(t.active) {
		a := t.active[i]
		if !elapsedLE(a.LastSeen, ts, t.inactiveTimeout) {
			t.logger.Info("active DTC aged out",
				"src", a.Src, "spn", a.SPN, "fmi", a.FMI)
			t.active = removeAt(t.active, i)
			t.changed = true
			continue
		}
		i++
	}
}

// TakeChanged reports whether the active set has changed since the
// last call, clearing the flag as a side effect.
func (t *Tracker) TakeChanged() bool {
	changed := t.changed
	t.changed = false
	return changed
}

// NotifyIfChanged invokes the registered callback with the current
// active set iff the changed flag is set, then clears it. Returns
// whether the callback fired.
func (t *Tracker) NotifyIfChanged() bool {
	if !t.TakeChanged() {
		return false
	}
	if t.callback != nil {
		t.callback(t.active)
	}
	return true
}

// Active returns the live, caller-must-not-mutate backing slice of the
// active list. Only safe to call while the gate above the tracker is
// held.
func (t *Tracker) Active() []TrackedDTC {
	return t.active
}

// Clear empties both tables and clears the changed flag.
func (t *Tracker) Clear() {
	t.candidates = t.candidates[:0]
	t.active = t.active[:0]
	t.changed = false
}

func indexOf(list []TrackedDTC, d DTC) int {
	for i := range list {
		if sameIdentity(list[i].DTC, d) {
			return i
		}
	}
	return -1
}

// removeAt deletes the element at i while preserving the order of the
// remaining elements, without skipping the neighbour that shifts into
// slot i (the caller must not advance its own index after calling
// this).
func removeAt(list []TrackedDTC, i int) []TrackedDTC {
	return append(list[:i], list[i+1:]...)
}

// elapsedLE reports whether ts-from <= window, treating timestamps as
// monotonic non-decreasing unsigned seconds (no wraparound handling,
// per spec.md §9).
func elapsedLE(from, ts, window uint32) bool {
	return ts-from <= window
}
