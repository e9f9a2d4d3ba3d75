package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDTC() DTC {
	return DTC{Src: 0x03, SPN: 1, FMI: 5, CM: 0, OC: 2, MIL: 3, RSL: 3, AWL: 3, PL: 3}
}

func newTestTracker() *Tracker {
	tr := New(nil, 0, 0)
	tr.SetFiltering(3, 10, 20)
	return tr
}

func TestPromotionRule(t *testing.T) {
	tr := newTestTracker()
	d := testDTC()

	tr.Observe(d, 0)
	assert.Empty(t, tr.Active())
	tr.Observe(d, 1)
	assert.Empty(t, tr.Active())
	tr.Observe(d, 2)

	require.Len(t, tr.Active(), 1)
	assert.True(t, tr.TakeChanged())
	assert.Equal(t, d.SPN, tr.Active()[0].SPN)
}

func TestFailedPromotionDropsCandidateAfterWindow(t *testing.T) {
	tr := newTestTracker()
	d := testDTC()

	tr.Observe(d, 0)
	tr.Observe(d, 15) // gap exceeds window, only 2 occurrences total

	assert.Empty(t, tr.Active())

	tr.Age(11)
	assert.Empty(t, tr.candidates, "candidate must be dropped once its window has elapsed")
	assert.False(t, tr.TakeChanged(), "a dropped candidate is not an active-set change")
}

func TestAgingBoundary(t *testing.T) {
	tr := newTestTracker()
	d := testDTC()

	tr.Observe(d, 0)
	tr.Observe(d, 1)
	tr.Observe(d, 2) // promoted, last_seen=2
	tr.TakeChanged()

	tr.Age(22) // 22-2=20, not > 20, must survive
	assert.Len(t, tr.Active(), 1)
	assert.False(t, tr.TakeChanged())

	tr.Age(23) // 23-2=21 > 20, ages out
	assert.Empty(t, tr.Active())
	assert.True(t, tr.TakeChanged())
}

func TestIdentityUniqueness(t *testing.T) {
	tr := newTestTracker()
	d := testDTC()

	for ts := uint32(0); ts < 5; ts++ {
		tr.Observe(d, ts)
	}
	assert.Len(t, tr.Active(), 1)
	assert.Empty(t, tr.candidates)

	// Re-observing the now-active identity must refresh in place, not
	// duplicate it into the candidate list.
	d2 := d
	d2.OC = 9
	tr.Observe(d2, 5)
	assert.Len(t, tr.Active(), 1)
	assert.Empty(t, tr.candidates)
	assert.Equal(t, uint8(9), tr.Active()[0].OC)
}

func TestAttributeRefreshIsNotAChange(t *testing.T) {
	tr := newTestTracker()
	d := testDTC()

	tr.Observe(d, 0)
	tr.Observe(d, 1)
	tr.Observe(d, 2)
	assert.True(t, tr.TakeChanged())

	d2 := d
	d2.MIL = 1
	tr.Observe(d2, 3)
	assert.False(t, tr.TakeChanged(), "refreshing an already-active DTC's attributes is not a set change")
}

func TestBoundedCandidateTable(t *testing.T) {
	tr := New(nil, 2, 20)
	for i := uint8(0); i < 5; i++ {
		tr.Observe(DTC{Src: i, SPN: uint32(i) + 1, FMI: 1}, 0)
	}
	assert.Len(t, tr.candidates, 2, "excess candidates beyond capacity must be dropped")
}

func TestBoundedActiveTableDropsWithoutRequeue(t *testing.T) {
	tr := New(nil, 20, 1)
	tr.SetFiltering(1, 10, 20)

	tr.Observe(DTC{Src: 1, SPN: 1, FMI: 1}, 0)
	require.Len(t, tr.Active(), 1)

	tr.Observe(DTC{Src: 2, SPN: 2, FMI: 1}, 0)
	assert.Len(t, tr.Active(), 1, "active table is full, second promotion must be dropped")
	assert.Empty(t, tr.candidates, "dropped promotion must not be re-queued as a candidate")
}
