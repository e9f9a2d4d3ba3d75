package main

import (
	"math/rand"
	"time"

	"github.com/oaklane/j1939dtc"
)

// simClock converts wall-clock elapsed time into the abstract uint32
// second counter every dtc.Monitor call takes as ts. A real deployment
// would derive this from a hardware tick counter instead.
type simClock struct {
	start time.Time
}

func newSimClock() *simClock { return &simClock{start: time.Now()} }

func (c *simClock) Seconds() uint32 {
	return uint32(time.Since(c.start).Seconds())
}

// faultSimulator periodically injects single-frame DM1 broadcasts for
// a small fixed set of synthetic faults, standing in for a real bus
// when -i is not given. It never produces multi-frame BAM traffic;
// pkg/transport's own tests cover that path directly.
type faultSimulator struct {
	monitor *dtc.Monitor
	clock   *simClock
	sources []uint8
	faults  [][2]uint32 // spn, fmi pairs
	rng     *rand.Rand
}

func newFaultSimulator(monitor *dtc.Monitor, clock *simClock) *faultSimulator {
	return &faultSimulator{
		monitor: monitor,
		clock:   clock,
		sources: []uint8{0x00, 0x03, 0x0B},
		faults: [][2]uint32{
			{190, 2},  // engine speed, data erratic
			{110, 0},  // coolant temperature, above normal
			{1569, 31}, // engine protection torque derate, condition exists
		},
		rng: rand.New(rand.NewSource(1)),
	}
}

func (s *faultSimulator) emitOne() {
	src := s.sources[s.rng.Intn(len(s.sources))]
	fault := s.faults[s.rng.Intn(len(s.faults))]
	spn, fmi := fault[0], fault[1]

	data := [8]byte{
		0x55, // mil=1, rsl=1, awl=1, pl=1
		0x00,
		byte(spn), byte(spn >> 8), byte(fmi&0x1F) | byte((spn>>16)&0x7)<<5,
		0x01, // cm=0, oc=1
		0xFF, 0xFF,
	}
	canID := uint32(0x18FECA00) | uint32(src)
	s.monitor.ProcessFrame(canID, data, s.clock.Seconds())
}
