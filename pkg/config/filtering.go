// Package config holds the tunable filtering parameters for the DTC
// tracker and reassembler, and an optional file-based loader for
// devices that boot from a configuration partition instead of (or in
// addition to) a runtime SetFiltering call.
package config

import "gopkg.in/ini.v1"

// Filtering carries the four runtime tunables from spec.md §6 plus
// the four compile-time capacity limits from spec.md §3/§6. Units are
// seconds except ActiveReadCount, which is an occurrence count.
type Filtering struct {
	ActiveReadCount   uint32
	ActiveTimeWindow  uint32
	InactiveTimeout   uint32
	MultiFrameTimeout uint32

	MaxCandidateDTCs        int
	MaxActiveDTCs           int
	MaxConcurrentMultiFrame int
	MaxMultiFrameDataSize   int
}

// Default returns the spec.md defaults: activeReadCount=10,
// activeTimeWindow=10s, inactiveTimeout=20s, multiFrameTimeout=5s,
// maxCandidates=40, maxActive=20, maxSlots=4, maxDataSize=256.
func Default() Filtering {
	return Filtering{
		ActiveReadCount:         10,
		ActiveTimeWindow:        10,
		InactiveTimeout:         20,
		MultiFrameTimeout:       5,
		MaxCandidateDTCs:        40,
		MaxActiveDTCs:           20,
		MaxConcurrentMultiFrame: 4,
		MaxMultiFrameDataSize:   256,
	}
}

// Merge applies override on top of f, treating zero fields in
// override as "leave unchanged" — the same convention
// Monitor.SetFiltering uses for its runtime arguments.
func (f Filtering) Merge(override Filtering) Filtering {
	if override.ActiveReadCount != 0 {
		f.ActiveReadCount = override.ActiveReadCount
	}
	if override.ActiveTimeWindow != 0 {
		f.ActiveTimeWindow = override.ActiveTimeWindow
	}
	if override.InactiveTimeout != 0 {
		f.InactiveTimeout = override.InactiveTimeout
	}
	if override.MultiFrameTimeout != 0 {
		f.MultiFrameTimeout = override.MultiFrameTimeout
	}
	if override.MaxCandidateDTCs != 0 {
		f.MaxCandidateDTCs = override.MaxCandidateDTCs
	}
	if override.MaxActiveDTCs != 0 {
		f.MaxActiveDTCs = override.MaxActiveDTCs
	}
	if override.MaxConcurrentMultiFrame != 0 {
		f.MaxConcurrentMultiFrame = override.MaxConcurrentMultiFrame
	}
	if override.MaxMultiFrameDataSize != 0 {
		f.MaxMultiFrameDataSize = override.MaxMultiFrameDataSize
	}
	return f
}

// LoadFile reads filtering overrides from an INI file's [filtering]
// section (keys: active_read_count, active_time_window,
// inactive_timeout, multi_frame_timeout, max_candidate_dtcs,
// max_active_dtcs, max_concurrent_multiframe,
// max_multiframe_data_size). Missing keys are left at their zero
// value, so the result is meant to be passed through Merge rather than
// used directly. Grounded on the teacher's EDS-via-ini loader
// (pkg/od/parser.go).
func LoadFile(path string) (Filtering, error) {
	var override Filtering

	cfg, err := ini.Load(path)
	if err != nil {
		return override, err
	}
	section := cfg.Section("filtering")

	override.ActiveReadCount = uint32(section.Key("active_read_count").MustUint(0))
	override.ActiveTimeWindow = uint32(section.Key("active_time_window").MustUint(0))
	override.InactiveTimeout = uint32(section.Key("inactive_timeout").MustUint(0))
	override.MultiFrameTimeout = uint32(section.Key("multi_frame_timeout").MustUint(0))
	override.MaxCandidateDTCs = section.Key("max_candidate_dtcs").MustInt(0)
	override.MaxActiveDTCs = section.Key("max_active_dtcs").MustInt(0)
	override.MaxConcurrentMultiFrame = section.Key("max_concurrent_multiframe").MustInt(0)
	override.MaxMultiFrameDataSize = section.Key("max_multiframe_data_size").MustInt(0)

	return override, nil
}
