// Package vpcc parses a V-PCC container into a sequence of FrameGroups with
// fully materialized patches, block-to-patch maps, and per-component HEVC
// substreams, per spec.md §3/§4.3.
package vpcc

import "errors"

// ErrMalformedContainer is returned for a bad magic/version, a unit size
// that overruns the remaining buffer, or an out-of-range field value.
// Fatal: surfaced to the caller before playback begins.
var ErrMalformedContainer = errors.New("vpcc: malformed container")

// ErrInconsistentFrameSize is returned when a FrameGroup's frame width or
// height differs from the preceding FrameGroup's. Mid-stream decoder
// reinitialization is disallowed by policy (costs >100ms per decoder on
// mobile), so this is fatal rather than triggering a resize.
var ErrInconsistentFrameSize = errors.New("vpcc: inconsistent frame size between frame groups")

// ErrUnknownUnitType is never returned to a caller; it is logged at Warn
// and the unit is skipped using its declared size. It is exported so
// internal dispatch code and tests can refer to it by name.
var ErrUnknownUnitType = errors.New("vpcc: unknown v-pcc unit type")

// ErrMissingUnitOrder is returned when a unit depends on state that should
// have been established by an earlier unit (e.g. an AVD/OVD/GVD unit
// before any VPS, or an ATGL before its AFPS/ASPS).
var ErrMissingUnitOrder = errors.New("vpcc: unit seen out of expected order")
