package vpcc

// PTSFunc assigns a presentation timestamp to a frame given its running
// cross-group index and its position within its own FrameGroup. The
// default, DefaultPTSFunc, implements the deterministic scheme of
// spec.md §4.3.7; callers integrating with a real wall clock can supply
// their own via WithPTSFunc (SPEC_FULL.md §9).
type PTSFunc func(totalFrameCount, indexInGroup int) int64

// DefaultPTSFunc assigns PTS deterministically in the absence of any wall
// clock: `(total_frame_count / 32) * 100 + (i % 32)`. This gives frames
// within a 32-frame sub-group monotonically increasing PTS values and
// inserts a large jump at sub-group boundaries, matching what the
// decoders expect, per spec.md §4.3.7.
func DefaultPTSFunc(totalFrameCount, indexInGroup int) int64 {
	return int64(totalFrameCount/32)*100 + int64(indexInGroup%32)
}
