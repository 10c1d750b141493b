package playback

import (
	"testing"

	"github.com/zsiec/vpccplay/vpcc"
)

func twoGroupFixture() []vpcc.FrameGroup {
	return []vpcc.FrameGroup{
		{Frames: []vpcc.FrameData{{Index: 0}, {Index: 1}}},
		{Frames: []vpcc.FrameData{{Index: 0}, {Index: 1}, {Index: 2}}},
	}
}

func TestAdvanceDecoderFrameWithinGroup(t *testing.T) {
	t.Parallel()

	ctx := New(twoGroupFixture())

	f, ok := ctx.CurrentDecoderFrame()
	if !ok || f.Index != 0 {
		t.Fatalf("CurrentDecoderFrame = %+v, %v, want index 0", f, ok)
	}

	ctx.AdvanceDecoderFrame()
	f, ok = ctx.CurrentDecoderFrame()
	if !ok || f.Index != 1 {
		t.Fatalf("CurrentDecoderFrame after advance = %+v, %v, want index 1", f, ok)
	}
}

func TestAdvanceDecoderFrameRollsOverGroupBoundary(t *testing.T) {
	t.Parallel()

	ctx := New(twoGroupFixture())
	ctx.AdvanceDecoderFrame() // group 0, frame 1
	ctx.AdvanceDecoderFrame() // group 1, frame 0

	if ctx.input != (cursor{group: 1, frame: 0}) {
		t.Fatalf("input cursor = %+v, want {1 0}", ctx.input)
	}
}

func TestInputEOSAfterLastFrame(t *testing.T) {
	t.Parallel()

	ctx := New(twoGroupFixture())
	for i := 0; i < 5; i++ {
		if ctx.InputEOS() {
			t.Fatalf("InputEOS() = true at step %d, want false", i)
		}
		ctx.AdvanceDecoderFrame()
	}
	if !ctx.InputEOS() {
		t.Error("InputEOS() = false after consuming all 5 frames, want true")
	}
}

func TestRenderCursorCannotPassInputCursor(t *testing.T) {
	t.Parallel()

	ctx := New(twoGroupFixture())
	// input and output both start at (0,0); advancing render before the
	// decoder produces a new frame must not move the cursor past input.
	ctx.AdvanceRenderFrame()

	if ctx.output != (cursor{0, 0}) {
		t.Errorf("output cursor = %+v, want unchanged {0 0}", ctx.output)
	}

	ctx.AdvanceDecoderFrame()
	ctx.AdvanceRenderFrame()
	if ctx.output != (cursor{0, 1}) {
		t.Errorf("output cursor = %+v, want {0 1} once input has advanced", ctx.output)
	}
}

func TestOutputCursorNeverExceedsInputCursorLexicographically(t *testing.T) {
	t.Parallel()

	ctx := New(twoGroupFixture())
	// Drive input all the way to EOS, advancing output in lockstep, and
	// check the invariant holds at every observable step.
	for !ctx.InputEOS() {
		ctx.AdvanceDecoderFrame()
		ctx.AdvanceRenderFrame()

		ctx.mu.Lock()
		ok := ctx.output.lessEqual(ctx.input)
		out, in := ctx.output, ctx.input
		ctx.mu.Unlock()

		if !ok {
			t.Fatalf("invariant violated: output=%+v input=%+v", out, in)
		}
	}
}

func TestResetRewindsBothCursors(t *testing.T) {
	t.Parallel()

	ctx := New(twoGroupFixture())
	ctx.AdvanceDecoderFrame()
	ctx.AdvanceDecoderFrame()
	ctx.AdvanceRenderFrame()

	ctx.Reset()

	if ctx.input != (cursor{}) || ctx.output != (cursor{}) {
		t.Errorf("after Reset: input=%+v output=%+v, want both {0 0}", ctx.input, ctx.output)
	}
}

func TestAdvanceDecoderFrameSkipsEmptyGroup(t *testing.T) {
	t.Parallel()

	groups := []vpcc.FrameGroup{
		{Frames: []vpcc.FrameData{{Index: 0}}},
		{Frames: nil}, // a group that produced zero tile groups
		{Frames: []vpcc.FrameData{{Index: 0}}},
	}
	ctx := New(groups)

	ctx.AdvanceDecoderFrame() // group 0 -> group 1, frame 0 (empty)
	if ctx.input != (cursor{group: 1, frame: 0}) {
		t.Fatalf("input = %+v, want {1 0}", ctx.input)
	}
	if _, ok := ctx.CurrentDecoderFrame(); ok {
		t.Fatal("CurrentDecoderFrame on empty group = ok, want false")
	}

	ctx.AdvanceDecoderFrame() // group 1 (empty, frame 0 already out of range) -> group 2, frame 0
	if ctx.input != (cursor{group: 2, frame: 0}) {
		t.Fatalf("input = %+v, want {2 0}", ctx.input)
	}
	if _, ok := ctx.CurrentDecoderFrame(); !ok {
		t.Fatal("CurrentDecoderFrame on group 2 = not ok, want a frame")
	}
}
