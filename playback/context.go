// Package playback tracks the two cursors — decoder-feed and render — that
// walk a parsed sequence of FrameGroups, per spec.md §4.4.
package playback

import (
	"log/slog"
	"sync"

	"github.com/zsiec/vpccplay/vpcc"
)

// cursor addresses one frame within Context's FrameGroup sequence as a
// (group, frame) pair, ordered lexicographically.
type cursor struct {
	group int
	frame int
}

func (c cursor) lessEqual(o cursor) bool {
	if c.group != o.group {
		return c.group < o.group
	}
	return c.frame <= o.frame
}

// Context owns the parsed FrameGroups and the input/output cursor pair.
// The coordinator goroutine is the only writer of the input cursor; the
// renderer goroutine is the only writer of the output cursor. Both read
// and write through Context's mutex, mirroring distribution.Relay's
// single-mutex-per-shared-struct discipline.
type Context struct {
	log *slog.Logger

	groups []vpcc.FrameGroup

	mu     sync.Mutex
	input  cursor
	output cursor
}

// New wraps a parsed FrameGroup sequence for playback. groups is never
// mutated or re-sliced after construction.
func New(groups []vpcc.FrameGroup) *Context {
	return &Context{
		log:    slog.Default().With("component", "playback.Context"),
		groups: groups,
	}
}

func (c *Context) frameAt(cur cursor) (*vpcc.FrameData, bool) {
	if cur.group < 0 || cur.group >= len(c.groups) {
		return nil, false
	}
	frames := c.groups[cur.group].Frames
	if cur.frame < 0 || cur.frame >= len(frames) {
		return nil, false
	}
	return &frames[cur.frame], true
}

// next rolls cur.frame over to the following group once the current
// group's frames are exhausted, per spec.md §4.4 ("rolls over the
// frame-group index at group boundaries").
func (c *Context) next(cur cursor) cursor {
	if cur.group < 0 {
		return cursor{}
	}
	if cur.group >= len(c.groups) {
		return cur
	}
	if cur.frame+1 < len(c.groups[cur.group].Frames) {
		return cursor{group: cur.group, frame: cur.frame + 1}
	}
	return cursor{group: cur.group + 1, frame: 0}
}

// CurrentDecoderFrame returns the frame the input cursor addresses, or
// false once input is exhausted.
func (c *Context) CurrentDecoderFrame() (*vpcc.FrameData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameAt(c.input)
}

// AdvanceDecoderFrame moves the input cursor to the next frame.
func (c *Context) AdvanceDecoderFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = c.next(c.input)
}

// InputIsLastFrame reports whether the input cursor currently addresses
// the final frame of the entire sequence, used to set the eos flag on the
// last queue_input call before a loop restart.
func (c *Context) InputIsLastFrame() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frameAt(c.input); !ok {
		return false
	}
	_, ok := c.frameAt(c.next(c.input))
	return !ok
}

// InputEOS reports whether the input cursor has passed the last frame of
// the last group.
func (c *Context) InputEOS() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.frameAt(c.input)
	return !ok
}

// CurrentRenderFrame returns the frame the output cursor addresses, or
// false once output is exhausted.
func (c *Context) CurrentRenderFrame() (*vpcc.FrameData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameAt(c.output)
}

// AdvanceRenderFrame moves the output cursor to the next frame. Callers
// (PresentationGate) only call this once a matching decoded frame exists
// for every stream, which structurally keeps output_cursor from passing
// input_cursor.
func (c *Context) AdvanceRenderFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.next(c.output)
	if !next.lessEqual(c.input) {
		c.log.Warn("render cursor would pass input cursor, holding",
			"output", c.output, "attempted", next, "input", c.input)
		return
	}
	c.output = next
}

// OutputEOS reports whether the output cursor has passed the last frame
// of the last group.
func (c *Context) OutputEOS() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.frameAt(c.output)
	return !ok
}

// Reset atomically rewinds both cursors to (0,0), used for looping once
// both input and output reach end of stream.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = cursor{}
	c.output = cursor{}
}

// FrameGroups returns the underlying FrameGroup slice for read-only use
// (e.g. diagnostics reporting total frame/group counts).
func (c *Context) FrameGroups() []vpcc.FrameGroup {
	return c.groups
}
