package decoder

import "testing"

func TestQueueInputRespectsInputBound(t *testing.T) {
	t.Parallel()

	d := NewFakeHwVideoDecoder(QueueBounds{Input: 2, Output: 2}, false)
	if !d.QueueInput([]byte{1}, 0, false) {
		t.Fatal("first QueueInput = false, want true")
	}
	if !d.QueueInput([]byte{2}, 100, false) {
		t.Fatal("second QueueInput = false, want true")
	}
	if d.QueueInput([]byte{3}, 200, false) {
		t.Fatal("third QueueInput = true, want false (input queue full)")
	}
	if !d.InputQueueFull() {
		t.Error("InputQueueFull() = false, want true")
	}
}

func TestDequeueOutputMovesInputToOutputRespectingBound(t *testing.T) {
	t.Parallel()

	d := NewFakeHwVideoDecoder(QueueBounds{Input: 5, Output: 1}, false)
	d.QueueInput([]byte{1}, 0, false)
	d.QueueInput([]byte{2}, 100, false)

	d.DequeueOutput()
	if got := d.OutputQueueLen(); got != 1 {
		t.Fatalf("OutputQueueLen() = %d, want 1", got)
	}
	if !d.OutputQueueFull() {
		t.Error("OutputQueueFull() = false, want true (bound is 1)")
	}

	// Output is full: a second dequeue must not drop the still-queued input.
	d.DequeueOutput()
	if got := d.OutputQueueLen(); got != 1 {
		t.Fatalf("OutputQueueLen() after blocked dequeue = %d, want 1", got)
	}

	f, ok := d.RetainCachedFrame()
	if !ok || f.PTS != 0 {
		t.Fatalf("RetainCachedFrame = %+v, %v, want PTS 0", f, ok)
	}

	d.DequeueOutput()
	if got := d.OutputQueueLen(); got != 1 {
		t.Fatalf("OutputQueueLen() after freeing a slot = %d, want 1", got)
	}
}

func TestRetainReleaseTracksOutstandingCount(t *testing.T) {
	t.Parallel()

	d := NewFakeHwVideoDecoder(QueueBounds{Input: 2, Output: 2}, true)
	d.QueueInput([]byte{9, 9}, 42, false)
	d.DequeueOutput()

	f, ok := d.RetainCachedFrame()
	if !ok {
		t.Fatal("RetainCachedFrame = false, want true")
	}
	if string(f.CPUData) != "\x09\x09" {
		t.Errorf("CPUData = %v, want manual-upload data", f.CPUData)
	}
	if d.OutstandingRetains() != 1 {
		t.Fatalf("OutstandingRetains() = %d, want 1", d.OutstandingRetains())
	}

	d.ReleaseCachedFrame(f)
	if d.OutstandingRetains() != 0 {
		t.Errorf("OutstandingRetains() after release = %d, want 0", d.OutstandingRetains())
	}
}

func TestFlushClearsBothQueues(t *testing.T) {
	t.Parallel()

	d := NewFakeHwVideoDecoder(QueueBounds{Input: 1, Output: 3}, false)
	d.QueueInput([]byte{1}, 0, false)
	d.DequeueOutput()
	d.QueueInput([]byte{2}, 1, false)

	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if d.OutputQueueLen() != 0 {
		t.Errorf("OutputQueueLen() after Flush = %d, want 0", d.OutputQueueLen())
	}
	if d.InputQueueFull() {
		t.Error("InputQueueFull() after Flush = true, want false")
	}
}
