package diagnostics

import (
	"bytes"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"state":"playing"}`)

	var buf bytes.Buffer
	if err := WriteMessage(&buf, MsgStatsPush, payload); err != nil {
		t.Fatal(err)
	}

	msgType, got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != MsgStatsPush {
		t.Fatalf("message type = %#x, want %#x", msgType, MsgStatsPush)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestMessageEmptyPayload(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := WriteMessage(&buf, MsgSubscribeStats, nil); err != nil {
		t.Fatal(err)
	}

	msgType, got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != MsgSubscribeStats {
		t.Fatalf("message type = %#x, want %#x", msgType, MsgSubscribeStats)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got))
	}
}

func TestMessageTruncatedType(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if _, _, err := ReadMessage(&buf); err == nil {
		t.Fatal("expected error on empty input")
	}
}

func TestMessageTruncatedLength(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgStatsPush)) // varint-encoded single byte, then nothing
	if _, _, err := ReadMessage(&buf); err == nil {
		t.Fatal("expected error on truncated length field")
	}
}
