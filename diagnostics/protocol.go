// Package diagnostics serves a small HTTP/3 plus raw-QUIC telemetry endpoint
// for live playback state: a JSON REST snapshot for one-shot polling, and a
// quicvarint-framed push stream for a connected debug client that wants
// updates as they happen. Retargeted from the MoQ subscribe/object
// delivery protocol to a single playback-stats topic.
package diagnostics

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Message type IDs for the push-stream protocol.
const (
	MsgSubscribeStats uint64 = 0x01 // client -> server, no payload
	MsgStatsPush      uint64 = 0x02 // server -> client, JSON Snapshot payload
	MsgGoAway         uint64 = 0x10 // server -> client, no payload
)

// ReadMessage reads one frame from the push stream. Wire format:
// [message_type (varint)] [message_length (uint16 big-endian)] [payload].
func ReadMessage(r io.Reader) (uint64, []byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
		r = br.(io.Reader)
	}
	msgType, err := quicvarint.Read(br)
	if err != nil {
		return 0, nil, fmt.Errorf("diagnostics: read message type: %w", err)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("diagnostics: read message length: %w", err)
	}
	length := binary.BigEndian.Uint16(lenBuf[:])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("diagnostics: read message payload: %w", err)
		}
	}
	return msgType, payload, nil
}

// WriteMessage writes one frame to the push stream in a single Write call,
// so concurrent writers never interleave partial frames.
func WriteMessage(w io.Writer, msgType uint64, payload []byte) error {
	var buf []byte
	buf = quicvarint.Append(buf, msgType)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)

	_, err := w.Write(buf)
	return err
}
