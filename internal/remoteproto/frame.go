// Package remoteproto holds the wire-level types shared by the server and
// client sides of the remote protocol: the WebSocket JSON envelopes, the
// binary PTY frame codec, the special-key byte table, and the state
// snapshot/layout tree shapes. This is the single canonical definition —
// nothing else in this module re-declares these types.
package remoteproto

import (
	"encoding/binary"
	"errors"
)

const (
	// ProtoVersion is the only accepted value of a PtyFrame's first byte.
	ProtoVersion byte = 0x01
	// FrameTypePTYOutput is the only accepted value of a PtyFrame's second byte.
	FrameTypePTYOutput byte = 0x01

	frameHeaderSize = 6
)

// ErrFrameTooShort and ErrFrameBadHeader are the two ways a binary frame can
// fail to parse. Both are non-fatal to the connection: the caller discards
// the frame and keeps reading.
var (
	ErrFrameTooShort  = errors.New("remoteproto: frame shorter than header")
	ErrFrameBadHeader = errors.New("remoteproto: unexpected proto_version or frame_type")
)

// BuildPTYFrame encodes a stream id and payload into the wire layout:
// proto_version(1) frame_type(1) stream_id(4, big-endian) payload(N).
func BuildPTYFrame(streamID uint32, payload []byte) []byte {
	buf := make([]byte, frameHeaderSize+len(payload))
	buf[0] = ProtoVersion
	buf[1] = FrameTypePTYOutput
	binary.BigEndian.PutUint32(buf[2:6], streamID)
	copy(buf[6:], payload)
	return buf
}

// ParsePTYFrame decodes a binary WebSocket message back into a stream id and
// payload. A frame shorter than the header, or carrying any other
// proto_version/frame_type, is rejected — callers must discard it silently
// rather than close the connection.
func ParsePTYFrame(data []byte) (streamID uint32, payload []byte, err error) {
	if len(data) < frameHeaderSize {
		return 0, nil, ErrFrameTooShort
	}
	if data[0] != ProtoVersion || data[1] != FrameTypePTYOutput {
		return 0, nil, ErrFrameBadHeader
	}
	streamID = binary.BigEndian.Uint32(data[2:6])
	payload = data[frameHeaderSize:]
	return streamID, payload, nil
}
