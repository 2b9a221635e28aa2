package remoteproto

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildThenParsePTYFrame(t *testing.T) {
	for _, streamID := range []uint32{0, 1, 255, 65535, math.MaxUint32} {
		frame := BuildPTYFrame(streamID, []byte("hello"))
		gotID, gotPayload, err := ParsePTYFrame(frame)
		require.NoError(t, err)
		assert.Equal(t, streamID, gotID)
		assert.Equal(t, []byte("hello"), gotPayload)
	}
}

func TestParsePTYFrame_TooShort(t *testing.T) {
	_, _, err := ParsePTYFrame([]byte{0x01, 0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrFrameTooShort)
}

func TestParsePTYFrame_WrongProtoVersion(t *testing.T) {
	frame := BuildPTYFrame(1, []byte("hi"))
	frame[0] = 0x02
	_, _, err := ParsePTYFrame(frame)
	assert.ErrorIs(t, err, ErrFrameBadHeader)
}

func TestParsePTYFrame_WrongFrameType(t *testing.T) {
	frame := BuildPTYFrame(1, []byte("hi"))
	frame[1] = 0x02
	_, _, err := ParsePTYFrame(frame)
	assert.ErrorIs(t, err, ErrFrameBadHeader)
}

func TestPTYFrame_LiteralLayout(t *testing.T) {
	frame := BuildPTYFrame(42, []byte("hi"))
	assert.Equal(t, []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x2A, 0x68, 0x69}, frame)

	streamID, payload, err := ParsePTYFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), streamID)
	assert.Equal(t, []byte("hi"), payload)
}

func TestBuildPTYFrame_HelloLiteral(t *testing.T) {
	frame := BuildPTYFrame(1, []byte("hello"))
	assert.Equal(t, []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x01, 0x68, 0x65, 0x6c, 0x6c, 0x6f}, frame)
}
