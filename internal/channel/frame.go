package channel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Each message is a short frame sequence, every frame one websocket
// binary message, all integers little-endian: a 1-byte probe announcing
// intent, a 4-byte tag, and for data only a 1-byte receiver ack
// followed by the payload (4-byte element count, then count float64
// values). The explicit count lets the receiver allocate once.

const (
	probeByte = 0x01
	ackByte   = 0x01

	tagFrameSize = 4
)

var probeFrame = []byte{probeByte}
var ackFrame = []byte{ackByte}

func encodeTag(tag Tag) []byte {
	frame := make([]byte, tagFrameSize)
	binary.LittleEndian.PutUint32(frame, uint32(tag))
	return frame
}

func decodeTag(frame []byte) (Tag, error) {
	if len(frame) != tagFrameSize {
		return 0, fmt.Errorf("tag frame is %d bytes, want %d", len(frame), tagFrameSize)
	}
	tag := Tag(int32(binary.LittleEndian.Uint32(frame)))
	if !tag.valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTag, int32(tag))
	}
	return tag, nil
}

func encodePayload(values []float64) []byte {
	frame := make([]byte, 4+8*len(values))
	binary.LittleEndian.PutUint32(frame, uint32(len(values)))
	for i, value := range values {
		binary.LittleEndian.PutUint64(frame[4+8*i:], math.Float64bits(value))
	}
	return frame
}

func decodePayload(frame []byte) ([]float64, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("payload frame is %d bytes, want at least 4", len(frame))
	}
	count := binary.LittleEndian.Uint32(frame)
	if len(frame) != 4+8*int(count) {
		return nil, fmt.Errorf("payload frame is %d bytes, want %d for %d values", len(frame), 4+8*int(count), count)
	}
	values := make([]float64, count)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(frame[4+8*i:]))
	}
	return values, nil
}
