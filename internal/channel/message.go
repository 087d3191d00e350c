// Package channel implements the tagged message transport between a
// data producer and the relay that consumes it. Senders dial the
// address a Listener published, then stream tagged messages: payload
// chunks inside a window, window boundaries, and a final end-of-stream.
// The receiving endpoint fans in any number of sender ranks while
// preserving each rank's send order.
package channel

import (
	"errors"
	"fmt"
)

// Tag labels a message on the wire. The set is closed: decoding any
// other value is a protocol error.
type Tag int32

const (
	// TagData carries a float64 payload chunk for the current window.
	TagData Tag = 0
	// TagEndOfWindow marks a synchronization window boundary.
	TagEndOfWindow Tag = 1
	// TagEndOfStream announces that a sender rank is done.
	TagEndOfStream Tag = 2
)

func (t Tag) String() string {
	switch t {
	case TagData:
		return "data"
	case TagEndOfWindow:
		return "end_of_window"
	case TagEndOfStream:
		return "end_of_stream"
	default:
		return fmt.Sprintf("tag(%d)", int32(t))
	}
}

func (t Tag) valid() bool {
	switch t {
	case TagData, TagEndOfWindow, TagEndOfStream:
		return true
	default:
		return false
	}
}

// Message is one received unit. Payload is non-nil only for TagData.
// Rank identifies the sender connection in accept order.
type Message struct {
	Tag     Tag
	Payload []float64
	Rank    int
}

// ErrClosed reports normal end of stream: every sender rank signalled
// end or disconnected.
var ErrClosed = errors.New("stream closed")

// ErrUnknownTag reports a tag outside the closed set.
var ErrUnknownTag = errors.New("unknown message tag")
