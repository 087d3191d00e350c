package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const connWriteTimeout = 10 * time.Second

// Conn is the sender side of a channel. Methods are safe for one
// goroutine at a time per message; the internal lock keeps the frame
// sequence of concurrent calls from interleaving.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// Dial connects to a published channel address.
func Dial(ctx context.Context, address string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &Conn{ws: ws, writeTimeout: connWriteTimeout}, nil
}

// SendData transmits one payload chunk for the current window. The
// payload frame goes out only after the receiver acks the tag, so a
// slow receiver exerts back-pressure here; the ack wait has no
// deadline.
func (c *Conn) SendData(values []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeFrame(probeFrame); err != nil {
		return fmt.Errorf("send data probe: %w", err)
	}
	if err := c.writeFrame(encodeTag(TagData)); err != nil {
		return fmt.Errorf("send data tag: %w", err)
	}
	if err := c.readAck(); err != nil {
		return fmt.Errorf("await data ack: %w", err)
	}
	if err := c.writeFrame(encodePayload(values)); err != nil {
		return fmt.Errorf("send data payload: %w", err)
	}
	return nil
}

// SendEndOfWindow marks a window boundary.
func (c *Conn) SendEndOfWindow() error {
	return c.sendMarker(TagEndOfWindow)
}

// SendEndOfStream announces that this sender is done. The connection
// stays open until Close so the frame can drain.
func (c *Conn) SendEndOfStream() error {
	return c.sendMarker(TagEndOfStream)
}

func (c *Conn) sendMarker(tag Tag) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeFrame(probeFrame); err != nil {
		return fmt.Errorf("send %s probe: %w", tag, err)
	}
	if err := c.writeFrame(encodeTag(tag)); err != nil {
		return fmt.Errorf("send %s tag: %w", tag, err)
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(c.writeTimeout)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

func (c *Conn) writeFrame(frame []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Conn) readAck() error {
	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		return err
	}
	if len(frame) != 1 || frame[0] != ackByte {
		return fmt.Errorf("unexpected ack frame %v", frame)
	}
	return nil
}
