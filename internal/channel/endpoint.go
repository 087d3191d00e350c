package channel

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tandem/internal/logging"
	"tandem/internal/metrics"
)

// Endpoint fans in the messages of all sender ranks on one channel.
// One reader goroutine per connection preserves per-rank send order;
// across ranks only tag semantics hold. Receive is meant for a single
// consumer goroutine.
type Endpoint struct {
	conns     []*websocket.Conn
	inbox     chan inboxItem
	remaining int
	logger    *logging.Logger
	registry  *metrics.Registry
	stream    string
	closeOnce sync.Once
	closeErr  error
}

type inboxItem struct {
	msg Message
	err error
}

func newEndpoint(conns []*websocket.Conn, logger *logging.Logger, registry *metrics.Registry, stream string) *Endpoint {
	e := &Endpoint{
		conns:     conns,
		inbox:     make(chan inboxItem, len(conns)),
		remaining: len(conns),
		logger:    logger,
		registry:  registry,
		stream:    stream,
	}
	for rank, ws := range conns {
		go e.readLoop(rank, ws)
	}
	return e
}

// Receive returns the next message. Rank ends are absorbed here: once
// every rank has sent end-of-stream or disconnected, Receive returns
// ErrClosed. Any other error is a protocol violation and terminal.
func (e *Endpoint) Receive(ctx context.Context) (Message, error) {
	for {
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case item := <-e.inbox:
			if item.err != nil {
				return Message{}, item.err
			}
			switch item.msg.Tag {
			case TagEndOfStream:
				e.remaining--
				e.logger.Debug("sender rank ended", map[string]string{
					"stream":    e.stream,
					"rank":      strconv.Itoa(item.msg.Rank),
					"remaining": strconv.Itoa(e.remaining),
				})
				if e.remaining == 0 {
					return Message{}, ErrClosed
				}
			case TagEndOfWindow:
				e.registry.RecordWindow(e.stream)
				return item.msg, nil
			case TagData:
				e.registry.RecordMessage(e.stream, len(item.msg.Payload))
				return item.msg, nil
			}
		}
	}
}

func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		for _, ws := range e.conns {
			if err := ws.Close(); err != nil && e.closeErr == nil {
				e.closeErr = err
			}
		}
	})
	return e.closeErr
}

func (e *Endpoint) readLoop(rank int, ws *websocket.Conn) {
	defer ws.Close()
	for {
		probe, err := readFrame(ws)
		if err != nil {
			e.fault(rank, "read probe", err)
			return
		}
		if len(probe) != 1 || probe[0] != probeByte {
			e.inbox <- inboxItem{err: fmt.Errorf("rank %d: unexpected probe frame %v", rank, probe)}
			return
		}

		tagData, err := readFrame(ws)
		if err != nil {
			e.fault(rank, "read tag", err)
			return
		}
		tag, err := decodeTag(tagData)
		if err != nil {
			e.inbox <- inboxItem{err: fmt.Errorf("rank %d: %w", rank, err)}
			return
		}

		switch tag {
		case TagData:
			if err := writeAck(ws); err != nil {
				e.fault(rank, "write ack", err)
				return
			}
			payloadData, err := readFrame(ws)
			if err != nil {
				e.fault(rank, "read payload", err)
				return
			}
			payload, err := decodePayload(payloadData)
			if err != nil {
				e.inbox <- inboxItem{err: fmt.Errorf("rank %d: %w", rank, err)}
				return
			}
			e.inbox <- inboxItem{msg: Message{Tag: TagData, Payload: payload, Rank: rank}}
		case TagEndOfWindow:
			e.inbox <- inboxItem{msg: Message{Tag: TagEndOfWindow, Rank: rank}}
		case TagEndOfStream:
			// This rank is done; stop reading it.
			e.inbox <- inboxItem{msg: Message{Tag: TagEndOfStream, Rank: rank}}
			return
		}
	}
}

// fault logs a transport failure and converts it into the rank's end of
// stream, so a vanished sender ends the stream instead of wedging it.
func (e *Endpoint) fault(rank int, op string, err error) {
	e.logger.Warn("transport fault treated as end of stream", map[string]string{
		"stream": e.stream,
		"rank":   strconv.Itoa(rank),
		"op":     op,
		"error":  err.Error(),
	})
	e.inbox <- inboxItem{msg: Message{Tag: TagEndOfStream, Rank: rank}}
}

// readFrame returns the next frame body. Errors are transport faults;
// frame content is validated by the decoders.
func readFrame(ws *websocket.Conn) ([]byte, error) {
	_, data, err := ws.ReadMessage()
	return data, err
}

func writeAck(ws *websocket.Conn) error {
	if err := ws.SetWriteDeadline(time.Now().Add(connWriteTimeout)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.BinaryMessage, ackFrame)
}
