package channel

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"tandem/internal/logging"
	"tandem/internal/metrics"
)

const (
	readBufferSize  = 1024
	writeBufferSize = 1024
	streamPath      = "/stream"
	pendingConns    = 16
)

// Options configures a Listener. The zero value is usable: no logging,
// the default metrics registry, an unnamed stream.
type Options struct {
	Logger   *logging.Logger
	Registry *metrics.Registry
	// Stream labels this endpoint's metrics.
	Stream string
}

// Listener owns the accepting side of a channel. It binds a dynamic
// loopback port; the resulting address is opaque to peers and travels
// through the readiness handshake.
type Listener struct {
	listener  net.Listener
	server    *http.Server
	pending   chan *websocket.Conn
	logger    *logging.Logger
	registry  *metrics.Registry
	stream    string
	closeOnce sync.Once
	closeErr  error
}

func Listen(opts Options) (*Listener, error) {
	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	registry := opts.Registry
	if registry == nil {
		registry = metrics.Default
	}

	l := &Listener{
		listener: tcp,
		pending:  make(chan *websocket.Conn, pendingConns),
		logger:   opts.Logger,
		registry: registry,
		stream:   opts.Stream,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(streamPath, l.handleStream)
	l.server = &http.Server{Handler: mux}
	go l.server.Serve(tcp)

	return l, nil
}

// Address returns the URL senders dial. Callers treat it as opaque.
func (l *Listener) Address() string {
	return "ws://" + l.listener.Addr().String() + streamPath
}

// Accept blocks until ranks sender connections are established and
// returns the endpoint that fans them in.
func (l *Listener) Accept(ctx context.Context, ranks int) (*Endpoint, error) {
	if ranks < 1 {
		return nil, fmt.Errorf("accept needs at least 1 rank, got %d", ranks)
	}
	conns := make([]*websocket.Conn, 0, ranks)
	for len(conns) < ranks {
		select {
		case <-ctx.Done():
			for _, ws := range conns {
				ws.Close()
			}
			return nil, ctx.Err()
		case ws := <-l.pending:
			conns = append(conns, ws)
			l.logger.Debug("sender connected", map[string]string{
				"stream": l.stream,
				"remote": ws.RemoteAddr().String(),
			})
		}
	}
	return newEndpoint(conns, l.logger, l.registry, l.stream), nil
}

func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.server.Close()
	})
	return l.closeErr
}

func (l *Listener) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("websocket upgrade failed", map[string]string{
			"stream": l.stream,
			"error":  err.Error(),
		})
		return
	}
	select {
	case l.pending <- ws:
	default:
		// Every expected rank is already connected.
		ws.Close()
	}
}
