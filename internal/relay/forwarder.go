package relay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tandem/internal/logging"
	"tandem/internal/metrics"
)

// Transform maps one finalized window to the payload sent downstream.
type Transform func(window []float64) []float64

// MeanRate is the default transform: a single-element payload holding
// the window mean. An empty window maps to a zero rate.
func MeanRate(window []float64) []float64 {
	if len(window) == 0 {
		return []float64{0}
	}
	sum := 0.0
	for _, value := range window {
		sum += value
	}
	return []float64{sum / float64(len(window))}
}

// Sender is the downstream side of a forwarding relay; *channel.Conn
// satisfies it.
type Sender interface {
	SendData([]float64) error
	SendEndOfWindow() error
	SendEndOfStream() error
}

// ForwarderOptions configures a forwarding relay.
type ForwarderOptions struct {
	Endpoint   Receiver
	Downstream Sender
	// Transform defaults to MeanRate.
	Transform Transform
	NbStep    int
	Logger    *logging.Logger
	Registry  *metrics.Registry
	Stream    string
}

// Forwarder couples two simulators: each window received from one side
// is transformed and sent downstream before the next one is handled.
// End of stream propagates downstream whichever side stops first.
type Forwarder struct {
	endpoint   Receiver
	downstream Sender
	transform  Transform
	nbStep     int
	logger     *logging.Logger
	registry   *metrics.Registry
	stream     string
}

func NewForwarder(opts ForwarderOptions) (*Forwarder, error) {
	if opts.Endpoint == nil {
		return nil, fmt.Errorf("forwarder needs an endpoint")
	}
	if opts.Downstream == nil {
		return nil, fmt.Errorf("forwarder needs a downstream connection")
	}
	if opts.NbStep < 1 {
		return nil, fmt.Errorf("nb_step must be at least 1, got %d", opts.NbStep)
	}
	transform := opts.Transform
	if transform == nil {
		transform = MeanRate
	}
	registry := opts.Registry
	if registry == nil {
		registry = metrics.Default
	}
	return &Forwarder{
		endpoint:   opts.Endpoint,
		downstream: opts.Downstream,
		transform:  transform,
		nbStep:     opts.NbStep,
		logger:     opts.Logger,
		registry:   registry,
		stream:     opts.Stream,
	}, nil
}

func (f *Forwarder) Run(ctx context.Context) error {
	return runLoops(ctx, f.endpoint, f.logger, f.stream, f.forward)
}

func (f *Forwarder) forward(ctx context.Context, snapshots <-chan []float64) error {
	count := 0
	for count < f.nbStep {
		var snapshot []float64
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok = <-snapshots:
		}
		if !ok {
			break
		}
		count++
		payload := f.transform(snapshot)

		start := time.Now()
		err := f.downstream.SendData(payload)
		if err == nil {
			err = f.downstream.SendEndOfWindow()
		}
		f.registry.RecordFlush(f.stream, time.Since(start), err)
		if err != nil {
			return fmt.Errorf("forward window %d: %w", count, err)
		}
		f.logger.Debug("window forwarded", map[string]string{
			"stream":  f.stream,
			"window":  strconv.Itoa(count),
			"samples": strconv.Itoa(len(payload)),
		})
	}

	if err := f.downstream.SendEndOfStream(); err != nil {
		return fmt.Errorf("propagate end of stream: %w", err)
	}
	f.logger.Info("forwarding done", map[string]string{
		"stream":  f.stream,
		"windows": strconv.Itoa(count),
	})
	return nil
}
