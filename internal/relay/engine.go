// Package relay implements the translator between a message channel
// and its consumer: a receive loop that assembles windowed payloads
// and a persist (or forward) loop that consumes finalized windows.
// The two loops are joined by a capacity-1 snapshot channel, so the
// consumer side exerts back-pressure on the receive side instead of
// sharing a mutable buffer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tandem/internal/channel"
	"tandem/internal/logging"
	"tandem/internal/metrics"
	"tandem/internal/storage"
)

// Receiver is the inbound side the relay consumes; *channel.Endpoint
// satisfies it.
type Receiver interface {
	Receive(ctx context.Context) (channel.Message, error)
}

// EngineOptions configures a storage relay.
type EngineOptions struct {
	Endpoint Receiver
	Writer   *storage.BatchWriter
	// NbStep is the total number of windows the persist loop handles.
	NbStep int
	// StepSave is how many windows accumulate between flushes.
	StepSave int
	Logger   *logging.Logger
	Registry *metrics.Registry
	Stream   string
}

// Engine receives windowed payloads and persists them in batches of
// StepSave windows, with a final partial flush when the stream ends
// early or NbStep is not a multiple of StepSave.
type Engine struct {
	endpoint Receiver
	writer   *storage.BatchWriter
	nbStep   int
	stepSave int
	logger   *logging.Logger
	registry *metrics.Registry
	stream   string
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Endpoint == nil {
		return nil, fmt.Errorf("relay engine needs an endpoint")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("relay engine needs a batch writer")
	}
	if opts.NbStep < 1 {
		return nil, fmt.Errorf("nb_step must be at least 1, got %d", opts.NbStep)
	}
	if opts.StepSave < 1 {
		return nil, fmt.Errorf("step_save must be at least 1, got %d", opts.StepSave)
	}
	registry := opts.Registry
	if registry == nil {
		registry = metrics.Default
	}
	return &Engine{
		endpoint: opts.Endpoint,
		writer:   opts.Writer,
		nbStep:   opts.NbStep,
		stepSave: opts.StepSave,
		logger:   opts.Logger,
		registry: registry,
		stream:   opts.Stream,
	}, nil
}

// Run drives both loops until the stream ends, the window budget is
// spent, or an error stops the run. It returns the combined loop
// errors.
func (e *Engine) Run(ctx context.Context) error {
	return runLoops(ctx, e.endpoint, e.logger, e.stream, e.persist)
}

// runLoops wires a receive loop to a snapshot consumer. The receive
// loop owns the snapshot channel and closes it when the stream ends;
// a consumer failure cancels the receive loop.
func runLoops(ctx context.Context, endpoint Receiver, logger *logging.Logger, stream string, consume func(context.Context, <-chan []float64) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots := make(chan []float64, 1)
	receiveDone := make(chan error, 1)
	consumeDone := make(chan error, 1)

	go func() {
		receiveDone <- receiveWindows(runCtx, endpoint, logger, stream, snapshots)
	}()
	go func() {
		consumeDone <- consume(runCtx, snapshots)
	}()

	consumeErr := <-consumeDone
	if consumeErr != nil {
		cancel()
	} else {
		// The consumer is done but the sender may still be streaming;
		// drain so the receive loop can reach the end of stream.
		go func() {
			for range snapshots {
			}
		}()
	}

	receiveErr := <-receiveDone
	if consumeErr != nil && errors.Is(receiveErr, context.Canceled) && ctx.Err() == nil {
		receiveErr = nil
	}
	return errors.Join(consumeErr, receiveErr)
}

// receiveWindows assembles windows from the endpoint and hands each
// finalized window over the snapshot channel. The blocking send is the
// back-pressure point: a window is never overwritten while the
// consumer still owns the previous one.
func receiveWindows(ctx context.Context, endpoint Receiver, logger *logging.Logger, stream string, snapshots chan<- []float64) error {
	defer close(snapshots)

	window := WindowBuffer{}
	steps := 0
	for {
		msg, err := endpoint.Receive(ctx)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) {
				logger.Info("stream ended", map[string]string{
					"stream": stream,
					"steps":  strconv.Itoa(steps),
				})
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("receive: %w", err)
		}
		switch msg.Tag {
		case channel.TagData:
			window.Append(msg.Payload)
			snapshot := window.FinalizeReset()
			select {
			case snapshots <- snapshot:
			case <-ctx.Done():
				return ctx.Err()
			}
		case channel.TagEndOfWindow:
			steps++
			logger.Debug("window boundary", map[string]string{
				"stream": stream,
				"step":   strconv.Itoa(steps),
			})
		}
	}
}

// persist consumes snapshots until the window budget is spent or the
// channel closes, flushing every stepSave windows and once more for a
// seeded partial batch. The window count is 1-based and cumulative, so
// artifact names line up with window boundaries.
func (e *Engine) persist(ctx context.Context, snapshots <-chan []float64) error {
	var batch []float64
	count := 0
	for count < e.nbStep {
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
		if batch == nil {
			batch = []float64{}
		}
		batch = append(batch, snapshot...)
		if count%e.stepSave == 0 {
			if err := e.flush(count, batch); err != nil {
				return err
			}
			batch = nil
		}
	}
	if batch != nil {
		if err := e.flush(count, batch); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) flush(count int, batch []float64) error {
	start := time.Now()
	path, err := e.writer.WriteBatch(count, batch)
	e.registry.RecordFlush(e.stream, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("flush batch at window %d: %w", count, err)
	}
	e.logger.Info("batch flushed", map[string]string{
		"stream":  e.stream,
		"windows": strconv.Itoa(count),
		"samples": strconv.Itoa(len(batch)),
		"path":    path,
	})
	return nil
}
