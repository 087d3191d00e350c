package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"tandem/internal/channel"
	"tandem/internal/cli"
	"tandem/internal/config"
	"tandem/internal/handshake"
	"tandem/internal/logging"
	"tandem/internal/metrics"
	"tandem/internal/storage"
)

// collect runs the consumer stand-in: it publishes one inbound endpoint
// per device, accepts each forwarded stream, and records what arrives.
func collect(ctx context.Context, cfg sinkConfig, errOut io.Writer) error {
	run, tree, err := cli.LoadRun(cfg.Results)
	if err != nil {
		return err
	}
	if run.Mode() != config.ModeCoSimulation {
		return fmt.Errorf("sink requires a co-simulation run, mode is %s", run.Mode())
	}

	logger := logging.NewLoggerWithOutput(logging.FromVerbosity(run.LevelLog), errOut).
		With(map[string]string{"component": "sink"})
	registry := metrics.Default

	// Every endpoint is published before any stream is accepted, so a
	// relay never blocks on this process serving another device first.
	listeners := make([]*channel.Listener, 0, len(cfg.Devices))
	defer func() {
		for _, listener := range listeners {
			listener.Close()
		}
	}()
	for _, id := range cfg.Devices {
		listener, err := channel.Listen(channel.Options{
			Logger:   logger,
			Registry: registry,
			Stream:   fmt.Sprintf("sink_%d", id),
		})
		if err != nil {
			return err
		}
		listeners = append(listeners, listener)
		if err := handshake.Publish(tree.SinkEndpointPath(id), listener.Address()); err != nil {
			return fmt.Errorf("publish endpoint for device %d: %w", id, err)
		}
	}
	logger.Info("endpoints published", map[string]string{
		"devices": strconv.Itoa(len(cfg.Devices)),
	})

	var wg sync.WaitGroup
	errs := make([]error, len(cfg.Devices))
	for i, id := range cfg.Devices {
		wg.Add(1)
		go func(i, id int, listener *channel.Listener) {
			defer wg.Done()
			errs[i] = record(ctx, run, tree, id, listener, logger)
		}(i, id, listeners[i])
	}
	wg.Wait()
	removeEndpoints(tree, cfg.Devices, logger)
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if err := registry.WriteFile(tree.MetricsPath("sink")); err != nil {
		logger.Warn("metrics dump failed", map[string]string{"error": err.Error()})
	}
	return nil
}

// removeEndpoints clears the published addresses, and any marker a
// relay never consumed, so a later run starts from a clean slate.
func removeEndpoints(tree config.Tree, devices []int, logger *logging.Logger) {
	for _, id := range devices {
		path := tree.SinkEndpointPath(id)
		for _, stale := range []string{path + handshake.MarkerSuffix, path} {
			if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
				logger.Warn("endpoint cleanup failed", map[string]string{
					"path":  stale,
					"error": err.Error(),
				})
			}
		}
	}
}

// record drains one device's forwarded stream and writes it as a single
// artifact.
func record(ctx context.Context, run config.Run, tree config.Tree, id int, listener *channel.Listener, logger *logging.Logger) error {
	endpoint, err := listener.Accept(ctx, run.ConsumerRanks)
	if err != nil {
		return fmt.Errorf("accept stream for device %d: %w", id, err)
	}
	defer endpoint.Close()

	values := []float64{}
	windows := 0
	for {
		msg, err := endpoint.Receive(ctx)
		if errors.Is(err, channel.ErrClosed) {
			break
		}
		if err != nil {
			return fmt.Errorf("receive for device %d: %w", id, err)
		}
		switch msg.Tag {
		case channel.TagData:
			values = append(values, msg.Payload...)
		case channel.TagEndOfWindow:
			windows++
		}
	}

	if err := storage.WriteArray(tree.SinkStreamPath(id), values); err != nil {
		return err
	}
	logger.Info("stream recorded", map[string]string{
		"device":  strconv.Itoa(id),
		"windows": strconv.Itoa(windows),
		"samples": strconv.Itoa(len(values)),
	})
	return nil
}
