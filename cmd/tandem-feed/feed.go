package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"tandem/internal/channel"
	"tandem/internal/cli"
	"tandem/internal/config"
	"tandem/internal/handshake"
	"tandem/internal/logging"
)

// feed advertises the synthetic device ids, then streams one window of
// samples per synchronization step to the relay serving each device.
func feed(ctx context.Context, cfg feedConfig, errOut io.Writer) error {
	run, tree, err := cli.LoadRun(cfg.Results)
	if err != nil {
		return err
	}
	logger := logging.NewLoggerWithOutput(logging.FromVerbosity(run.LevelLog), errOut).
		With(map[string]string{"component": "feed"})

	if run.Mode() == config.ModePlain {
		logger.Info("plain run, no streaming", map[string]string{
			"windows": strconv.Itoa(run.NbStep()),
		})
		return nil
	}

	ids := make([]int, cfg.DeviceCount)
	for i := range ids {
		ids[i] = i
	}
	if err := handshake.Publish(tree.DeviceListPath(), handshake.FormatIDList(ids)); err != nil {
		return fmt.Errorf("publish device ids: %w", err)
	}
	logger.Info("device ids published", map[string]string{
		"count": strconv.Itoa(len(ids)),
	})

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			errs[i] = streamDevice(ctx, run, tree, id, cfg.Samples, logger)
		}(i, id)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// streamDevice waits for the relay serving one device to publish its
// endpoint, dials every producer rank, and streams the run's windows.
// The first connection carries the data; the others only participate in
// the end-of-stream barrier.
func streamDevice(ctx context.Context, run config.Run, tree config.Tree, id, samples int, logger *logging.Logger) error {
	address, err := handshake.AwaitAndConsume(ctx, tree.EndpointPath(id))
	if err != nil {
		return fmt.Errorf("await endpoint for device %d: %w", id, err)
	}

	// The relay's Accept returns only once every rank is connected, so
	// all connections are dialed before the first window is sent.
	conns := make([]*channel.Conn, 0, run.Ranks)
	closeAll := func() {
		for _, conn := range conns {
			conn.Close()
		}
	}
	for rank := 0; rank < run.Ranks; rank++ {
		conn, err := channel.Dial(ctx, address)
		if err != nil {
			closeAll()
			return fmt.Errorf("dial relay for device %d rank %d: %w", id, rank, err)
		}
		conns = append(conns, conn)
	}
	defer closeAll()

	windows := run.NbStep()
	for window := 1; window <= windows; window++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conns[0].SendData(windowSamples(id, window, samples)); err != nil {
			return fmt.Errorf("device %d send window %d: %w", id, window, err)
		}
		if err := conns[0].SendEndOfWindow(); err != nil {
			return fmt.Errorf("device %d end window %d: %w", id, window, err)
		}
	}
	for rank, conn := range conns {
		if err := conn.SendEndOfStream(); err != nil {
			return fmt.Errorf("device %d end stream rank %d: %w", id, rank, err)
		}
	}

	logger.Info("device streamed", map[string]string{
		"device":  strconv.Itoa(id),
		"windows": strconv.Itoa(windows),
	})
	return nil
}

// windowSamples builds a deterministic ramp so recorded output can be
// traced back to the device and window it came from.
func windowSamples(device, window, samples int) []float64 {
	values := make([]float64, samples)
	base := float64(device*1000 + window)
	for i := range values {
		values[i] = base + float64(i)/1000
	}
	return values
}
