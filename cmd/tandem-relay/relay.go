package main

import (
	"context"
	"fmt"
	"io"

	"tandem/internal/channel"
	"tandem/internal/cli"
	"tandem/internal/config"
	"tandem/internal/handshake"
	"tandem/internal/logging"
	"tandem/internal/metrics"
	"tandem/internal/relay"
	"tandem/internal/storage"
)

// serve runs the relay for one device: it binds a channel listener,
// publishes the address for the producer to dial, and then translates
// the inbound stream according to the run mode.
func serve(ctx context.Context, cfg relayConfig, errOut io.Writer) error {
	run, tree, err := cli.LoadRun(cfg.Results)
	if err != nil {
		return err
	}
	if run.Mode() == config.ModePlain {
		return fmt.Errorf("plain runs launch no relays")
	}

	name := fmt.Sprintf("relay_%d", cfg.Device)
	stream := fmt.Sprintf("device_%d", cfg.Device)
	logger := logging.NewLoggerWithOutput(logging.FromVerbosity(run.LevelLog), errOut).
		With(map[string]string{"component": name})
	registry := metrics.Default

	listener, err := channel.Listen(channel.Options{
		Logger:   logger,
		Registry: registry,
		Stream:   stream,
	})
	if err != nil {
		return err
	}
	defer listener.Close()

	if err := handshake.Publish(tree.EndpointPath(cfg.Device), listener.Address()); err != nil {
		return fmt.Errorf("publish endpoint: %w", err)
	}
	logger.Info("endpoint published", map[string]string{
		"mode":    run.Mode().String(),
		"address": listener.Address(),
	})

	if err := translate(ctx, run, tree, cfg.Device, listener, logger, registry, stream); err != nil {
		return err
	}

	if err := registry.WriteFile(tree.MetricsPath(name)); err != nil {
		logger.Warn("metrics dump failed", map[string]string{"error": err.Error()})
	}
	return nil
}

// translate drives one device's stream to its destination. In
// co-simulation the consumer side is dialed before the producer is
// accepted: the consumer publishes its endpoints unconditionally, so
// this order cannot deadlock.
func translate(ctx context.Context, run config.Run, tree config.Tree, device int, listener *channel.Listener, logger *logging.Logger, registry *metrics.Registry, stream string) error {
	if run.Mode() == config.ModeCoSimulation {
		address, err := handshake.AwaitAndConsume(ctx, tree.SinkEndpointPath(device))
		if err != nil {
			return fmt.Errorf("await consumer endpoint: %w", err)
		}

		conns := make([]*channel.Conn, 0, run.ConsumerRanks)
		closeAll := func() {
			for _, conn := range conns {
				conn.Close()
			}
		}
		for rank := 0; rank < run.ConsumerRanks; rank++ {
			conn, err := channel.Dial(ctx, address)
			if err != nil {
				closeAll()
				return fmt.Errorf("dial consumer rank %d: %w", rank, err)
			}
			conns = append(conns, conn)
		}
		defer closeAll()

		endpoint, err := listener.Accept(ctx, run.Ranks)
		if err != nil {
			return fmt.Errorf("accept producer: %w", err)
		}
		defer endpoint.Close()

		forwarder, err := relay.NewForwarder(relay.ForwarderOptions{
			Endpoint:   endpoint,
			Downstream: conns[0],
			NbStep:     run.NbStep(),
			Logger:     logger,
			Registry:   registry,
			Stream:     stream,
		})
		if err != nil {
			return err
		}
		if err := forwarder.Run(ctx); err != nil {
			return err
		}
		// The forwarder ended the data rank; release the barrier ranks.
		for i, conn := range conns[1:] {
			if err := conn.SendEndOfStream(); err != nil {
				return fmt.Errorf("end stream rank %d: %w", i+1, err)
			}
		}
		return nil
	}

	endpoint, err := listener.Accept(ctx, run.Ranks)
	if err != nil {
		return fmt.Errorf("accept producer: %w", err)
	}
	defer endpoint.Close()

	engine, err := relay.NewEngine(relay.EngineOptions{
		Endpoint: endpoint,
		Writer:   storage.NewBatchWriter(tree.SaveStem(device)),
		NbStep:   run.NbStep(),
		StepSave: run.StepSave,
		Logger:   logger,
		Registry: registry,
		Stream:   stream,
	})
	if err != nil {
		return err
	}
	return engine.Run(ctx)
}
