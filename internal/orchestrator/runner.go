package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tandem/internal/config"
	"tandem/internal/handshake"
	"tandem/internal/logging"
	"tandem/internal/metrics"
)

// Runner executes one configured run end to end: prepare the results
// tree, publish the effective configuration, launch the children in
// handshake order, and join them.
type Runner struct {
	run      config.Run
	tree     config.Tree
	launcher *Launcher
	logger   *logging.Logger
	registry *metrics.Registry
	runID    string
}

func NewRunner(run config.Run, logger *logging.Logger, registry *metrics.Registry) (*Runner, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = metrics.Default
	}
	runID := uuid.Must(uuid.NewV7()).String()
	logger = logger.With(map[string]string{"run_id": runID})
	tree := config.NewTree(run.ResultPath)
	return &Runner{
		run:      run,
		tree:     tree,
		launcher: NewLauncher(tree, logger, registry),
		logger:   logger,
		registry: registry,
		runID:    runID,
	}, nil
}

func (r *Runner) RunID() string {
	return r.runID
}

func (r *Runner) Execute(ctx context.Context) error {
	r.registry.IncRunStarted()
	if err := r.prepare(); err != nil {
		r.registry.IncRunFailed()
		return err
	}

	handles, err := r.launch(ctx)
	if err != nil {
		for _, handle := range handles {
			handle.Stop(r.logger)
		}
		r.registry.IncRunFailed()
		return err
	}

	if err := JoinAll(ctx, handles, r.logger, r.registry); err != nil {
		if ctx.Err() != nil {
			// A cancelled join leaves children running; interrupt them
			// before reporting the failure.
			for _, handle := range handles {
				handle.Stop(r.logger)
			}
		}
		r.registry.IncRunFailed()
		return err
	}
	r.registry.IncRunCompleted()
	r.logger.Info("run completed", map[string]string{
		"mode": r.run.Mode().String(),
	})
	return nil
}

// prepare builds the results tree and republishes the effective
// configuration. A stale copy from an earlier run is removed first so
// children can never consume it.
func (r *Runner) prepare() error {
	if err := r.tree.Prepare(); err != nil {
		return err
	}
	if err := os.Remove(r.tree.ConfigPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale run config: %w", err)
	}
	if err := r.run.Save(r.tree.ConfigPath()); err != nil {
		return err
	}
	return nil
}

func (r *Runner) launch(ctx context.Context) ([]*Handle, error) {
	mode := r.run.Mode()
	r.logger.Info("run starting", map[string]string{
		"mode":        mode.String(),
		"windows":     strconv.Itoa(r.run.NbStep()),
		"result_path": r.run.ResultPath,
	})

	var handles []*Handle
	feed, err := r.launcher.Start(feedSpec(r.run, r.tree))
	if err != nil {
		return handles, err
	}
	handles = append(handles, feed)

	if mode == config.ModePlain {
		return handles, nil
	}

	ids, err := r.consumeDeviceIDs(ctx, feed)
	if err != nil {
		return handles, err
	}

	if mode == config.ModeCoSimulation {
		sink, err := r.launcher.Start(sinkSpec(r.run, r.tree, ids))
		if err != nil {
			return handles, err
		}
		handles = append(handles, sink)
	}

	for _, id := range ids {
		relay, err := r.launcher.Start(relaySpec(r.run, r.tree, id))
		if err != nil {
			return handles, err
		}
		handles = append(handles, relay)
	}
	return handles, nil
}

// consumeDeviceIDs waits for the producer's device id handshake. A
// producer that exits before publishing would leave the wait hanging
// forever, so the wait races the producer's exit.
func (r *Runner) consumeDeviceIDs(ctx context.Context, feed *Handle) ([]int, error) {
	type outcome struct {
		content string
		err     error
	}
	results := make(chan outcome, 1)
	go func() {
		content, err := handshake.AwaitAndConsume(ctx, r.tree.DeviceListPath())
		results <- outcome{content: content, err: err}
	}()

	var out outcome
	select {
	case out = <-results:
	case <-feed.Done():
		// The producer may publish and exit in the same instant; give
		// the watcher a moment before declaring the handshake dead.
		select {
		case out = <-results:
		case <-time.After(2 * time.Second):
			if err := feed.Err(); err != nil {
				return nil, fmt.Errorf("producer exited before publishing device ids: %w", err)
			}
			return nil, fmt.Errorf("producer exited before publishing device ids")
		}
	}

	if out.err != nil {
		return nil, fmt.Errorf("await device ids: %w", out.err)
	}
	ids, err := handshake.ParseIDList(out.content)
	if err != nil {
		return nil, fmt.Errorf("device id list: %w", err)
	}
	r.logger.Info("device ids consumed", map[string]string{
		"count": strconv.Itoa(len(ids)),
	})
	return ids, nil
}
