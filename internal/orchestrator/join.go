package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"tandem/internal/logging"
	"tandem/internal/metrics"
)

// JoinAll waits for every child and collects the failures: a non-zero
// exit is a run failure, not a silent event. On cancellation the
// children still running are reported instead of awaited.
func JoinAll(ctx context.Context, handles []*Handle, logger *logging.Logger, registry *metrics.Registry) error {
	if registry == nil {
		registry = metrics.Default
	}

	var errs []error
	for i, handle := range handles {
		select {
		case <-ctx.Done():
			for _, remaining := range handles[i:] {
				errs = append(errs, fmt.Errorf("child %s still running: %w", remaining.Name, ctx.Err()))
			}
			return errors.Join(errs...)
		case <-handle.done:
			handle.closeLog()
			if err := handle.waitErr; err != nil {
				registry.IncChildFailed()
				logger.Error("child failed", map[string]string{
					"name":  handle.Name,
					"error": err.Error(),
				})
				errs = append(errs, fmt.Errorf("child %s: %w", handle.Name, err))
				continue
			}
			logger.Info("child exited", map[string]string{"name": handle.Name})
		}
	}
	return errors.Join(errs...)
}
