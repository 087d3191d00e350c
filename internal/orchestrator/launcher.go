package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"tandem/internal/config"
	"tandem/internal/logging"
	"tandem/internal/metrics"
)

const stopTimeout = 5 * time.Second

// Handle tracks one running child.
type Handle struct {
	Name    string
	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
	waitErr error
}

// Done is closed once the child has exited. The closed-channel form
// lets several watchers observe the exit; Err reports the wait result
// after Done is closed.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.done
}

// Err is only valid once Done is closed.
func (h *Handle) Err() error {
	if h == nil {
		return nil
	}
	return h.waitErr
}

func (h *Handle) PID() int {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Launcher starts children with stdout and stderr redirected to a
// per-child log file under the results tree. Nothing else is
// inherited; children run on their own and are only observed through
// their exit status.
type Launcher struct {
	tree     config.Tree
	logger   *logging.Logger
	registry *metrics.Registry
}

func NewLauncher(tree config.Tree, logger *logging.Logger, registry *metrics.Registry) *Launcher {
	if registry == nil {
		registry = metrics.Default
	}
	return &Launcher{tree: tree, logger: logger, registry: registry}
}

func (l *Launcher) Start(spec Spec) (*Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("child %s has no command", spec.Name)
	}

	logPath := filepath.Join(l.tree.LogDir(), spec.Name+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open child log %s: %w", logPath, err)
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start child %s: %w", spec.Name, err)
	}
	l.registry.IncChildStarted()

	handle := &Handle{Name: spec.Name, cmd: cmd, logFile: logFile, done: make(chan struct{})}
	go func() {
		handle.waitErr = cmd.Wait()
		close(handle.done)
	}()

	l.logger.Info("child started", map[string]string{
		"name": spec.Name,
		"pid":  strconv.Itoa(cmd.Process.Pid),
		"log":  logPath,
	})

	return handle, nil
}

// Stop interrupts a child and kills it if it ignores the interrupt for
// the grace period. A child that already exited is left alone.
func (h *Handle) Stop(logger *logging.Logger) {
	if h == nil {
		return
	}
	if h.cmd == nil || h.cmd.Process == nil {
		h.closeLog()
		return
	}

	select {
	case <-h.done:
		if h.waitErr != nil {
			logger.Warn("child already exited", map[string]string{
				"name":  h.Name,
				"error": h.waitErr.Error(),
			})
		}
	default:
		if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
			logger.Warn("child signal failed", map[string]string{
				"name":  h.Name,
				"error": err.Error(),
			})
		}
		select {
		case <-h.done:
			if h.waitErr != nil {
				logger.Warn("child stopped", map[string]string{
					"name":  h.Name,
					"error": h.waitErr.Error(),
				})
			}
		case <-time.After(stopTimeout):
			if killErr := h.cmd.Process.Kill(); killErr != nil {
				logger.Warn("child kill failed", map[string]string{
					"name":  h.Name,
					"error": killErr.Error(),
				})
			}
			<-h.done
		}
	}

	h.closeLog()
}

func (h *Handle) closeLog() {
	if h.logFile != nil {
		_ = h.logFile.Close()
		h.logFile = nil
	}
}
