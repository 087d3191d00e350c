package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Registry collects counters for orchestrated runs and the streams a
// relay carries. All methods are safe on a nil receiver so callers can
// leave metrics unwired.
type Registry struct {
	runsStarted     atomic.Int64
	runsCompleted   atomic.Int64
	runsFailed      atomic.Int64
	childrenStarted atomic.Int64
	childrenFailed  atomic.Int64
	streams         sync.Map
}

type streamStats struct {
	messages      atomic.Int64
	samples       atomic.Int64
	windows       atomic.Int64
	flushes       atomic.Int64
	flushFailures atomic.Int64
	flushNanos    atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncRunStarted() {
	if r == nil {
		return
	}
	r.runsStarted.Add(1)
}

func (r *Registry) IncRunCompleted() {
	if r == nil {
		return
	}
	r.runsCompleted.Add(1)
}

func (r *Registry) IncRunFailed() {
	if r == nil {
		return
	}
	r.runsFailed.Add(1)
}

func (r *Registry) IncChildStarted() {
	if r == nil {
		return
	}
	r.childrenStarted.Add(1)
}

func (r *Registry) IncChildFailed() {
	if r == nil {
		return
	}
	r.childrenFailed.Add(1)
}

// RecordMessage counts one data message carrying the given number of
// samples on the named stream.
func (r *Registry) RecordMessage(stream string, samples int) {
	if r == nil {
		return
	}
	stats := r.streamStats(stream)
	stats.messages.Add(1)
	stats.samples.Add(int64(samples))
}

// RecordWindow counts one completed window on the named stream.
func (r *Registry) RecordWindow(stream string) {
	if r == nil {
		return
	}
	r.streamStats(stream).windows.Add(1)
}

// RecordFlush counts one batch flush on the named stream along with its
// duration and outcome.
func (r *Registry) RecordFlush(stream string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	stats := r.streamStats(stream)
	stats.flushes.Add(1)
	stats.flushNanos.Add(duration.Nanoseconds())
	if err != nil {
		stats.flushFailures.Add(1)
	}
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "tandem_runs_started_total", "Total runs started", r.runsStarted.Load())
	writeCounter(writer, "tandem_runs_completed_total", "Total runs completed", r.runsCompleted.Load())
	writeCounter(writer, "tandem_runs_failed_total", "Total runs failed", r.runsFailed.Load())
	writeCounter(writer, "tandem_children_started_total", "Total child processes started", r.childrenStarted.Load())
	writeCounter(writer, "tandem_children_failed_total", "Total child processes exited non-zero", r.childrenFailed.Load())

	streamNames := r.streamNames()
	sort.Strings(streamNames)

	writeHelp(writer, "tandem_stream_messages_total", "Data messages received per stream")
	fmt.Fprintln(writer, "# TYPE tandem_stream_messages_total counter")
	writeHelp(writer, "tandem_stream_samples_total", "Samples received per stream")
	fmt.Fprintln(writer, "# TYPE tandem_stream_samples_total counter")
	writeHelp(writer, "tandem_stream_windows_total", "Windows completed per stream")
	fmt.Fprintln(writer, "# TYPE tandem_stream_windows_total counter")
	writeHelp(writer, "tandem_flush_duration_seconds", "Batch flush duration in seconds")
	fmt.Fprintln(writer, "# TYPE tandem_flush_duration_seconds summary")
	writeHelp(writer, "tandem_flush_failures_total", "Batch flush failures per stream")
	fmt.Fprintln(writer, "# TYPE tandem_flush_failures_total counter")

	for _, name := range streamNames {
		stats := r.streamStats(name)
		label := formatLabel(name)
		flushSeconds := float64(stats.flushNanos.Load()) / float64(time.Second)
		fmt.Fprintf(writer, "tandem_stream_messages_total{stream=%s} %d\n", label, stats.messages.Load())
		fmt.Fprintf(writer, "tandem_stream_samples_total{stream=%s} %d\n", label, stats.samples.Load())
		fmt.Fprintf(writer, "tandem_stream_windows_total{stream=%s} %d\n", label, stats.windows.Load())
		fmt.Fprintf(writer, "tandem_flush_duration_seconds_sum{stream=%s} %.6f\n", label, flushSeconds)
		fmt.Fprintf(writer, "tandem_flush_duration_seconds_count{stream=%s} %d\n", label, stats.flushes.Load())
		fmt.Fprintf(writer, "tandem_flush_failures_total{stream=%s} %d\n", label, stats.flushFailures.Load())
	}

	return nil
}

// WriteFile dumps the exposition text to a file, replacing any
// previous dump.
func (r *Registry) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := r.WritePrometheus(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (r *Registry) streamStats(name string) *streamStats {
	if strings.TrimSpace(name) == "" {
		name = "unknown"
	}
	value, _ := r.streams.LoadOrStore(name, &streamStats{})
	return value.(*streamStats)
}

func (r *Registry) streamNames() []string {
	if r == nil {
		return nil
	}
	var names []string
	r.streams.Range(func(key, value interface{}) bool {
		if name, ok := key.(string); ok {
			names = append(names, name)
		}
		return true
	})
	return names
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
