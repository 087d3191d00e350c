// Package handshake implements the filesystem readiness handshake two
// independently launched processes use to rendezvous: the side that owns
// a dynamically assigned resource publishes it under an agreed path, and
// a zero-byte marker next to it signals that the content is complete.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// MarkerSuffix is appended to the agreed path to form the readiness
// marker.
const MarkerSuffix = ".unlock"

const pollInterval = time.Second

// ErrMarkerExists reports a second publish on the same path.
var ErrMarkerExists = errors.New("marker already exists")

// Publish writes content under path and then creates the readiness
// marker. The content lands via a same-directory temp file and rename,
// so a reader that observes the marker always reads the complete
// content. Publishing on a path whose marker already exists fails.
func Publish(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".publish-*")
	if err != nil {
		return fmt.Errorf("stage publish file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stage publish file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stage publish file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish %s: %w", path, err)
	}

	marker, err := os.OpenFile(path+MarkerSuffix, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("publish %s: %w", path, ErrMarkerExists)
		}
		return fmt.Errorf("create marker for %s: %w", path, err)
	}
	return marker.Close()
}

// AwaitAndConsume blocks until the marker for path exists, deletes it,
// and returns the published content. Consumption is exactly-once: the
// marker is removed before the read, and a later call waits for a fresh
// publish. The wait is event-driven with a one second poll fallback and
// honors ctx; with a background context and a publisher that never
// arrives it blocks forever.
func AwaitAndConsume(ctx context.Context, path string) (string, error) {
	marker := path + MarkerSuffix

	if content, ok, err := consume(path, marker); err != nil || ok {
		return content, err
	}

	var events chan fsnotify.Event
	var watchErrors chan error
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(marker)); err == nil {
			events = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// The marker may have landed between the first check and the watch
	// installation.
	if content, ok, err := consume(path, marker); err != nil || ok {
		return content, err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case event := <-events:
			if event.Name != marker {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if content, ok, err := consume(path, marker); err != nil || ok {
				return content, err
			}
		case <-watchErrors:
			// The poll tick keeps latency bounded when the watch
			// degrades.
		case <-ticker.C:
			if content, ok, err := consume(path, marker); err != nil || ok {
				return content, err
			}
		}
	}
}

func consume(path, marker string) (string, bool, error) {
	if _, err := os.Stat(marker); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("probe marker: %w", err)
	}
	if err := os.Remove(marker); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("consume marker: %w", err)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("read published %s: %w", path, err)
	}
	return string(payload), true, nil
}
