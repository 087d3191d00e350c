package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Tree derives every path an orchestrated run touches from the results
// root. Children receive the root and derive the same paths, so the
// layout is the launch contract.
type Tree struct {
	Root string
}

func NewTree(root string) Tree {
	return Tree{Root: root}
}

func (t Tree) LogDir() string {
	return filepath.Join(t.Root, "log")
}

func (t Tree) FeedDir() string {
	return filepath.Join(t.Root, "feed")
}

func (t Tree) SinkDir() string {
	return filepath.Join(t.Root, "sink")
}

func (t Tree) RelayDir() string {
	return filepath.Join(t.Root, "relay")
}

func (t Tree) SaveDir() string {
	return filepath.Join(t.Root, "relay", "save")
}

// ConfigPath is where the orchestrator publishes the effective run
// configuration.
func (t Tree) ConfigPath() string {
	return filepath.Join(t.Root, "run_config.yaml")
}

// DeviceListPath is the handshake file through which the producer
// publishes its device id list.
func (t Tree) DeviceListPath() string {
	return filepath.Join(t.RelayDir(), "device_ids.txt")
}

// EndpointPath is the handshake file through which the relay for one
// device publishes its channel address.
func (t Tree) EndpointPath(deviceID int) string {
	return filepath.Join(t.RelayDir(), fmt.Sprintf("endpoint_%d.txt", deviceID))
}

// SinkEndpointPath is the handshake file through which the consumer
// publishes its inbound address for one device's forwarded stream.
func (t Tree) SinkEndpointPath(deviceID int) string {
	return filepath.Join(t.SinkDir(), fmt.Sprintf("endpoint_%d.txt", deviceID))
}

// SinkStreamPath is where the consumer writes the stream it collected
// for one device.
func (t Tree) SinkStreamPath(deviceID int) string {
	return filepath.Join(t.SinkDir(), fmt.Sprintf("stream_%d.npy", deviceID))
}

// SaveStem is the path prefix for one device's batch artifacts; the
// writer appends _<count>.npy.
func (t Tree) SaveStem(deviceID int) string {
	return filepath.Join(t.SaveDir(), fmt.Sprintf("device_%d", deviceID))
}

// MetricsPath is where a named component dumps its counters on
// shutdown.
func (t Tree) MetricsPath(name string) string {
	return filepath.Join(t.LogDir(), name+".metrics")
}

// Prepare creates the full directory layout.
func (t Tree) Prepare() error {
	dirs := []string{
		t.LogDir(),
		t.FeedDir(),
		t.SinkDir(),
		t.RelayDir(),
		t.SaveDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prepare results tree: %w", err)
		}
	}
	return nil
}
