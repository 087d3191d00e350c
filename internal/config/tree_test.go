package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTreePrepareCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "results")
	tree := NewTree(root)
	if err := tree.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	for _, dir := range []string{tree.LogDir(), tree.FeedDir(), tree.SinkDir(), tree.RelayDir(), tree.SaveDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected directory at %s", dir)
		}
	}
}

func TestTreePaths(t *testing.T) {
	tree := NewTree("/res")
	if got := tree.EndpointPath(7); got != filepath.Join("/res", "relay", "endpoint_7.txt") {
		t.Fatalf("unexpected endpoint path %q", got)
	}
	if got := tree.SaveStem(3); got != filepath.Join("/res", "relay", "save", "device_3") {
		t.Fatalf("unexpected save stem %q", got)
	}
	if got := tree.MetricsPath("relay_3"); got != filepath.Join("/res", "log", "relay_3.metrics") {
		t.Fatalf("unexpected metrics path %q", got)
	}
	if got := tree.SinkEndpointPath(2); got != filepath.Join("/res", "sink", "endpoint_2.txt") {
		t.Fatalf("unexpected sink endpoint path %q", got)
	}
	if got := tree.ConfigPath(); got != filepath.Join("/res", "run_config.yaml") {
		t.Fatalf("unexpected config path %q", got)
	}
}
