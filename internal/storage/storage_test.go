package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteBatchRoundTrip(t *testing.T) {
	writer := NewBatchWriter(filepath.Join(t.TempDir(), "device_3"))

	batch := []float64{1.5, 0, -2.25, 4e6}
	path, err := writer.WriteBatch(3, batch)
	if err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if filepath.Base(path) != "device_3_3.npy" {
		t.Fatalf("unexpected artifact name %q", filepath.Base(path))
	}

	values, err := ReadArray(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(values) != len(batch) {
		t.Fatalf("expected %d values, got %d", len(batch), len(values))
	}
	for i := range batch {
		if values[i] != batch[i] {
			t.Fatalf("value %d: expected %v, got %v", i, batch[i], values[i])
		}
	}
}

func TestWriteBatchEmpty(t *testing.T) {
	writer := NewBatchWriter(filepath.Join(t.TempDir(), "device_0"))

	path, err := writer.WriteBatch(6, nil)
	if err != nil {
		t.Fatalf("write empty batch: %v", err)
	}
	values, err := ReadArray(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected empty artifact, got %v", values)
	}
}

func TestWriteArrayFailsOnMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.npy")
	if err := WriteArray(path, []float64{1}); err == nil {
		t.Fatal("expected write into missing directory to fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no artifact, stat err %v", err)
	}
}
