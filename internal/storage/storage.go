// Package storage writes windowed batches as NumPy .npy artifacts, the
// format downstream analysis toolchains consume directly.
package storage

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
)

// BatchWriter persists one stream's batches under a common path stem.
// Each flush lands at <stem>_<count>.npy where count is the cumulative
// window count at flush time, so file names encode batch boundaries.
type BatchWriter struct {
	stem string
}

func NewBatchWriter(stem string) *BatchWriter {
	return &BatchWriter{stem: stem}
}

// Path returns the artifact path for a given cumulative window count.
func (w *BatchWriter) Path(count int) string {
	return fmt.Sprintf("%s_%d.npy", w.stem, count)
}

// WriteBatch writes the batch accumulated up to window count. The batch
// may be empty; the artifact is still written so the file sequence
// stays aligned with the window count.
func (w *BatchWriter) WriteBatch(count int, batch []float64) (string, error) {
	path := w.Path(count)
	if err := WriteArray(path, batch); err != nil {
		return "", err
	}
	return path, nil
}

// WriteArray writes values as a 1-D float64 .npy file.
func WriteArray(path string, values []float64) error {
	if values == nil {
		values = []float64{}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}
	if err := npyio.Write(file, values); err != nil {
		file.Close()
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", path, err)
	}
	return nil
}

// ReadArray reads a 1-D float64 .npy file back.
func ReadArray(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer file.Close()
	var values []float64
	if err := npyio.Read(file, &values); err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return values, nil
}
