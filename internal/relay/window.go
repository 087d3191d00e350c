package relay

// WindowBuffer accumulates payload chunks for the window currently
// being received. It is owned by the receive loop; finalized windows
// leave it by ownership transfer, never by copy.
type WindowBuffer struct {
	values []float64
}

func (b *WindowBuffer) Append(chunk []float64) {
	b.values = append(b.values, chunk...)
}

// FinalizeReset hands the accumulated window to the caller and starts
// a fresh one. The returned slice is never touched again by the
// buffer.
func (b *WindowBuffer) FinalizeReset() []float64 {
	window := b.values
	b.values = nil
	return window
}

func (b *WindowBuffer) Len() int {
	return len(b.values)
}
