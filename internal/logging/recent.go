package logging

import "sync"

// recentEntries keeps the last N entries in a fixed ring so a failing
// run can show its tail without re-reading log files.
type recentEntries struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
}

func newRecentEntries(size int) *recentEntries {
	if size <= 0 {
		size = 1
	}
	return &recentEntries{
		entries: make([]Entry, size),
	}
}

func (r *recentEntries) add(entry Entry) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.entries) {
		index := (r.start + r.count) % len(r.entries)
		r.entries[index] = entry
		r.count++
		return
	}
	r.entries[r.start] = entry
	r.start = (r.start + 1) % len(r.entries)
}

func (r *recentEntries) list() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	out := make([]Entry, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}
