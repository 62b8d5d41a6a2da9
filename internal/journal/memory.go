package journal

import (
	"context"
	"fmt"
	"sync"
)

// MemoryJournal keeps entries in process memory.
type MemoryJournal struct {
	mu        sync.Mutex
	entries   []Entry
	appendErr error
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// WithAppendError makes subsequent Append calls fail with err.
func (m *MemoryJournal) WithAppendError(err error) *MemoryJournal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
	return m
}

func (m *MemoryJournal) Append(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}
	if want := uint64(len(m.entries)) + 1; entry.Seq != want {
		return fmt.Errorf("%w: got seq %d, want %d", ErrOutOfOrder, entry.Seq, want)
	}
	entry.Args = cloneArgs(entry.Args)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryJournal) Load(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, len(m.entries))
	for i, entry := range m.entries {
		entry.Args = cloneArgs(entry.Args)
		out[i] = entry
	}
	return out, nil
}

func (m *MemoryJournal) Ping(context.Context) error {
	return nil
}

func (m *MemoryJournal) Close(context.Context) error {
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryJournal) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func cloneArgs(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
