package events

import (
	"sync"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

const defaultReceiptLogCapacity = 4096

// ReceiptLog is an event Source fed from transaction receipts, for ledgers
// that keep no local event log. Events are renumbered with a log-wide
// sequence. Only the most recent capacity events are retained.
type ReceiptLog struct {
	mu       sync.RWMutex
	events   []domain.Event
	next     uint64
	capacity int
	changed  chan struct{}
}

// NewReceiptLog returns an empty log. A non-positive capacity uses the
// default.
func NewReceiptLog(capacity int) *ReceiptLog {
	if capacity <= 0 {
		capacity = defaultReceiptLogCapacity
	}
	return &ReceiptLog{
		next:     1,
		capacity: capacity,
		changed:  make(chan struct{}),
	}
}

// RecordReceipt appends the events of a mined transaction.
func (l *ReceiptLog) RecordReceipt(receipt domain.Receipt) {
	if len(receipt.Events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ev := range receipt.Events {
		ev.Seq = l.next
		l.next++
		if ev.TxHash == "" {
			ev.TxHash = receipt.TxHash
		}
		if ev.Block == 0 {
			ev.Block = receipt.Block
		}
		l.events = append(l.events, ev)
	}
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
	close(l.changed)
	l.changed = make(chan struct{})
}

// Changed is closed on the next append.
func (l *ReceiptLog) Changed() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changed
}

// EventsSince returns up to limit events with a sequence number above seq.
func (l *ReceiptLog) EventsSince(seq uint64, limit int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.events) == 0 {
		return nil
	}
	first := l.events[0].Seq
	start := 0
	if seq >= first {
		start = int(seq - first + 1)
	}
	if start >= len(l.events) {
		return nil
	}
	end := len(l.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]domain.Event, end-start)
	copy(out, l.events[start:end])
	return out
}
