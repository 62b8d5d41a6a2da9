package journal

import (
	"context"
	"errors"
	"time"
)

// Entry is a committed registry call as recorded in the journal.
type Entry struct {
	Seq       uint64            `json:"seq" bson:"seq"`
	TxHash    string            `json:"txHash" bson:"tx_hash"`
	Method    string            `json:"method" bson:"method"`
	Caller    string            `json:"caller" bson:"caller"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	Args      map[string]string `json:"args" bson:"args"`
}

// Journal is the append-only log backing the registry simulator.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	Load(ctx context.Context) ([]Entry, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ErrOutOfOrder is returned when an entry does not extend the journal by one.
var ErrOutOfOrder = errors.New("journal entry out of order")
