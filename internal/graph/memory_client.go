package graph

import (
	"context"
	"sync"
)

// Mode distinguishes read from write statements.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// ExecutedQuery is a statement seen by MemoryClient.
type ExecutedQuery struct {
	Mode   Mode
	Query  string
	Params map[string]any
}

// MemoryClient records statements and replays scripted results. It lets the
// projection be tested without a database.
type MemoryClient struct {
	mu           sync.Mutex
	calls        []ExecutedQuery
	scripted     map[Mode][]Result
	err          error
	connectivity error
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{scripted: make(map[Mode][]Result)}
}

// WithError makes every following statement fail with err.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return err.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

// PushReadResult queues res for the next read statement.
func (m *MemoryClient) PushReadResult(res Result) {
	m.push(ModeRead, res)
}

// PushWriteResult queues res for the next write statement.
func (m *MemoryClient) PushWriteResult(res Result) {
	m.push(ModeWrite, res)
}

func (m *MemoryClient) push(mode Mode, res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted[mode] = append(m.scripted[mode], res)
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ModeWrite, cypher, params)
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ModeRead, cypher, params)
}

func (m *MemoryClient) execute(mode Mode, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Result{}, m.err
	}
	m.calls = append(m.calls, ExecutedQuery{Mode: mode, Query: cypher, Params: cloneParams(params)})

	queue := m.scripted[mode]
	if len(queue) == 0 {
		return Result{}, nil
	}
	m.scripted[mode] = queue[1:]
	return queue[0], nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error {
	return nil
}

// WriteCalls returns the write statements executed so far.
func (m *MemoryClient) WriteCalls() []ExecutedQuery {
	return m.callsFor(ModeWrite)
}

// ReadCalls returns the read statements executed so far.
func (m *MemoryClient) ReadCalls() []ExecutedQuery {
	return m.callsFor(ModeRead)
}

func (m *MemoryClient) callsFor(mode Mode) []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ExecutedQuery
	for _, call := range m.calls {
		if call.Mode == mode {
			out = append(out, call)
		}
	}
	return out
}

func cloneParams(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
