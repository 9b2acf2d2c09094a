package sink

import (
	"context"
	"sync"
)

var memorySinks sync.Map // name -> *Memory

// Memory keeps appended lines in process memory.
type Memory struct {
	name  string
	mu    sync.Mutex
	lines [][]byte
}

// NewMemory returns an empty, unregistered memory sink.
func NewMemory(name string) *Memory {
	return &Memory{name: name}
}

// NamedMemory returns the process-wide memory sink registered under name,
// creating it on first use. Open("memory://name") resolves here.
func NamedMemory(name string) *Memory {
	m, _ := memorySinks.LoadOrStore(name, NewMemory(name))
	return m.(*Memory)
}

// Location implements Sink.
func (m *Memory) Location() string {
	return SchemeMemory + m.name
}

// Append implements Sink.
func (m *Memory) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkLine(entry.Line); err != nil {
		return err
	}
	line := append([]byte(nil), entry.Line...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, line)
	return nil
}

// ReadLines implements LineReader.
func (m *Memory) ReadLines(ctx context.Context) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.lines))
	for i, line := range m.lines {
		out[i] = append([]byte(nil), line...)
	}
	return out, nil
}

// Len returns the number of stored lines.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

// Close implements Sink.
func (m *Memory) Close() error {
	return nil
}
