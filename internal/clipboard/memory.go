package clipboard

import "sync"

// Memory keeps the latest clipboard write in process. It backs headless relay
// hops and tests. Only the newest text is held; earlier writes are counted.
type Memory struct {
	mu     sync.Mutex
	last   string
	writes int
}

// NewMemory returns an empty in-process clipboard.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SetText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = text
	m.writes++
	return nil
}

func (m *Memory) Close() error { return nil }

// Last returns the most recent text written.
func (m *Memory) Last() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.writes > 0
}

// Count reports how many writes were recorded.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Opener returns an Opener that always hands out m.
func (m *Memory) Opener() Opener {
	return func() (Backend, error) { return m, nil }
}
