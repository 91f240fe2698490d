package eeprom

import "sync"

// Memory is a RAM-only Backend. It is what tests inject in place of real
// storage.
type Memory struct {
	mu      sync.Mutex
	data    []byte
	commits int
}

// NewMemory returns a zero-filled region of size bytes.
func NewMemory(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) Size() int {
	return len(m.data)
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(len(m.data), off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(len(m.data), off, len(p)); err != nil {
		return 0, err
	}
	return copy(m.data[off:], p), nil
}

func (m *Memory) Commit() error {
	m.mu.Lock()
	m.commits++
	m.mu.Unlock()
	return nil
}

// Commits returns how many times Commit has been called.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Bytes returns a copy of the whole region.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(m.data))
	copy(cp, m.data)
	return cp
}
