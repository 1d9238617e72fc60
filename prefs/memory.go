package prefs

import (
	"context"
	"sync"
)

// Memory is a process-local Storage.
type Memory struct {
	mu   sync.Mutex
	vals map[string]string
	// Saves counts successful Save calls.
	Saves int
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{vals: make(map[string]string)}
}

func (m *Memory) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *Memory) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	m.Saves++
	return nil
}
