package store

import (
	"context"
	"maps"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	flags map[string]map[string]bool
}

func NewMemory() *Memory {
	return &Memory{flags: make(map[string]map[string]bool)}
}

func (m *Memory) Load(ctx context.Context, workspace string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.flags[workspace]))
	maps.Copy(out, m.flags[workspace])
	return out, nil
}

func (m *Memory) Save(ctx context.Context, workspace, id string, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.flags[workspace]
	if !ok {
		ws = make(map[string]bool)
		m.flags[workspace] = ws
	}
	ws[id] = enabled
	return nil
}

func (m *Memory) Close() error { return nil }
