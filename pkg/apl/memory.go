package apl

import (
	"context"
	"sync"
)

// MemoryAPL is a thread-safe in-memory backend for tests and local
// development. It is always ready.
type MemoryAPL struct {
	mu      sync.RWMutex
	records map[string]AuthData
}

func NewMemoryAPL() *MemoryAPL {
	return &MemoryAPL{records: map[string]AuthData{}}
}

func (m *MemoryAPL) Get(ctx context.Context, saleorAPIURL string) (*AuthData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.records[saleorAPIURL]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *MemoryAPL) Set(ctx context.Context, data AuthData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[data.SaleorAPIURL] = data
	return nil
}

func (m *MemoryAPL) Delete(ctx context.Context, saleorAPIURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, saleorAPIURL)
	return nil
}

func (m *MemoryAPL) GetAll(ctx context.Context) ([]AuthData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AuthData, 0, len(m.records))
	for _, d := range m.records {
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryAPL) IsReady(ctx context.Context) ReadyResult {
	return ReadyResult{Ready: true}
}

func (m *MemoryAPL) IsConfigured(ctx context.Context) ConfiguredResult {
	return ConfiguredResult{Configured: true}
}
