package storagedriver

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory is an in-process Provider used by tests across the codebase that
// need a real Provider without touching disk or a network.
type Memory struct {
	mu   sync.Mutex
	objs map[string][]byte
}

// NewMemory returns an empty in-memory Provider.
func NewMemory() *Memory {
	return &Memory{objs: map[string][]byte{}}
}

func (m *Memory) ProviderID() string { return "memory" }

func (m *Memory) Put(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = data
	return nil
}

func (m *Memory) OpenRead(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objs[key]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objs[key]
	return ok, nil
}

func (m *Memory) Size(_ context.Context, key string) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objs[key]
	if !ok {
		return nil, nil
	}
	size := int64(len(data))
	return &size, nil
}
