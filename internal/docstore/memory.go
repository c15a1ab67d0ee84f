package docstore

import (
	"context"
	"sync"
)

// Memory is a map-backed Store for dev/testing.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]string
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.docs[path]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, path, value string) error {
	if !validPath(path) {
		return ErrInvalidPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = value
	return nil
}

func (m *Memory) Update(_ context.Context, values map[string]string) error {
	for p := range values {
		if !validPath(p) {
			return ErrInvalidPath
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, v := range values {
		m.docs[p] = v
	}
	return nil
}

func (m *Memory) Children(_ context.Context, prefix string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for p, v := range m.docs {
		if name, ok := childName(prefix, p); ok {
			out[name] = v
		}
	}
	return out, nil
}

func (m *Memory) DeleteAll(_ context.Context, paths ...string) error {
	for _, path := range paths {
		if !validPath(path) {
			return ErrInvalidPath
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := range m.docs {
		for _, path := range paths {
			if isUnder(path, p) {
				delete(m.docs, p)
				break
			}
		}
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := range m.docs {
		if isUnder(path, p) {
			delete(m.docs, p)
		}
	}
	return nil
}
