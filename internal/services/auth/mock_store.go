package auth

import (
	"strings"
	"sync"
)

// MockStore keeps API keys in memory. It normalizes providers like
// KeyringStore and is safe for the concurrent lookups a serving App makes.
type MockStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{keys: make(map[string]string)}
}

func (m *MockStore) SetToken(provider string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[NormalizeProvider(provider)] = strings.TrimSpace(key)
	return nil
}

func (m *MockStore) GetToken(provider string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[NormalizeProvider(provider)]
	if !ok {
		return "", ErrTokenNotFound
	}
	return key, nil
}

func (m *MockStore) DeleteToken(provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := NormalizeProvider(provider)
	if _, ok := m.keys[p]; !ok {
		return ErrTokenNotFound
	}
	delete(m.keys, p)
	return nil
}
