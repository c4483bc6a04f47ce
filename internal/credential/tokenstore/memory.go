package tokenstore

import "sync"

// Memory is a process-local Store with no persistence, used for tests and
// for brokers that accept re-authenticating after every restart.
type Memory struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemory() *Memory {
	return &Memory{tokens: map[string]string{}}
}

func (m *Memory) Get(provider string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[provider]
	return t, ok, nil
}

func (m *Memory) Put(provider, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[provider] = token
	return nil
}

func (m *Memory) Delete(provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, provider)
	return nil
}
