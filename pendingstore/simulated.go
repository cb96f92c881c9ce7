package pendingstore

import (
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// MemoryBackend is an in-memory Backend for tests.
type MemoryBackend struct {
	mu       sync.RWMutex
	payloads map[ethcommon.Address][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{payloads: make(map[ethcommon.Address][]byte)}
}

func (m *MemoryBackend) Load(account ethcommon.Address) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.payloads[account]
	return payload, ok, nil
}

func (m *MemoryBackend) Save(account ethcommon.Address, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.payloads[account] = cp
	return nil
}

func (m *MemoryBackend) Clear(account ethcommon.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payloads, account)
	return nil
}

// Corrupt overwrites the account's payload with garbage. Tests use it
// to exercise corruption recovery.
func (m *MemoryBackend) Corrupt(account ethcommon.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[account] = []byte("{not json")
}
