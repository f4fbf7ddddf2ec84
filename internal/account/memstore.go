package account

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: map[string]Account{}}
}

func (m *MemoryStore) FindByLogin(_ context.Context, login string) (Account, error) {
	login = normalizeLogin(login)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if normalizeLogin(a.Username) == login || (a.Email != "" && normalizeLogin(a.Email) == login) {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (m *MemoryStore) Create(_ context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if normalizeLogin(existing.Username) == normalizeLogin(a.Username) ||
			(a.Email != "" && normalizeLogin(existing.Email) == normalizeLogin(a.Email)) {
			return Account{}, ErrUsernameTaken
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.accounts[a.ID] = a
	return a, nil
}

var _ Store = (*MemoryStore)(nil)
