package identity

import (
	"context"
	"sync"
	"time"

	"github.com/walletbot/ingress/internal/models"
)

// MemoryAccountStore keeps accounts in process memory. Account numbers come
// from a counter advanced under the store mutex together with the insert.
type MemoryAccountStore struct {
	mu         sync.RWMutex
	byExternal map[int64]models.Account
	lastNumber int64
	lastID     uint64
}

// NewMemoryAccountStore constructs an empty MemoryAccountStore.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{byExternal: make(map[int64]models.Account)}
}

// FindByExternalID implements AccountStore.
func (s *MemoryAccountStore) FindByExternalID(_ context.Context, externalID int64) (models.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byExternal[externalID]
	return acc, ok, nil
}

// Create implements AccountStore.
func (s *MemoryAccountStore) Create(ctx context.Context, draft models.Account, address func(int64) string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errCtx := ctx.Err(); errCtx != nil {
		return models.Account{}, errCtx
	}
	if _, exists := s.byExternal[draft.ExternalID]; exists {
		return models.Account{}, ErrAccountExists
	}
	s.lastNumber++
	s.lastID++
	draft.ID = s.lastID
	draft.AccountNumber = s.lastNumber
	draft.DerivedAddress = address(draft.AccountNumber)
	s.byExternal[draft.ExternalID] = draft
	return draft, nil
}

// TouchLastSeen implements AccountStore.
func (s *MemoryAccountStore) TouchLastSeen(_ context.Context, externalID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.byExternal[externalID]; ok {
		acc.LastSeen = at
		s.byExternal[externalID] = acc
	}
	return nil
}

// Len returns the number of stored accounts.
func (s *MemoryAccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byExternal)
}
