package account

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/permission"
)

// MemoryStore is an in-process AccountStore. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]portalauth.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]portalauth.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// Put inserts or replaces acct without duplicate checks. Tests use it to
// seed accounts in any status.
func (s *MemoryStore) Put(acct portalauth.Account) {
	acct.Email = strings.ToLower(acct.Email)
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = s.now().UTC()
		acct.UpdatedAt = acct.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byID[acct.ID]; ok {
		delete(s.byEmail, prev.Email)
	}
	s.byID[acct.ID] = acct
	s.byEmail[acct.Email] = acct.ID
}

func (s *MemoryStore) GetAccountByEmail(_ context.Context, email string) (portalauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return portalauth.Account{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) GetAccountByID(_ context.Context, id string) (portalauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.byID[id]
	if !ok {
		return portalauth.Account{}, ErrNotFound
	}
	return acct, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, acct portalauth.Account) (portalauth.Account, error) {
	acct.Email = strings.ToLower(acct.Email)
	now := s.now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[acct.Email]; ok {
		return portalauth.Account{}, ErrDuplicate
	}
	if _, ok := s.byID[acct.ID]; ok {
		return portalauth.Account{}, ErrDuplicate
	}
	s.byID[acct.ID] = acct
	s.byEmail[acct.Email] = acct.ID
	return acct, nil
}

func (s *MemoryStore) UpdateAccountStatus(_ context.Context, id string, from, to permission.Status) (portalauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return portalauth.Account{}, ErrNotFound
	}
	if acct.Status != from {
		return portalauth.Account{}, ErrStatusChanged
	}
	acct.Status = to
	acct.UpdatedAt = s.now().UTC()
	s.byID[id] = acct
	return acct, nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	acct.PasswordHash = hash
	acct.UpdatedAt = s.now().UTC()
	s.byID[id] = acct
	return nil
}

func (s *MemoryStore) ListAccounts(_ context.Context, filter portalauth.AccountFilter) ([]portalauth.Account, error) {
	s.mu.RLock()
	out := make([]portalauth.Account, 0, len(s.byID))
	for _, acct := range s.byID {
		if filter.Status != permission.StatusUnknown && acct.Status != filter.Status {
			continue
		}
		if filter.Role != permission.RoleUnknown && acct.Role != filter.Role {
			continue
		}
		out = append(out, acct)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Offset >= len(out) {
		return []portalauth.Account{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}
