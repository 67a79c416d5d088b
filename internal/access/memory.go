package access

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps grants in process memory with the same at-most-once
// semantics as the Postgres table. For tests.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string]Grant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]Grant)}
}

func pairKey(userID int64, contentID string) string {
	return fmt.Sprintf("%d/%s", userID, contentID)
}

func (s *MemoryStore) Grant(ctx context.Context, userID int64, contentID, transactionRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(userID, contentID)
	if _, ok := s.grants[key]; ok {
		return false, nil
	}
	s.grants[key] = Grant{
		UserID:         userID,
		ContentID:      contentID,
		TransactionRef: transactionRef,
		GrantedAt:      time.Now(),
	}
	return true, nil
}

func (s *MemoryStore) HasAccess(ctx context.Context, userID int64, contentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[pairKey(userID, contentID)]
	return ok, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID int64) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Grant{}
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}

// Count reports the total number of grants. Test helper.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.grants)
}
