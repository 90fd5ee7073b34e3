package reputation

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	events   []Event
	profiles map[uuid.UUID]*Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[uuid.UUID]*Profile)}
}

// AppendEvent implements Store
func (s *MemoryStore) AppendEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// ApplyAward implements Store
func (s *MemoryStore) ApplyAward(ctx context.Context, event *Event, createMissing bool) (*Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)

	profile, ok := s.profiles[event.UserID]
	if !ok {
		if !createMissing {
			return nil, false, nil
		}
		profile = &Profile{UserID: event.UserID, Rank: RankCitizen}
		s.profiles[event.UserID] = profile
	}

	profile.XP += int64(event.Delta)
	profile.Rank = RankForXP(profile.XP)
	profile.UpdatedAt = event.CreatedAt

	out := *profile
	return &out, true, nil
}

// GetProfile implements Store
func (s *MemoryStore) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	out := *profile
	return &out, nil
}

// ListEvents implements Store
func (s *MemoryStore) ListEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Event, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID == userID {
			mine = append(mine, s.events[i])
		}
	}

	total := int64(len(mine))
	if offset >= len(mine) {
		return []Event{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], total, nil
}

// TopProfiles implements Store
func (s *MemoryStore) TopProfiles(ctx context.Context, limit int) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].XP != all[j].XP {
			return all[i].XP > all[j].XP
		}
		return bytes.Compare(all[i].UserID[:], all[j].UserID[:]) > 0
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CreateProfile seeds an empty profile. Used for sign-up and tests.
func (s *MemoryStore) CreateProfile(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		s.profiles[userID] = &Profile{UserID: userID, Rank: RankCitizen}
	}
}
