// internal/store/memory.go
//
// In-memory implementation of Store.
// Characteristics:
//   - Scores keyed by owner then name; rounds kept per owner in insertion order.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"sync"
)

type memory struct {
	mu     sync.RWMutex
	scores map[string]map[string]int // owner → name → value
	rounds map[string][]RoundRecord  // owner → rounds, oldest first
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		scores: make(map[string]map[string]int),
		rounds: make(map[string][]RoundRecord),
	}
}

func (m *memory) Score(ctx context.Context, owner, name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scores[owner][name], nil
}

func (m *memory) SaveScore(ctx context.Context, owner, name string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value > m.scores[owner][name] {
		m.setScore(owner, name, value)
	}
	return nil
}

func (m *memory) setScore(owner, name string, value int) {
	byName, ok := m.scores[owner]
	if !ok {
		byName = make(map[string]int)
		m.scores[owner] = byName
	}
	byName[name] = value
}

func (m *memory) RecordRound(ctx context.Context, r RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.Owner] = append(m.rounds[r.Owner], r)
	return nil
}

func (m *memory) RecentRounds(ctx context.Context, owner string, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.rounds[owner]
	out := make([]RoundRecord, 0, min(limit, len(src)))
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

func (m *memory) Stats(ctx context.Context, owner string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Best: m.scores[owner][BestScoreKey]}
	for _, r := range m.rounds[owner] {
		st.Rounds++
		if r.Won {
			st.Wins++
		} else {
			st.Losses++
		}
	}
	return st, nil
}

func (m *memory) ClaimOwner(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	moved := m.rounds[from]
	for i := range moved {
		moved[i].Owner = to
	}
	merged := append(m.rounds[to], moved...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].FinishedAt.Before(merged[j].FinishedAt) })
	m.rounds[to] = merged
	delete(m.rounds, from)

	for name, v := range m.scores[from] {
		if v > m.scores[to][name] {
			m.setScore(to, name, v)
		}
	}
	delete(m.scores, from)
	return nil
}
