package game

import "context"

// ScoreTracker owns the current and best score for one engine.
// best is loaded once and only written back when current exceeds it.
type ScoreTracker struct {
	store   ScoreStore
	current int
	best    int
}

// NewScoreTracker returns a tracker backed by store. A nil store keeps scores in memory only.
func NewScoreTracker(store ScoreStore) *ScoreTracker {
	return &ScoreTracker{store: store}
}

// Load reads the persisted best score. On error best stays at 0 and the error is returned.
func (t *ScoreTracker) Load(ctx context.Context) (int, error) {
	if t.store == nil {
		return t.best, nil
	}
	best, err := t.store.Load(ctx)
	if err != nil {
		return t.best, err
	}
	if best > t.best {
		t.best = best
	}
	return t.best, nil
}

// RecordWin increments current and persists best when it is beaten.
// The returned error is the store's; the in-memory scores are updated regardless.
func (t *ScoreTracker) RecordWin(ctx context.Context) error {
	t.current++
	if t.current <= t.best {
		return nil
	}
	t.best = t.current
	if t.store == nil {
		return nil
	}
	return t.store.Save(ctx, t.best)
}

// RecordLoss resets current. best is untouched.
func (t *ScoreTracker) RecordLoss() { t.current = 0 }

func (t *ScoreTracker) Current() int { return t.current }
func (t *ScoreTracker) Best() int    { return t.best }
