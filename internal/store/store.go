// internal/store/store.go
//
// Persistence interface for scores and round history.
// Implementations:
//   - memory.go: map-backed, lost on restart (tests, guest-only setups).
//   - sqlite.go: durable, used by `serve` and `play`.
//
// Scores are keyed by owner (user id, anonymous id, or "local") and a logical
// name; the engine only ever uses BestScoreKey.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/robalobadob/memorygame/internal/game"
)

// BestScoreKey is the logical name the best score is stored under.
const BestScoreKey = "best_score"

// ErrNotFound is returned when a lookup has no row.
var ErrNotFound = errors.New("store: not found")

// RoundRecord is one finished round.
type RoundRecord struct {
	ID         string    `json:"id"`
	Owner      string    `json:"-"`
	Length     int       `json:"length"`
	Taps       int       `json:"taps"`
	Won        bool      `json:"won"`
	Score      int       `json:"score"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Stats summarises an owner's history.
type Stats struct {
	Best   int `json:"best"`
	Rounds int `json:"rounds"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Store defines the persistence operations the game layers need.
type Store interface {
	// Score returns the stored value for owner/name, or 0 if none.
	Score(ctx context.Context, owner, name string) (int, error)

	// SaveScore upserts the value for owner/name. A lower value never replaces a
	// higher one, so a stale writer cannot lower a best score.
	SaveScore(ctx context.Context, owner, name string, value int) error

	// RecordRound appends a finished round.
	RecordRound(ctx context.Context, r RoundRecord) error

	// RecentRounds returns the newest rounds first.
	RecentRounds(ctx context.Context, owner string, limit int) ([]RoundRecord, error)

	// Stats aggregates the owner's best score and round counts.
	Stats(ctx context.Context, owner string) (Stats, error)

	// ClaimOwner moves history from one owner to another, keeping the higher best score.
	ClaimOwner(ctx context.Context, from, to string) error
}

// Bind adapts s to the engine's ScoreStore for a single owner.
func Bind(s Store, owner string) game.ScoreStore {
	return boundScores{s: s, owner: owner}
}

type boundScores struct {
	s     Store
	owner string
}

func (b boundScores) Load(ctx context.Context) (int, error) {
	return b.s.Score(ctx, b.owner, BestScoreKey)
}

func (b boundScores) Save(ctx context.Context, best int) error {
	return b.s.SaveScore(ctx, b.owner, BestScoreKey, best)
}

// FromResult converts an engine round result for owner.
func FromResult(owner string, r game.RoundResult) RoundRecord {
	return RoundRecord{
		ID:         r.Round,
		Owner:      owner,
		Length:     r.Length,
		Taps:       r.Taps,
		Won:        r.Won,
		Score:      r.Current,
		FinishedAt: r.At,
	}
}
