package game

import (
	"fmt"
	"math/rand/v2"
)

// Default inclusive bounds for a round's target length.
const (
	DefaultMinLength = 3
	DefaultMaxLength = 5
)

// Sequencer produces the target sequence for each new round.
type Sequencer interface {
	Next() []Panel
}

// RandomSequencer draws a length uniformly from [Min, Max] and then each panel
// uniformly and independently. Consecutive repeats are allowed.
type RandomSequencer struct {
	Min, Max int
	rng      *rand.Rand
}

// NewRandomSequencer validates the bounds. A nil rng uses a randomly seeded source.
func NewRandomSequencer(min, max int, rng *rand.Rand) (*RandomSequencer, error) {
	if min < 1 || max < min {
		return nil, fmt.Errorf("game: invalid round length range %d..%d", min, max)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomSequencer{Min: min, Max: max, rng: rng}, nil
}

// Next returns a fresh target sequence.
func (s *RandomSequencer) Next() []Panel {
	n := s.Min + s.rng.IntN(s.Max-s.Min+1)
	seq := make([]Panel, n)
	for i := range seq {
		seq[i] = Panel(1 + s.rng.IntN(PanelCount))
	}
	return seq
}
