package dice

import (
	"errors"
	"math/rand"
)

// ErrInvalidSides indicates a die with fewer than two faces.
var ErrInvalidSides = errors.New("dice must have at least two sides")

// Source is the randomness a Resolver draws from.
type Source interface {
	Intn(n int) int
}

// NewSource returns a seeded pseudo-random source. The same seed yields the
// same sequence of faces.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Replay plays back recorded faces in order and wraps around when exhausted.
// Faces outside [1, n] are clamped.
type Replay struct {
	Faces []int
	pos   int
}

func NewReplay(faces ...int) *Replay {
	return &Replay{Faces: faces}
}

func (r *Replay) Intn(n int) int {
	if len(r.Faces) == 0 || n <= 0 {
		return 0
	}
	face := r.Faces[r.pos%len(r.Faces)]
	r.pos++
	return clamp(face, 1, n) - 1
}

// Resolver rolls a single die with a fixed number of sides.
type Resolver struct {
	src   Source
	sides int
}

func NewResolver(src Source, sides int) (*Resolver, error) {
	if sides < 2 {
		return nil, ErrInvalidSides
	}
	if src == nil {
		src = NewSource(1)
	}
	return &Resolver{src: src, sides: sides}, nil
}

func (r *Resolver) Sides() int { return r.sides }

// Resolve rolls once and classifies the face.
func (r *Resolver) Resolve(t Thresholds) Outcome {
	return Classify(r.roll(), t)
}

// Best is the result of rolling several times and keeping the highest face.
type Best struct {
	Outcome Outcome
	// Raws holds every face in roll order, for multi-die display.
	Raws  []int
	Index int
}

// ResolveBest rolls attempts times and keeps the highest face. Ties keep the
// earliest attempt.
func (r *Resolver) ResolveBest(t Thresholds, attempts int) Best {
	if attempts < 1 {
		attempts = 1
	}
	best := Best{Raws: make([]int, 0, attempts)}
	for i := 0; i < attempts; i++ {
		o := r.Resolve(t)
		best.Raws = append(best.Raws, o.Raw)
		if i == 0 || o.Better(best.Outcome) {
			best.Outcome = o
			best.Index = i
		}
	}
	return best
}

func (r *Resolver) roll() int {
	return r.src.Intn(r.sides) + 1
}
