package opt

import (
	"math/rand"
	"time"
)

// optimizer is one interchangeable search strategy. Implementations return a
// full route (head, free nodes, tail) as indices into in.nodes.
type optimizer interface {
	Name() Algorithm
	Optimize(in *instance, p params, rng *rand.Rand) ([]int, error)
}

// params are the resolved knobs handed to an optimizer. Zero values select the
// optimizer's own defaults.
type params struct {
	maxIterations  int
	populationSize int
	temperature    float64
	deadline       time.Time
	now            func() time.Time
	// onGeneration, if set, is called with each evaluated generation.
	onGeneration func(gen int)
}

func (p params) expired() bool {
	if p.deadline.IsZero() {
		return false
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	return now().After(p.deadline)
}
