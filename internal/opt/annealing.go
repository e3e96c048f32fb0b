package opt

import (
	"math"
	"math/rand"
)

const (
	defaultTemperature         = 10000.0
	coolingRate                = 0.995
	minTemperature             = 1.0
	defaultAnnealingIterations = 10000
)

type annealing struct{}

func (annealing) Name() Algorithm { return SimulatedAnnealing }

// Optimize starts from input order and proposes swaps of two free nodes,
// accepting worse routes with probability exp(-delta/T).
func (annealing) Optimize(in *instance, p params, rng *rand.Rand) ([]int, error) {
	k := len(in.free)
	cur := append([]int(nil), in.free...)
	if k < 2 {
		return in.route(cur), nil
	}
	curEval := in.evaluate(in.route(cur))
	best, bestEval := append([]int(nil), cur...), curEval

	temp := p.temperature
	if temp <= 0 {
		temp = defaultTemperature
	}
	iterations := p.maxIterations
	if iterations <= 0 {
		iterations = defaultAnnealingIterations
	}
	for it := 0; it < iterations; it++ {
		if it&255 == 0 && p.expired() {
			break
		}
		i := rng.Intn(k)
		j := rng.Intn(k - 1)
		if j >= i {
			j++
		}
		cur[i], cur[j] = cur[j], cur[i]
		ev := in.evaluate(in.route(cur))
		delta := ev.energy() - curEval.energy()
		if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
			curEval = ev
			if better(ev, bestEval) {
				best = append(best[:0], cur...)
				bestEval = ev
			}
		} else {
			cur[i], cur[j] = cur[j], cur[i]
		}
		temp = math.Max(minTemperature, temp*coolingRate)
	}
	return in.route(best), nil
}
