package opt

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

const (
	defaultGenerations = 500
	maxPopulation      = 100
	eliteFraction      = 0.2
	tournamentSize     = 3
	mutationRate       = 0.02
	stagnationLimit    = 150
)

type genetic struct{}

func (genetic) Name() Algorithm { return Genetic }

// Optimize evolves permutations of the free nodes. Fitness is distance plus
// time plus weighted constraint excess; the best individual ever seen wins.
func (genetic) Optimize(in *instance, p params, rng *rand.Rand) ([]int, error) {
	k := len(in.free)
	if k < 2 {
		return in.route(in.free), nil
	}
	size := p.populationSize
	if size <= 0 {
		size = min(maxPopulation, 10*in.size())
	}
	size = max(size, 2)
	generations := p.maxIterations
	if generations <= 0 {
		generations = defaultGenerations
	}

	pop := make([][]int, size)
	pop[0] = append([]int(nil), in.free...)
	for i := 1; i < size; i++ {
		ind := append([]int(nil), in.free...)
		rng.Shuffle(k, func(a, b int) { ind[a], ind[b] = ind[b], ind[a] })
		pop[i] = ind
	}

	fitness := make([]float64, size)
	var best []int
	bestFit := math.Inf(1)
	stale := 0
	for gen := 0; ; gen++ {
		improved := false
		for i, ind := range pop {
			fitness[i] = in.fitness(ind)
			if fitness[i] < bestFit-scoreEps {
				bestFit = fitness[i]
				best = append(best[:0], ind...)
				improved = true
			}
		}
		if p.onGeneration != nil {
			p.onGeneration(gen)
		}
		if improved {
			stale = 0
		} else {
			stale++
		}
		if gen >= generations || stale >= stagnationLimit || p.expired() {
			break
		}

		order := make([]int, size)
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(fitness[a], fitness[b]) })

		elites := max(1, int(float64(size)*eliteFraction))
		next := make([][]int, 0, size)
		for _, i := range order[:elites] {
			next = append(next, append([]int(nil), pop[i]...))
		}
		for len(next) < size {
			a := tournament(pop, fitness, rng)
			b := tournament(pop, fitness, rng)
			child := orderCrossover(a, b, rng)
			if rng.Float64() < mutationRate {
				swapMutate(child, rng)
			}
			next = append(next, child)
		}
		pop = next
	}
	return in.route(best), nil
}

func (in *instance) fitness(free []int) float64 {
	route := in.route(free)
	ev := in.evaluate(route)
	return ev.TotalDistance + ev.TotalTime + in.penalty(route, ev)
}

// tournament returns the fittest of tournamentSize random individuals.
func tournament(pop [][]int, fitness []float64, rng *rand.Rand) []int {
	best := rng.Intn(len(pop))
	for i := 1; i < tournamentSize; i++ {
		if c := rng.Intn(len(pop)); fitness[c] < fitness[best] {
			best = c
		}
	}
	return pop[best]
}

// orderCrossover copies a random slice of a and fills the remaining slots with
// b's nodes in b's relative order.
func orderCrossover(a, b []int, rng *rand.Rand) []int {
	k := len(a)
	i, j := rng.Intn(k), rng.Intn(k)
	if i > j {
		i, j = j, i
	}
	child := make([]int, k)
	used := make(map[int]bool, j-i+1)
	for x := i; x <= j; x++ {
		child[x] = a[x]
		used[a[x]] = true
	}
	pos := 0
	for _, v := range b {
		if used[v] {
			continue
		}
		if pos == i {
			pos = j + 1
		}
		child[pos] = v
		pos++
	}
	return child
}

func swapMutate(ind []int, rng *rand.Rand) {
	i := rng.Intn(len(ind))
	j := rng.Intn(len(ind))
	ind[i], ind[j] = ind[j], ind[i]
}
