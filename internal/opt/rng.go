package opt

import (
	"hash/fnv"
	"math/rand"
)

// streamSeed mixes the call seed with a per-algorithm stream id (SplitMix64
// finalizer) so each optimizer draws an independent, reproducible sequence.
// A standalone run and the same algorithm inside hybrid see the same stream.
func streamSeed(seed int64, algo Algorithm) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(algo))
	x := uint64(seed) ^ (h.Sum64() + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}

func streamRNG(seed int64, algo Algorithm) *rand.Rand {
	return rand.New(rand.NewSource(streamSeed(seed, algo)))
}
