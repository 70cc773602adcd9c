package genotype

import (
	"math/rand"
	"time"
)

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// randomWeight is uniform in [-1, 1).
func randomWeight(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}
