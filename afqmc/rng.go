package afqmc

import (
	"math/rand"
)

// mix64 is a splitmix64 finalizer round, used to decorrelate the seeds
// derived for neighboring (step, walker) pairs.
func mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// WalkerRNG derives an independent generator for one walker's update at one
// time step, deterministically from the run seed. Runs with the same seed
// are bit-for-bit reproducible regardless of worker scheduling.
func WalkerRNG(runSeed int64, step, walker int) *rand.Rand {
	s := mix64(uint64(runSeed))
	s = mix64(s ^ uint64(step)<<1)
	s = mix64(s ^ uint64(walker)<<1)
	return rand.New(rand.NewSource(int64(s)))
}

// SampleFields draws one independent standard-normal auxiliary field per
// Cholesky field.
func SampleFields(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}
