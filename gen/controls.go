package gen

import "math/rand/v2"

// Controls bounds and biases generation (§4.C). No PRNG library appears
// anywhere in the example corpus; math/rand/v2's PCG source is the
// idiomatic stdlib choice for seeded, reproducible sequences (see
// DESIGN.md).
type Controls struct {
	RNG                *rand.Rand
	MountBaseDir       string
	MaxDepth           int
	MaxArrayLen        int
	MaxStringLen       int
	GenerateFlags      bool
	GenerateNumericals bool
}

// DefaultControls returns Controls seeded deterministically from seed,
// with conservative size caps suitable for fuzzing a real filesystem.
func DefaultControls(seed uint64) Controls {
	return Controls{
		RNG:                rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		MaxDepth:           6,
		MaxArrayLen:        8,
		MaxStringLen:       32,
		GenerateFlags:      true,
		GenerateNumericals: true,
	}
}

func (c Controls) boolean() bool {
	return c.RNG.IntN(2) == 1
}

func (c Controls) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return c.RNG.IntN(n)
}

func (c Controls) uint32n(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return uint32(c.RNG.Uint32N(n))
}
