package metropolis

import (
	"math"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// MutationType identifies one mutation strategy
type MutationType int

const (
	MutationBidirectional MutationType = iota
	MutationLens
	MutationCaustic
	MutationMultiChain
	MutationManifold
	numMutationTypes
)

// String returns the strategy name
func (t MutationType) String() string {
	switch t {
	case MutationBidirectional:
		return "bidirectional"
	case MutationLens:
		return "lens"
	case MutationCaustic:
		return "caustic"
	case MutationMultiChain:
		return "multiChain"
	case MutationManifold:
		return "manifold"
	default:
		return "unknown"
	}
}

// Perturbation kernel bounds: offsets are drawn from an exponential
// distribution between minOffset and maxOffset of the unit interval
const (
	minOffset = 1.0 / 1024.0
	maxOffset = 1.0 / 64.0
)

// The first two draws of every path select the film/lens position
const lensDraws = 2

// mutationStrategy describes one entry in the weighted strategy table: how
// to propose a new primary sample vector from the current one, how likely
// the strategy is to be selected, and the symmetry correction its
// acceptance ratio must carry.
type mutationStrategy struct {
	Type      MutationType
	LargeStep bool    // Independent resample rather than local move
	Weight    float64 // Relative selection weight
	propose   func(current []float64, rng core.Sampler) []float64
	// correction is the transition symmetry/Jacobian factor given the
	// number of draws each path consumed
	correction func(currentLen, proposedLen int) float64
}

// buildStrategies assembles the enabled strategy table. Selection weights:
// the bidirectional mutation has weight 1 and each enabled perturbation has
// weight ProbFactor/50, so the default ProbFactor gives every enabled
// strategy equal weight and larger values favor local exploration.
func buildStrategies(cfg *Config) []mutationStrategy {
	perturbWeight := cfg.ProbFactor / 50.0
	// Manifold moves stay on a tighter radius scaled by ProbFactor
	manifoldMax := maxOffset * 50.0 / cfg.ProbFactor
	if manifoldMax <= minOffset {
		manifoldMax = minOffset * 2
	}

	var strategies []mutationStrategy

	if cfg.BidirectionalMutation {
		strategies = append(strategies, mutationStrategy{
			Type:      MutationBidirectional,
			LargeStep: true,
			Weight:    1.0,
			propose: func(current []float64, rng core.Sampler) []float64 {
				// Full independent resample: every draw comes fresh
				return nil
			},
			correction: func(currentLen, proposedLen int) float64 {
				// Uniform densities over the unit hypercube cancel except
				// for the dimension change between the two paths
				if proposedLen == 0 {
					return 1
				}
				return float64(currentLen) / float64(proposedLen)
			},
		})
	}
	if cfg.LensPerturbation {
		strategies = append(strategies, mutationStrategy{
			Type:   MutationLens,
			Weight: perturbWeight,
			propose: func(current []float64, rng core.Sampler) []float64 {
				// Perturb only the film/lens position; every later draw is
				// identical, so the path's non-lens segments are unchanged
				return perturbRange(current, 0, lensDraws, minOffset, maxOffset, rng)
			},
			correction: symmetricCorrection,
		})
	}
	if cfg.CausticPerturbation {
		strategies = append(strategies, mutationStrategy{
			Type:   MutationCaustic,
			Weight: perturbWeight,
			propose: func(current []float64, rng core.Sampler) []float64 {
				// Perturb the final scattering decision, lens position fixed
				from := len(current) - lensDraws
				if from < lensDraws {
					from = lensDraws
				}
				return perturbRange(current, from, len(current), minOffset, maxOffset, rng)
			},
			correction: symmetricCorrection,
		})
	}
	if cfg.MultiChainPerturbation {
		strategies = append(strategies, mutationStrategy{
			Type:   MutationMultiChain,
			Weight: perturbWeight,
			propose: func(current []float64, rng core.Sampler) []float64 {
				// Perturb every scattering decision after the lens
				return perturbRange(current, lensDraws, len(current), minOffset, maxOffset, rng)
			},
			correction: symmetricCorrection,
		})
	}
	if cfg.ManifoldPerturbation {
		strategies = append(strategies, mutationStrategy{
			Type:   MutationManifold,
			Weight: perturbWeight,
			propose: func(current []float64, rng core.Sampler) []float64 {
				// Small move of the whole vector, staying near the current
				// transport manifold
				return perturbRange(current, 0, len(current), minOffset/4, manifoldMax, rng)
			},
			correction: symmetricCorrection,
		})
	}

	return strategies
}

// symmetricCorrection is the correction for perturbations whose kernel is
// symmetric: T(x|y) = T(y|x), so the factor is 1
func symmetricCorrection(currentLen, proposedLen int) float64 {
	return 1
}

// totalWeight sums the selection weights of a strategy table
func totalWeight(strategies []mutationStrategy) float64 {
	total := 0.0
	for i := range strategies {
		total += strategies[i].Weight
	}
	return total
}

// selectStrategy picks a strategy from the weighted table given a uniform
// draw in [0, 1)
func selectStrategy(strategies []mutationStrategy, total float64, u float64) *mutationStrategy {
	target := u * total
	cumulative := 0.0
	for i := range strategies {
		cumulative += strategies[i].Weight
		if target < cumulative {
			return &strategies[i]
		}
	}
	return &strategies[len(strategies)-1]
}

// perturbRange copies the current vector and perturbs draws in [from, to)
// with the exponential offset kernel. Indices outside the range are
// byte-identical to the current path's draws.
func perturbRange(current []float64, from, to int, s1, s2 float64, rng core.Sampler) []float64 {
	proposed := make([]float64, len(current))
	copy(proposed, current)

	if to > len(proposed) {
		to = len(proposed)
	}
	for i := from; i < to; i++ {
		proposed[i] = perturbValue(proposed[i], s1, s2, rng.Get1D(), rng.Get1D())
	}
	return proposed
}

// perturbValue offsets a primary sample value by an exponentially
// distributed step in [s1, s2], in a uniformly random direction, wrapped
// back into [0, 1). The kernel is symmetric: the probability of moving
// from a to b equals that of moving from b to a.
func perturbValue(value, s1, s2, u1, u2 float64) float64 {
	offset := s2 * math.Exp(-math.Log(s2/s1)*u1)
	if u2 < 0.5 {
		value += offset
	} else {
		value -= offset
	}
	value -= math.Floor(value)
	if value >= 1 {
		value = 0
	}
	return value
}
