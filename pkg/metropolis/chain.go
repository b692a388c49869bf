package metropolis

import (
	"context"
	"fmt"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// Cancellation and timeout are checked at proposal boundaries this often
const cancelCheckInterval = 256

// replaySampler replays a fixed primary sample vector and falls back to a
// live stream once the vector is exhausted (a mutated path can consume more
// draws than its predecessor). Every draw issued, replayed or fresh, is
// recorded so the consumed vector of the resulting path is known exactly.
type replaySampler struct {
	draws []float64
	pos   int
	tail  core.Sampler
}

func newReplaySampler(draws []float64, tail core.Sampler) *replaySampler {
	return &replaySampler{draws: draws, tail: tail}
}

// Get1D replays the next vector entry or draws fresh from the tail stream
func (r *replaySampler) Get1D() float64 {
	if r.pos < len(r.draws) {
		v := r.draws[r.pos]
		r.pos++
		return v
	}
	v := r.tail.Get1D()
	r.draws = append(r.draws, v)
	r.pos++
	return v
}

// Get2D returns the next two draws
func (r *replaySampler) Get2D() core.Vec2 {
	return core.NewVec2(r.Get1D(), r.Get1D())
}

// Get3D returns the next three draws
func (r *replaySampler) Get3D() core.Vec3 {
	return core.NewVec3(r.Get1D(), r.Get1D(), r.Get1D())
}

// consumed returns the draws the traced path actually used
func (r *replaySampler) consumed() []float64 {
	return r.draws[:r.pos]
}

// chainState is a Markov chain's current position in path space: the
// path's sample plus the primary draws that reconstruct it. Owned
// exclusively by one work unit, never shared.
type chainState struct {
	sample core.PathSample
	draws  []float64
}

// workUnit is one independent chain assignment: a seed, a deterministic
// proposal stream, a mutation budget, and a private film accumulator
type workUnit struct {
	id            int
	seed          PathSeed
	proposalSeed  uint64
	budget        int
	width, height int
}

// unitResult carries a completed (or failed) work unit's partial image and
// acceptance statistics back to the aggregator
type unitResult struct {
	id    int
	film  *Film
	stats ChainStats
	err   error
}

// runChain executes one work unit's Markov chain to completion: reconstruct
// the seed path, then repeatedly propose a mutation, compute the Metropolis
// acceptance probability, splat BOTH the current and the candidate path with
// complementary weights, and accept or reject. The complementary splatting
// keeps the estimator unbiased even when a bidirectional mutation moves
// focus across very different parts of the image.
//
// A close of the stop channel (wall-clock timeout) ends the chain early
// without error; context cancellation aborts with the context's error.
func runChain(ctx context.Context, stop <-chan struct{}, cfg *Config, sampler PathSampler, unit workUnit) unitResult {
	result := unitResult{id: unit.id, film: NewFilm(unit.width, unit.height)}

	// Seeded: reconstruct the chain's starting path by replaying its stream
	seedStream := core.NewReplayableSampler(unit.seed.StreamSeed)
	seeded := newReplaySampler(nil, seedStream)
	sample, ok := sampler.SamplePath(seeded, cfg.MaxDepth, !cfg.SeparateDirect)
	if !ok || sample.Luminance() <= 0 {
		result.err = fmt.Errorf("work unit %d: %w", unit.id, ErrDegenerateSeed)
		return result
	}
	current := chainState{sample: sample, draws: seeded.consumed()}

	strategies := buildStrategies(cfg)
	weightTotal := totalWeight(strategies)
	rng := core.NewReplayableSampler(unit.proposalSeed)

	for i := 0; i < unit.budget; i++ {
		if i%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				result.err = ctx.Err()
				return result
			case <-stop:
				return result // Timeout: partial budget is a valid result
			default:
			}
		}

		strategy := selectStrategy(strategies, weightTotal, rng.Get1D())

		proposer := newReplaySampler(strategy.propose(current.draws, rng), rng)
		proposal, proposalOK := sampler.SamplePath(proposer, cfg.MaxDepth, !cfg.SeparateDirect)

		a := 0.0
		if proposalOK {
			correction := strategy.correction(len(current.draws), proposer.pos)
			a = acceptance(cfg, current.sample, proposal, correction)
		}

		// Both paths are splatted every step with complementary weights
		if a < 1 {
			splatSample(cfg, result.film, current.sample, 1-a)
		}
		if a > 0 {
			splatSample(cfg, result.film, proposal, a)
		}

		accepted := a > 0 && rng.Get1D() < a
		result.stats.record(strategy.Type, strategy.LargeStep, accepted)
		if accepted {
			current = chainState{sample: proposal, draws: proposer.consumed()}
		}
	}

	return result
}

// acceptance returns the Metropolis-Hastings acceptance probability for a
// proposed move: the ratio of candidate to current target value, scaled by
// the strategy's symmetry/Jacobian correction and clamped to [0, 1]
func acceptance(cfg *Config, current, proposal core.PathSample, correction float64) float64 {
	currentTarget := effectiveLuminance(cfg, current)
	if currentTarget <= 0 {
		return 1
	}
	a := effectiveLuminance(cfg, proposal) / currentTarget * correction
	if a > 1 {
		return 1
	}
	if a < 0 {
		return 0
	}
	return a
}

// effectiveLuminance is the target the chain samples proportionally to:
// path luminance divided by the two-stage importance weight at its film
// position (1 when no map is installed)
func effectiveLuminance(cfg *Config, sample core.PathSample) float64 {
	return sample.Luminance() / cfg.ImportanceAt(sample.U, sample.V)
}

// splatSample adds a path's weighted contribution to the partial image.
// The contribution is normalized by the path's own effective luminance so
// each splat carries unit expected brightness; the aggregator later scales
// the film by the estimated mean luminance.
func splatSample(cfg *Config, film *Film, sample core.PathSample, weight float64) {
	target := effectiveLuminance(cfg, sample)
	if target <= 0 {
		return
	}
	film.Splat(sample.U, sample.V, sample.Contribution.Multiply(weight/target))
}
