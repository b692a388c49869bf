package metropolis

import (
	"fmt"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// PathSeed references a chain starting point: the replayable stream seed
// that regenerates the path, plus the path's contribution at generation
// time. Seeds are created in bulk, partitioned one per work unit, consumed
// once to initialize that unit's chain, and then discarded.
type PathSeed struct {
	StreamSeed uint64
	Luminance  float64
}

// generateSeeds performs one of the two seed-generation passes over n
// independently drawn candidate paths. With selectSeeds=false it only
// estimates the mean target luminance — the normalization constant that
// keeps the Metropolis estimator unbiased. With selectSeeds=true it also
// selects exactly p chain starting points by stratified importance
// resampling, proportional to each candidate's contribution.
//
// The two passes must use independent draws, so callers pass different
// stream bases; candidate i draws from stream seed streamBase+i.
func generateSeeds(sampler PathSampler, cfg *Config, n, p int, selectSeeds bool, streamBase uint64, selector core.Sampler) (float64, []PathSeed, error) {
	if n <= 0 {
		return 0, nil, fmt.Errorf("luminance sample count must be positive, got %d", n)
	}

	var candidates []PathSeed
	if selectSeeds {
		candidates = make([]PathSeed, 0, n)
	}

	totalLuminance := 0.0
	for i := 0; i < n; i++ {
		stream := core.NewReplayableSampler(streamBase + uint64(i))
		sample, ok := sampler.SamplePath(stream, cfg.MaxDepth, !cfg.SeparateDirect)
		if !ok {
			continue
		}

		// Sample proportionally to the reweighted target when a two-stage
		// importance map is present, so the normalization matches what the
		// chains actually explore
		luminance := sample.Luminance() / cfg.ImportanceAt(sample.U, sample.V)
		totalLuminance += luminance

		if selectSeeds {
			candidates = append(candidates, PathSeed{
				StreamSeed: streamBase + uint64(i),
				Luminance:  luminance,
			})
		}
	}

	if totalLuminance <= 0 {
		return 0, nil, ErrNoEnergy
	}
	meanLuminance := totalLuminance / float64(n)

	if !selectSeeds {
		return meanLuminance, nil, nil
	}

	seeds, err := resampleSeeds(candidates, totalLuminance, p, selector)
	if err != nil {
		return 0, nil, err
	}
	return meanLuminance, seeds, nil
}

// resampleSeeds picks exactly p seeds with probability proportional to
// luminance using stratified (systematic) resampling: one jittered pick
// per equal slice of the cumulative luminance. High-contribution paths
// can be picked more than once, which is intentional — bright "fireflies"
// deserve proportionally more chain time.
func resampleSeeds(candidates []PathSeed, totalLuminance float64, p int, selector core.Sampler) ([]PathSeed, error) {
	if p <= 0 {
		return nil, fmt.Errorf("seed partition count must be positive, got %d", p)
	}
	if len(candidates) == 0 {
		return nil, ErrNoEnergy
	}

	seeds := make([]PathSeed, 0, p)
	step := totalLuminance / float64(p)
	next := selector.Get1D() * step

	cumulative := 0.0
	index := 0
	for _, c := range candidates {
		cumulative += c.Luminance
		for index < p && cumulative > next {
			seeds = append(seeds, c)
			index++
			next += step
		}
	}

	// Floating point roundoff can leave the last slice unfilled
	for len(seeds) < p {
		seeds = append(seeds, candidates[len(candidates)-1])
	}

	return seeds, nil
}
