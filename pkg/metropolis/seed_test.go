package metropolis

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

func testSelector() core.Sampler {
	return core.NewRandomSampler(rand.New(rand.NewSource(42)))
}

func TestGenerateSeedsEstimatePassIndependence(t *testing.T) {
	sampler := &fakePathSampler{}
	cfg := DefaultConfig()
	cfg.SeparateDirect = false

	const estimateBase = 1000

	// Estimate alone
	first, _, err := generateSeeds(sampler, cfg, 500, 4, false, estimateBase, testSelector())
	if err != nil {
		t.Fatalf("Estimate pass failed: %v", err)
	}

	// Run the selection pass in between, on its own independent base
	if _, _, err := generateSeeds(sampler, cfg, 500, 4, true, 777777, testSelector()); err != nil {
		t.Fatalf("Selection pass failed: %v", err)
	}

	// Re-running the estimate must reproduce the same mean exactly: the
	// two passes share no random state
	second, _, err := generateSeeds(sampler, cfg, 500, 4, false, estimateBase, testSelector())
	if err != nil {
		t.Fatalf("Repeated estimate pass failed: %v", err)
	}
	if first != second {
		t.Errorf("Estimate changed after selection pass ran: %v != %v", first, second)
	}
}

func TestGenerateSeedsSelectsExactly(t *testing.T) {
	sampler := &fakePathSampler{}
	cfg := DefaultConfig()

	for _, p := range []int{1, 4, 17} {
		_, seeds, err := generateSeeds(sampler, cfg, 300, p, true, 5, testSelector())
		if err != nil {
			t.Fatalf("generateSeeds(p=%d) failed: %v", p, err)
		}
		if len(seeds) != p {
			t.Errorf("Expected exactly %d seeds, got %d", p, len(seeds))
		}
		for _, s := range seeds {
			if s.Luminance <= 0 {
				t.Errorf("Selected seed %d carries no energy", s.StreamSeed)
			}
			if s.StreamSeed < 5 || s.StreamSeed >= 5+300 {
				t.Errorf("Seed stream %d outside the candidate range", s.StreamSeed)
			}
		}
	}
}

func TestGenerateSeedsNoEnergy(t *testing.T) {
	sampler := &fakePathSampler{failAll: true}
	cfg := DefaultConfig()

	_, _, err := generateSeeds(sampler, cfg, 100, 4, true, 1, testSelector())
	if !errors.Is(err, ErrNoEnergy) {
		t.Errorf("Expected ErrNoEnergy, got %v", err)
	}
}

func TestResampleSeedsProportional(t *testing.T) {
	// A candidate carrying 90% of the total luminance should win about
	// 90% of the slots under stratified resampling
	candidates := []PathSeed{
		{StreamSeed: 1, Luminance: 9},
		{StreamSeed: 2, Luminance: 1},
	}

	seeds, err := resampleSeeds(candidates, 10, 100, testSelector())
	if err != nil {
		t.Fatalf("resampleSeeds failed: %v", err)
	}
	if len(seeds) != 100 {
		t.Fatalf("Expected 100 seeds, got %d", len(seeds))
	}

	bright := 0
	for _, s := range seeds {
		if s.StreamSeed == 1 {
			bright++
		}
	}
	// Stratified resampling pins the count to within one slot of exact
	if math.Abs(float64(bright)-90) > 1 {
		t.Errorf("Bright candidate selected %d times, want ~90", bright)
	}
}

func TestResampleSeedsSingleCandidate(t *testing.T) {
	seeds, err := resampleSeeds([]PathSeed{{StreamSeed: 3, Luminance: 2}}, 2, 5, testSelector())
	if err != nil {
		t.Fatalf("resampleSeeds failed: %v", err)
	}
	if len(seeds) != 5 {
		t.Fatalf("Expected 5 seeds, got %d", len(seeds))
	}
	for _, s := range seeds {
		if s.StreamSeed != 3 {
			t.Errorf("Unexpected stream seed %d", s.StreamSeed)
		}
	}
}
