package metropolis

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

func testUnit(budget int) workUnit {
	return workUnit{
		id:           0,
		seed:         PathSeed{StreamSeed: 7, Luminance: 0.5},
		proposalSeed: 99,
		budget:       budget,
		width:        8,
		height:       8,
	}
}

func TestReplaySamplerReplaysThenExtends(t *testing.T) {
	tail := core.NewReplayableSampler(11)
	replay := newReplaySampler([]float64{0.1, 0.2}, tail)

	if got := replay.Get1D(); got != 0.1 {
		t.Errorf("First draw = %v, want replayed 0.1", got)
	}
	if got := replay.Get1D(); got != 0.2 {
		t.Errorf("Second draw = %v, want replayed 0.2", got)
	}

	// Past the vector, draws come from the tail stream and are recorded
	fresh := replay.Get1D()
	want := core.NewReplayableSampler(11).Get1D()
	if fresh != want {
		t.Errorf("Tail draw = %v, want %v from the tail stream", fresh, want)
	}
	consumed := replay.consumed()
	if len(consumed) != 3 || consumed[2] != fresh {
		t.Errorf("Consumed vector = %v, want replayed draws plus tail draw", consumed)
	}
}

func TestReplaySamplerConsumedStopsAtPosition(t *testing.T) {
	replay := newReplaySampler([]float64{0.1, 0.2, 0.3, 0.4}, core.NewReplayableSampler(1))
	replay.Get1D()
	replay.Get1D()

	if got := len(replay.consumed()); got != 2 {
		t.Errorf("Consumed %d draws, want 2", got)
	}
}

func TestRunChainSpendsFullBudget(t *testing.T) {
	const budget = 500
	result := runChain(context.Background(), make(chan struct{}), DefaultConfig(), &fakePathSampler{}, testUnit(budget))

	if result.err != nil {
		t.Fatalf("runChain failed: %v", result.err)
	}
	if result.stats.Proposals != budget {
		t.Errorf("Proposals = %d, want %d", result.stats.Proposals, budget)
	}
	if result.stats.Accepted <= 0 {
		t.Error("Expected some accepted mutations")
	}
	if result.stats.Accepted > result.stats.Proposals {
		t.Errorf("Accepted %d exceeds proposals %d", result.stats.Accepted, result.stats.Proposals)
	}
}

func TestRunChainSplatWeightConservation(t *testing.T) {
	// Every step splats current and candidate with weights summing to 1,
	// and each splat is normalized to unit brightness, so the film's red
	// channel must total exactly the budget.
	const budget = 300
	result := runChain(context.Background(), make(chan struct{}), DefaultConfig(), &fakePathSampler{}, testUnit(budget))
	if result.err != nil {
		t.Fatalf("runChain failed: %v", result.err)
	}

	sum := 0.0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum += result.film.At(x, y).X
		}
	}
	if math.Abs(sum-budget) > 1e-6 {
		t.Errorf("Total splatted weight = %v, want %d", sum, budget)
	}
}

func TestRunChainDeterministic(t *testing.T) {
	first := runChain(context.Background(), make(chan struct{}), DefaultConfig(), &fakePathSampler{}, testUnit(200))
	second := runChain(context.Background(), make(chan struct{}), DefaultConfig(), &fakePathSampler{}, testUnit(200))

	if first.stats != second.stats {
		t.Errorf("Stats differ across identical runs: %+v vs %+v", first.stats, second.stats)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if first.film.At(x, y) != second.film.At(x, y) {
				t.Fatalf("Pixel (%d,%d) differs across identical runs", x, y)
			}
		}
	}
}

func TestRunChainDegenerateSeed(t *testing.T) {
	result := runChain(context.Background(), make(chan struct{}), DefaultConfig(), &fakePathSampler{failAll: true}, testUnit(100))

	if !errors.Is(result.err, ErrDegenerateSeed) {
		t.Errorf("Expected ErrDegenerateSeed, got %v", result.err)
	}
}

func TestRunChainStopChannel(t *testing.T) {
	stop := make(chan struct{})
	close(stop)

	result := runChain(context.Background(), stop, DefaultConfig(), &fakePathSampler{}, testUnit(100000))
	if result.err != nil {
		t.Errorf("Stopped chain should not report an error, got %v", result.err)
	}
	if result.stats.Proposals >= 100000 {
		t.Errorf("Stopped chain spent the full budget (%d proposals)", result.stats.Proposals)
	}
}

func TestRunChainContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := runChain(ctx, make(chan struct{}), DefaultConfig(), &fakePathSampler{}, testUnit(100000))
	if !errors.Is(result.err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", result.err)
	}
}

func TestRunChainHandlesVaryingPathLength(t *testing.T) {
	// Paths that consume extra draws exercise the replay tail and the
	// dimension-change correction of the bidirectional mutation
	result := runChain(context.Background(), make(chan struct{}), DefaultConfig(), &fakePathSampler{extraDraws: 5}, testUnit(300))
	if result.err != nil {
		t.Fatalf("runChain failed: %v", result.err)
	}
	if result.stats.Proposals != 300 {
		t.Errorf("Proposals = %d, want 300", result.stats.Proposals)
	}
}

func TestRunChainPerturbationsOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BidirectionalMutation = false
	cfg.LensPerturbation = true
	cfg.CausticPerturbation = true
	cfg.MultiChainPerturbation = true
	cfg.ManifoldPerturbation = true

	result := runChain(context.Background(), make(chan struct{}), cfg, &fakePathSampler{}, testUnit(400))
	if result.err != nil {
		t.Fatalf("runChain failed: %v", result.err)
	}
	if result.stats.LargeProposals != 0 {
		t.Errorf("Perturbation-only chain recorded %d large steps", result.stats.LargeProposals)
	}
	if result.stats.Proposals != 400 {
		t.Errorf("Proposals = %d, want 400", result.stats.Proposals)
	}
}
