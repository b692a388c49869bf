package metropolis

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// SceneCapabilities reports features of the underlying scene that decide
// whether Metropolis rendering is possible
type SceneCapabilities interface {
	HasSubsurface() bool
}

// RenderOptions configures one render invocation
type RenderOptions struct {
	// NumWorkers is the number of parallel chain executors (0 = CPU count)
	NumWorkers int

	// OnUnitComplete, when set, is called from the aggregation goroutine
	// as each work unit's partial image is merged
	OnUnitComplete func(UnitProgress)
}

// UnitProgress describes one merged work unit
type UnitProgress struct {
	UnitID     int
	UnitsDone  int
	TotalUnits int
	Stats      ChainStats
}

// RenderResult contains the developed image, the raw film and statistics
type RenderResult struct {
	Image *image.RGBA
	Film  *Film
	Stats RenderStats
}

// Renderer orchestrates a Metropolis render: preconditions, the optional
// two-stage pre-pass, the direct-illumination pass, seed generation, chain
// dispatch and final aggregation. The orchestrator exclusively owns the
// in-flight render and exposes a narrow Cancel capability; work units only
// get read-only access to the immutable configuration.
type Renderer struct {
	sampler         PathSampler
	direct          DirectRenderer
	baseSampler     core.Sampler
	config          *Config
	width, height   int
	samplesPerPixel int
	logger          core.Logger
	numWorkers      int

	mu           sync.Mutex
	cancelRender context.CancelFunc
	cancelNested context.CancelFunc
}

// NewRenderer creates a Metropolis renderer over the given path-sampling
// capability. Preconditions are enforced here, before any rendering work:
// the scene must not need subsurface integrators, and the bound sampler
// must be an independent-sampling kind (chain states are reconstructed by
// per-path replay, which arbitrary sampler state cannot support).
func NewRenderer(sampler PathSampler, direct DirectRenderer, baseSampler core.Sampler, config *Config, width, height, samplesPerPixel int, logger core.Logger) (*Renderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || samplesPerPixel <= 0 {
		return nil, fmt.Errorf("invalid crop %dx%d at %d samples/pixel", width, height, samplesPerPixel)
	}
	if caps, ok := sampler.(SceneCapabilities); ok && caps.HasSubsurface() {
		return nil, ErrUnsupportedScene
	}
	if _, ok := baseSampler.(core.IndependentSampler); !ok {
		return nil, ErrUnsupportedSampler
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}

	return &Renderer{
		sampler:         sampler,
		direct:          direct,
		baseSampler:     baseSampler,
		config:          config,
		width:           width,
		height:          height,
		samplesPerPixel: samplesPerPixel,
		logger:          logger,
	}, nil
}

// Cancel stops an in-flight render: the nested two-stage job first (if
// any), then the outer work-unit dispatch. Chains notice at proposal
// boundaries and terminate promptly.
func (r *Renderer) Cancel() {
	r.mu.Lock()
	nested := r.cancelNested
	outer := r.cancelRender
	r.mu.Unlock()

	if nested != nil {
		nested()
	}
	if outer != nil {
		outer()
	}
}

// Render runs the full pipeline and returns the developed image. Failures
// surface as errors, never as partial results: a failed work unit fails
// the whole render, because merging a partially corrupted Markov-chain
// estimate would silently bias the image.
func (r *Renderer) Render(ctx context.Context, options RenderOptions) (*RenderResult, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancelRender = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancelRender = nil
		r.mu.Unlock()
	}()

	cfg := r.config
	r.numWorkers = options.NumWorkers
	if r.numWorkers <= 0 {
		r.numWorkers = runtime.NumCPU()
	}

	if err := cfg.deriveCounts(r.width, r.height, r.samplesPerPixel); err != nil {
		return nil, err
	}

	// This instance IS the nested coarse pass when both flags are set
	nested := cfg.TwoStage && cfg.FirstStage

	r.logger.Printf("Starting %sMetropolis render (%dx%d, %d work units, %d mutations/unit)\n",
		prefixIf(nested, "nested "), r.width, r.height, cfg.WorkUnits, cfg.NMutations())

	// The direct pass has no dependency on the two-stage pre-pass, so the
	// two may run concurrently
	var directPixels []core.Vec3
	var directErr error
	directDone := make(chan struct{})
	if cfg.SeparateDirect && cfg.DirectSamples > 0 && !nested {
		go func() {
			defer close(directDone)
			directPixels, directErr = r.renderDirectPass(ctx)
		}()
	} else {
		close(directDone)
	}

	if cfg.TwoStage && !cfg.FirstStage {
		r.logger.Printf("Executing first Metropolis stage (%dx reduction)\n", cfg.FirstStageSizeReduction)
		importanceMap, err := r.renderFirstStage(ctx)
		if err != nil {
			r.logger.Printf("Warning: first-stage process failed: %v\n", err)
			<-directDone
			return nil, err
		}
		if err := cfg.SetImportanceMap(importanceMap); err != nil {
			<-directDone
			return nil, err
		}
	}

	<-directDone
	if directErr != nil {
		return nil, directErr
	}

	// Two seed passes over independent draws: first estimate the mean
	// luminance (the normalization constant of the estimator), then select
	// the actual chain starting points by importance resampling
	estimateBase := randomSeed(r.baseSampler)
	selectBase := randomSeed(r.baseSampler)

	meanLuminance, _, err := generateSeeds(r.sampler, cfg, cfg.LuminanceSamples, cfg.WorkUnits, false, estimateBase, r.baseSampler)
	if err != nil {
		return nil, err
	}
	if err := cfg.setLuminance(meanLuminance); err != nil {
		return nil, err
	}

	_, seeds, err := generateSeeds(r.sampler, cfg, cfg.LuminanceSamples, cfg.WorkUnits, true, selectBase, r.baseSampler)
	if err != nil {
		return nil, err
	}

	if !nested {
		cfg.Dump(r.logger)
	}

	film, stats, err := r.dispatchUnits(ctx, seeds, options)
	if err != nil {
		return nil, err
	}

	// Convert splatted contributions into physically normalized pixel
	// values: scale by the mean luminance over the per-pixel mutation
	// count actually consumed (a timeout may have ended chains early)
	if stats.Proposals > 0 {
		mutationsPerPixel := float64(stats.Proposals) / float64(r.width*r.height)
		film.Scale(cfg.Luminance() / mutationsPerPixel)
	}

	if directPixels != nil {
		if err := film.AddImage(directPixels); err != nil {
			return nil, err
		}
	}

	stats.Units = cfg.WorkUnits
	stats.Duration = time.Since(start)
	if !nested {
		stats.Dump(r.logger)
	}

	return &RenderResult{
		Image: film.Develop(),
		Film:  film,
		Stats: stats,
	}, nil
}

// dispatchUnits runs one Markov chain per work unit across the worker pool
// and merges the partial images single-threaded as results arrive
func (r *Renderer) dispatchUnits(ctx context.Context, seeds []PathSeed, options RenderOptions) (*Film, RenderStats, error) {
	cfg := r.config

	// Wall-clock timeout closes the stop channel; chains drain their
	// remaining budget early and report what they consumed
	stop := make(chan struct{})
	if cfg.Timeout > 0 {
		timer := time.AfterFunc(time.Duration(cfg.Timeout)*time.Second, func() { close(stop) })
		defer timer.Stop()
	}

	pool := newUnitPool(min(r.numWorkers, cfg.WorkUnits), cfg.WorkUnits, func(unit workUnit) unitResult {
		return runChain(ctx, stop, cfg, r.sampler, unit)
	})

	for i, seed := range seeds {
		pool.submit(workUnit{
			id:           i,
			seed:         seed,
			proposalSeed: randomSeed(r.baseSampler),
			budget:       cfg.NMutations(),
			width:        r.width,
			height:       r.height,
		})
	}

	film := NewFilm(r.width, r.height)
	var stats RenderStats
	var firstErr error

	for done := 0; done < cfg.WorkUnits; done++ {
		result, ok := pool.next()
		if !ok {
			return nil, stats, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}

		if err := film.Merge(result.film); err != nil {
			return nil, stats, err
		}
		stats.ChainStats.merge(result.stats)

		if options.OnUnitComplete != nil {
			options.OnUnitComplete(UnitProgress{
				UnitID:     result.id,
				UnitsDone:  done + 1,
				TotalUnits: cfg.WorkUnits,
				Stats:      result.stats,
			})
		}
	}
	pool.stop()

	if firstErr != nil {
		return nil, stats, firstErr
	}
	return film, stats, nil
}

// unitPool manages parallel chain execution with buffered task and result
// queues; the buffers hold every unit so submission never blocks
type unitPool struct {
	tasks   chan workUnit
	results chan unitResult
	wg      sync.WaitGroup
}

func newUnitPool(numWorkers, capacity int, run func(workUnit) unitResult) *unitPool {
	p := &unitPool{
		tasks:   make(chan workUnit, capacity),
		results: make(chan unitResult, capacity),
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				p.results <- run(task)
			}
		}()
	}
	return p
}

// submit queues a work unit
func (p *unitPool) submit(unit workUnit) {
	p.tasks <- unit
}

// next retrieves a completed unit result
func (p *unitPool) next() (unitResult, bool) {
	result, ok := <-p.results
	return result, ok
}

// stop shuts down the workers after all submitted units finished
func (p *unitPool) stop() {
	close(p.tasks)
	p.wg.Wait()
	close(p.results)
}

// randomSeed derives a 64-bit stream seed from a sampler's draws
func randomSeed(s core.Sampler) uint64 {
	hi := uint64(s.Get1D() * (1 << 32))
	lo := uint64(s.Get1D() * (1 << 32))
	return hi<<32 | lo
}

func prefixIf(cond bool, prefix string) string {
	if cond {
		return prefix
	}
	return ""
}
