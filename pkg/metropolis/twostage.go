package metropolis

import (
	"context"
	"fmt"
)

// ImportanceMap is a per-pixel weighting produced by the two-stage first
// pass. Weights are strictly positive and mean-normalized to 1; the outer
// run divides path luminance by the weight at its film position, making the
// chains spend proportionally more time where the first stage saw little
// energy.
type ImportanceMap struct {
	width, height int
	weights       []float64
}

// NewImportanceMap creates a map from row-major weights
func NewImportanceMap(width, height int, weights []float64) (*ImportanceMap, error) {
	if len(weights) != width*height {
		return nil, fmt.Errorf("importance map size mismatch: %d weights for %dx%d", len(weights), width, height)
	}
	m := &ImportanceMap{width: width, height: height, weights: weights}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// validate checks the map is a proper weighting: non-negative, not all zero
func (m *ImportanceMap) validate() error {
	total := 0.0
	for _, w := range m.weights {
		if w < 0 {
			return fmt.Errorf("importance map contains negative weight %v", w)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("importance map is all zero")
	}
	return nil
}

// At returns the weight at normalized film coordinates (u, v), nearest
// pixel, with v=1 at the top (matching Film orientation)
func (m *ImportanceMap) At(u, v float64) float64 {
	x := int(u * float64(m.width))
	y := int((1 - v) * float64(m.height))
	if x < 0 {
		x = 0
	} else if x >= m.width {
		x = m.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= m.height {
		y = m.height - 1
	}
	return m.weights[y*m.width+x]
}

// The floor applied to importance weights, as a fraction of the mean.
// Without it, pixels the coarse pass left black would get infinite
// importance in the outer run.
const importanceFloor = 0.01

// importanceFromLuminances turns a first-stage luminance image into a
// floored, mean-normalized importance map
func importanceFromLuminances(luminances []float64, width, height int) (*ImportanceMap, error) {
	total := 0.0
	for _, l := range luminances {
		total += l
	}
	if total <= 0 {
		return nil, fmt.Errorf("first-stage image is completely black")
	}
	mean := total / float64(len(luminances))

	weights := make([]float64, len(luminances))
	floor := importanceFloor * mean
	flooredTotal := 0.0
	for i, l := range luminances {
		if l < floor {
			l = floor
		}
		weights[i] = l
		flooredTotal += l
	}

	// Mean-normalize so the map only redistributes effort
	scale := float64(len(weights)) / flooredTotal
	for i := range weights {
		weights[i] *= scale
	}

	return NewImportanceMap(width, height, weights)
}

// renderFirstStage runs the complete pipeline recursively at reduced
// resolution with the first-stage flag set, and converts its developed
// film into an importance map. The nested run derives its own work unit
// count from its smaller budget and never runs a direct pass. Its failure
// aborts the outer render (reported as a warning, not a panic) — the
// caller may retry without two-stage mode.
func (r *Renderer) renderFirstStage(ctx context.Context) (*ImportanceMap, error) {
	reduction := r.config.FirstStageSizeReduction
	width := r.width / reduction
	if width < 1 {
		width = 1
	}
	height := r.height / reduction
	if height < 1 {
		height = 1
	}

	nestedCfg := r.config.clone()
	nestedCfg.FirstStage = true
	nestedCfg.WorkUnits = -1

	nested, err := NewRenderer(r.sampler, nil, r.baseSampler, nestedCfg, width, height, r.samplesPerPixel, r.logger)
	if err != nil {
		return nil, err
	}

	nestedCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancelNested = cancel
	r.mu.Unlock()

	result, err := nested.Render(nestedCtx, RenderOptions{NumWorkers: r.numWorkers})

	r.mu.Lock()
	r.cancelNested = nil
	r.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("first-stage render: %w", err)
	}

	return importanceFromLuminances(result.Film.Luminances(), width, height)
}
