// Package metropolis implements the Metropolis sampling and
// work-distribution engine: importance-weighted seed selection, per-chain
// mutation and acceptance over path space, the two-stage variance-reduction
// pipeline, and the partitioning of the mutation budget into independent
// parallel chains merged into a final film. Path construction itself is an
// external capability consumed through the PathSampler interface.
package metropolis

import (
	"context"
	"errors"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

var (
	// ErrUnsupportedScene is returned when the scene needs integrators the
	// Metropolis renderer cannot drive (subsurface scattering)
	ErrUnsupportedScene = errors.New("metropolis: scene uses unsupported subsurface integrators")

	// ErrUnsupportedSampler is returned when the bound sampler is not an
	// independent-sampling kind and therefore cannot be replayed per path
	ErrUnsupportedSampler = errors.New("metropolis: renderer requires an independent sampler")

	// ErrDegenerateSeed is returned when a work unit cannot reconstruct a
	// valid path from its assigned seed. Fatal for the render: retrying
	// individual chains would silently bias the normalization.
	ErrDegenerateSeed = errors.New("metropolis: work unit seed reconstructs no valid path")

	// ErrNoEnergy is returned when seed generation finds no path that
	// carries energy (black scene or broken path sampler)
	ErrNoEnergy = errors.New("metropolis: no candidate path carries energy")
)

// PathSampler constructs complete light transport paths from a stream of
// uniform random draws. Every decision must be driven by the provided
// sampler so that replaying the same draws rebuilds the same path.
type PathSampler interface {
	// SamplePath builds one path. With includeDirect=false the direct
	// component (path lengths 1 and 2) is excluded. Returns ok=false when
	// the path carries no energy.
	SamplePath(sampler core.Sampler, maxDepth int, includeDirect bool) (core.PathSample, bool)
}

// DirectRenderer renders the direct-lighting component with ordinary
// (non-Metropolis) sampling. Returns a row-major RGB buffer.
type DirectRenderer interface {
	RenderDirect(ctx context.Context, width, height, samplesPerPixel, maxDepth int) ([]core.Vec3, error)
}
