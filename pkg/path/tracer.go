// Package path constructs complete light transport paths from streams of
// uniform random draws. The Metropolis engine consumes it purely through
// its sampling capability: every decision a path makes is driven by the
// provided sampler, so replaying the same draws rebuilds the same path.
package path

import (
	"context"
	"math"
	"math/rand"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
	"github.com/df07/go-metropolis-raytracer/pkg/scene"
)

const (
	// Hard bounce cap when maxDepth is unbounded (-1)
	maxBounces = 64
	// Bounce count after which Russian roulette starts terminating paths
	rouletteDepth = 8
)

// Tracer builds unidirectional paths through a scene
type Tracer struct {
	scene *scene.Scene
}

// NewTracer creates a path tracer for the given scene
func NewTracer(s *scene.Scene) *Tracer {
	return &Tracer{scene: s}
}

// HasSubsurface reports whether the scene uses subsurface materials, which
// the Metropolis renderer cannot drive
func (t *Tracer) HasSubsurface() bool {
	return t.scene.HasSubsurface()
}

// SamplePath constructs one complete path, consuming draws from the sampler.
// The first two draws select the film position; the rest drive scattering.
// With includeDirect=false, energy from path lengths 1 and 2 (directly
// visible lights and single-bounce light) is excluded, because a separate
// direct-illumination pass owns it. Returns ok=false when the path carries
// no energy.
func (t *Tracer) SamplePath(sampler core.Sampler, maxDepth int, includeDirect bool) (core.PathSample, bool) {
	u := sampler.Get1D()
	v := sampler.Get1D()
	ray := t.scene.Camera.GetRay(u, v)

	throughput := core.NewVec3(1, 1, 1)
	contribution := core.Vec3{}

	limit := maxBounces
	if maxDepth >= 0 {
		limit = maxDepth
	}

	for bounce := 0; bounce < limit; bounce++ {
		hit, isHit := t.scene.Hit(ray, 0.001, math.Inf(1))
		if !isHit {
			break
		}

		if emitter, ok := hit.Material.(scene.Emitter); ok {
			// Path length = bounce+1 segments; lengths 1 and 2 are the
			// direct component
			if includeDirect || bounce >= 2 {
				if hit.FrontFace {
					contribution = contribution.Add(throughput.MultiplyVec(emitter.Emit()))
				}
			}
			break // Lights don't scatter
		}

		scatter, didScatter := hit.Material.Scatter(ray, *hit, sampler)
		if !didScatter {
			break
		}

		if scatter.IsSpecular() {
			throughput = throughput.MultiplyVec(scatter.Attenuation)
		} else {
			cosTheta := scatter.Scattered.Direction.Normalize().Dot(hit.Normal)
			if cosTheta <= 0 || scatter.PDF <= 0 {
				break
			}
			throughput = throughput.MultiplyVec(scatter.Attenuation.Multiply(cosTheta / scatter.PDF))
		}

		// Russian roulette on long paths; the draw comes from the same
		// stream, so replay reproduces the same termination decision
		if bounce >= rouletteDepth {
			q := math.Min(0.95, math.Max(throughput.X, math.Max(throughput.Y, throughput.Z)))
			if q <= 0 || sampler.Get1D() >= q {
				break
			}
			throughput = throughput.Multiply(1.0 / q)
		}

		ray = scatter.Scattered
	}

	sample := core.PathSample{U: u, V: v, Contribution: contribution}
	return sample, sample.Luminance() > 0
}

// RenderDirect renders the direct-lighting component (path lengths 1 and 2)
// with ordinary stratified sampling: emitted radiance at the first hit plus
// one next-event-estimation shadow ray per light. Returns a row-major RGB
// buffer of width*height pixels.
func (t *Tracer) RenderDirect(ctx context.Context, width, height, samplesPerPixel, maxDepth int) ([]core.Vec3, error) {
	if maxDepth == 0 {
		return make([]core.Vec3, width*height), nil
	}

	pixels := make([]core.Vec3, width*height)

	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < width; x++ {
			// Deterministic per-pixel stratification
			random := rand.New(rand.NewSource(int64(y*width + x + 1)))
			sampler := core.NewStratifiedSampler(samplesPerPixel, random)

			accum := core.Vec3{}
			for s := 0; s < samplesPerPixel; s++ {
				jitter := sampler.Get2D()
				u := (float64(x) + jitter.X) / float64(width)
				v := 1.0 - (float64(y)+jitter.Y)/float64(height)
				accum = accum.Add(t.directSample(t.scene.Camera.GetRay(u, v), sampler, maxDepth))
				sampler.NextSample()
			}
			pixels[y*width+x] = accum.Multiply(1.0 / float64(samplesPerPixel))
		}
	}

	return pixels, nil
}

// directSample evaluates the direct component for a single camera ray
func (t *Tracer) directSample(ray core.Ray, sampler core.Sampler, maxDepth int) core.Vec3 {
	hit, isHit := t.scene.Hit(ray, 0.001, math.Inf(1))
	if !isHit {
		return core.Vec3{}
	}

	// Directly visible light (path length 1)
	if emitter, ok := hit.Material.(scene.Emitter); ok {
		if hit.FrontFace {
			return emitter.Emit()
		}
		return core.Vec3{}
	}
	if maxDepth == 1 {
		return core.Vec3{}
	}

	// Single-bounce light via next-event estimation (path length 2)
	result := core.Vec3{}
	incomingDir := ray.Direction.Normalize().Negate()

	for _, light := range t.scene.Lights {
		ls := light.SamplePoint(sampler.Get2D())

		toLight := ls.Point.Subtract(hit.Point)
		distSq := toLight.LengthSquared()
		if distSq <= 1e-12 {
			continue
		}
		wi := toLight.Normalize()

		cosSurface := wi.Dot(hit.Normal)
		cosLight := wi.Negate().Dot(ls.Normal)
		if cosSurface <= 0 || cosLight <= 0 {
			continue
		}

		if t.scene.Occluded(hit.Point, ls.Point) {
			continue
		}

		brdf := hit.Material.EvaluateBRDF(incomingDir, wi, hit.Normal)
		if brdf.IsZero() {
			continue
		}

		// Area-measure estimator: Le * f * G / pdfArea
		geometric := cosSurface * cosLight / distSq
		result = result.Add(ls.Emission.MultiplyVec(brdf).Multiply(geometric / ls.PDF))
	}

	return result
}
