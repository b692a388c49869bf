package scene

import (
	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// LightSample contains the result of sampling a point on a light
type LightSample struct {
	Point    core.Vec3 // Sampled point on the light surface
	Normal   core.Vec3 // Light surface normal at the point
	Emission core.Vec3 // Emitted radiance
	PDF      float64   // Area probability density of the sample
}

// Light interface for emitters that can be sampled directly
type Light interface {
	// SamplePoint samples a point on the light surface
	SamplePoint(sample core.Vec2) LightSample
}

// QuadLight is an area light over a quad
type QuadLight struct {
	Quad     *Quad
	Emission core.Vec3
}

// NewQuadLight creates a quad area light. The quad's material should be the
// matching Emissive so chains and the direct pass agree on its radiance.
func NewQuadLight(quad *Quad, emission core.Vec3) *QuadLight {
	return &QuadLight{Quad: quad, Emission: emission}
}

// SamplePoint samples a point uniformly over the quad's area
func (l *QuadLight) SamplePoint(sample core.Vec2) LightSample {
	return LightSample{
		Point:    l.Quad.PointAt(sample.X, sample.Y),
		Normal:   l.Quad.Normal(),
		Emission: l.Emission,
		PDF:      1.0 / l.Quad.Area(),
	}
}
