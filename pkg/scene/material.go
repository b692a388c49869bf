package scene

import (
	"math"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// Material interface for objects that can scatter rays
type Material interface {
	// Scatter generates a scattered direction for an incoming ray
	Scatter(rayIn core.Ray, hit HitRecord, sampler core.Sampler) (ScatterResult, bool)

	// EvaluateBRDF evaluates the BRDF for specific incoming/outgoing directions.
	// Specular materials return zero (their BRDF is a delta function).
	EvaluateBRDF(incomingDir, outgoingDir, normal core.Vec3) core.Vec3
}

// Emitter interface for materials that emit light
type Emitter interface {
	Emit() core.Vec3
}

// SubsurfaceScatterer marks materials that require a subsurface integrator.
// The Metropolis renderer rejects scenes containing them.
type SubsurfaceScatterer interface {
	Subsurface()
}

// ScatterResult contains the result of material scattering
type ScatterResult struct {
	Scattered   core.Ray  // The scattered ray
	Attenuation core.Vec3 // Color attenuation
	PDF         float64   // Probability density (0 for specular materials)
}

// IsSpecular returns true if this is specular scattering (no PDF)
func (s ScatterResult) IsSpecular() bool {
	return s.PDF <= 0
}

// HitRecord contains information about a ray-object intersection
type HitRecord struct {
	Point     core.Vec3 // Point of intersection
	Normal    core.Vec3 // Surface normal at intersection
	T         float64   // Parameter t along the ray
	FrontFace bool      // Whether ray hit the front face
	Material  Material  // Material of the hit object
}

// SetFaceNormal sets the normal vector and determines front/back face
func (h *HitRecord) SetFaceNormal(ray core.Ray, outwardNormal core.Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Multiply(-1)
	}
}

// Lambertian represents a perfectly diffuse material
type Lambertian struct {
	Albedo core.Vec3
}

// NewLambertian creates a new lambertian material
func NewLambertian(albedo core.Vec3) *Lambertian {
	return &Lambertian{Albedo: albedo}
}

// Scatter implements cosine-weighted diffuse scattering
func (l *Lambertian) Scatter(rayIn core.Ray, hit HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	scatterDirection := core.SampleCosineHemisphere(hit.Normal, sampler.Get2D())
	scattered := core.NewRay(hit.Point, scatterDirection)

	// PDF: cos(θ) / π where θ is angle from normal
	cosTheta := scatterDirection.Dot(hit.Normal)
	if cosTheta < 0 {
		cosTheta = 0
	}
	pdf := cosTheta / math.Pi

	return ScatterResult{
		Scattered:   scattered,
		Attenuation: l.Albedo.Multiply(1.0 / math.Pi), // BRDF: albedo / π
		PDF:         pdf,
	}, true
}

// EvaluateBRDF returns the constant lambertian BRDF: albedo / π
func (l *Lambertian) EvaluateBRDF(incomingDir, outgoingDir, normal core.Vec3) core.Vec3 {
	if outgoingDir.Dot(normal) <= 0 {
		return core.Vec3{}
	}
	return l.Albedo.Multiply(1.0 / math.Pi)
}

// Metal represents a reflective material with optional roughness
type Metal struct {
	Albedo core.Vec3
	Fuzz   float64 // 0 = perfect mirror
}

// NewMetal creates a new metal material
func NewMetal(albedo core.Vec3, fuzz float64) *Metal {
	return &Metal{Albedo: albedo, Fuzz: math.Min(fuzz, 1.0)}
}

// Scatter implements mirror reflection with fuzz
func (m *Metal) Scatter(rayIn core.Ray, hit HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	reflected := reflect(rayIn.Direction.Normalize(), hit.Normal)
	if m.Fuzz > 0 {
		reflected = reflected.Add(core.SampleOnUnitSphere(sampler.Get2D()).Multiply(m.Fuzz)).Normalize()
	}
	if reflected.Dot(hit.Normal) <= 0 {
		return ScatterResult{}, false // Fuzzed below the surface
	}

	return ScatterResult{
		Scattered:   core.NewRay(hit.Point, reflected),
		Attenuation: m.Albedo,
		PDF:         0, // Specular
	}, true
}

// EvaluateBRDF returns zero: the mirror BRDF is a delta function
func (m *Metal) EvaluateBRDF(incomingDir, outgoingDir, normal core.Vec3) core.Vec3 {
	return core.Vec3{}
}

// Emissive represents a light-emitting material
type Emissive struct {
	Emission core.Vec3
}

// NewEmissive creates a new emissive material
func NewEmissive(emission core.Vec3) *Emissive {
	return &Emissive{Emission: emission}
}

// Scatter implements the Material interface for emissive materials.
// Emissive materials don't scatter - they only emit light.
func (e *Emissive) Scatter(rayIn core.Ray, hit HitRecord, sampler core.Sampler) (ScatterResult, bool) {
	return ScatterResult{}, false
}

// EvaluateBRDF returns zero: lights don't reflect
func (e *Emissive) EvaluateBRDF(incomingDir, outgoingDir, normal core.Vec3) core.Vec3 {
	return core.Vec3{}
}

// Emit returns the emitted light for this material
func (e *Emissive) Emit() core.Vec3 {
	return e.Emission
}

// Subsurface is a translucent diffuse material standing in for media that
// need a dedicated subsurface integrator. Scenes using it are rejected by
// the Metropolis renderer.
type Subsurface struct {
	Lambertian
}

// NewSubsurface creates a new subsurface material
func NewSubsurface(albedo core.Vec3) *Subsurface {
	return &Subsurface{Lambertian{Albedo: albedo}}
}

// Subsurface marks the material as requiring a subsurface integrator
func (s *Subsurface) Subsurface() {}

// reflect mirrors v around the normal n
func reflect(v, n core.Vec3) core.Vec3 {
	return v.Subtract(n.Multiply(2 * v.Dot(n)))
}
