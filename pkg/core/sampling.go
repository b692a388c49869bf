package core

import (
	"math"
	"math/rand"
)

// Sampler provides random sampling for rendering algorithms
// Can be swapped out for deterministic testing or different sampling patterns
type Sampler interface {
	Get1D() float64
	Get2D() Vec2
	Get3D() Vec3
}

// IndependentSampler marks samplers whose draws are independent uniforms.
// The Metropolis engine requires this kind because it reconstructs chain
// states by replaying per-path draw sequences; samplers with correlated or
// stratified internal state cannot be replayed that way.
type IndependentSampler interface {
	Sampler
	Independent()
}

// RandomSampler wraps a standard Go random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// Get2D returns two random float64 values in [0, 1)
func (r *RandomSampler) Get2D() Vec2 {
	return NewVec2(r.random.Float64(), r.random.Float64())
}

// Get3D returns three random float64 values in [0, 1)
func (r *RandomSampler) Get3D() Vec3 {
	return NewVec3(r.random.Float64(), r.random.Float64(), r.random.Float64())
}

// Independent marks RandomSampler as an independent-sampling kind
func (r *RandomSampler) Independent() {}

// StratifiedSampler produces jittered stratified sample pairs over a square
// grid of strata. Used by the direct-illumination pass, which prefers
// power-of-two sample budgets split into even strata. It deliberately does
// NOT implement IndependentSampler: its draws depend on the stratum index,
// so it cannot seed a Metropolis chain.
type StratifiedSampler struct {
	strata  int // strata per axis
	index   int // current sample index
	samples int // total samples per pixel
	random  *rand.Rand
}

// NewStratifiedSampler creates a stratified sampler for the given per-pixel
// sample count. Counts that are not perfect squares fall back to the largest
// square grid that fits, with the remainder drawn unstratified.
func NewStratifiedSampler(samplesPerPixel int, random *rand.Rand) *StratifiedSampler {
	strata := int(math.Sqrt(float64(samplesPerPixel)))
	if strata < 1 {
		strata = 1
	}
	return &StratifiedSampler{
		strata:  strata,
		samples: samplesPerPixel,
		random:  random,
	}
}

// NextSample advances to the next per-pixel sample index
func (s *StratifiedSampler) NextSample() {
	s.index++
}

// Reset restarts the stratum sequence for a new pixel
func (s *StratifiedSampler) Reset() {
	s.index = 0
}

// Get1D returns a random float64 in [0, 1)
func (s *StratifiedSampler) Get1D() float64 {
	return s.random.Float64()
}

// Get2D returns a jittered point inside the current stratum when the sample
// index still falls on the grid, and a plain uniform pair afterwards
func (s *StratifiedSampler) Get2D() Vec2 {
	gridSamples := s.strata * s.strata
	if s.index >= gridSamples {
		return NewVec2(s.random.Float64(), s.random.Float64())
	}
	sx := s.index % s.strata
	sy := s.index / s.strata
	return NewVec2(
		(float64(sx)+s.random.Float64())/float64(s.strata),
		(float64(sy)+s.random.Float64())/float64(s.strata),
	)
}

// Get3D returns three random float64 values in [0, 1)
func (s *StratifiedSampler) Get3D() Vec3 {
	return NewVec3(s.random.Float64(), s.random.Float64(), s.random.Float64())
}

// SampleCosineHemisphere generates a cosine-weighted random direction in hemisphere around normal
func SampleCosineHemisphere(normal Vec3, sample Vec2) Vec3 {
	// Generate point in unit disk using uniform random sampling
	a := 2.0 * math.Pi * sample.X
	z := sample.Y
	r := math.Sqrt(z)

	x := r * math.Cos(a)
	y := r * math.Sin(a)
	zCoord := math.Sqrt(1.0 - z)

	// Create local coordinate system around normal
	var nt Vec3
	if math.Abs(normal.X) > 0.1 {
		nt = NewVec3(0, 1, 0)
	} else {
		nt = NewVec3(1, 0, 0)
	}

	// Create orthonormal basis
	tangent := nt.Cross(normal).Normalize()
	bitangent := normal.Cross(tangent)

	// Transform to world space
	return tangent.Multiply(x).Add(bitangent.Multiply(y)).Add(normal.Multiply(zCoord))
}

// SampleOnUnitSphere generates a uniform random direction on the unit sphere
func SampleOnUnitSphere(sample Vec2) Vec3 {
	z := 1.0 - 2.0*sample.X // z ∈ [-1, 1]
	r := math.Sqrt(math.Max(0, 1.0-z*z))
	phi := 2.0 * math.Pi * sample.Y
	x := r * math.Cos(phi)
	y := r * math.Sin(phi)
	return NewVec3(x, y, z)
}
