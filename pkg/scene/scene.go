package scene

import (
	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// Scene contains everything needed to render: camera, geometry and lights
type Scene struct {
	Camera *Camera
	Shapes []Shape
	Lights []Light
}

// Hit finds the closest intersection along a ray, if any
func (s *Scene) Hit(ray core.Ray, tMin, tMax float64) (*HitRecord, bool) {
	var closestHit *HitRecord
	closestSoFar := tMax
	hitAnything := false

	for _, shape := range s.Shapes {
		if hit, isHit := shape.Hit(ray, tMin, closestSoFar); isHit {
			hitAnything = true
			closestSoFar = hit.T
			closestHit = hit
		}
	}

	return closestHit, hitAnything
}

// Occluded reports whether anything blocks the segment between two points.
// The endpoints themselves are excluded by a small epsilon.
func (s *Scene) Occluded(from, to core.Vec3) bool {
	direction := to.Subtract(from)
	distance := direction.Length()
	if distance <= 1e-6 {
		return false
	}
	ray := core.NewRay(from, direction.Multiply(1.0/distance))

	_, hit := s.Hit(ray, 0.001, distance-0.001)
	return hit
}

// HasSubsurface reports whether any shape uses a subsurface material
func (s *Scene) HasSubsurface() bool {
	for _, shape := range s.Shapes {
		var material Material
		switch sh := shape.(type) {
		case *Sphere:
			material = sh.Material
		case *Quad:
			material = sh.Material
		}
		if _, ok := material.(SubsurfaceScatterer); ok {
			return true
		}
	}
	return false
}

// NewCornellScene creates a Cornell box: diffuse walls, a quad area light in
// the ceiling, and two spheres (one diffuse, one mirror) to give the chains
// a specular transport target
func NewCornellScene(aspectRatio float64) *Scene {
	white := NewLambertian(core.NewVec3(0.73, 0.73, 0.73))
	red := NewLambertian(core.NewVec3(0.65, 0.05, 0.05))
	green := NewLambertian(core.NewVec3(0.12, 0.45, 0.15))

	emission := core.NewVec3(15, 15, 15)
	lightMaterial := NewEmissive(emission)

	// Box interior spans [0,555]³ with the camera looking down -Z
	floor := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(555, 0, 0), core.NewVec3(0, 0, 555), white)
	ceiling := NewQuad(core.NewVec3(0, 555, 0), core.NewVec3(555, 0, 0), core.NewVec3(0, 0, 555), white)
	back := NewQuad(core.NewVec3(0, 0, 555), core.NewVec3(555, 0, 0), core.NewVec3(0, 555, 0), white)
	left := NewQuad(core.NewVec3(555, 0, 0), core.NewVec3(0, 555, 0), core.NewVec3(0, 0, 555), green)
	right := NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(0, 555, 0), core.NewVec3(0, 0, 555), red)

	lightQuad := NewQuad(core.NewVec3(213, 554, 227), core.NewVec3(130, 0, 0), core.NewVec3(0, 0, 105), lightMaterial)

	diffuseSphere := NewSphere(core.NewVec3(185, 90, 190), 90, white)
	mirrorSphere := NewSphere(core.NewVec3(380, 90, 350), 90, NewMetal(core.NewVec3(0.9, 0.9, 0.9), 0))

	camera := NewCamera(CameraConfig{
		LookFrom:    core.NewVec3(278, 278, -800),
		LookAt:      core.NewVec3(278, 278, 0),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        40,
		AspectRatio: aspectRatio,
	})

	return &Scene{
		Camera: camera,
		Shapes: []Shape{floor, ceiling, back, left, right, lightQuad, diffuseSphere, mirrorSphere},
		Lights: []Light{NewQuadLight(lightQuad, emission)},
	}
}

// NewBoxScene creates a minimal single-light test scene: one diffuse floor,
// one small quad light, nothing else. Fast to render, good for tests.
func NewBoxScene(aspectRatio float64) *Scene {
	white := NewLambertian(core.NewVec3(0.73, 0.73, 0.73))
	emission := core.NewVec3(20, 20, 20)

	floor := NewQuad(core.NewVec3(-10, 0, -10), core.NewVec3(20, 0, 0), core.NewVec3(0, 0, 20), white)
	lightQuad := NewQuad(core.NewVec3(-1, 5, -1), core.NewVec3(2, 0, 0), core.NewVec3(0, 0, 2), NewEmissive(emission))

	camera := NewCamera(CameraConfig{
		LookFrom:    core.NewVec3(0, 3, -9),
		LookAt:      core.NewVec3(0, 1, 0),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        50,
		AspectRatio: aspectRatio,
	})

	return &Scene{
		Camera: camera,
		Shapes: []Shape{floor, lightQuad},
		Lights: []Light{NewQuadLight(lightQuad, emission)},
	}
}
