package scene

import (
	"math"
	"testing"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

func TestSphereHit(t *testing.T) {
	sphere := NewSphere(core.NewVec3(0, 0, 5), 1, NewLambertian(core.NewVec3(0.5, 0.5, 0.5)))

	tests := []struct {
		name    string
		ray     core.Ray
		wantHit bool
		wantT   float64
	}{
		{"head-on", core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1)), true, 4},
		{"miss", core.NewRay(core.NewVec3(0, 5, 0), core.NewVec3(0, 0, 1)), false, 0},
		{"behind", core.NewRay(core.NewVec3(0, 0, 10), core.NewVec3(0, 0, 1)), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, isHit := sphere.Hit(tt.ray, 0.001, math.Inf(1))
			if isHit != tt.wantHit {
				t.Fatalf("Hit = %v, want %v", isHit, tt.wantHit)
			}
			if isHit && math.Abs(hit.T-tt.wantT) > 1e-9 {
				t.Errorf("T = %v, want %v", hit.T, tt.wantT)
			}
		})
	}
}

func TestQuadHit(t *testing.T) {
	quad := NewQuad(core.NewVec3(-1, 0, -1), core.NewVec3(2, 0, 0), core.NewVec3(0, 0, 2), NewLambertian(core.NewVec3(0.5, 0.5, 0.5)))

	// Ray straight down through the middle
	hit, isHit := quad.Hit(core.NewRay(core.NewVec3(0, 2, 0), core.NewVec3(0, -1, 0)), 0.001, math.Inf(1))
	if !isHit {
		t.Fatal("Expected hit through quad center")
	}
	if math.Abs(hit.T-2) > 1e-9 {
		t.Errorf("T = %v, want 2", hit.T)
	}

	// Ray outside the quad bounds
	if _, isHit := quad.Hit(core.NewRay(core.NewVec3(5, 2, 0), core.NewVec3(0, -1, 0)), 0.001, math.Inf(1)); isHit {
		t.Error("Expected miss outside quad bounds")
	}
}

func TestSceneOccluded(t *testing.T) {
	scene := &Scene{
		Shapes: []Shape{
			NewSphere(core.NewVec3(0, 0, 5), 1, NewLambertian(core.NewVec3(0.5, 0.5, 0.5))),
		},
	}

	if !scene.Occluded(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 10)) {
		t.Error("Sphere should occlude the segment through it")
	}
	if scene.Occluded(core.NewVec3(0, 5, 0), core.NewVec3(0, 5, 10)) {
		t.Error("Nothing blocks the off-axis segment")
	}
}

func TestQuadLightSample(t *testing.T) {
	quad := NewQuad(core.NewVec3(0, 5, 0), core.NewVec3(2, 0, 0), core.NewVec3(0, 0, 2), NewEmissive(core.NewVec3(10, 10, 10)))
	light := NewQuadLight(quad, core.NewVec3(10, 10, 10))

	sample := light.SamplePoint(core.NewVec2(0.5, 0.5))
	want := core.NewVec3(1, 5, 1)
	if sample.Point.Subtract(want).Length() > 1e-9 {
		t.Errorf("Sample point = %v, want %v", sample.Point, want)
	}
	if math.Abs(sample.PDF-0.25) > 1e-9 {
		t.Errorf("PDF = %v, want 1/area = 0.25", sample.PDF)
	}
}

func TestHasSubsurface(t *testing.T) {
	plain := NewCornellScene(1.0)
	if plain.HasSubsurface() {
		t.Error("Cornell scene should not report subsurface materials")
	}

	withSSS := &Scene{
		Shapes: []Shape{
			NewSphere(core.NewVec3(0, 0, 0), 1, NewSubsurface(core.NewVec3(0.9, 0.8, 0.7))),
		},
	}
	if !withSSS.HasSubsurface() {
		t.Error("Scene with subsurface material should report it")
	}
}

func TestCameraRayThroughCenter(t *testing.T) {
	camera := NewCamera(CameraConfig{
		LookFrom:    core.NewVec3(0, 0, -5),
		LookAt:      core.NewVec3(0, 0, 0),
		Up:          core.NewVec3(0, 1, 0),
		VFov:        45,
		AspectRatio: 1.0,
	})

	ray := camera.GetRay(0.5, 0.5)
	// The center ray should point straight at the look-at target
	if ray.Direction.Subtract(core.NewVec3(0, 0, 1)).Length() > 1e-9 {
		t.Errorf("Center ray direction = %v, want (0,0,1)", ray.Direction)
	}
}
