package metropolis

import (
	"context"
	"errors"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// fakePathSampler builds synthetic "paths" directly from the draws: the
// first two pick the film position and the third is the path's brightness.
// Deterministic, cheap, and replayable — exactly what chain tests need.
type fakePathSampler struct {
	extraDraws int  // draws consumed beyond the first three
	subsurface bool // report an unsupported scene
	failAll    bool // make every path carry no energy
}

func (f *fakePathSampler) SamplePath(sampler core.Sampler, maxDepth int, includeDirect bool) (core.PathSample, bool) {
	u := sampler.Get1D()
	v := sampler.Get1D()
	brightness := sampler.Get1D()
	for i := 0; i < f.extraDraws; i++ {
		sampler.Get1D()
	}

	if f.failAll {
		return core.PathSample{}, false
	}
	sample := core.PathSample{U: u, V: v, Contribution: core.NewVec3(brightness, brightness, brightness)}
	return sample, brightness > 0
}

func (f *fakePathSampler) HasSubsurface() bool {
	return f.subsurface
}

// fakeDirectRenderer returns a constant-color direct image, or fails
type fakeDirectRenderer struct {
	value core.Vec3
	fail  bool

	calls   int
	samples int
}

var errDirectFailed = errors.New("direct renderer failed")

func (f *fakeDirectRenderer) RenderDirect(ctx context.Context, width, height, samplesPerPixel, maxDepth int) ([]core.Vec3, error) {
	f.calls++
	f.samples = samplesPerPixel
	if f.fail {
		return nil, errDirectFailed
	}
	pixels := make([]core.Vec3, width*height)
	for i := range pixels {
		pixels[i] = f.value
	}
	return pixels, nil
}
