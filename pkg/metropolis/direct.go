package metropolis

import (
	"context"
	"fmt"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// renderDirectPass renders the direct-lighting term with its fixed,
// separate sampling budget. Direct light converges quickly under ordinary
// sampling and need not compete for the Markov chains' attention; the
// resulting image is composited additively with the indirect-only output
// at the end. Failure aborts the render.
func (r *Renderer) renderDirectPass(ctx context.Context) ([]core.Vec3, error) {
	if r.direct == nil {
		return nil, fmt.Errorf("metropolis: separate direct illumination requested but no direct renderer provided")
	}

	pixels, err := r.direct.RenderDirect(ctx, r.width, r.height, r.config.DirectSamples, r.config.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("direct illumination pass: %w", err)
	}
	if len(pixels) != r.width*r.height {
		return nil, fmt.Errorf("direct illumination pass returned %d pixels for %dx%d crop", len(pixels), r.width, r.height)
	}
	return pixels, nil
}
