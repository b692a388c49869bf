package metropolis

import (
	"fmt"
	"image"
	"image/color"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// Film accumulates radiance over the crop region. During chain execution
// every work unit owns a private Film, so no locking is needed; the shared
// result Film is only written in the single-threaded merge phase.
type Film struct {
	width, height int
	pixels        []core.Vec3
	splats        int64 // Number of splat operations received
}

// NewFilm creates an empty accumulation buffer
func NewFilm(width, height int) *Film {
	return &Film{
		width:  width,
		height: height,
		pixels: make([]core.Vec3, width*height),
	}
}

// Width returns the film width in pixels
func (f *Film) Width() int { return f.width }

// Height returns the film height in pixels
func (f *Film) Height() int { return f.height }

// SplatCount returns the number of splats accumulated so far
func (f *Film) SplatCount() int64 { return f.splats }

// Splat adds a contribution at normalized film coordinates (u, v) where
// v=1 is the top of the image
func (f *Film) Splat(u, v float64, contribution core.Vec3) {
	x := int(u * float64(f.width))
	y := int((1 - v) * float64(f.height))
	if x < 0 {
		x = 0
	} else if x >= f.width {
		x = f.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= f.height {
		y = f.height - 1
	}
	f.pixels[y*f.width+x] = f.pixels[y*f.width+x].Add(contribution)
	f.splats++
}

// AddPixel adds a contribution directly at integer pixel coordinates
func (f *Film) AddPixel(x, y int, contribution core.Vec3) {
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return
	}
	f.pixels[y*f.width+x] = f.pixels[y*f.width+x].Add(contribution)
}

// At returns the accumulated value at integer pixel coordinates
func (f *Film) At(x, y int) core.Vec3 {
	return f.pixels[y*f.width+x]
}

// Merge adds another film's accumulation into this one
func (f *Film) Merge(other *Film) error {
	if other.width != f.width || other.height != f.height {
		return fmt.Errorf("film size mismatch: %dx%d vs %dx%d", f.width, f.height, other.width, other.height)
	}
	for i := range f.pixels {
		f.pixels[i] = f.pixels[i].Add(other.pixels[i])
	}
	f.splats += other.splats
	return nil
}

// Scale multiplies every pixel by a constant
func (f *Film) Scale(k float64) {
	for i := range f.pixels {
		f.pixels[i] = f.pixels[i].Multiply(k)
	}
}

// AddImage composites a row-major pixel buffer additively into the film
func (f *Film) AddImage(pixels []core.Vec3) error {
	if len(pixels) != len(f.pixels) {
		return fmt.Errorf("image size mismatch: %d pixels vs %d", len(pixels), len(f.pixels))
	}
	for i := range f.pixels {
		f.pixels[i] = f.pixels[i].Add(pixels[i])
	}
	return nil
}

// Luminances returns the per-pixel luminance of the accumulated image,
// used to build the two-stage importance map
func (f *Film) Luminances() []float64 {
	out := make([]float64, len(f.pixels))
	for i, p := range f.pixels {
		out[i] = p.Luminance()
	}
	return out
}

// Develop converts the accumulated radiance into a displayable image with
// gamma correction and clamping
func (f *Film) Develop() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			img.SetRGBA(x, y, vec3ToColor(f.pixels[y*f.width+x]))
		}
	}
	return img
}

// vec3ToColor converts a Vec3 color to RGBA with clamping and gamma correction
func vec3ToColor(colorVec core.Vec3) color.RGBA {
	// Apply gamma correction (gamma = 2.0)
	colorVec = colorVec.GammaCorrect(2.0)
	colorVec = colorVec.Clamp(0.0, 1.0)

	return color.RGBA{
		R: uint8(255 * colorVec.X),
		G: uint8(255 * colorVec.Y),
		B: uint8(255 * colorVec.Z),
		A: 255,
	}
}
