package core

// PathSample is a complete light transport path reduced to what the
// Metropolis engine needs: where it lands on the film and what it carries.
// U and V are normalized film coordinates in [0, 1).
type PathSample struct {
	U, V         float64
	Contribution Vec3
}

// Luminance returns the scalar brightness the chain samples proportionally to
func (s PathSample) Luminance() float64 {
	return s.Contribution.Luminance()
}
