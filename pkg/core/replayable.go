package core

// ReplayableSampler is a random stream whose i-th draw is a pure function of
// (seed, index). A Metropolis chain state can therefore be reconstructed
// exactly from a stored seed by rewinding the index and re-issuing the same
// sequence of draws, without storing the path itself.
type ReplayableSampler struct {
	seed  uint64
	index uint64
}

// NewReplayableSampler creates a replayable stream for the given seed
func NewReplayableSampler(seed uint64) *ReplayableSampler {
	return &ReplayableSampler{seed: seed}
}

// Get1D returns the next draw in [0, 1) and advances the index
func (r *ReplayableSampler) Get1D() float64 {
	v := uniformAt(r.seed, r.index)
	r.index++
	return v
}

// Get2D returns the next two draws in [0, 1)
func (r *ReplayableSampler) Get2D() Vec2 {
	return NewVec2(r.Get1D(), r.Get1D())
}

// Get3D returns the next three draws in [0, 1)
func (r *ReplayableSampler) Get3D() Vec3 {
	return NewVec3(r.Get1D(), r.Get1D(), r.Get1D())
}

// Independent marks ReplayableSampler as an independent-sampling kind
func (r *ReplayableSampler) Independent() {}

// Seed returns the stream's seed
func (r *ReplayableSampler) Seed() uint64 {
	return r.seed
}

// Index returns the number of draws issued so far
func (r *ReplayableSampler) Index() uint64 {
	return r.index
}

// Seek positions the stream so the next draw is draw number index
func (r *ReplayableSampler) Seek(index uint64) {
	r.index = index
}

// Rewind restarts the stream from its first draw
func (r *ReplayableSampler) Rewind() {
	r.index = 0
}

// Clone returns an independent copy at the same position
func (r *ReplayableSampler) Clone() *ReplayableSampler {
	c := *r
	return &c
}

// uniformAt maps (seed, index) to [0, 1) with the splitmix64 finalizer.
// Stateless by construction: the same pair always yields the same value.
func uniformAt(seed, index uint64) float64 {
	z := seed + (index+1)*0x9e3779b97f4a7c15
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return float64(z>>11) / (1 << 53)
}
