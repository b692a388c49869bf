package metropolis

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// Per-unit mutation budgets target roughly this many proposals per work
// unit when the unit count is derived automatically
const mutationsPerWorkUnit = 200000

// Config contains the tunables for a Metropolis render. It is immutable
// once rendering begins, except for the derived fields (work unit count,
// per-unit mutation budget, mean luminance and the optional importance
// map), each of which is set exactly once per run.
type Config struct {
	// MaxDepth is the longest visualized path length (-1 = unbounded)
	MaxDepth int

	// TwoStage enables the coarse first-stage pre-pass whose output biases
	// where the full-resolution run spends mutation effort
	TwoStage bool

	// FirstStageSizeReduction divides the crop resolution of the nested
	// first-stage run (16 means 16x lower per axis)
	FirstStageSizeReduction int

	// FirstStage marks this instance as the nested first-stage run
	// (internal use)
	FirstStage bool

	// LuminanceSamples is the sample count for the mean-luminance estimate
	LuminanceSamples int

	// DirectSamples controls the separate direct-illumination pass:
	// negative = the chains handle direct light themselves, zero = the
	// direct term is omitted entirely, positive = a separate pass with
	// this budget (rounded up to the next power of two)
	DirectSamples int

	// SeparateDirect is derived from DirectSamples during validation:
	// true when direct light is kept out of the Markov chains
	SeparateDirect bool

	// WorkUnits is the number of independent chains; non-positive means
	// derive from the total mutation budget
	WorkUnits int

	// Mutation strategy toggles
	BidirectionalMutation  bool
	LensPerturbation       bool
	CausticPerturbation    bool
	MultiChainPerturbation bool
	ManifoldPerturbation   bool

	// ProbFactor weights how often local perturbations are proposed
	// relative to large bidirectional mutations
	ProbFactor float64

	// Timeout ends the render after this many wall-clock seconds,
	// yielding a result from the budget consumed so far (0 = none)
	Timeout int

	// Derived fields, set exactly once per run
	nMutations    int
	luminance     float64
	importanceMap *ImportanceMap
	counted       bool
	normalized    bool
}

// DefaultConfig returns the standard tunable values
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:                -1,
		TwoStage:                false,
		FirstStageSizeReduction: 16,
		FirstStage:              false,
		LuminanceSamples:        100000,
		DirectSamples:           16,
		WorkUnits:               -1,
		BidirectionalMutation:   true,
		LensPerturbation:        false,
		CausticPerturbation:     false,
		MultiChainPerturbation:  false,
		ManifoldPerturbation:    false,
		ProbFactor:              50,
		Timeout:                 0,
	}
}

// Validate checks the tunables and fixes up derived flags. Positive
// DirectSamples values are rounded up to the next power of two, since the
// stratified direct pass prefers power-of-two strata.
func (c *Config) Validate() error {
	if c.TwoStage && c.FirstStageSizeReduction < 1 {
		return fmt.Errorf("firstStageSizeReduction must be a positive integer, got %d", c.FirstStageSizeReduction)
	}
	if c.LuminanceSamples <= 0 {
		return fmt.Errorf("luminanceSamples must be positive, got %d", c.LuminanceSamples)
	}
	if c.ProbFactor <= 0 {
		return fmt.Errorf("probFactor must be positive, got %v", c.ProbFactor)
	}
	if !c.BidirectionalMutation && !c.LensPerturbation && !c.CausticPerturbation &&
		!c.MultiChainPerturbation && !c.ManifoldPerturbation {
		return fmt.Errorf("at least one mutation strategy must be enabled")
	}

	c.SeparateDirect = c.DirectSamples >= 0
	if c.DirectSamples > 0 {
		c.DirectSamples = nextPowerOfTwo(c.DirectSamples)
	}

	return nil
}

// deriveCounts computes the work unit count and per-unit mutation budget
// from the total pixel sample budget. Called exactly once per run.
func (c *Config) deriveCounts(width, height, samplesPerPixel int) error {
	if c.counted {
		return fmt.Errorf("work unit counts already derived")
	}

	total := width * height * samplesPerPixel
	if total <= 0 {
		return fmt.Errorf("empty mutation budget: %dx%d at %d samples/pixel", width, height, samplesPerPixel)
	}

	if c.WorkUnits <= 0 {
		c.WorkUnits = int(math.Ceil(float64(total) / mutationsPerWorkUnit))
	}
	c.nMutations = total / c.WorkUnits
	c.counted = true

	return nil
}

// NMutations returns the per-unit mutation budget (valid after derivation)
func (c *Config) NMutations() int {
	return c.nMutations
}

// Luminance returns the estimated mean image luminance (valid after the
// seed generator's normalization pass)
func (c *Config) Luminance() float64 {
	return c.luminance
}

// setLuminance records the normalization constant. Set exactly once.
func (c *Config) setLuminance(luminance float64) error {
	if c.normalized {
		return fmt.Errorf("mean luminance already set")
	}
	if luminance <= 0 || math.IsNaN(luminance) || math.IsInf(luminance, 0) {
		return fmt.Errorf("invalid mean luminance estimate: %v", luminance)
	}
	c.luminance = luminance
	c.normalized = true
	return nil
}

// SetImportanceMap installs the two-stage importance map. Set exactly once;
// the map must be a proper weighting (non-negative, not all zero).
func (c *Config) SetImportanceMap(m *ImportanceMap) error {
	if c.importanceMap != nil {
		return fmt.Errorf("importance map already set")
	}
	if err := m.validate(); err != nil {
		return err
	}
	c.importanceMap = m
	return nil
}

// ImportanceAt returns the importance weight for a film position, or 1
// when no map is installed
func (c *Config) ImportanceAt(u, v float64) float64 {
	if c.importanceMap == nil {
		return 1
	}
	return c.importanceMap.At(u, v)
}

// clone returns a copy of the tunables with all derived state cleared
func (c *Config) clone() *Config {
	out := *c
	out.nMutations = 0
	out.luminance = 0
	out.importanceMap = nil
	out.counted = false
	out.normalized = false
	return &out
}

// Dump logs the configuration the way the final render will use it
func (c *Config) Dump(logger core.Logger) {
	logger.Printf("Metropolis configuration:\n")
	logger.Printf("   Maximum path depth          : %d\n", c.MaxDepth)
	logger.Printf("   Two-stage rendering         : %v\n", c.TwoStage)
	logger.Printf("   First-stage size reduction  : %d\n", c.FirstStageSizeReduction)
	logger.Printf("   Luminance samples           : %d\n", c.LuminanceSamples)
	logger.Printf("   Separate direct illum.      : %v (%d samples)\n", c.SeparateDirect, c.DirectSamples)
	logger.Printf("   Work units                  : %d\n", c.WorkUnits)
	logger.Printf("   Mutations per work unit     : %d\n", c.nMutations)
	logger.Printf("   Bidirectional mutation      : %v\n", c.BidirectionalMutation)
	logger.Printf("   Lens perturbation           : %v\n", c.LensPerturbation)
	logger.Printf("   Caustic perturbation        : %v\n", c.CausticPerturbation)
	logger.Printf("   Multi-chain perturbation    : %v\n", c.MultiChainPerturbation)
	logger.Printf("   Manifold perturbation       : %v\n", c.ManifoldPerturbation)
	logger.Printf("   Probability factor          : %v\n", c.ProbFactor)
	logger.Printf("   Mean luminance estimate     : %v\n", c.luminance)
}

// configWire is the fixed-layout serialized form of the tunables. Derived
// fields are regenerated at run time and never transmitted.
type configWire struct {
	MaxDepth                int32
	FirstStageSizeReduction int32
	LuminanceSamples        int32
	DirectSamples           int32
	WorkUnits               int32
	TwoStage                bool
	FirstStage              bool
	SeparateDirect          bool
	BidirectionalMutation   bool
	LensPerturbation        bool
	CausticPerturbation     bool
	MultiChainPerturbation  bool
	ManifoldPerturbation    bool
	ProbFactor              float64
	Timeout                 int64
}

// Serialize writes the tunables to a byte stream for distribution to
// remote workers
func (c *Config) Serialize(w io.Writer) error {
	wire := configWire{
		MaxDepth:                int32(c.MaxDepth),
		FirstStageSizeReduction: int32(c.FirstStageSizeReduction),
		LuminanceSamples:        int32(c.LuminanceSamples),
		DirectSamples:           int32(c.DirectSamples),
		WorkUnits:               int32(c.WorkUnits),
		TwoStage:                c.TwoStage,
		FirstStage:              c.FirstStage,
		SeparateDirect:          c.SeparateDirect,
		BidirectionalMutation:   c.BidirectionalMutation,
		LensPerturbation:        c.LensPerturbation,
		CausticPerturbation:     c.CausticPerturbation,
		MultiChainPerturbation:  c.MultiChainPerturbation,
		ManifoldPerturbation:    c.ManifoldPerturbation,
		ProbFactor:              c.ProbFactor,
		Timeout:                 int64(c.Timeout),
	}
	return binary.Write(w, binary.LittleEndian, &wire)
}

// DeserializeConfig reconstructs a Config from its serialized form
func DeserializeConfig(r io.Reader) (*Config, error) {
	var wire configWire
	if err := binary.Read(r, binary.LittleEndian, &wire); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Config{
		MaxDepth:                int(wire.MaxDepth),
		FirstStageSizeReduction: int(wire.FirstStageSizeReduction),
		LuminanceSamples:        int(wire.LuminanceSamples),
		DirectSamples:           int(wire.DirectSamples),
		WorkUnits:               int(wire.WorkUnits),
		TwoStage:                wire.TwoStage,
		FirstStage:              wire.FirstStage,
		SeparateDirect:          wire.SeparateDirect,
		BidirectionalMutation:   wire.BidirectionalMutation,
		LensPerturbation:        wire.LensPerturbation,
		CausticPerturbation:     wire.CausticPerturbation,
		MultiChainPerturbation:  wire.MultiChainPerturbation,
		ManifoldPerturbation:    wire.ManifoldPerturbation,
		ProbFactor:              wire.ProbFactor,
		Timeout:                 int(wire.Timeout),
	}, nil
}

// nextPowerOfTwo rounds n up to the next power of two
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
