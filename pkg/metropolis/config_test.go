package metropolis

import (
	"bytes"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxDepth != -1 {
		t.Errorf("Expected default maxDepth -1, got %d", cfg.MaxDepth)
	}
	if cfg.FirstStageSizeReduction != 16 {
		t.Errorf("Expected default firstStageSizeReduction 16, got %d", cfg.FirstStageSizeReduction)
	}
	if cfg.LuminanceSamples != 100000 {
		t.Errorf("Expected default luminanceSamples 100000, got %d", cfg.LuminanceSamples)
	}
	if cfg.DirectSamples != 16 {
		t.Errorf("Expected default directSamples 16, got %d", cfg.DirectSamples)
	}
	if cfg.ProbFactor != 50 {
		t.Errorf("Expected default probFactor 50, got %v", cfg.ProbFactor)
	}
	if !cfg.BidirectionalMutation {
		t.Error("Bidirectional mutation should be enabled by default")
	}
}

func TestConfigValidateSeparateDirect(t *testing.T) {
	tests := []struct {
		name           string
		directSamples  int
		wantSeparate   bool
		wantDirectSize int
	}{
		{"chain handles direct", -1, false, -1},
		{"direct hidden", 0, true, 0},
		{"power of two kept", 16, true, 16},
		{"rounded up", 100, true, 128},
		{"one stays one", 1, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DirectSamples = tt.directSamples
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if cfg.SeparateDirect != tt.wantSeparate {
				t.Errorf("SeparateDirect = %v, want %v", cfg.SeparateDirect, tt.wantSeparate)
			}
			if cfg.DirectSamples != tt.wantDirectSize {
				t.Errorf("DirectSamples = %d, want %d", cfg.DirectSamples, tt.wantDirectSize)
			}
		})
	}
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad reduction", func(c *Config) { c.TwoStage = true; c.FirstStageSizeReduction = 0 }},
		{"no luminance samples", func(c *Config) { c.LuminanceSamples = 0 }},
		{"bad probFactor", func(c *Config) { c.ProbFactor = 0 }},
		{"no strategies", func(c *Config) { c.BidirectionalMutation = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestConfigBudgetAccounting(t *testing.T) {
	// workUnits * nMutations must cover the total pixel sample budget to
	// within integer rounding, for derived and explicit unit counts alike
	tests := []struct {
		name            string
		width, height   int
		samplesPerPixel int
		requestedUnits  int
	}{
		{"auto units small", 64, 48, 10, -1},
		{"auto units large", 640, 480, 100, -1},
		{"explicit units", 100, 100, 32, 4},
		{"single unit", 16, 16, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.WorkUnits = tt.requestedUnits
			if err := cfg.deriveCounts(tt.width, tt.height, tt.samplesPerPixel); err != nil {
				t.Fatalf("deriveCounts failed: %v", err)
			}

			total := tt.width * tt.height * tt.samplesPerPixel
			covered := cfg.WorkUnits * cfg.NMutations()
			if covered > total || total-covered >= cfg.WorkUnits {
				t.Errorf("Budget %d split into %d units x %d mutations = %d; remainder %d exceeds rounding",
					total, cfg.WorkUnits, cfg.NMutations(), covered, total-covered)
			}
		})
	}
}

func TestConfigDeriveCountsOnce(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.deriveCounts(64, 64, 8); err != nil {
		t.Fatalf("First derivation failed: %v", err)
	}
	if err := cfg.deriveCounts(64, 64, 8); err == nil {
		t.Error("Second derivation should fail: derived fields are set exactly once")
	}
}

func TestConfigLuminanceOnce(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.setLuminance(0.5); err != nil {
		t.Fatalf("First setLuminance failed: %v", err)
	}
	if err := cfg.setLuminance(0.7); err == nil {
		t.Error("Second setLuminance should fail")
	}
	if cfg.Luminance() != 0.5 {
		t.Errorf("Luminance = %v, want 0.5", cfg.Luminance())
	}
}

func TestConfigSerializationRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 7
	cfg.TwoStage = true
	cfg.FirstStageSizeReduction = 4
	cfg.LuminanceSamples = 5000
	cfg.DirectSamples = 64
	cfg.WorkUnits = 12
	cfg.LensPerturbation = true
	cfg.ManifoldPerturbation = true
	cfg.ProbFactor = 25
	cfg.Timeout = 300
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := cfg.Serialize(&buf); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	restored, err := DeserializeConfig(&buf)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	// Compare tunables; derived fields are legitimately regenerated
	want := *cfg
	got := *restored
	want.nMutations, got.nMutations = 0, 0
	want.luminance, got.luminance = 0, 0
	want.importanceMap, got.importanceMap = nil, nil
	want.counted, got.counted = false, false
	want.normalized, got.normalized = false, false
	if got != want {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestConfigImportanceMapOnce(t *testing.T) {
	cfg := DefaultConfig()
	m, err := NewImportanceMap(2, 2, []float64{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("NewImportanceMap failed: %v", err)
	}
	if err := cfg.SetImportanceMap(m); err != nil {
		t.Fatalf("First SetImportanceMap failed: %v", err)
	}
	if err := cfg.SetImportanceMap(m); err == nil {
		t.Error("Second SetImportanceMap should fail")
	}
}

func TestConfigImportanceAtDefault(t *testing.T) {
	cfg := DefaultConfig()
	if w := cfg.ImportanceAt(0.3, 0.7); w != 1 {
		t.Errorf("ImportanceAt without map = %v, want 1", w)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 16: 16, 17: 32, 1000: 1024}
	for in, want := range cases {
		if got := nextPowerOfTwo(in); got != want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
