package metropolis

import (
	"time"

	"github.com/df07/go-metropolis-raytracer/pkg/core"
)

// ChainStats holds a chain's acceptance bookkeeping: total proposals,
// accepts, and per-strategy breakdowns. Large (independent) mutations are
// tracked separately because their acceptance rate is the usual health
// indicator for a Metropolis render.
type ChainStats struct {
	Proposals      int64
	Accepted       int64
	LargeProposals int64
	LargeAccepted  int64

	StrategyProposals [numMutationTypes]int64
	StrategyAccepted  [numMutationTypes]int64
}

// record books one proposal outcome
func (s *ChainStats) record(strategy MutationType, largeStep, accepted bool) {
	s.Proposals++
	s.StrategyProposals[strategy]++
	if largeStep {
		s.LargeProposals++
	}
	if accepted {
		s.Accepted++
		s.StrategyAccepted[strategy]++
		if largeStep {
			s.LargeAccepted++
		}
	}
}

// merge adds another chain's counters into this one
func (s *ChainStats) merge(other ChainStats) {
	s.Proposals += other.Proposals
	s.Accepted += other.Accepted
	s.LargeProposals += other.LargeProposals
	s.LargeAccepted += other.LargeAccepted
	for i := range s.StrategyProposals {
		s.StrategyProposals[i] += other.StrategyProposals[i]
		s.StrategyAccepted[i] += other.StrategyAccepted[i]
	}
}

// AcceptanceRate returns the overall fraction of accepted proposals
func (s ChainStats) AcceptanceRate() float64 {
	if s.Proposals == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Proposals)
}

// RenderStats summarizes a completed render
type RenderStats struct {
	ChainStats
	Units    int           // Work units executed
	Duration time.Duration // Wall-clock render time
}

// Dump logs the acceptance statistics. Suppressed by the renderer for
// nested first-stage runs.
func (s RenderStats) Dump(logger core.Logger) {
	logger.Printf("Render finished in %v: %d work units, %d proposals, %.2f%% accepted\n",
		s.Duration, s.Units, s.Proposals, 100*s.AcceptanceRate())
	if s.LargeProposals > 0 {
		logger.Printf("   Large-step acceptance: %.2f%% (%d/%d)\n",
			100*float64(s.LargeAccepted)/float64(s.LargeProposals), s.LargeAccepted, s.LargeProposals)
	}
	for t := MutationType(0); t < numMutationTypes; t++ {
		if s.StrategyProposals[t] == 0 {
			continue
		}
		logger.Printf("   %-13s: %d proposals, %.2f%% accepted\n", t,
			s.StrategyProposals[t],
			100*float64(s.StrategyAccepted[t])/float64(s.StrategyProposals[t]))
	}
}
