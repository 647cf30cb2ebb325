package opt

import (
	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// analyzeSpillCandidates reports long-living, rarely-written locals whose
// live range exceeds the spill threshold. Actual spilling into the VPM
// belongs to register allocation; this pass only surfaces the candidates
// the allocator should consider, through the diagnostic sink.
func analyzeSpillCandidates(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	log := cfg.Logger()

	// first and last slot touching each local, in method instruction order
	type span struct {
		first, last int
		writes      int
		seen        bool
	}
	spans := make(map[*ir.Local]*span)

	pos := 0
	it := m.WalkAllInstructions()
	for !it.IsEndOfMethod() {
		if inst := it.Get(); inst != nil {
			for l, kind := range inst.UsedLocals() {
				s := spans[l]
				if s == nil {
					s = &span{first: pos}
					spans[l] = s
				}
				s.last = pos
				s.seen = true
				if kind.Writes() {
					s.writes++
				}
			}
			pos++
		}
		it.NextInMethod()
	}

	for l, s := range spans {
		if !s.seen {
			continue
		}
		if s.last-s.first > cfg.SpillThreshold && s.writes <= 2 {
			log.Debug("spill candidate",
				"method", m.Name, "local", l.Name,
				"range", s.last-s.first, "writes", s.writes)
		}
	}
	return nil
}
