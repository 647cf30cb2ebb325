package opt

import (
	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// combineLiteralLoads rewrites a reload of an identical literal within a
// small window of a basic block into a move from the earlier load's target.
// The downstream combiner can then pair the move, and the eliminator drops
// it entirely when the two targets get the same register.
func combineLiteralLoads(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	log := cfg.Logger()
	for _, b := range m.Blocks {
		type seenLoad struct {
			target ir.Value
			idx    int
		}
		seen := make(map[int64]seenLoad)

		it := b.Begin()
		for !it.IsEndOfBlock() {
			inst := it.Get()
			if inst == nil || inst.Op != ir.OpLoadImm ||
				inst.HasSideEffects() || inst.HasConditionalExecution() ||
				inst.Result.Kind != ir.ValueLocal {
				it.NextInBlock()
				continue
			}
			lit := inst.Args[0].Lit
			if prev, ok := seen[lit]; ok && it.Index()-prev.idx <= cfg.CombineLoadWindow {
				// the earlier target must still hold the literal here;
				// within one straight-line block a single writer suffices
				if prev.target.Local.SingleWriter() != nil {
					log.Debug("combining literal loads",
						"method", m.Name, "literal", lit, "instruction", inst.String())
					mv := ir.NewMove(inst.Result, prev.target)
					mv.CanBeCombined = inst.CanBeCombined
					if err := it.Reset(mv); err != nil {
						return err
					}
					it.NextInBlock()
					continue
				}
			}
			seen[lit] = seenLoad{target: inst.Result, idx: it.Index()}
			it.NextInBlock()
		}
	}
	return nil
}

// combineRotations collapses a rotation whose source is produced by another
// rotation into a single rotation with the summed lane offset. The inner
// rotation becomes dead once its only reader is rewritten and is left for
// the eliminator.
func combineRotations(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	log := cfg.Logger()
	it := m.WalkAllInstructions()
	for !it.IsEndOfMethod() {
		inst := it.Get()
		if inst == nil || inst.Op != ir.OpRotate || inst.Args[0].Kind != ir.ValueLocal {
			it.NextInMethod()
			continue
		}
		src := inst.Args[0].Local
		inner := src.SingleWriter()
		if inner == nil || inner.Op != ir.OpRotate || inner.Args[0].Kind != ir.ValueLocal ||
			inner.HasSideEffects() || inner.HasConditionalExecution() {
			it.NextInMethod()
			continue
		}
		if len(src.UsersOf(ir.UseReader)) != 1 {
			it.NextInMethod()
			continue
		}
		log.Debug("combining stacked rotations",
			"method", m.Name, "instruction", inst.String())
		if err := inst.ReplaceLocal(src, inner.Args[0].Local, ir.UseReader); err != nil {
			return err
		}
		inst.Offset = (inst.Offset + inner.Offset) % ir.LaneCount
		it.NextInMethod()
	}
	return nil
}

// combineVPMSetup drops a VPM setup write that repeats the previous setup
// of the same register with no intervening access to that direction of the
// memory-transfer bus.
func combineVPMSetup(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	log := cfg.Logger()
	for _, b := range m.Blocks {
		lastSetup := make(map[ir.Register]int64)

		it := b.Begin()
		for !it.IsEndOfBlock() {
			inst := it.Get()
			if inst == nil {
				it.NextInBlock()
				continue
			}
			if inst.Result.Kind == ir.ValueRegister {
				r := inst.Result.Reg
				if (r == ir.RegVPMReadSetup || r == ir.RegVPMWriteSetup) &&
					len(inst.Args) == 1 && inst.Args[0].Kind == ir.ValueLiteral &&
					!inst.HasConditionalExecution() && inst.Signal == ir.SignalNone {
					if lit, ok := lastSetup[r]; ok && lit == inst.Args[0].Lit {
						log.Debug("dropping duplicate VPM setup",
							"method", m.Name, "instruction", inst.String())
						if err := it.Erase(); err != nil {
							return err
						}
						it.NextInBlock()
						continue
					}
					lastSetup[r] = inst.Args[0].Lit
					it.NextInBlock()
					continue
				}
				// any other bus access invalidates the remembered setups
				if r.Hazard() == ir.HazardDMALoad || r.Hazard() == ir.HazardDMAStore {
					lastSetup = make(map[ir.Register]int64)
				}
			}
			for _, a := range inst.Args {
				if a.Kind == ir.ValueRegister &&
					(a.Reg.Hazard() == ir.HazardDMALoad || a.Reg.Hazard() == ir.HazardDMAStore) {
					lastSetup = make(map[ir.Register]int64)
					break
				}
			}
			it.NextInBlock()
		}
	}
	m.CleanEmptyInstructions()
	return nil
}

// combineInstructionPairs marks adjacent independent add-pipe and mul-pipe
// instructions as a dual-issue pair. The actual fusion happens during
// encoding; this pass only records the decision through the may-fuse flag
// machinery.
func combineInstructionPairs(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	log := cfg.Logger()
	for _, b := range m.Blocks {
		it := b.Begin()
		for !it.IsEndOfBlock() {
			first := it.Get()
			next := it
			next.NextInBlock()
			if next.IsEndOfBlock() {
				break
			}
			second := next.Get()
			if canPair(first, second) {
				log.Debug("pairing instructions for dual issue",
					"method", m.Name, "first", first.String(), "second", second.String())
				first.CombinedWithNext = true
				// the second instruction is consumed by the pair
				next.NextInBlock()
			}
			it = next
		}
	}
	return nil
}

// canPair reports whether two adjacent instructions may issue together:
// opposite pipes, both willing, independent, and unconditional.
func canPair(a, b *ir.Instruction) bool {
	if a == nil || b == nil || !a.CanBeCombined || !b.CanBeCombined {
		return false
	}
	if a.CombinedWithNext || b.CombinedWithNext {
		return false
	}
	if !(a.Op.IsAddALU() && b.Op.IsMulALU()) && !(a.Op.IsMulALU() && b.Op.IsAddALU()) {
		return false
	}
	if a.HasSideEffects() || b.HasSideEffects() ||
		a.HasConditionalExecution() || b.HasConditionalExecution() {
		return false
	}
	// b must not consume a's result, and the two must not write the same
	// location
	if a.Result.Kind == ir.ValueLocal && b.ReadsLocal(a.Result.Local) {
		return false
	}
	if a.Result.Kind == ir.ValueLocal && b.Result.HasLocal(a.Result.Local) {
		return false
	}
	if a.Result.Kind == ir.ValueRegister && b.Result.HasRegister(a.Result.Reg) {
		return false
	}
	return true
}
