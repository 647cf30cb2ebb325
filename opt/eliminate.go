package opt

import (
	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// eliminateDeadInstructions removes instructions whose written local has no
// remaining readers. Instructions with side effects or conditional
// execution are kept regardless. Blocks are swept backwards so a removed
// read exposes its producers within the same sweep.
func eliminateDeadInstructions(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	log := cfg.Logger()
	for _, b := range m.Blocks {
		it := b.End()
		it.PreviousInBlock()
		for !it.IsStartOfBlock() {
			inst := it.Get()
			if inst != nil && isDeadInstruction(inst) {
				log.Debug("eliminating dead instruction",
					"method", m.Name, "instruction", inst.String())
				if err := it.Erase(); err != nil {
					return err
				}
			}
			it.PreviousInBlock()
		}
	}
	m.CleanEmptyInstructions()
	return nil
}

// isDeadInstruction reports whether the instruction writes a local nobody
// reads and can be dropped without observable difference.
func isDeadInstruction(inst *ir.Instruction) bool {
	if inst.HasSideEffects() || inst.HasConditionalExecution() {
		return false
	}
	if inst.Op == ir.OpBranch || inst.Op == ir.OpLabel || inst.Op == ir.OpMemBarrier || inst.Op == ir.OpNop {
		return false
	}
	if inst.Result.Kind != ir.ValueLocal {
		return false
	}
	for _, reader := range inst.Result.Local.UsersOf(ir.UseReader) {
		if reader != inst {
			return false
		}
	}
	return true
}
