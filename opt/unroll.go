package opt

import (
	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// unrollWorkGroups wraps the kernel body in a decrement-and-branch loop
// over a runtime-provided repeat count, letting the runtime dispatch many
// work groups with one kernel start. Gated by configuration because the
// runtime must cooperate by providing the count as the first uniform.
func unrollWorkGroups(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	if !cfg.UnrollWorkGroups {
		return nil
	}
	if len(m.Blocks) == 0 {
		return nil
	}
	cfg.Logger().Debug("unrolling work groups", "method", m.Name)

	counter := m.AddNewLocal(ir.TypeInt32, "group_loop")

	// read the repeat count from the uniform FIFO before the body runs
	first := m.Blocks[0]
	at := first.Begin()
	at.NextInBlock()
	if err := at.Emplace(ir.NewMove(counter.CreateReference(), ir.RegisterValue(ir.RegUniform, ir.TypeInt32))); err != nil {
		return err
	}

	// decrement and loop back while the count has not reached zero
	last := m.Blocks[len(m.Blocks)-1]
	dec := ir.NewOperation(ir.OpSub, counter.CreateReference(),
		counter.CreateReference(), ir.LiteralValue(1, ir.TypeInt32))
	dec.SetFlags = true
	last.Append(dec)
	last.Append(ir.NewBranch(first.Label(), ir.CondZeroClear))
	return nil
}
