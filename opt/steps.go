package opt

import (
	"sort"

	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// Built-in single-instruction steps, driven together by RunSingleSteps.
var (
	// SimplifyOperation rewrites arithmetic identities (x+0, x|0, x<<0,
	// x*1) into moves and erases moves of a local onto itself.
	SimplifyOperation = Step{Name: "simplify-operation", Index: 0, Apply: simplifyOperation}

	// HoistRotationSources copies rotation sources with over-long live
	// ranges into fresh temporaries so they fit an accumulator.
	HoistRotationSources = Step{Name: "hoist-rotation-sources", Index: 1, Apply: hoistRotationSources}
)

// AllSteps returns every built-in step in index order.
func AllSteps() []Step {
	steps := []Step{SimplifyOperation, HoistRotationSources}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Less(steps[j]) })
	return steps
}

// runSingleSteps applies every registered step at each instruction in one
// sweep over the method. The driver advances from whichever cursor the
// last step returned, so steps may consume or produce instructions.
func runSingleSteps(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	steps := AllSteps()
	it := m.WalkAllInstructions()
	for !it.IsEndOfMethod() {
		if it.Get() != nil {
			for _, s := range steps {
				next, err := s.Apply(mod, m, it, cfg)
				if err != nil {
					return err
				}
				it = next
				if it.Get() == nil {
					break
				}
			}
		}
		it.NextInMethod()
	}
	m.CleanEmptyInstructions()
	return nil
}

// isIdentityLiteral reports whether lit is the neutral element of op.
func isIdentityLiteral(op ir.Op, lit int64) bool {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpShr:
		return lit == 0
	case ir.OpMul24:
		return lit == 1
	}
	return false
}

func simplifyOperation(mod *ir.Module, m *ir.Method, it ir.Walker, cfg *config.Config) (ir.Walker, error) {
	inst := it.Get()
	if inst == nil || inst.HasSideEffects() || inst.HasConditionalExecution() {
		return it, nil
	}

	switch {
	case inst.Op == ir.OpMove:
		// a move of a local onto itself does nothing
		if inst.Result.Kind == ir.ValueLocal && inst.Args[0].HasLocal(inst.Result.Local) {
			cfg.Logger().Debug("erasing useless move", "method", m.Name, "instruction", inst.String())
			if err := it.Erase(); err != nil {
				return it, err
			}
		}
	case len(inst.Args) == 2 && inst.Args[1].Kind == ir.ValueLiteral &&
		isIdentityLiteral(inst.Op, inst.Args[1].Lit):
		cfg.Logger().Debug("rewriting identity operation to move",
			"method", m.Name, "instruction", inst.String())
		mv := ir.NewMove(inst.Result, inst.Args[0])
		mv.CanBeCombined = inst.CanBeCombined
		if err := it.Reset(mv); err != nil {
			return it, err
		}
	}
	return it, nil
}
