package opt

import (
	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// hoistRotationSources makes sure the source of a vector rotation has a
// usage range small enough to live in an accumulator. When the source local
// is written in another block, or the write-to-use range exceeds the
// accumulator window, the value is copied into a fresh temporary right
// before the run of placeholders preceding the rotation and the rotation is
// rewritten to read the temporary. The returned cursor points at the
// original writer so the driver re-examines the span the rewrite exposed.
func hoistRotationSources(mod *ir.Module, m *ir.Method, it ir.Walker, cfg *config.Config) (ir.Walker, error) {
	inst := it.Get()
	if inst == nil || inst.Op != ir.OpRotate {
		return it, nil
	}
	src := inst.Args[0]
	if src.Kind != ir.ValueLocal {
		return it, nil
	}
	loc := src.Local

	writer := it
	writer.PreviousInBlock()
	for !writer.IsStartOfBlock() {
		if w := writer.Get(); w != nil && w.WritesLocal(loc) {
			break
		}
		writer.PreviousInBlock()
	}

	if !writer.IsStartOfBlock() && writer.Block().IsLocallyLimited(writer, loc, cfg.AccumulatorWindow) {
		return it, nil
	}

	// insert the copy before the contiguous run of placeholders directly
	// preceding the rotation, so the placeholders keep delaying the copy's
	// consumers rather than the copy itself
	mapper := it
	mapper.PreviousInBlock()
	for {
		prev := mapper
		prev.PreviousInBlock()
		if p := prev.Get(); p != nil && p.Op == ir.OpNop {
			mapper.PreviousInBlock()
			continue
		}
		break
	}

	if mapper.IsStartOfBlock() {
		// no room before the rotation; leave the schedule as it is
		cfg.Logger().Debug("no slot for rotation source copy",
			"method", m.Name, "rotation", inst.String())
		return it, nil
	}

	cfg.Logger().Debug("moving rotation source to temporary",
		"method", m.Name, "rotation", inst.String())

	tmp := m.AddNewLocal(loc.Type, "vector_rotation")
	if err := mapper.Emplace(ir.NewMove(tmp.CreateReference(), loc.CreateReference())); err != nil {
		return it, err
	}
	if err := inst.ReplaceLocal(loc, tmp, ir.UseReader); err != nil {
		return it, err
	}
	return writer, nil
}
