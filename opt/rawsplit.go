package opt

import (
	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// splitReadAfterWrites inserts a wait-register placeholder between a write
// to a local and a read of it when pipeline timing forbids the two from
// being adjacent: the writer packed its result (the value routes through
// register file A and is not readable the next cycle), the reader is a
// vector rotation (its source must come from an accumulator that is not
// written the previous cycle), or the local's live range escapes the
// straight-line span between writer and reader.
//
// The placeholder goes immediately after the write rather than before the
// read. A write-label-read sequence then becomes write-nop-label-read, and
// the reordering pass can still locate the hazard's origin when it tries to
// fill the slot.
func splitReadAfterWrites(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	log := cfg.Logger()

	it := m.WalkAllInstructions()
	lastInstruction := it
	var lastWrittenTo *ir.Local

	// start the check at the read; the write is behind us
	it.NextInMethod()
	for !it.IsEndOfMethod() {
		if inst := it.Get(); inst != nil {
			if lastWrittenTo != nil && inst.ReadsLocal(lastWrittenTo) {
				writer := lastInstruction.Get()
				if writer.Pack != ir.PackNone || inst.Op == ir.OpRotate ||
					!lastInstruction.Block().IsLocallyLimited(lastInstruction, lastWrittenTo, cfg.AccumulatorWindow) {
					log.Debug("splitting read-after-write",
						"method", m.Name, "local", lastWrittenTo.Name, "reader", inst.String())
					at := lastInstruction
					at.NextInBlock()
					if err := at.Emplace(ir.NewNop(ir.DelayWaitRegister)); err != nil {
						return err
					}
					// the insertion shifted every slot at or after it by
					// one; reposition the scan cursor before trusting it
					if it.Block() == at.Block() && it.Index() >= at.Index() {
						it.NextInBlock()
					}
				}
			}
			if inst.MapsToMachineInstruction() {
				// labels and pragmas stay transparent, so a
				// write-label-read pattern is still recognized
				if inst.Result.Kind == ir.ValueLocal {
					lastWrittenTo = inst.Result.Local
				} else {
					lastWrittenTo = nil
				}
				lastInstruction = it
			}
		}
		it.NextInMethod()
	}
	return nil
}
