package ir

import "fmt"

// Walker is a cursor into a block's instruction sequence. It is a small
// value; copies are independent positions. Position arithmetic is plain
// index arithmetic over the block's slot slice, so a Walker stays valid
// across in-place replacement and tombstoning. Insertion shifts the slots
// at or after the insertion point; the discipline is that one active cursor
// performs a mutation and any other outstanding cursor is explicitly
// repositioned before its next mutation is trusted.
//
// The zero Walker is not attached to any block.
type Walker struct {
	block *BasicBlock
	idx   int
}

// Block returns the block the cursor is attached to.
func (w Walker) Block() *BasicBlock { return w.block }

// Index returns the cursor's slot index within its block.
func (w Walker) Index() int { return w.idx }

// IsStartOfBlock reports whether the cursor is at the block's label slot.
func (w Walker) IsStartOfBlock() bool { return w.idx == 0 }

// IsEndOfBlock reports whether the cursor is past the last slot.
func (w Walker) IsEndOfBlock() bool { return w.block == nil || w.idx >= len(w.block.instrs) }

// IsStartOfMethod reports whether the cursor is at the first slot of the
// method's first block.
func (w Walker) IsStartOfMethod() bool {
	return w.IsStartOfBlock() && w.block != nil && w.block.method.PreviousBlock(w.block) == nil
}

// IsEndOfMethod reports whether the cursor is past the last slot of the
// method's last block.
func (w Walker) IsEndOfMethod() bool {
	return w.IsEndOfBlock() && (w.block == nil || w.block.method.NextBlockAfter(w.block) == nil)
}

// Get returns the instruction at the cursor, nil at a tombstone or at an
// end position.
func (w Walker) Get() *Instruction {
	if w.block == nil || w.idx < 0 || w.idx >= len(w.block.instrs) {
		return nil
	}
	return w.block.instrs[w.idx]
}

// NextInBlock advances one slot within the block.
func (w *Walker) NextInBlock() *Walker {
	w.idx++
	return w
}

// PreviousInBlock retreats one slot within the block.
func (w *Walker) PreviousInBlock() *Walker {
	w.idx--
	return w
}

// NextInMethod advances one slot, crossing into the next block when the
// end of the current one is reached.
func (w *Walker) NextInMethod() *Walker {
	w.NextInBlock()
	if w.IsEndOfBlock() && w.block != nil {
		if next := w.block.method.NextBlockAfter(w.block); next != nil {
			w.block = next
			w.idx = 0
		}
	}
	return w
}

// PreviousInMethod retreats one slot, crossing into the previous block when
// the start of the current one is passed.
func (w *Walker) PreviousInMethod() *Walker {
	w.PreviousInBlock()
	if w.idx < 0 && w.block != nil {
		if prev := w.block.method.PreviousBlock(w.block); prev != nil {
			w.block = prev
			w.idx = len(prev.instrs) - 1
		} else {
			w.idx = 0
		}
	}
	return w
}

// Release detaches and returns the instruction at the cursor, leaving a
// tombstone. The instruction's use records stay registered; ownership
// transfers to the caller, who re-installs it elsewhere via Reset.
func (w Walker) Release() *Instruction {
	inst := w.block.instrs[w.idx]
	w.block.instrs[w.idx] = nil
	return inst
}

// Reset replaces the slot's content with inst. The old instruction's use
// records are dropped wholesale; inst's records are untouched (they were
// created at construction, or survive from before a Release). Labels can
// neither be replaced nor introduced mid-block.
func (w Walker) Reset(inst *Instruction) error {
	old := w.block.instrs[w.idx]
	if (old != nil && old.Op == OpLabel) != (inst != nil && inst.Op == OpLabel) {
		return fmt.Errorf("cannot swap a label in or out of a basic block: %s", inst)
	}
	if old != nil {
		old.deregisterAll()
	}
	w.block.instrs[w.idx] = inst
	return nil
}

// Erase removes the instruction at the cursor, dropping its use records
// and leaving a tombstone to be compacted at pass end.
func (w Walker) Erase() error {
	inst := w.block.instrs[w.idx]
	if inst == nil {
		return nil
	}
	if inst.Op == OpLabel {
		return fmt.Errorf("cannot erase the label of block %s", w.block.Label())
	}
	inst.deregisterAll()
	w.block.instrs[w.idx] = nil
	return nil
}

// Emplace inserts inst immediately before the cursor and leaves the cursor
// on the inserted instruction. Inserting before the block label or
// inserting a label is an error. Slots at or after the insertion point
// shift by one; other outstanding cursors into this block must be
// repositioned by the caller.
func (w *Walker) Emplace(inst *Instruction) error {
	if w.IsStartOfBlock() {
		return fmt.Errorf("cannot emplace at the start of block %s", w.block.Label())
	}
	if inst.Op == OpLabel {
		return fmt.Errorf("cannot add a label into basic block %s", w.block.Label())
	}
	w.block.insertAt(w.idx, inst)
	return nil
}
