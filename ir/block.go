package ir

import "fmt"

// BasicBlock is an ordered, mutable, straight-line instruction sequence.
// Slot 0 always holds the block's label. Removed instructions leave nil
// tombstone slots behind; passes compact them via
// Method.CleanEmptyInstructions once their reordering is done, so that
// outstanding cursors stay meaningful during the pass.
type BasicBlock struct {
	method *Method
	instrs []*Instruction
}

// Label returns the block's name.
func (b *BasicBlock) Label() string {
	return b.instrs[0].Label
}

// Method returns the method owning the block.
func (b *BasicBlock) Method() *Method { return b.method }

// Len returns the number of slots, tombstones included.
func (b *BasicBlock) Len() int { return len(b.instrs) }

// Begin returns a cursor at the block's label.
func (b *BasicBlock) Begin() Walker { return Walker{block: b, idx: 0} }

// End returns the past-the-end cursor.
func (b *BasicBlock) End() Walker { return Walker{block: b, idx: len(b.instrs)} }

// Append adds the instruction at the end of the block.
func (b *BasicBlock) Append(inst *Instruction) {
	b.instrs = append(b.instrs, inst)
}

// CountEncoded returns the number of instructions that participate in the
// final encoding.
func (b *BasicBlock) CountEncoded() int {
	n := 0
	for _, inst := range b.instrs {
		if inst != nil && inst.MapsToMachineInstruction() {
			n++
		}
	}
	return n
}

// IsLocallyLimited reports whether every registered user of the local
// occurs within window slots starting at the given cursor, i.e. whether the
// local's live range is confined to a short straight-line span inside this
// block. Users in other blocks or beyond the window make it false.
func (b *BasicBlock) IsLocallyLimited(from Walker, loc *Local, window int) bool {
	remaining := make(map[*Instruction]struct{})
	loc.ForUsers(UseBoth, func(inst *Instruction) {
		remaining[inst] = struct{}{}
	})
	it := from
	for n := 0; n <= window && !it.IsEndOfBlock(); n++ {
		if inst := it.Get(); inst != nil {
			delete(remaining, inst)
		}
		it.NextInBlock()
	}
	return len(remaining) == 0
}

func (b *BasicBlock) insertAt(idx int, inst *Instruction) {
	b.instrs = append(b.instrs, nil)
	copy(b.instrs[idx+1:], b.instrs[idx:])
	b.instrs[idx] = inst
}

// compact removes tombstone slots.
func (b *BasicBlock) compact() {
	out := b.instrs[:0]
	for _, inst := range b.instrs {
		if inst != nil {
			out = append(out, inst)
		}
	}
	for i := len(out); i < len(b.instrs); i++ {
		b.instrs[i] = nil
	}
	b.instrs = out
}

// Method is one kernel function: parameters, a local arena, and an ordered
// list of basic blocks. All optimization state is confined to the method,
// which is what makes optimizing different methods concurrently sound.
type Method struct {
	Name   string
	Params []*Parameter
	Blocks []*BasicBlock

	locals      map[string]*Local
	tempCounter int
}

// NewMethod creates an empty method.
func NewMethod(name string) *Method {
	return &Method{Name: name, locals: make(map[string]*Local)}
}

// AddParameter registers a parameter and its backing local.
func (m *Method) AddParameter(p *Parameter) {
	m.Params = append(m.Params, p)
	m.locals[p.Name] = &p.Local
}

// FindLocal returns the local with the given name, or nil.
func (m *Method) FindLocal(name string) *Local {
	return m.locals[name]
}

// AddLocal creates a named local in the method's scope. Names are unique;
// re-adding an existing name returns the existing local.
func (m *Method) AddLocal(t DataType, name string) *Local {
	if l, ok := m.locals[name]; ok {
		return l
	}
	l := NewLocal(t, name)
	m.locals[name] = l
	return l
}

// AddNewLocal creates a freshly named temporary with the given prefix.
func (m *Method) AddNewLocal(t DataType, prefix string) *Local {
	for {
		name := fmt.Sprintf("%%%s.%d", prefix, m.tempCounter)
		m.tempCounter++
		if _, ok := m.locals[name]; !ok {
			l := NewLocal(t, name)
			m.locals[name] = l
			return l
		}
	}
}

// AddBlock appends a new basic block with the given label.
func (m *Method) AddBlock(label string) *BasicBlock {
	b := &BasicBlock{method: m}
	b.instrs = append(b.instrs, NewLabel(label))
	m.Blocks = append(m.Blocks, b)
	return b
}

// FindBlock returns the block with the given label, or nil.
func (m *Method) FindBlock(label string) *BasicBlock {
	for _, b := range m.Blocks {
		if b.Label() == label {
			return b
		}
	}
	return nil
}

// NextBlockAfter returns the block following b in method order, or nil.
func (m *Method) NextBlockAfter(b *BasicBlock) *BasicBlock {
	for i, blk := range m.Blocks {
		if blk == b && i+1 < len(m.Blocks) {
			return m.Blocks[i+1]
		}
	}
	return nil
}

// PreviousBlock returns the block preceding b in method order, or nil.
func (m *Method) PreviousBlock(b *BasicBlock) *BasicBlock {
	for i, blk := range m.Blocks {
		if blk == b && i > 0 {
			return m.Blocks[i-1]
		}
	}
	return nil
}

// WalkAllInstructions returns a cursor at the first instruction of the
// first block.
func (m *Method) WalkAllInstructions() Walker {
	if len(m.Blocks) == 0 {
		return Walker{}
	}
	return m.Blocks[0].Begin()
}

// CleanEmptyInstructions compacts the tombstone slots left behind by
// instruction removal out of all blocks. Outstanding cursors are invalid
// afterwards.
func (m *Method) CleanEmptyInstructions() {
	for _, b := range m.Blocks {
		b.compact()
	}
}

// CountInstructions returns the number of live instructions in the method.
func (m *Method) CountInstructions() int {
	n := 0
	for _, b := range m.Blocks {
		for _, inst := range b.instrs {
			if inst != nil {
				n++
			}
		}
	}
	return n
}

// Module is a compilation unit: globals plus methods. Passes never mutate
// the module itself, only the single method they were handed.
type Module struct {
	Name    string
	Globals []*Global
	Methods []*Method
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddMethod appends a method to the module.
func (m *Module) AddMethod(method *Method) {
	m.Methods = append(m.Methods, method)
}

// FindGlobal returns the global with the given name, or nil.
func (m *Module) FindGlobal(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}
