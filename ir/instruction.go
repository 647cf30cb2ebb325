package ir

import (
	"fmt"
	"strings"
)

// Op identifies an instruction kind. The catalog is closed; the optimizer
// dispatches on it exhaustively and treats the numeric machine encoding as
// a downstream concern.
type Op uint8

// Instruction kinds.
const (
	// OpNop is a delay-slot placeholder tagged with the hazard it absorbs.
	OpNop Op = iota
	// OpLabel starts a basic block. Labels never map to machine code.
	OpLabel
	// OpBranch transfers control to a label.
	OpBranch
	// OpMove copies its argument to its result.
	OpMove
	// OpLoadImm materializes a literal into its result.
	OpLoadImm
	// Add-pipe ALU operations.
	OpAdd
	OpSub
	OpMin
	OpMax
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpFAdd
	OpFSub
	// Mul-pipe ALU operations.
	OpMul24
	OpFMul
	// OpRotate rotates values across SIMD lanes by a constant offset. Its
	// source operand is hardware-constrained to accumulator storage.
	OpRotate
	// OpMemBarrier orders memory accesses and is never reordered.
	OpMemBarrier
	// OpPragma is a pure scheduling artifact (hints for later passes). It
	// does not map to a machine instruction.
	OpPragma
)

// LaneCount is the SIMD width; rotation offsets are taken modulo this.
const LaneCount = 16

var opNames = map[Op]string{
	OpNop:        "nop",
	OpLabel:      "label",
	OpBranch:     "br",
	OpMove:       "mov",
	OpLoadImm:    "ldi",
	OpAdd:        "add",
	OpSub:        "sub",
	OpMin:        "min",
	OpMax:        "max",
	OpAnd:        "and",
	OpOr:         "or",
	OpXor:        "xor",
	OpShl:        "shl",
	OpShr:        "shr",
	OpFAdd:       "fadd",
	OpFSub:       "fsub",
	OpMul24:      "mul24",
	OpFMul:       "fmul",
	OpRotate:     "rot",
	OpMemBarrier: "membar",
	OpPragma:     "pragma",
}

// String returns the mnemonic.
func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "op?"
}

// IsAddALU reports whether the operation executes on the add pipe.
func (o Op) IsAddALU() bool {
	switch o {
	case OpAdd, OpSub, OpMin, OpMax, OpAnd, OpOr, OpXor, OpShl, OpShr, OpFAdd, OpFSub:
		return true
	}
	return false
}

// IsMulALU reports whether the operation executes on the mul pipe.
func (o Op) IsMulALU() bool {
	return o == OpMul24 || o == OpFMul
}

// DelayType is the closed set of hazard reasons a placeholder instruction
// may encode.
type DelayType uint8

// Delay types.
const (
	DelayNone DelayType = iota
	// DelayBranch fills a branch delay slot.
	DelayBranch
	// DelayThreadEnd follows the thread-end signal.
	DelayThreadEnd
	// DelayWaitRegister delays one cycle before a value produced with
	// single-instruction latency may be consumed.
	DelayWaitRegister
	// DelayWaitSFU waits for a pending special-function unit result.
	DelayWaitSFU
	// DelayWaitTMU waits for a pending texture unit lookup.
	DelayWaitTMU
)

var delayNames = map[DelayType]string{
	DelayNone:         "none",
	DelayBranch:       "branch",
	DelayThreadEnd:    "thread-end",
	DelayWaitRegister: "wait-register",
	DelayWaitSFU:      "wait-sfu",
	DelayWaitTMU:      "wait-tmu",
}

// String returns the delay reason's name.
func (d DelayType) String() string {
	if n, ok := delayNames[d]; ok {
		return n
	}
	return "delay?"
}

// CondCode selects conditional execution of an instruction based on the
// hardware flags.
type CondCode uint8

// Condition codes.
const (
	CondAlways CondCode = iota
	CondNever
	CondZeroSet
	CondZeroClear
	CondNegativeSet
	CondNegativeClear
	CondCarrySet
	CondCarryClear
)

// Signal is a hardware signal fired alongside an instruction.
type Signal uint8

// Signals.
const (
	SignalNone Signal = iota
	// SignalThreadEnd terminates the hardware thread.
	SignalThreadEnd
	// SignalLoadTMU latches a pending texture lookup into the result FIFO.
	SignalLoadTMU
)

// Pack selects a result-packing transform. A packed write routes through
// register file A and cannot be consumed in the next cycle.
type Pack uint8

// Pack modes.
const (
	PackNone Pack = iota
	Pack16A
	Pack16B
	Pack8888
	PackSat
)

// Unpack selects an operand-unpacking transform.
type Unpack uint8

// Unpack modes.
const (
	UnpackNone Unpack = iota
	Unpack16A
	Unpack16B
	Unpack8A
)

// Instruction is one unit of the instruction stream. The catalog is a
// single closed struct discriminated by Op; which locals it reads and
// writes is derived from Result and Args, never stored.
//
// Constructing an instruction through the New* constructors registers its
// local uses in the use-def registry. Structural edits afterwards go
// through Walker operations, which keep the registry paired with the
// mutation.
type Instruction struct {
	Op     Op
	Result Value
	Args   []Value

	Cond     CondCode
	SetFlags bool
	Signal   Signal
	Pack     Pack
	Unpack   Unpack

	// Delay is the hazard reason when Op is OpNop.
	Delay DelayType

	// Label is the block name for OpLabel and the target for OpBranch.
	Label string

	// Offset is the constant lane offset for OpRotate.
	Offset int

	// CanBeCombined marks the instruction as eligible for pairing with a
	// neighboring instruction by the peephole combiner. The flag must
	// survive replacement of the instruction it was set on.
	CanBeCombined bool

	// CombinedWithNext marks a pairing decision made by the combiner.
	CombinedWithNext bool
}

// registerUses records the instruction's derived local uses in the
// use-def registry. Called once by every constructor.
func (i *Instruction) registerUses() {
	for l, k := range i.UsedLocals() {
		l.AddUser(i, k)
	}
}

// NewNop creates a delay-slot placeholder for the given hazard reason.
func NewNop(delay DelayType) *Instruction {
	return &Instruction{Op: OpNop, Delay: delay, CanBeCombined: true}
}

// NewSignalNop creates a placeholder that also fires a hardware signal,
// making it ineligible for replacement.
func NewSignalNop(delay DelayType, sig Signal) *Instruction {
	return &Instruction{Op: OpNop, Delay: delay, Signal: sig}
}

// NewLabel creates a block-start label.
func NewLabel(name string) *Instruction {
	return &Instruction{Op: OpLabel, Label: name}
}

// NewBranch creates a branch to the named label.
func NewBranch(target string, cond CondCode) *Instruction {
	return &Instruction{Op: OpBranch, Label: target, Cond: cond}
}

// NewMove creates a copy of src into dest.
func NewMove(dest, src Value) *Instruction {
	inst := &Instruction{Op: OpMove, Result: dest, Args: []Value{src}, CanBeCombined: true}
	inst.registerUses()
	return inst
}

// NewLoadImm creates a literal load into dest.
func NewLoadImm(dest Value, lit int64) *Instruction {
	inst := &Instruction{
		Op:            OpLoadImm,
		Result:        dest,
		Args:          []Value{LiteralValue(lit, dest.Type)},
		CanBeCombined: true,
	}
	inst.registerUses()
	return inst
}

// NewOperation creates an ALU operation writing dest.
func NewOperation(op Op, dest Value, args ...Value) *Instruction {
	inst := &Instruction{Op: op, Result: dest, Args: args, CanBeCombined: true}
	inst.registerUses()
	return inst
}

// NewRotation creates a vector-lane rotation of src into dest by a constant
// lane offset.
func NewRotation(dest, src Value, offset int) *Instruction {
	inst := &Instruction{
		Op:     OpRotate,
		Result: dest,
		Args:   []Value{src},
		Offset: offset % LaneCount,
	}
	inst.registerUses()
	return inst
}

// NewMemBarrier creates an explicit memory-ordering barrier.
func NewMemBarrier() *Instruction {
	return &Instruction{Op: OpMemBarrier}
}

// NewPragma creates a scheduling artifact that does not reach the encoder.
func NewPragma(text string) *Instruction {
	return &Instruction{Op: OpPragma, Label: text}
}

// UsedLocals derives the mapping of every local the instruction touches to
// its use kind. The mapping is recomputed from the operand and result
// fields on every call.
func (i *Instruction) UsedLocals() map[*Local]UseKind {
	out := make(map[*Local]UseKind)
	if i.Result.Kind == ValueLocal {
		out[i.Result.Local] |= UseWriter
	}
	for _, a := range i.Args {
		if a.Kind == ValueLocal {
			out[a.Local] |= UseReader
		}
	}
	return out
}

// ReadsLocal reports whether the instruction reads the given local.
func (i *Instruction) ReadsLocal(l *Local) bool {
	for _, a := range i.Args {
		if a.HasLocal(l) {
			return true
		}
	}
	return false
}

// WritesLocal reports whether the instruction writes the given local.
func (i *Instruction) WritesLocal(l *Local) bool {
	return i.Result.HasLocal(l)
}

// ReadsRegister reports whether any argument designates the register.
func (i *Instruction) ReadsRegister(r Register) bool {
	for _, a := range i.Args {
		if a.HasRegister(r) {
			return true
		}
	}
	return false
}

// WritesRegister reports whether the result designates the register.
func (i *Instruction) WritesRegister(r Register) bool {
	return i.Result.HasRegister(r)
}

// HasSideEffects reports whether executing the instruction does more than
// produce its result: fires a signal, sets flags, writes a hardware
// register (other than the discard sink), or reads a register whose read
// consumes hardware state.
func (i *Instruction) HasSideEffects() bool {
	if i.Signal != SignalNone || i.SetFlags {
		return true
	}
	if i.Result.Kind == ValueRegister && i.Result.Reg != RegDiscard {
		return true
	}
	for _, a := range i.Args {
		if a.Kind == ValueRegister && readHasSideEffects(a.Reg) {
			return true
		}
	}
	return false
}

// HasConditionalExecution reports whether the instruction executes
// conditionally on the hardware flags.
func (i *Instruction) HasConditionalExecution() bool {
	return i.Cond != CondAlways
}

// MapsToMachineInstruction reports whether the instruction participates in
// the final encoding. Labels and pragmas are transparent to delay
// accounting and live-range tracking.
func (i *Instruction) MapsToMachineInstruction() bool {
	return i.Op != OpLabel && i.Op != OpPragma
}

// ReplaceLocal rewrites occurrences of old with new in the instruction's
// operands (for UseReader), result (for UseWriter), or both, and moves the
// corresponding use records from old to new. Replacing a local the
// instruction never registered is an invariant violation.
func (i *Instruction) ReplaceLocal(old, repl *Local, kind UseKind) error {
	var reads, writes int
	if kind.Reads() {
		for n, a := range i.Args {
			if a.HasLocal(old) {
				i.Args[n].Local = repl
				reads++
			}
		}
	}
	if kind.Writes() && i.Result.HasLocal(old) {
		i.Result.Local = repl
		writes++
	}
	for n := 0; n < reads; n++ {
		if err := old.RemoveUser(i, UseReader); err != nil {
			return err
		}
		repl.AddUser(i, UseReader)
	}
	for n := 0; n < writes; n++ {
		if err := old.RemoveUser(i, UseWriter); err != nil {
			return err
		}
		repl.AddUser(i, UseWriter)
	}
	return nil
}

// deregisterAll drops the instruction's use records wholesale. Used when
// the instruction is deleted from the stream.
func (i *Instruction) deregisterAll() {
	for l := range i.UsedLocals() {
		// UseBoth removal never fails.
		_ = l.RemoveUser(i, UseBoth)
	}
}

// String returns the instruction as written in IR dumps.
func (i *Instruction) String() string {
	switch i.Op {
	case OpNop:
		return fmt.Sprintf("nop (%s)", i.Delay)
	case OpLabel:
		return i.Label + ":"
	case OpBranch:
		return "br " + i.Label
	case OpPragma:
		return "pragma " + i.Label
	case OpMemBarrier:
		return "membar"
	}
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = a.String()
	}
	if i.Op == OpRotate {
		return fmt.Sprintf("%s = rot %s, %d", i.Result, i.Args[0], i.Offset)
	}
	if i.Result.Defined() {
		return fmt.Sprintf("%s = %s %s", i.Result, i.Op, strings.Join(args, ", "))
	}
	return fmt.Sprintf("%s %s", i.Op, strings.Join(args, ", "))
}
