package opt

import (
	"sort"
	"strings"

	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
)

// valueSet is an exclusion set over operand identities: hardware registers
// and locals. Literals never constrain reordering.
type valueSet struct {
	regs   map[ir.Register]struct{}
	locals map[*ir.Local]struct{}
}

func newValueSet() *valueSet {
	return &valueSet{
		regs:   make(map[ir.Register]struct{}),
		locals: make(map[*ir.Local]struct{}),
	}
}

func (s *valueSet) addValue(v ir.Value) {
	switch v.Kind {
	case ir.ValueRegister:
		s.regs[v.Reg] = struct{}{}
	case ir.ValueLocal:
		s.locals[v.Local] = struct{}{}
	}
}

func (s *valueSet) addRegisters(regs []ir.Register) {
	for _, r := range regs {
		s.regs[r] = struct{}{}
	}
}

// addSpecialFunctionGroup widens the set to the whole SFU and TMU register
// groups. Any special-function or texture access within a delay window is
// unsafe to pull ahead of one already in flight.
func (s *valueSet) addSpecialFunctionGroup() {
	s.addRegisters(ir.RegistersInGroup(ir.HazardSFU))
	s.addRegisters(ir.RegistersInGroup(ir.HazardTMU))
}

func (s *valueSet) contains(v ir.Value) bool {
	switch v.Kind {
	case ir.ValueRegister:
		_, ok := s.regs[v.Reg]
		return ok
	case ir.ValueLocal:
		for l := range s.locals {
			if l.Equal(v.Local) {
				return true
			}
		}
	}
	return false
}

func (s *valueSet) touches(inst *ir.Instruction) bool {
	if inst.Result.Defined() && s.contains(inst.Result) {
		return true
	}
	for _, a := range inst.Args {
		if s.contains(a) {
			return true
		}
	}
	return false
}

// String lists the excluded values for debug traces.
func (s *valueSet) String() string {
	var names []string
	for r := range s.regs {
		names = append(names, r.String())
	}
	for l := range s.locals {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// findPreviousInstruction walks back from pos to the nearest preceding
// instruction that produced a result, skipping tombstones. It stops at the
// block start (the label) when no producer exists.
func findPreviousInstruction(pos ir.Walker) ir.Walker {
	it := pos
	for !it.IsStartOfBlock() {
		if inst := it.Get(); inst != nil && inst.Result.Defined() {
			break
		}
		it.PreviousInBlock()
	}
	return it
}

// findInstructionNotAccessing scans forward from pos for an instruction
// that can be relocated into pos's slot without touching any excluded
// value. The scan is bounded by lookahead instructions; exceeding it, or
// reaching a mutex access, yields the end-of-block cursor.
func findInstructionNotAccessing(pos ir.Walker, excluded *valueSet, cfg *config.Config) ir.Walker {
	left := cfg.NopLookahead
	it := pos
	for left > 0 && !it.IsEndOfBlock() {
		inst := it.Get()
		if inst == nil {
			// skip already-replaced slots
			it.NextInBlock()
			left--
			continue
		}

		// Never move a mutex release, and never move anything past one:
		// that would silently widen the critical section. Relocating an
		// acquire risks unbounded critical-section growth. Both cases
		// abort the whole search, not just this instruction.
		if inst.Result.HasRegister(ir.RegMutex) {
			return pos.Block().End()
		}
		if (len(inst.Args) > 0 && inst.Args[0].HasRegister(ir.RegMutex)) ||
			(len(inst.Args) > 1 && inst.Args[1].HasRegister(ir.RegMutex)) {
			return pos.Block().End()
		}

		valid := !excluded.touches(inst)
		// skip everything setting or depending on flags and signals
		if valid && (inst.HasConditionalExecution() || inst.HasSideEffects()) {
			valid = false
		}
		// never reorder branches, labels or barriers
		if valid && (inst.Op == ir.OpBranch || inst.Op == ir.OpLabel || inst.Op == ir.OpMemBarrier) {
			valid = false
		}
		// relocating a placeholder into a placeholder's slot would corrupt
		// the delay accounting
		if valid && inst.Op == ir.OpNop {
			valid = false
		}
		// an instruction that never reaches the encoder cannot absorb a
		// delay cycle
		if valid && !inst.MapsToMachineInstruction() {
			valid = false
		}
		if valid {
			return it
		}

		// Anything skipped between the placeholder and the eventual
		// candidate may feed later instructions, so its output must not be
		// reordered across.
		if inst.Result.Defined() && !inst.Result.HasRegister(ir.RegDiscard) {
			excluded.addValue(inst.Result)
			if inst.Result.Kind == ir.ValueRegister && inst.Result.Reg.IsSpecialFunction() {
				excluded.addSpecialFunctionGroup()
			}
		}
		left--
		it.NextInBlock()
	}
	return pos.Block().End()
}

// findReplacementCandidate finds an instruction later in the block that can
// be relocated into the placeholder's slot without violating the reason for
// the placeholder. Returns the end-of-block cursor when no safe candidate
// exists.
func findReplacementCandidate(pos ir.Walker, reason ir.DelayType, cfg *config.Config) ir.Walker {
	log := cfg.Logger()
	excluded := newValueSet()

	switch reason {
	case ir.DelayBranch:
		// these placeholders are created during code generation; their
		// cause does not exist yet
		return pos.Block().End()
	case ir.DelayThreadEnd:
		// no instructions follow the thread end
		return pos.Block().End()
	case ir.DelayWaitRegister:
		last := findPreviousInstruction(pos)
		if last.IsStartOfBlock() {
			// the hazard's origin spans the block entry, e.g. a rotation
			// reading a value written by several predecessor blocks
			log.Debug("cannot find hazard origin for placeholder in block",
				"block", pos.Block().Label())
			return pos.Block().End()
		}
		result := last.Get().Result
		excluded.addValue(result)
		if result.Kind == ir.ValueRegister {
			excluded.addRegisters(ir.BusCoupledRegisters(result.Reg))
		}
	case ir.DelayWaitSFU, ir.DelayWaitTMU:
		excluded.addSpecialFunctionGroup()
	default:
		return pos.Block().End()
	}

	it := findInstructionNotAccessing(pos, excluded, cfg)
	if !it.IsEndOfBlock() {
		log.Debug("found relocation candidate",
			"candidate", it.Get().String(), "excluded", excluded.String())
	}
	return it
}

// moveInstructionUp detaches the instruction at it and installs it at dest,
// leaving a tombstone at it's original position.
func moveInstructionUp(dest, it ir.Walker) (ir.Walker, error) {
	inst := it.Release()
	if err := dest.Reset(inst); err != nil {
		return dest, err
	}
	return dest, nil
}

// replaceNops runs the candidate search for every side-effect-free
// placeholder in the block and fills the slots that can be filled.
func replaceNops(b *ir.BasicBlock, cfg *config.Config) error {
	log := cfg.Logger()
	it := b.Begin()
	for !it.IsEndOfBlock() {
		inst := it.Get()
		// placeholders carrying a signal are not replaceable
		if inst != nil && inst.Op == ir.OpNop && !inst.HasSideEffects() {
			replacement := findReplacementCandidate(it, inst.Delay, cfg)
			if !replacement.IsEndOfBlock() {
				log.Debug("replacing placeholder",
					"delay", inst.Delay.String(), "with", replacement.Get().String())
				cannotBeCombined := !inst.CanBeCombined
				moved := replacement.Get()
				if _, err := moveInstructionUp(it, replacement); err != nil {
					return err
				}
				if cannotBeCombined {
					moved.CanBeCombined = false
				}
			}
		}
		it.NextInBlock()
	}
	return nil
}

// reorderWithinBasicBlocks fills delay-slot placeholders with safely
// relocatable instructions, block by block, then compacts the slots the
// moved instructions left behind. A single pass per block is the documented
// contract; iterating to a fixed point buys little and costs build time.
func reorderWithinBasicBlocks(mod *ir.Module, m *ir.Method, cfg *config.Config) error {
	for _, b := range m.Blocks {
		if err := replaceNops(b, cfg); err != nil {
			return err
		}
	}
	m.CleanEmptyInstructions()
	return nil
}
