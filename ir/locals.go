package ir

import "fmt"

// UseKind flags how an instruction touches a local.
type UseKind uint8

// Use kinds.
const (
	// UseReader marks a local read by the instruction.
	UseReader UseKind = 1 << iota
	// UseWriter marks a local written by the instruction.
	UseWriter
	// UseBoth marks a local both read and written.
	UseBoth = UseReader | UseWriter
)

// Reads reports whether the kind includes reading.
func (k UseKind) Reads() bool { return k&UseReader != 0 }

// Writes reports whether the kind includes writing.
func (k UseKind) Writes() bool { return k&UseWriter != 0 }

// InvariantError reports that the use-def registry was asked to perform an
// operation that would leave it inconsistent, e.g. removing a use record
// that was never added. It is fatal for the compilation of the method; the
// registry is already wrong and continuing would produce a wrong program.
type InvariantError struct {
	Msg string
}

// Error implements the error interface.
func (e *InvariantError) Error() string { return "use-def invariant violation: " + e.Msg }

// LocalUse is the use record for one (local, instruction) pair: how many of
// the instruction's operands currently read the local and how many of its
// results write it.
type LocalUse struct {
	Reads  int
	Writes int
}

// ReadsLocal reports whether the record holds at least one read.
func (u LocalUse) ReadsLocal() bool { return u.Reads > 0 }

// WritesLocal reports whether the record holds at least one write.
func (u LocalUse) WritesLocal() bool { return u.Writes > 0 }

type userEntry struct {
	inst *Instruction
	use  LocalUse
}

// Local is a uniquely-named, typed storage location. Its use-def registry
// records every instruction currently reading or writing it, in insertion
// order for deterministic traversal.
//
// A Local may carry a back-reference to another Local plus an element
// index, recording that it aliases part of another object. The reference is
// metadata only, never ownership.
type Local struct {
	Name string
	Type DataType

	// Ref and RefElem record that this local aliases (part of) another.
	Ref     *Local
	RefElem int

	users []userEntry
	index map[*Instruction]int
}

// NewLocal creates a local with the given type and name.
func NewLocal(t DataType, name string) *Local {
	return &Local{Name: name, Type: t, RefElem: ElemAny}
}

// Equal reports identity or name equality.
func (l *Local) Equal(other *Local) bool {
	return l == other || (other != nil && l.Name == other.Name)
}

// CreateReference returns a value referencing this local as a whole.
func (l *Local) CreateReference() Value {
	return LocalValue(l)
}

// AddUser adds the given kind of use by the instruction, creating the use
// record if absent. Repeated calls accumulate the counters.
func (l *Local) AddUser(inst *Instruction, kind UseKind) {
	if l.index == nil {
		l.index = make(map[*Instruction]int)
	}
	pos, ok := l.index[inst]
	if !ok {
		pos = len(l.users)
		l.users = append(l.users, userEntry{inst: inst})
		l.index[inst] = pos
	}
	if kind.Reads() {
		l.users[pos].use.Reads++
	}
	if kind.Writes() {
		l.users[pos].use.Writes++
	}
}

// RemoveUser removes the given kind of use by the instruction. UseBoth
// drops the record unconditionally (the instruction is going away
// wholesale) and never fails. A single-kind removal for an instruction with
// no record is an InvariantError. The record is dropped once both counters
// reach zero.
func (l *Local) RemoveUser(inst *Instruction, kind UseKind) error {
	if kind == UseBoth {
		l.dropUser(inst)
		return nil
	}
	pos, ok := l.index[inst]
	if !ok {
		return &InvariantError{
			Msg: fmt.Sprintf("removing unregistered %s user of %s: %s", kind, l.Name, inst),
		}
	}
	if kind.Reads() {
		l.users[pos].use.Reads--
	}
	if kind.Writes() {
		l.users[pos].use.Writes--
	}
	if !l.users[pos].use.ReadsLocal() && !l.users[pos].use.WritesLocal() {
		l.dropUser(inst)
	}
	return nil
}

func (l *Local) dropUser(inst *Instruction) {
	pos, ok := l.index[inst]
	if !ok {
		return
	}
	l.users = append(l.users[:pos], l.users[pos+1:]...)
	delete(l.index, inst)
	for i := pos; i < len(l.users); i++ {
		l.index[l.users[i].inst] = i
	}
}

// UseOf returns the use record for the instruction, if one exists.
func (l *Local) UseOf(inst *Instruction) (LocalUse, bool) {
	pos, ok := l.index[inst]
	if !ok {
		return LocalUse{}, false
	}
	return l.users[pos].use, true
}

// NumUsers returns the number of instructions currently touching the local.
func (l *Local) NumUsers() int { return len(l.users) }

// UsersOf returns the instructions using the local in the given way, in
// insertion order.
func (l *Local) UsersOf(kind UseKind) []*Instruction {
	var out []*Instruction
	for _, e := range l.users {
		if (kind.Reads() && e.use.ReadsLocal()) || (kind.Writes() && e.use.WritesLocal()) {
			out = append(out, e.inst)
		}
	}
	return out
}

// ForUsers calls fn for every instruction using the local in the given way.
// The traversal is evaluated eagerly over a snapshot of the current users;
// mutating the registry from fn is not supported.
func (l *Local) ForUsers(kind UseKind, fn func(*Instruction)) {
	for _, inst := range l.UsersOf(kind) {
		fn(inst)
	}
}

// SingleWriter returns the unique writer of the local if exactly one
// exists, and nil otherwise. The "no writer" and "multiple writers" cases
// are not distinguished; callers needing the distinction count writers via
// UsersOf.
func (l *Local) SingleWriter() *Instruction {
	var writer *Instruction
	for _, e := range l.users {
		if e.use.WritesLocal() {
			if writer != nil {
				return nil
			}
			writer = e.inst
		}
	}
	return writer
}

// String returns the local as written in IR dumps.
func (l *Local) String() string {
	s := l.Type.String() + " " + l.Name
	if l.Ref != nil {
		if l.RefElem != ElemAny {
			return fmt.Sprintf("%s (ref %s at %d)", s, l.Ref.Name, l.RefElem)
		}
		return fmt.Sprintf("%s (ref %s)", s, l.Ref.Name)
	}
	return s
}

// String returns the kind's flag names.
func (k UseKind) String() string {
	switch k {
	case UseReader:
		return "reader"
	case UseWriter:
		return "writer"
	case UseBoth:
		return "reader+writer"
	default:
		return "none"
	}
}

// ParamFlags carries the direction decorations of a kernel parameter.
type ParamFlags uint8

// Parameter direction flags.
const (
	ParamInput ParamFlags = 1 << iota
	ParamOutput
)

// Parameter is a local passed into the method from the host, carrying
// direction decorations.
type Parameter struct {
	Local
	Flags ParamFlags
}

// NewParameter creates a parameter local.
func NewParameter(name string, t DataType, flags ParamFlags) *Parameter {
	return &Parameter{Local: Local{Name: name, Type: t, RefElem: ElemAny}, Flags: flags}
}

// IsInput reports whether the parameter is read by the kernel.
func (p *Parameter) IsInput() bool { return p.Flags&ParamInput != 0 }

// IsOutput reports whether the parameter is written by the kernel.
func (p *Parameter) IsOutput() bool { return p.Flags&ParamOutput != 0 }

// Global is a module-scope local with an initial value, identified by name.
type Global struct {
	Local
	Value Value
}

// NewGlobal creates a global with the given initial value.
func NewGlobal(name string, t DataType, value Value) *Global {
	return &Global{Local: Local{Name: name, Type: t, RefElem: ElemAny}, Value: value}
}

// String returns the global as written in IR dumps.
func (g *Global) String() string {
	return g.Name + ": " + g.Value.String()
}
