package ir

import (
	"fmt"
	"strconv"
)

// DataType identifies the static type of a value. The set is closed; the
// optimizer never inspects element layouts, only whether types match.
type DataType uint8

// Data types.
const (
	TypeUnknown DataType = iota
	TypeVoid
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeFloat32
	TypePointer
)

// String returns the type name as written in IR dumps.
func (t DataType) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeBool:
		return "bool"
	case TypeInt8:
		return "i8"
	case TypeInt16:
		return "i16"
	case TypeInt32:
		return "i32"
	case TypeFloat32:
		return "f32"
	case TypePointer:
		return "ptr"
	default:
		return "?"
	}
}

// ElemAny marks a value that refers to a whole object rather than a
// specific sub-element.
const ElemAny = -1

// ValueKind discriminates the payload of a Value.
type ValueKind uint8

// Value kinds.
const (
	// ValueUndefined is the zero Value, used for "no result".
	ValueUndefined ValueKind = iota
	// ValueLocal references a named storage location.
	ValueLocal
	// ValueRegister designates a hardware register.
	ValueRegister
	// ValueLiteral is an immediate constant.
	ValueLiteral
)

// Value is an operand or result of an instruction: a reference to a Local
// (optionally a specific sub-element), a hardware register designator, or a
// literal constant.
type Value struct {
	Kind  ValueKind
	Local *Local
	Reg   Register
	Lit   int64
	Type  DataType
	Elem  int
}

// LocalValue returns a value referencing the whole of the given local.
func LocalValue(l *Local) Value {
	return Value{Kind: ValueLocal, Local: l, Type: l.Type, Elem: ElemAny}
}

// ElementValue returns a value referencing a single element of the local.
func ElementValue(l *Local, elem int) Value {
	return Value{Kind: ValueLocal, Local: l, Type: l.Type, Elem: elem}
}

// RegisterValue returns a value designating a hardware register.
func RegisterValue(r Register, t DataType) Value {
	return Value{Kind: ValueRegister, Reg: r, Type: t, Elem: ElemAny}
}

// LiteralValue returns an immediate constant value.
func LiteralValue(lit int64, t DataType) Value {
	return Value{Kind: ValueLiteral, Lit: lit, Type: t, Elem: ElemAny}
}

// Defined reports whether the value carries a payload.
func (v Value) Defined() bool { return v.Kind != ValueUndefined }

// HasLocal reports whether the value references the given local.
func (v Value) HasLocal(l *Local) bool {
	return v.Kind == ValueLocal && v.Local != nil && v.Local.Equal(l)
}

// HasRegister reports whether the value designates the given register.
func (v Value) HasRegister(r Register) bool {
	return v.Kind == ValueRegister && v.Reg == r
}

// String returns the value as written in IR dumps.
func (v Value) String() string {
	switch v.Kind {
	case ValueLocal:
		if v.Elem != ElemAny {
			return fmt.Sprintf("%s[%d]", v.Local.Name, v.Elem)
		}
		return v.Local.Name
	case ValueRegister:
		return v.Reg.String()
	case ValueLiteral:
		return strconv.FormatInt(v.Lit, 10)
	default:
		return "<undef>"
	}
}
