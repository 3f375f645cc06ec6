package schema

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rawbytedev/fcodec/internal/common"
)

// Kind is the tag of the Type sum type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindPrimitive
	KindFixedBytes
	KindBytes
	KindString
	KindArray
	KindMessage
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindFixedBytes:
		return "fixed-bytes"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMessage:
		return "message"
	case KindEnum:
		return "enum"
	}
	return "invalid"
}

// Primitive is a fixed-width scalar: two's complement integers, IEEE-754
// floats and a one byte bool.
type Primitive uint8

const (
	InvalidPrimitive Primitive = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
)

var primitiveNames = [...]string{
	InvalidPrimitive: "invalid",
	Int8:             "int8",
	Int16:            "int16",
	Int32:            "int32",
	Int64:            "int64",
	Uint8:            "uint8",
	Uint16:           "uint16",
	Uint32:           "uint32",
	Uint64:           "uint64",
	Float32:          "float32",
	Float64:          "float64",
	Bool:             "bool",
}

var primitiveKinds = [...]reflect.Kind{
	InvalidPrimitive: reflect.Invalid,
	Int8:             reflect.Int8,
	Int16:            reflect.Int16,
	Int32:            reflect.Int32,
	Int64:            reflect.Int64,
	Uint8:            reflect.Uint8,
	Uint16:           reflect.Uint16,
	Uint32:           reflect.Uint32,
	Uint64:           reflect.Uint64,
	Float32:          reflect.Float32,
	Float64:          reflect.Float64,
	Bool:             reflect.Bool,
}

// String returns the schema spelling, which is also the Go type name.
func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "Primitive(" + strconv.Itoa(int(p)) + ")"
}

// Valid reports whether p is one of the declared primitives.
func (p Primitive) Valid() bool {
	return p > InvalidPrimitive && int(p) < len(primitiveNames)
}

// Kind returns the Go kind values of p have.
func (p Primitive) Kind() reflect.Kind {
	if !p.Valid() {
		return reflect.Invalid
	}
	return primitiveKinds[p]
}

// Width is the encoded size of p in bytes.
func (p Primitive) Width() int {
	return common.FixedSize(p.Kind())
}

// IsInteger reports whether p is a signed or unsigned integer.
func (p Primitive) IsInteger() bool {
	return common.IsIntegerKind(p.Kind())
}

// ParsePrimitive returns the primitive spelled s.
func ParsePrimitive(s string) (Primitive, bool) {
	for p := Int8; p <= Bool; p++ {
		if primitiveNames[p] == s {
			return p, true
		}
	}
	return InvalidPrimitive, false
}

// Type is a closed sum type over the wire representations a field may have.
// The zero Type is invalid. Use the constructors below.
type Type struct {
	kind Kind
	prim Primitive
	n    int
	elem *Type
	ref  string
}

// Prim returns the primitive type p.
func Prim(p Primitive) Type { return Type{kind: KindPrimitive, prim: p} }

// FixedBytes returns n raw bytes with no length prefix.
func FixedBytes(n int) Type { return Type{kind: KindFixedBytes, n: n} }

// Bytes returns a length-prefixed byte string.
func Bytes() Type { return Type{kind: KindBytes} }

// String returns a length-prefixed UTF-8 string.
func String() Type { return Type{kind: KindString} }

// Array returns an array of elem. A count of 0 declares a variable array,
// written with a count prefix; a positive count declares a fixed array.
func Array(elem Type, count int) Type {
	e := elem
	return Type{kind: KindArray, n: count, elem: &e}
}

// MessageRef refers to a message declared in the same schema.
func MessageRef(name string) Type { return Type{kind: KindMessage, ref: name} }

// EnumRef refers to an enum declared in the same schema.
func EnumRef(name string) Type { return Type{kind: KindEnum, ref: name} }

func (t Type) Kind() Kind { return t.kind }

// Primitive returns the primitive of a KindPrimitive type.
func (t Type) Primitive() Primitive { return t.prim }

// Len returns the byte count of a fixed-bytes type or the element count of
// an array (0 for variable arrays).
func (t Type) Len() int { return t.n }

// Elem returns the element type of an array.
func (t Type) Elem() Type {
	if t.elem == nil {
		return Type{}
	}
	return *t.elem
}

// Ref returns the referenced message or enum name.
func (t Type) Ref() string { return t.ref }

// IsVariableArray reports whether t is an array with a count prefix.
func (t Type) IsVariableArray() bool { return t.kind == KindArray && t.n == 0 }

// String renders t in the notation used by error messages and the inspect
// command.
func (t Type) String() string {
	switch t.kind {
	case KindPrimitive:
		return t.prim.String()
	case KindFixedBytes:
		return fmt.Sprintf("bytes[%d]", t.n)
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindArray:
		if t.n == 0 {
			return "[]" + t.Elem().String()
		}
		return fmt.Sprintf("[%d]%s", t.n, t.Elem().String())
	case KindMessage, KindEnum:
		return t.ref
	}
	return "invalid"
}

// Equal reports whether two types are structurally identical.
func (t Type) Equal(o Type) bool {
	if t.kind != o.kind || t.prim != o.prim || t.n != o.n || t.ref != o.ref {
		return false
	}
	if t.kind == KindArray {
		return t.Elem().Equal(o.Elem())
	}
	return true
}

// refs appends every message name reachable through t without crossing
// another message.
func (t Type) refs(dst []string) []string {
	switch t.kind {
	case KindMessage:
		return append(dst, t.ref)
	case KindArray:
		return t.Elem().refs(dst)
	}
	return dst
}

// check validates the shape of t independent of other declarations.
func (t Type) check() error {
	switch t.kind {
	case KindPrimitive:
		if !t.prim.Valid() {
			return errors.Errorf("unknown primitive %d", t.prim)
		}
	case KindFixedBytes:
		if t.n <= 0 {
			return errors.Errorf("fixed bytes length %d must be positive", t.n)
		}
	case KindBytes, KindString:
	case KindArray:
		if t.n < 0 {
			return errors.Errorf("array count %d is negative", t.n)
		}
		if t.elem == nil {
			return errors.New("array has no element type")
		}
		return t.elem.check()
	case KindMessage, KindEnum:
		if t.ref == "" {
			return errors.Errorf("%s reference has no name", t.kind)
		}
	default:
		return errors.New("invalid type")
	}
	return nil
}

// Field is one member of a message.
type Field struct {
	Name string
	Type Type
	// Index fixes the wire position: 1-based, unique and sequential within a
	// message. Leave every Index at 0 to number fields in argument order.
	Index    int
	Nullable bool

	Deprecated bool
	Note       string
	// ID is the stable identifier recorded in a lock file. It is not part of
	// the wire format or the fingerprint.
	ID int
}

// Layout classifies a message's encoded size.
type Layout uint8

const (
	// Fixed messages always encode to the same number of bytes.
	Fixed Layout = iota
	// Variable messages have a data dependent size.
	Variable
)

func (l Layout) String() string {
	if l == Fixed {
		return "fixed"
	}
	return "variable"
}

// Order is the byte order of every multi-byte number in a schema.
type Order uint8

const (
	BigEndian Order = iota
	LittleEndian
)

func (o Order) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// ParseOrder accepts "big", "little" and the empty string (big).
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "", "big", "be", "big-endian":
		return BigEndian, true
	case "little", "le", "little-endian":
		return LittleEndian, true
	}
	return BigEndian, false
}

// EnumValue is one named constant of an enum.
type EnumValue struct {
	Name  string
	Value int64
}
