// Package schema is the intermediate representation of a codec schema:
// messages made of ordered, typed fields, and the enums they use.
//
// Declarations go through a Builder. Builder.Validate resolves references,
// rejects reference cycles, classifies each message as fixed or variable
// size and computes its fingerprint. The resulting *Schema is immutable and
// is the only input the code generator and the runtime compiler accept.
package schema

import "github.com/rawbytedev/fcodec/pkg/wire"

// Schema is a validated, immutable set of messages and enums.
type Schema struct {
	namespace string
	version   Version
	order     Order

	messages   []*Message
	byName     map[string]*Message
	enums      []*Enum
	enumByName map[string]*Enum
}

// Namespace is the Go package name generated code is emitted into.
func (s *Schema) Namespace() string { return s.namespace }

func (s *Schema) Version() Version { return s.version }

// Order is the byte order used for every multi-byte number.
func (s *Schema) Order() Order { return s.order }

// Messages returns the messages in dependency order: every message comes
// after the messages it references.
func (s *Schema) Messages() []*Message {
	out := make([]*Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message looks up a message by name.
func (s *Schema) Message(name string) (*Message, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Enums returns the enums in declaration order.
func (s *Schema) Enums() []*Enum {
	out := make([]*Enum, len(s.enums))
	copy(out, s.enums)
	return out
}

// Enum looks up an enum by name.
func (s *Schema) Enum(name string) (*Enum, bool) {
	e, ok := s.enumByName[name]
	return e, ok
}

// TypeSize returns the encoded size of t when fixed, or its minimum encoded
// size otherwise.
func (s *Schema) TypeSize(t Type) (size int, fixed bool) {
	switch t.kind {
	case KindPrimitive:
		return t.prim.Width(), true
	case KindFixedBytes:
		return t.n, true
	case KindBytes, KindString:
		return wire.LengthPrefixSize, false
	case KindEnum:
		return s.enumByName[t.ref].underlying.Width(), true
	case KindMessage:
		m := s.byName[t.ref]
		return m.size, m.layout == Fixed
	case KindArray:
		if t.n == 0 {
			return wire.LengthPrefixSize, false
		}
		n, fixed := s.TypeSize(t.Elem())
		return n * t.n, fixed
	}
	return 0, false
}

// FieldSize is TypeSize for a field. A nullable field is never fixed: its
// minimum is the presence marker alone.
func (s *Schema) FieldSize(f Field) (size int, fixed bool) {
	if f.Nullable {
		return wire.PresenceSize, false
	}
	return s.TypeSize(f.Type)
}

// Message is a validated message declaration.
type Message struct {
	name        string
	fields      []Field
	fingerprint uint64
	layout      Layout
	size        int
	offsets     []int
	templateID  uint16
	deps        []string
}

func (m *Message) Name() string { return m.name }

// Fields returns the fields in wire order.
func (m *Message) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// NumFields returns the number of fields.
func (m *Message) NumFields() int { return len(m.fields) }

// Field returns the i'th field in wire order.
func (m *Message) Field(i int) Field { return m.fields[i] }

// FieldByName looks up a field.
func (m *Message) FieldByName(name string) (Field, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Fingerprint is a 64-bit xxhash of the canonical declaration.
func (m *Message) Fingerprint() uint64 { return m.fingerprint }

func (m *Message) Layout() Layout { return m.layout }

// Size is the encoded size of a fixed message, or the minimum encoded size
// of a variable one.
func (m *Message) Size() int { return m.size }

// Offsets returns the constant offset of every field of a fixed message, or
// nil for a variable message.
func (m *Message) Offsets() []int {
	if m.offsets == nil {
		return nil
	}
	out := make([]int, len(m.offsets))
	copy(out, m.offsets)
	return out
}

// TemplateID identifies the message in frame headers.
func (m *Message) TemplateID() uint16 { return m.templateID }

// Dependencies lists the messages m references directly, in field order.
func (m *Message) Dependencies() []string {
	out := make([]string, len(m.deps))
	copy(out, m.deps)
	return out
}

// Enum is a validated enum declaration.
type Enum struct {
	name       string
	underlying Primitive
	values     []EnumValue
}

func (e *Enum) Name() string { return e.name }

// Underlying is the integer primitive the enum is encoded as.
func (e *Enum) Underlying() Primitive { return e.underlying }

// Values returns the constants in declaration order.
func (e *Enum) Values() []EnumValue {
	out := make([]EnumValue, len(e.values))
	copy(out, e.values)
	return out
}

// Lookup returns the constant named name.
func (e *Enum) Lookup(name string) (EnumValue, bool) {
	for _, v := range e.values {
		if v.Name == name {
			return v, true
		}
	}
	return EnumValue{}, false
}
