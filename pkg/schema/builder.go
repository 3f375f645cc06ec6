package schema

import (
	"fmt"
	"sort"

	"github.com/rawbytedev/fcodec/internal/common"
)

// Builder collects message and enum declarations. Declarations are checked
// for local consistency as they are added; cross references are checked by
// Validate. A Builder is not safe for concurrent use.
type Builder struct {
	namespace string
	version   Version
	order     Order

	messages []*messageDecl
	enums    []*enumDecl
	// names maps every declared message and enum name, and its exported Go
	// spelling, to the declaration that claimed it.
	names map[string]string
}

type messageDecl struct {
	name       string
	fields     []Field
	templateID uint16
}

type enumDecl struct {
	name       string
	underlying Primitive
	values     []EnumValue
}

// NewBuilder returns a Builder for a schema whose generated code lives in the
// Go package namespace.
func NewBuilder(namespace string) *Builder {
	return &Builder{
		namespace: namespace,
		version:   Version{Major: 1},
		names:     make(map[string]string),
	}
}

// SetVersion records the schema version carried in frame headers.
func (b *Builder) SetVersion(v Version) { b.version = v }

// SetOrder selects the byte order of every multi-byte number.
func (b *Builder) SetOrder(o Order) { b.order = o }

// SetTemplateID pins the template id of a declared message. Messages without
// one are numbered by Validate.
func (b *Builder) SetTemplateID(message string, id uint16) error {
	if id == 0 {
		return newError(ErrInvalidTemplateID, message, "", "template id 0 is reserved")
	}
	for _, m := range b.messages {
		if m.name == message {
			m.templateID = id
			return nil
		}
	}
	return newError(ErrUnresolvedTypeReference, message, "", "no such message")
}

// claim reserves a top-level name and its exported spelling.
func (b *Builder) claim(name string) error {
	if !common.IsIdentifier(name) {
		return newError(ErrInvalidName, name, "", "not a valid identifier")
	}
	if prev, ok := b.names[name]; ok {
		return newError(ErrDuplicateMessageName, name, "", "already declared as "+prev)
	}
	exported := common.ExportedName(name)
	if prev, ok := b.names["#"+exported]; ok {
		return newError(ErrDuplicateMessageName, name, "",
			fmt.Sprintf("Go name %s already used by %s", exported, prev))
	}
	b.names[name] = name
	b.names["#"+exported] = name
	return nil
}

// DefineMessage declares a message. Field indexes must either all be zero, in
// which case they are assigned 1..n in argument order, or form the sequence
// 1..n in some order.
func (b *Builder) DefineMessage(name string, fields ...Field) error {
	if len(fields) == 0 {
		return newError(ErrEmptyMessage, name, "", "")
	}
	seen := make(map[string]bool, len(fields))
	goNames := make(map[string]string, len(fields))
	for _, f := range fields {
		if !common.IsIdentifier(f.Name) {
			return newError(ErrInvalidName, name, f.Name, "not a valid identifier")
		}
		if seen[f.Name] {
			return newError(ErrDuplicateFieldName, name, f.Name, "")
		}
		seen[f.Name] = true
		exported := common.ExportedName(f.Name)
		if prev, ok := goNames[exported]; ok {
			return newError(ErrDuplicateFieldName, name, f.Name,
				fmt.Sprintf("Go name %s already used by %s", exported, prev))
		}
		goNames[exported] = f.Name
		if err := f.Type.check(); err != nil {
			return newError(ErrInvalidType, name, f.Name, err.Error())
		}
	}
	sorted, err := numberFields(name, fields)
	if err != nil {
		return err
	}
	if err := b.claim(name); err != nil {
		return err
	}
	b.messages = append(b.messages, &messageDecl{name: name, fields: sorted})
	return nil
}

func numberFields(message string, fields []Field) ([]Field, error) {
	out := make([]Field, len(fields))
	copy(out, fields)

	explicit := 0
	for _, f := range out {
		if f.Index != 0 {
			explicit++
		}
	}
	if explicit == 0 {
		for i := range out {
			out[i].Index = i + 1
		}
		return out, nil
	}
	if explicit != len(out) {
		return nil, newError(ErrInvalidFieldIndex, message, "", "either every field or none must carry an index")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	for i, f := range out {
		if f.Index != i+1 {
			return nil, newError(ErrInvalidFieldIndex, message, f.Name,
				fmt.Sprintf("index %d, want %d (indexes are unique and sequential from 1)", f.Index, i+1))
		}
	}
	return out, nil
}

// DefineEnum declares a named set of integer constants encoded with the
// underlying primitive.
func (b *Builder) DefineEnum(name string, underlying Primitive, values ...EnumValue) error {
	if !underlying.IsInteger() {
		return newError(ErrInvalidEnum, name, "", "underlying type "+underlying.String()+" is not an integer")
	}
	if len(values) == 0 {
		return newError(ErrInvalidEnum, name, "", "no values")
	}
	lo, hi := common.IntRange(underlying.Kind())
	names := make(map[string]bool, len(values))
	nums := make(map[int64]string, len(values))
	for _, v := range values {
		if !common.IsIdentifier(v.Name) {
			return newError(ErrInvalidName, name, v.Name, "not a valid identifier")
		}
		if names[v.Name] {
			return newError(ErrDuplicateEnumValue, name, v.Name, "")
		}
		names[v.Name] = true
		if prev, ok := nums[v.Value]; ok {
			return newError(ErrDuplicateEnumValue, name, v.Name,
				fmt.Sprintf("value %d already used by %s", v.Value, prev))
		}
		nums[v.Value] = v.Name
		if v.Value < lo || v.Value > hi {
			return newError(ErrInvalidEnum, name, v.Name,
				fmt.Sprintf("value %d out of range for %s", v.Value, underlying))
		}
	}
	if err := b.claim(name); err != nil {
		return err
	}
	vals := make([]EnumValue, len(values))
	copy(vals, values)
	b.enums = append(b.enums, &enumDecl{name: name, underlying: underlying, values: vals})
	return nil
}
