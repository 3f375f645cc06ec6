package codegen

import (
	"fmt"
	"strings"

	"github.com/rawbytedev/fcodec/internal/common"
	"github.com/rawbytedev/fcodec/pkg/schema"
)

// methodNames are declared on every generated struct, so fields with these
// names get a "Field" suffix.
var methodNames = map[string]bool{
	"EncodeTo": true, "DecodeFrom": true, "Size": true, "Fingerprint": true,
	"Layout": true, "TemplateID": true, "MarshalBinary": true, "UnmarshalBinary": true,
}

func fieldName(f schema.Field) string {
	name := common.ExportedName(f.Name)
	if methodNames[name] {
		name += "Field"
	}
	return name
}

// goPrimitive relies on primitives being spelled like their Go types.
func goPrimitive(p schema.Primitive) string {
	if !p.Valid() {
		panic("codegen: invalid primitive " + p.String())
	}
	return p.String()
}

func isSigned(p schema.Primitive) bool {
	switch p {
	case schema.Int8, schema.Int16, schema.Int32, schema.Int64:
		return true
	}
	return false
}

// goType is the Go type holding a value of t.
func (g *Generator) goType(t schema.Type) string {
	switch t.Kind() {
	case schema.KindPrimitive:
		return goPrimitive(t.Primitive())
	case schema.KindEnum, schema.KindMessage:
		return common.ExportedName(t.Ref())
	case schema.KindFixedBytes:
		return fmt.Sprintf("[%d]byte", t.Len())
	case schema.KindBytes:
		return "[]byte"
	case schema.KindString:
		return "string"
	case schema.KindArray:
		if t.IsVariableArray() {
			return "[]" + g.goType(t.Elem())
		}
		return fmt.Sprintf("[%d]%s", t.Len(), g.goType(t.Elem()))
	}
	panic("codegen: invalid type " + t.String())
}

// fieldType is goType for a field. Nullable slices use nil for absence;
// every other nullable type becomes a pointer.
func (g *Generator) fieldType(f schema.Field) string {
	typ := g.goType(f.Type)
	if f.Nullable && !isSlice(f.Type) {
		return "*" + typ
	}
	return typ
}

func isSlice(t schema.Type) bool {
	return t.Kind() == schema.KindBytes || t.IsVariableArray()
}

// scalar returns the primitive behind a primitive or enum type.
func (g *Generator) scalar(t schema.Type) (schema.Primitive, bool) {
	switch t.Kind() {
	case schema.KindPrimitive:
		return t.Primitive(), true
	case schema.KindEnum:
		e, _ := g.schema.Enum(t.Ref())
		return e.Underlying(), true
	}
	return schema.InvalidPrimitive, false
}

func (g *Generator) orderSuffix() string {
	if g.schema.Order() == schema.LittleEndian {
		return "LE"
	}
	return "BE"
}

func (g *Generator) orderConst() string {
	if g.schema.Order() == schema.LittleEndian {
		return "wire.LittleEndian"
	}
	return "wire.BigEndian"
}

// put renders the call writing the scalar val of primitive p at pos.
func (g *Generator) put(p schema.Primitive, pos, val string) string {
	switch p {
	case schema.Bool:
		return fmt.Sprintf("b.PutBool(%s, %s)", pos, val)
	case schema.Float32:
		return fmt.Sprintf("b.PutFloat32(%s, %s, %s)", pos, val, g.orderConst())
	case schema.Float64:
		return fmt.Sprintf("b.PutFloat64(%s, %s, %s)", pos, val, g.orderConst())
	case schema.Int8, schema.Uint8:
		return fmt.Sprintf("b.PutUint8(%s, uint8(%s))", pos, val)
	}
	bits := p.Width() * 8
	return fmt.Sprintf("b.PutUint%d%s(%s, uint%d(%s))", bits, g.orderSuffix(), pos, bits, val)
}

// get renders the call reading a primitive p at pos, and the Go type the
// call returns.
func (g *Generator) get(p schema.Primitive, pos string) (call, typ string) {
	switch p {
	case schema.Bool:
		return fmt.Sprintf("b.GetBool(%s)", pos), "bool"
	case schema.Float32:
		return fmt.Sprintf("b.GetFloat32(%s, %s)", pos, g.orderConst()), "float32"
	case schema.Float64:
		return fmt.Sprintf("b.GetFloat64(%s, %s)", pos, g.orderConst()), "float64"
	case schema.Int8, schema.Uint8:
		return fmt.Sprintf("b.GetUint8(%s)", pos), "uint8"
	}
	bits := p.Width() * 8
	return fmt.Sprintf("b.GetUint%d%s(%s)", bits, g.orderSuffix(), pos), fmt.Sprintf("uint%d", bits)
}

// putLength renders the call writing a length or count prefix. The buffer
// rejects lengths the prefix cannot hold.
func (g *Generator) putLength(pos, n string) string {
	return fmt.Sprintf("b.PutLength(%s, %s, %s)", pos, n, g.orderConst())
}

func (g *Generator) getLength(pos string) string {
	return fmt.Sprintf("b.GetUint32%s(%s)", g.orderSuffix(), pos)
}

// index renders val[i]. A dereferenced pointer needs parentheses first.
func index(val, i string) string {
	return paren(val) + "[" + i + "]"
}

func slice(val string) string {
	return paren(val) + "[:]"
}

func paren(val string) string {
	if strings.HasPrefix(val, "*") {
		return "(" + val + ")"
	}
	return val
}

// addr renders a pointer to the addressable val.
func addr(val string) string {
	if strings.HasPrefix(val, "*") {
		return val[1:]
	}
	return "&" + val
}

// offset renders base+i*size with the trivial cases folded.
func offset(base, i string, size int) string {
	switch size {
	case 0:
		return base
	case 1:
		return base + "+" + i
	}
	return fmt.Sprintf("%s+%s*%d", base, i, size)
}
