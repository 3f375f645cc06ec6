package schemafile

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rawbytedev/fcodec/pkg/schema"
)

// ParseType reads a type expression. The grammar is that of
// schema.Type.String:
//
//	int32  string  bytes  bytes[16]  Point  []Point  [4]int16  [2][]string
//
// Names that are not built in refer to an enum when enums reports them,
// and to a message otherwise.
func ParseType(s string, enums map[string]bool) (schema.Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return schema.Type{}, errors.Wrap(ErrInvalidType, "empty type")
	}
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return schema.Type{}, errors.Wrapf(ErrInvalidType, "%q: unclosed [", s)
		}
		count := 0
		if n := s[1:end]; n != "" {
			v, err := strconv.Atoi(n)
			if err != nil || v <= 0 {
				return schema.Type{}, errors.Wrapf(ErrInvalidType, "%q: bad array length %q", s, n)
			}
			count = v
		}
		elem, err := ParseType(s[end+1:], enums)
		if err != nil {
			return schema.Type{}, err
		}
		return schema.Array(elem, count), nil
	}
	if strings.HasPrefix(s, "bytes[") && strings.HasSuffix(s, "]") {
		n, err := strconv.Atoi(s[len("bytes[") : len(s)-1])
		if err != nil || n <= 0 {
			return schema.Type{}, errors.Wrapf(ErrInvalidType, "%q: bad byte length", s)
		}
		return schema.FixedBytes(n), nil
	}
	switch s {
	case "string":
		return schema.String(), nil
	case "bytes":
		return schema.Bytes(), nil
	}
	if p, ok := schema.ParsePrimitive(s); ok {
		return schema.Prim(p), nil
	}
	if enums[s] {
		return schema.EnumRef(s), nil
	}
	return schema.MessageRef(s), nil
}

// fieldType applies the repeated and fixed_capacity modifiers to the parsed
// base type. fixed_capacity sizes a bytes field when the field is not
// repeated, and the array otherwise.
func (f FieldDef) fieldType(enums map[string]bool) (schema.Type, error) {
	base, err := ParseType(f.Type, enums)
	if err != nil {
		return schema.Type{}, err
	}
	capacity := 0
	if f.FixedCapacity != nil {
		if *f.FixedCapacity <= 0 {
			return schema.Type{}, errors.Wrapf(ErrInvalidType, "fixed_capacity %d", *f.FixedCapacity)
		}
		capacity = *f.FixedCapacity
	}
	switch {
	case f.Repeated:
		return schema.Array(base, capacity), nil
	case capacity > 0 && base.Kind() == schema.KindBytes:
		return schema.FixedBytes(capacity), nil
	case capacity > 0:
		return schema.Type{}, errors.Wrapf(ErrInvalidType, "fixed_capacity on non-repeated %s", f.Type)
	}
	return base, nil
}
