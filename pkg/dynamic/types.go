package dynamic

import (
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

// typeCodec is the compiled form of one schema.Type. The closures are chosen
// once per type so the per-value work is a type assertion and a buffer call.
type typeCodec struct {
	name string
	// width is the encoded size of a fixed type and 0 otherwise.
	width int
	// min is the smallest encoded size.
	min    int
	encode func(b *wire.Buffer, p int, v any) (int, error)
	decode func(b *wire.Buffer, p int) (any, int, error)
	size   func(v any) (int, error)
	zero   func() any
}

type putFunc func(b *wire.Buffer, off int, v uint64) error
type getFunc func(b *wire.Buffer, off int) (uint64, error)

// accessors returns the buffer methods for a width and byte order.
func accessors(width int, order wire.ByteOrder) (putFunc, getFunc) {
	le := order == wire.LittleEndian
	switch {
	case width == 1:
		return func(b *wire.Buffer, off int, v uint64) error { return b.PutUint8(off, uint8(v)) },
			func(b *wire.Buffer, off int) (uint64, error) { x, err := b.GetUint8(off); return uint64(x), err }
	case width == 2 && le:
		return func(b *wire.Buffer, off int, v uint64) error { return b.PutUint16LE(off, uint16(v)) },
			func(b *wire.Buffer, off int) (uint64, error) { x, err := b.GetUint16LE(off); return uint64(x), err }
	case width == 2:
		return func(b *wire.Buffer, off int, v uint64) error { return b.PutUint16BE(off, uint16(v)) },
			func(b *wire.Buffer, off int) (uint64, error) { x, err := b.GetUint16BE(off); return uint64(x), err }
	case width == 4 && le:
		return func(b *wire.Buffer, off int, v uint64) error { return b.PutUint32LE(off, uint32(v)) },
			func(b *wire.Buffer, off int) (uint64, error) { x, err := b.GetUint32LE(off); return uint64(x), err }
	case width == 4:
		return func(b *wire.Buffer, off int, v uint64) error { return b.PutUint32BE(off, uint32(v)) },
			func(b *wire.Buffer, off int) (uint64, error) { x, err := b.GetUint32BE(off); return uint64(x), err }
	case le:
		return func(b *wire.Buffer, off int, v uint64) error { return b.PutUint64LE(off, v) },
			func(b *wire.Buffer, off int) (uint64, error) { return b.GetUint64LE(off) }
	default:
		return func(b *wire.Buffer, off int, v uint64) error { return b.PutUint64BE(off, v) },
			func(b *wire.Buffer, off int) (uint64, error) { return b.GetUint64BE(off) }
	}
}

// scalar builds the codec of a fixed-width number whose Go type is T.
func scalar[T any](name string, width int, order wire.ByteOrder, toBits func(T) uint64, fromBits func(uint64) T) typeCodec {
	put, get := accessors(width, order)
	return typeCodec{
		name:  name,
		width: width,
		min:   width,
		encode: func(b *wire.Buffer, p int, v any) (int, error) {
			x, ok := v.(T)
			if !ok {
				return 0, invalid(name, v)
			}
			return width, put(b, p, toBits(x))
		},
		decode: func(b *wire.Buffer, p int) (any, int, error) {
			u, err := get(b, p)
			if err != nil {
				return nil, 0, err
			}
			return fromBits(u), width, nil
		},
		size: func(v any) (int, error) {
			if _, ok := v.(T); !ok {
				return 0, invalid(name, v)
			}
			return width, nil
		},
		zero: func() any { return fromBits(0) },
	}
}

func primitive(p schema.Primitive, name string, order wire.ByteOrder) (typeCodec, error) {
	w := p.Width()
	switch p {
	case schema.Int8:
		return scalar(name, w, order, func(x int8) uint64 { return uint64(uint8(x)) }, func(u uint64) int8 { return int8(u) }), nil
	case schema.Int16:
		return scalar(name, w, order, func(x int16) uint64 { return uint64(uint16(x)) }, func(u uint64) int16 { return int16(u) }), nil
	case schema.Int32:
		return scalar(name, w, order, func(x int32) uint64 { return uint64(uint32(x)) }, func(u uint64) int32 { return int32(u) }), nil
	case schema.Int64:
		return scalar(name, w, order, func(x int64) uint64 { return uint64(x) }, func(u uint64) int64 { return int64(u) }), nil
	case schema.Uint8:
		return scalar(name, w, order, func(x uint8) uint64 { return uint64(x) }, func(u uint64) uint8 { return uint8(u) }), nil
	case schema.Uint16:
		return scalar(name, w, order, func(x uint16) uint64 { return uint64(x) }, func(u uint64) uint16 { return uint16(u) }), nil
	case schema.Uint32:
		return scalar(name, w, order, func(x uint32) uint64 { return uint64(x) }, func(u uint64) uint32 { return uint32(u) }), nil
	case schema.Uint64:
		return scalar(name, w, order, func(x uint64) uint64 { return x }, func(u uint64) uint64 { return u }), nil
	case schema.Float32:
		return scalar(name, w, order, func(x float32) uint64 { return uint64(math.Float32bits(x)) }, func(u uint64) float32 { return math.Float32frombits(uint32(u)) }), nil
	case schema.Float64:
		return scalar(name, w, order, math.Float64bits, math.Float64frombits), nil
	case schema.Bool:
		return scalar(name, w, order, func(x bool) uint64 {
			if x {
				return 1
			}
			return 0
		}, func(u uint64) bool { return u != 0 }), nil
	}
	return typeCodec{}, errors.Errorf("unknown primitive %s", p)
}

func (cs *Codecs) compileType(t schema.Type, order wire.ByteOrder) (typeCodec, error) {
	switch t.Kind() {
	case schema.KindPrimitive:
		return primitive(t.Primitive(), t.String(), order)
	case schema.KindEnum:
		e, ok := cs.schema.Enum(t.Ref())
		if !ok {
			return typeCodec{}, errors.Errorf("unknown enum %s", t.Ref())
		}
		return primitive(e.Underlying(), e.Name()+" ("+e.Underlying().String()+")", order)
	case schema.KindFixedBytes:
		return fixedBytes(t.Len()), nil
	case schema.KindBytes:
		return lengthPrefixed(order, false), nil
	case schema.KindString:
		return lengthPrefixed(order, true), nil
	case schema.KindArray:
		elem, err := cs.compileType(t.Elem(), order)
		if err != nil {
			return typeCodec{}, err
		}
		if t.IsVariableArray() {
			return variableArray(t.String(), elem, order), nil
		}
		return fixedArray(t.String(), elem, t.Len()), nil
	case schema.KindMessage:
		c, ok := cs.byName[t.Ref()]
		if !ok {
			return typeCodec{}, errors.Errorf("message %s is not compiled yet", t.Ref())
		}
		return message(c), nil
	}
	return typeCodec{}, errors.Errorf("unsupported type %s", t)
}

func fixedBytes(n int) typeCodec {
	name := schema.FixedBytes(n).String()
	return typeCodec{
		name:  name,
		width: n,
		min:   n,
		encode: func(b *wire.Buffer, p int, v any) (int, error) {
			x, ok := v.([]byte)
			if !ok || len(x) != n {
				return 0, invalid(name, v)
			}
			return n, b.PutBytes(p, x)
		},
		decode: func(b *wire.Buffer, p int) (any, int, error) {
			x, err := b.GetBytes(p, n)
			if err != nil {
				return nil, 0, err
			}
			return x, n, nil
		},
		size: func(v any) (int, error) {
			if x, ok := v.([]byte); !ok || len(x) != n {
				return 0, invalid(name, v)
			}
			return n, nil
		},
		zero: func() any { return make([]byte, n) },
	}
}

// lengthPrefixed handles bytes and strings: a 4 byte length, then the
// payload. Decoded bytes alias the buffer; decoded strings are copies.
func lengthPrefixed(order wire.ByteOrder, str bool) typeCodec {
	put, get := accessors(wire.LengthPrefixSize, order)
	name := "bytes"
	if str {
		name = "string"
	}
	length := func(v any) (int, bool) {
		if str {
			s, ok := v.(string)
			return len(s), ok
		}
		x, ok := v.([]byte)
		return len(x), ok
	}
	return typeCodec{
		name: name,
		min:  wire.LengthPrefixSize,
		encode: func(b *wire.Buffer, p int, v any) (int, error) {
			n, ok := length(v)
			if !ok || uint64(n) > wire.MaxLength {
				return 0, invalid(name, v)
			}
			if err := put(b, p, uint64(n)); err != nil {
				return 0, err
			}
			var err error
			if str {
				err = b.PutString(p+wire.LengthPrefixSize, v.(string))
			} else {
				err = b.PutBytes(p+wire.LengthPrefixSize, v.([]byte))
			}
			if err != nil {
				return 0, err
			}
			return wire.LengthPrefixSize + n, nil
		},
		decode: func(b *wire.Buffer, p int) (any, int, error) {
			u, err := get(b, p)
			if err != nil {
				return nil, 0, err
			}
			start := p + wire.LengthPrefixSize
			if err := b.CheckLength(start, uint32(u)); err != nil {
				return nil, 0, err
			}
			n := int(u)
			if str {
				s, err := b.GetString(start, n)
				return s, wire.LengthPrefixSize + n, err
			}
			x, err := b.GetBytes(start, n)
			return x, wire.LengthPrefixSize + n, err
		},
		size: func(v any) (int, error) {
			n, ok := length(v)
			if !ok {
				return 0, invalid(name, v)
			}
			return wire.LengthPrefixSize + n, nil
		},
		zero: func() any {
			if str {
				return ""
			}
			return []byte{}
		},
	}
}

func index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func fixedArray(name string, elem typeCodec, count int) typeCodec {
	tc := typeCodec{
		name: name,
		min:  elem.min * count,
		encode: func(b *wire.Buffer, p int, v any) (int, error) {
			xs, ok := v.([]any)
			if !ok || len(xs) != count {
				return 0, invalid(name, v)
			}
			start := p
			for i, x := range xs {
				if x == nil {
					return 0, withPath(invalid(elem.name, nil), index(i))
				}
				n, err := elem.encode(b, p, x)
				if err != nil {
					return 0, withPath(err, index(i))
				}
				p += n
			}
			return p - start, nil
		},
		decode: func(b *wire.Buffer, p int) (any, int, error) {
			xs := make([]any, count)
			start := p
			for i := range xs {
				x, n, err := elem.decode(b, p)
				if err != nil {
					return nil, 0, err
				}
				xs[i] = x
				p += n
			}
			return xs, p - start, nil
		},
		size: func(v any) (int, error) {
			xs, ok := v.([]any)
			if !ok || len(xs) != count {
				return 0, invalid(name, v)
			}
			return sumSizes(elem, xs)
		},
		zero: func() any {
			xs := make([]any, count)
			for i := range xs {
				xs[i] = elem.zero()
			}
			return xs
		},
	}
	if elem.width > 0 {
		tc.width = elem.width * count
	}
	return tc
}

func variableArray(name string, elem typeCodec, order wire.ByteOrder) typeCodec {
	put, get := accessors(wire.LengthPrefixSize, order)
	return typeCodec{
		name: name,
		min:  wire.LengthPrefixSize,
		encode: func(b *wire.Buffer, p int, v any) (int, error) {
			xs, ok := v.([]any)
			if !ok || uint64(len(xs)) > wire.MaxLength {
				return 0, invalid(name, v)
			}
			if err := put(b, p, uint64(len(xs))); err != nil {
				return 0, err
			}
			start := p
			p += wire.LengthPrefixSize
			for i, x := range xs {
				if x == nil {
					return 0, withPath(invalid(elem.name, nil), index(i))
				}
				n, err := elem.encode(b, p, x)
				if err != nil {
					return 0, withPath(err, index(i))
				}
				p += n
			}
			return p - start, nil
		},
		decode: func(b *wire.Buffer, p int) (any, int, error) {
			u, err := get(b, p)
			if err != nil {
				return nil, 0, err
			}
			start := p
			p += wire.LengthPrefixSize
			if err := b.CheckCount(p, uint32(u), elem.min); err != nil {
				return nil, 0, err
			}
			xs := make([]any, int(u))
			for i := range xs {
				x, n, err := elem.decode(b, p)
				if err != nil {
					return nil, 0, err
				}
				xs[i] = x
				p += n
			}
			return xs, p - start, nil
		},
		size: func(v any) (int, error) {
			xs, ok := v.([]any)
			if !ok {
				return 0, invalid(name, v)
			}
			n, err := sumSizes(elem, xs)
			return wire.LengthPrefixSize + n, err
		},
		zero: func() any { return []any{} },
	}
}

func sumSizes(elem typeCodec, xs []any) (int, error) {
	if elem.width > 0 {
		for i, x := range xs {
			if _, err := elem.size(x); err != nil {
				return 0, withPath(err, index(i))
			}
		}
		return elem.width * len(xs), nil
	}
	total := 0
	for i, x := range xs {
		if x == nil {
			return 0, withPath(invalid(elem.name, nil), index(i))
		}
		n, err := elem.size(x)
		if err != nil {
			return 0, withPath(err, index(i))
		}
		total += n
	}
	return total, nil
}

func asRecord(v any) (Record, bool) {
	switch x := v.(type) {
	case Record:
		return x, true
	case map[string]any:
		return Record(x), true
	}
	return nil, false
}

func message(c *Codec) typeCodec {
	tc := typeCodec{
		name: c.Name(),
		min:  c.size,
		encode: func(b *wire.Buffer, p int, v any) (int, error) {
			r, ok := asRecord(v)
			if !ok {
				return 0, invalid(c.Name(), v)
			}
			return c.encode(r, b, p)
		},
		decode: func(b *wire.Buffer, p int) (any, int, error) {
			r, n, err := c.decode(b, p)
			if err != nil {
				return nil, 0, err
			}
			return r, n, nil
		},
		size: func(v any) (int, error) {
			r, ok := asRecord(v)
			if !ok {
				return 0, invalid(c.Name(), v)
			}
			return c.Size(r)
		},
		zero: func() any { return c.Zero() },
	}
	if c.fixed {
		tc.width = c.size
	}
	return tc
}
