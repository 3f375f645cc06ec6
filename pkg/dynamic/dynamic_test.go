package dynamic

import (
	"bytes"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/fcodec/internal/common"
	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

func geoCodecs(t testing.TB, order schema.Order) *Codecs {
	t.Helper()
	b := schema.NewBuilder("geo")
	b.SetOrder(order)
	require.NoError(t, b.DefineMessage("Point",
		schema.Field{Name: "x", Type: schema.Prim(schema.Int32)},
		schema.Field{Name: "y", Type: schema.Prim(schema.Int32)},
	))
	require.NoError(t, b.DefineMessage("Path",
		schema.Field{Name: "name", Type: schema.String()},
		schema.Field{Name: "points", Type: schema.Array(schema.MessageRef("Point"), 0)},
	))
	s, err := b.Validate()
	require.NoError(t, err)
	cs, err := Compile(s)
	require.NoError(t, err)
	return cs
}

func point(x, y int32) Record { return Record{"x": x, "y": y} }

func samplePath() Record {
	return Record{"name": "ab", "points": []any{point(1, 2), point(3, 4)}}
}

var samplePathBytes = []byte{
	0, 0, 0, 2, 'a', 'b',
	0, 0, 0, 2,
	0, 0, 0, 1, 0, 0, 0, 2,
	0, 0, 0, 3, 0, 0, 0, 4,
}

func TestPathScenario(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	path, ok := cs.ByName("Path")
	require.True(t, ok)

	buf := wire.Wrap(make([]byte, 64))
	n, err := path.Encode(samplePath(), buf, 0)
	require.NoError(t, err)
	require.Equal(t, 26, n)
	require.Equal(t, 26, buf.Cursor())
	require.Equal(t, samplePathBytes, buf.Bytes())

	size, err := path.Size(samplePath())
	require.NoError(t, err)
	require.Equal(t, 26, size)

	got, m, err := path.Decode(wire.Wrap(buf.Bytes()), 0)
	require.NoError(t, err)
	require.Equal(t, 26, m)
	require.Equal(t, samplePath(), got)
}

func TestLittleEndianSchema(t *testing.T) {
	cs := geoCodecs(t, schema.LittleEndian)
	pt, _ := cs.ByName("Point")
	data, err := pt.Marshal(point(1, -2))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 0, 0, 0xfe, 0xff, 0xff, 0xff}, data)
	back, err := pt.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, point(1, -2), back)
}

func TestEncodeAtOffsetTouchesOnlyItsRange(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	path, _ := cs.ByName("Path")
	raw := bytes.Repeat([]byte{0xaa}, 40)
	buf := wire.Wrap(raw)
	n, err := path.Encode(samplePath(), buf, 7)
	require.NoError(t, err)
	require.Equal(t, 33, buf.Cursor())
	require.Equal(t, samplePathBytes, raw[7:7+n])
	require.Equal(t, bytes.Repeat([]byte{0xaa}, 7), raw[:7])
	require.Equal(t, bytes.Repeat([]byte{0xaa}, 7), raw[33:])

	got, m, err := path.Decode(buf, 7)
	require.NoError(t, err)
	require.Equal(t, n, m)
	require.Equal(t, samplePath(), got)
}

func TestEncodeOverflow(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	path, _ := cs.ByName("Path")
	raw := bytes.Repeat([]byte{0xaa}, 26)
	buf := wire.Wrap(raw[:25])
	_, err := path.Encode(samplePath(), buf, 0)
	require.ErrorIs(t, err, wire.ErrBufferOverflow)
	require.Equal(t, byte(0xaa), raw[25], "no byte written past capacity")
	require.Equal(t, 0, buf.Cursor())

	pt, _ := cs.ByName("Point")
	raw = bytes.Repeat([]byte{0xaa}, 7)
	_, err = pt.Encode(point(1, 2), wire.Wrap(raw), 0)
	require.ErrorIs(t, err, wire.ErrBufferOverflow)
	require.Equal(t, bytes.Repeat([]byte{0xaa}, 7), raw, "fixed messages check before writing")
}

func TestEncodeGrowable(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	path, _ := cs.ByName("Path")
	buf := wire.NewGrowable(4, 0)
	n, err := path.Encode(samplePath(), buf, 0)
	require.NoError(t, err)
	require.Equal(t, 26, n)
	require.Equal(t, samplePathBytes, buf.Bytes())
}

func TestDecodeTruncated(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	for _, name := range []string{"Point", "Path"} {
		c, _ := cs.ByName(name)
		min := c.Message().Size()
		_, _, err := c.Decode(wire.Wrap(make([]byte, min-1)), 0)
		require.ErrorIs(t, err, wire.ErrTruncatedMessage, name)
	}
	path, _ := cs.ByName("Path")
	_, _, err := path.Decode(wire.Wrap(samplePathBytes[:9]), 0)
	require.ErrorIs(t, err, wire.ErrTruncatedMessage)
}

func TestDecodeMalformedLength(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	path, _ := cs.ByName("Path")

	bad := append([]byte(nil), samplePathBytes...)
	bad[3] = 200
	r, n, err := path.Decode(wire.Wrap(bad), 0)
	require.ErrorIs(t, err, wire.ErrMalformedLength)
	require.Nil(t, r)
	require.Zero(t, n)

	_, _, err = path.Decode(wire.Wrap(samplePathBytes[:25]), 0)
	require.ErrorIs(t, err, wire.ErrMalformedLength)

	bad = append([]byte(nil), samplePathBytes...)
	bad[6], bad[7], bad[8], bad[9] = 0xff, 0xff, 0xff, 0xff
	_, _, err = path.Decode(wire.Wrap(bad), 0)
	require.ErrorIs(t, err, wire.ErrMalformedLength)
}

func TestInvalidValues(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	path, _ := cs.ByName("Path")
	buf := wire.Wrap(make([]byte, 64))

	cases := []struct {
		record Record
		path   string
	}{
		{Record{"name": 5, "points": []any{}}, "name"},
		{Record{"points": []any{}}, "name"},
		{Record{"name": "a", "points": []any{point(1, 2), Record{"x": int32(1), "y": int64(2)}}}, "points[1].y"},
		{Record{"name": "a", "points": []any{nil}}, "points[0]"},
		{Record{"name": "a", "points": []int32{1}}, "points"},
	}
	for _, c := range cases {
		_, err := path.Encode(c.record, buf, 0)
		require.ErrorIs(t, err, ErrInvalidValue)
		var ve *ValueError
		require.ErrorAs(t, err, &ve)
		require.Equal(t, c.path, ve.Path)

		_, err = path.Size(c.record)
		require.ErrorIs(t, err, ErrInvalidValue)
	}
}

func TestNullableAndInvalidPresence(t *testing.T) {
	b := schema.NewBuilder("opt")
	require.NoError(t, b.DefineMessage("Opt",
		schema.Field{Name: "a", Type: schema.Prim(schema.Uint16), Nullable: true},
		schema.Field{Name: "b", Type: schema.String(), Nullable: true},
	))
	s, err := b.Validate()
	require.NoError(t, err)
	cs, err := Compile(s)
	require.NoError(t, err)
	c, _ := cs.ByName("Opt")

	data, err := c.Marshal(Record{"a": uint16(0x0102), "b": nil})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 1, 2, 0}, data)
	got, err := c.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, Record{"a": uint16(0x0102)}, got)

	data[3] = 2
	_, err = c.Unmarshal(data)
	require.ErrorIs(t, err, wire.ErrInvalidPresence)
}

func kitchenSink(t testing.TB, order schema.Order) *Codecs {
	t.Helper()
	b := schema.NewBuilder("sink")
	b.SetOrder(order)
	require.NoError(t, b.DefineEnum("Side", schema.Uint8,
		schema.EnumValue{Name: "Buy", Value: 1}, schema.EnumValue{Name: "Sell", Value: 2}))
	require.NoError(t, b.DefineMessage("Inner",
		schema.Field{Name: "id", Type: schema.Prim(schema.Uint16)},
		schema.Field{Name: "tag", Type: schema.FixedBytes(3)},
	))
	require.NoError(t, b.DefineMessage("Opt",
		schema.Field{Name: "v", Type: schema.Prim(schema.Int64), Nullable: true},
	))
	prims := []schema.Primitive{
		schema.Int8, schema.Int16, schema.Int32, schema.Int64,
		schema.Uint8, schema.Uint16, schema.Uint32, schema.Uint64,
		schema.Float32, schema.Float64, schema.Bool,
	}
	var fields []schema.Field
	for _, p := range prims {
		fields = append(fields, schema.Field{Name: "p_" + p.String(), Type: schema.Prim(p)})
	}
	fields = append(fields,
		schema.Field{Name: "side", Type: schema.EnumRef("Side")},
		schema.Field{Name: "raw", Type: schema.Bytes()},
		schema.Field{Name: "text", Type: schema.String()},
		schema.Field{Name: "digest", Type: schema.FixedBytes(4)},
		schema.Field{Name: "grid", Type: schema.Array(schema.Array(schema.Prim(schema.Int16), 3), 2)},
		schema.Field{Name: "names", Type: schema.Array(schema.String(), 0)},
		schema.Field{Name: "inners", Type: schema.Array(schema.MessageRef("Inner"), 0)},
		schema.Field{Name: "inner", Type: schema.MessageRef("Inner")},
		schema.Field{Name: "maybe", Type: schema.MessageRef("Inner"), Nullable: true},
		schema.Field{Name: "opt", Type: schema.MessageRef("Opt")},
		schema.Field{Name: "opts", Type: schema.Array(schema.MessageRef("Opt"), 2)},
		schema.Field{Name: "note", Type: schema.String(), Nullable: true},
		schema.Field{Name: "matrix", Type: schema.Array(schema.Array(schema.Prim(schema.Uint8), 0), 0)},
		schema.Field{Name: "sides", Type: schema.Array(schema.EnumRef("Side"), 0), Nullable: true},
	)
	require.NoError(t, b.DefineMessage("All", fields...))
	s, err := b.Validate()
	require.NoError(t, err)
	cs, err := Compile(s)
	require.NoError(t, err)
	return cs
}

// randomValue builds a value of type t. Floats avoid NaN so records compare
// with reflect.DeepEqual.
func randomValue(rng *rand.Rand, s *schema.Schema, t schema.Type) any {
	switch t.Kind() {
	case schema.KindPrimitive:
		v := common.FromBits(rng.Uint64(), t.Primitive().Kind())
		switch f := v.(type) {
		case float32:
			if f != f {
				return float32(0)
			}
		case float64:
			if math.IsNaN(f) {
				return float64(0)
			}
		}
		return v
	case schema.KindEnum:
		e, _ := s.Enum(t.Ref())
		vals := e.Values()
		return common.FromBits(uint64(vals[rng.Intn(len(vals))].Value), e.Underlying().Kind())
	case schema.KindFixedBytes:
		p := make([]byte, t.Len())
		rng.Read(p)
		return p
	case schema.KindBytes:
		p := make([]byte, rng.Intn(12))
		rng.Read(p)
		return p
	case schema.KindString:
		p := make([]byte, rng.Intn(12))
		for i := range p {
			p[i] = byte('a' + rng.Intn(26))
		}
		return string(p)
	case schema.KindArray:
		n := t.Len()
		if n == 0 {
			n = rng.Intn(4)
		}
		xs := make([]any, n)
		for i := range xs {
			xs[i] = randomValue(rng, s, t.Elem())
		}
		return xs
	case schema.KindMessage:
		m, _ := s.Message(t.Ref())
		return randomRecord(rng, s, m)
	}
	panic("unhandled kind " + t.Kind().String())
}

func randomRecord(rng *rand.Rand, s *schema.Schema, m *schema.Message) Record {
	r := Record{}
	for _, f := range m.Fields() {
		if f.Nullable && rng.Intn(2) == 0 {
			continue
		}
		r[f.Name] = randomValue(rng, s, f.Type)
	}
	return r
}

func TestKitchenSinkRoundTrip(t *testing.T) {
	for _, order := range []schema.Order{schema.BigEndian, schema.LittleEndian} {
		cs := kitchenSink(t, order)
		all, _ := cs.ByName("All")
		rng := rand.New(rand.NewSource(int64(order) + 1))
		for i := 0; i < 200; i++ {
			r := randomRecord(rng, cs.Schema(), all.Message())
			size, err := all.Size(r)
			require.NoError(t, err)

			buf := wire.Wrap(make([]byte, size))
			n, err := all.Encode(r, buf, 0)
			require.NoError(t, err)
			require.Equal(t, size, n)

			got, m, err := all.Decode(buf, 0)
			require.NoError(t, err)
			require.Equal(t, n, m)
			require.True(t, reflect.DeepEqual(r, got), "order %s record %d", order, i)
		}
	}
}

func TestZeroRecord(t *testing.T) {
	cs := kitchenSink(t, schema.BigEndian)
	all, _ := cs.ByName("All")
	z := all.Zero()
	require.NotContains(t, z, "maybe")
	require.Equal(t, int32(0), z["p_int32"])
	require.Equal(t, []byte{0, 0, 0, 0}, z["digest"])
	data, err := all.Marshal(z)
	require.NoError(t, err)
	got, err := all.Unmarshal(data)
	require.NoError(t, err)
	require.True(t, reflect.DeepEqual(z, got))
}

func TestByTemplate(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	c, ok := cs.ByTemplate(2)
	require.True(t, ok)
	require.Equal(t, "Path", c.Name())
	require.Equal(t, schema.Variable, c.Layout())
	_, ok = cs.ByTemplate(9)
	require.False(t, ok)
	require.Len(t, cs.All(), 2)

	_, err := Compile(nil)
	require.Error(t, err)
}

func TestPathProperties(t *testing.T) {
	cs := geoCodecs(t, schema.BigEndian)
	path, _ := cs.ByName("Path")
	properties := gopter.NewProperties(nil)
	properties.Property("decode(encode(v)) == v", prop.ForAll(
		func(name string, xs []int32) bool {
			points := make([]any, 0, len(xs)/2)
			for i := 0; i+1 < len(xs); i += 2 {
				points = append(points, point(xs[i], xs[i+1]))
			}
			r := Record{"name": name, "points": points}
			data, err := path.Marshal(r)
			if err != nil || len(data) != 8+len(name)+8*len(points) {
				return false
			}
			got, err := path.Unmarshal(data)
			return err == nil && reflect.DeepEqual(r, got)
		},
		gen.AnyString(),
		gen.SliceOf(gen.Int32()),
	))
	properties.TestingRun(t)
}

func FuzzPathDecode(f *testing.F) {
	f.Add(samplePathBytes)
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	cs := geoCodecs(f, schema.BigEndian)
	path, _ := cs.ByName("Path")
	f.Fuzz(func(t *testing.T, data []byte) {
		r, n, err := path.Decode(wire.Wrap(data), 0)
		if err != nil {
			return
		}
		// Path has a single encoding per value.
		again, err := path.Marshal(r)
		require.NoError(t, err)
		require.Equal(t, data[:n], again)
	})
}

func BenchmarkPathEncode(b *testing.B) {
	cs := geoCodecs(b, schema.BigEndian)
	path, _ := cs.ByName("Path")
	r := samplePath()
	buf := wire.Wrap(make([]byte, 64))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := path.Encode(r, buf, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPathDecode(b *testing.B) {
	cs := geoCodecs(b, schema.BigEndian)
	path, _ := cs.ByName("Path")
	buf := wire.Wrap(samplePathBytes)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := path.Decode(buf, 0); err != nil {
			b.Fatal(err)
		}
	}
}
