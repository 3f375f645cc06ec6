package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/fcodec/pkg/schema"
)

func geoSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder("geo")
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
	return s
}

func kitchenSchema(t testing.TB, order schema.Order) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder("kitchen")
	b.SetOrder(order)
	require.NoError(t, b.DefineEnum("Side", schema.Uint8,
		schema.EnumValue{Name: "buy", Value: 1},
		schema.EnumValue{Name: "sell", Value: 2},
	))
	require.NoError(t, b.DefineEnum("Delta", schema.Int16,
		schema.EnumValue{Name: "down", Value: -1},
		schema.EnumValue{Name: "up", Value: 1},
	))
	require.NoError(t, b.DefineMessage("Sink",
		schema.Field{Name: "flag", Type: schema.Prim(schema.Bool)},
		schema.Field{Name: "side", Type: schema.EnumRef("Side")},
		schema.Field{Name: "grid", Type: schema.Array(schema.Array(schema.Prim(schema.Int16), 3), 2)},
		schema.Field{Name: "note", Type: schema.String(), Nullable: true, Note: "free text"},
		schema.Field{Name: "raw", Type: schema.Bytes(), Nullable: true},
		schema.Field{Name: "inner", Type: schema.MessageRef("Inner"), Nullable: true},
		schema.Field{Name: "names", Type: schema.Array(schema.String(), 0)},
		schema.Field{Name: "inners", Type: schema.Array(schema.MessageRef("Inner"), 0)},
		schema.Field{Name: "ratio", Type: schema.Prim(schema.Float64), Nullable: true},
		schema.Field{Name: "size", Type: schema.Prim(schema.Uint32), Deprecated: true},
		schema.Field{Name: "deltas", Type: schema.Array(schema.EnumRef("Delta"), 2)},
	))
	require.NoError(t, b.DefineMessage("Inner",
		schema.Field{Name: "id", Type: schema.Prim(schema.Uint64)},
		schema.Field{Name: "tag", Type: schema.FixedBytes(4)},
		schema.Field{Name: "weight", Type: schema.Prim(schema.Float32)},
	))
	s, err := b.Validate()
	require.NoError(t, err)
	return s
}

// declarations parses src and returns its top-level names: types, consts,
// vars and functions. Methods are keyed "Recv.Name".
func declarations(t *testing.T, src []byte) (*ast.File, map[string]bool) {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, parser.ParseComments)
	require.NoError(t, err, string(src))
	names := make(map[string]bool)
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				names[d.Name.Name] = true
				continue
			}
			recv := d.Recv.List[0].Type
			if star, ok := recv.(*ast.StarExpr); ok {
				recv = star.X
			}
			names[recv.(*ast.Ident).Name+"."+d.Name.Name] = true
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					names[s.Name.Name] = true
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names[n.Name] = true
					}
				}
			}
		}
	}
	return f, names
}

func generateOne(t *testing.T, s *schema.Schema, opts Options) (string, []byte) {
	t.Helper()
	files, err := Generate(s, opts)
	require.NoError(t, err)
	require.Len(t, files, 1)
	for name, src := range files {
		return name, src
	}
	return "", nil
}

func TestGenerateGeo(t *testing.T) {
	name, src := generateOne(t, geoSchema(t), Options{SourceName: "geo.yaml"})
	require.Equal(t, "geo_fcodec.go", name)

	f, decls := declarations(t, src)
	require.Equal(t, "geo", f.Name.Name)
	for _, want := range []string{
		"Point", "Path",
		"PointFingerprint", "PointTemplateID", "PointFixedSize", "pointOffsetX", "pointOffsetY",
		"PathFingerprint", "PathTemplateID", "PathMinSize",
		"Point.EncodeTo", "Point.DecodeFrom", "Point.Size", "Point.Fingerprint", "Point.Layout", "Point.TemplateID",
		"Path.EncodeTo", "Path.DecodeFrom", "Path.Size", "Path.MarshalBinary", "Path.UnmarshalBinary",
		"encodePoint", "decodePoint", "encodePath", "decodePath", "DecodePoint", "DecodePath",
		"PathPointsGroup", "PathPointsAt",
		"SchemaNamespace", "SchemaVersion",
	} {
		assert.True(t, decls[want], "missing %s", want)
	}
	require.False(t, decls["PathFixedSize"])
	require.False(t, decls["pathOffsetName"])

	text := string(src)
	require.Contains(t, text, "// Code generated by fcodec from geo.yaml. DO NOT EDIT.")
	require.Contains(t, text, "b.Reserve(off, PointFixedSize)")
	require.Contains(t, text, "b.Check(off, PathMinSize)")
	require.Contains(t, text, "encodePoint(b, p, &m.Points[i0])")
	require.Contains(t, text, "b.CheckCount(p, c")
	require.Contains(t, text, "b.PutLength(p, len(m.Name), wire.BigEndian)")
	require.Contains(t, text, "b.PutLength(p, len(m.Points), wire.BigEndian)")
	require.NotContains(t, text, "uint32(len(")
	require.Regexp(t, regexp.MustCompile(`pointOffsetY\s+= 4`), text)
	require.Regexp(t, regexp.MustCompile(`PointFixedSize\s+= 8`), text)
	require.NotContains(t, text, "strconv")
}

func TestGenerateOrdersDependenciesFirst(t *testing.T) {
	_, src := generateOne(t, kitchenSchema(t, schema.BigEndian), Options{})
	f, _ := declarations(t, src)
	var types []string
	for _, d := range f.Decls {
		if g, ok := d.(*ast.GenDecl); ok && g.Tok == token.TYPE {
			types = append(types, g.Specs[0].(*ast.TypeSpec).Name.Name)
		}
	}
	require.Equal(t, []string{"Side", "Delta", "Inner", "Sink"}, types)
}

func TestGenerateKitchenSink(t *testing.T) {
	_, src := generateOne(t, kitchenSchema(t, schema.BigEndian), Options{})
	_, decls := declarations(t, src)
	for _, want := range []string{
		"Side", "SideBuy", "SideSell", "Side.String", "Side.Valid",
		"Delta", "DeltaDown", "DeltaUp",
		"Inner", "InnerFixedSize", "innerOffsetWeight", "Sink", "SinkMinSize",
		"SinkInnersGroup", "SinkInnersAt",
	} {
		assert.True(t, decls[want], "missing %s", want)
	}
	// groups of variable-size elements are only reachable through DecodeFrom
	assert.False(t, decls["SinkNamesGroup"])

	text := string(src)
	for _, want := range []string{
		`"strconv"`,
		"strconv.FormatInt(int64(e), 10)",
		"strconv.FormatUint(uint64(e), 10)",
		"// free text",
		"// Deprecated:",
		"b.PutPresence(p, m.Note != nil)",
		"b.GetPresence(p)",
		"b.CheckLength(p, l",
		"b.GetBytes(p, int(l",
		"b.GetString(p, int(l",
		"_ = b.CopyTo(m.Tag[:], off+innerOffsetTag, 4)",
		"b.PutFloat32(off+innerOffsetWeight, m.Weight, wire.BigEndian)",
		"b.PutUint16BE(p, uint16(m.Grid[i0][i1]))",
		"if m.Inner != nil {\n\t\tn += 16\n\t}",
		"n += len(m.Inners) * 16",
		"n += len(m.Names[i0])",
		"func SinkInnersAt(b *wire.Buffer, off, i int) (Inner, error) {",
		"return wire.NewGroupIterator(b, p, InnerFixedSize, wire.BigEndian)",
		"return wire.GroupIterator{}, err",
		"for range c",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "LE(")

	// Struct fields are column aligned by gofmt.
	for _, field := range []string{
		`Grid\s+\[2\]\[3\]int16`,
		`Note\s+\*string`,
		`Raw\s+\[\]byte`,
		`Inner\s+\*Inner`,
		`Names\s+\[\]string`,
		`Ratio\s+\*float64`,
		`Deltas\s+\[2\]Delta`,
		`Tag\s+\[4\]byte`,
		`SizeField\s+uint32`,
	} {
		assert.Regexp(t, regexp.MustCompile(field), text)
	}
}

func TestGenerateLittleEndian(t *testing.T) {
	_, src := generateOne(t, kitchenSchema(t, schema.LittleEndian), Options{})
	text := string(src)
	require.Contains(t, text, "b.PutUint64LE(off+innerOffsetID, uint64(m.ID))")
	require.Contains(t, text, "wire.LittleEndian")
	require.NotContains(t, text, "BE(")
}

func TestGenerateDeterministic(t *testing.T) {
	_, a := generateOne(t, kitchenSchema(t, schema.BigEndian), Options{})
	_, b := generateOne(t, kitchenSchema(t, schema.BigEndian), Options{})
	require.Equal(t, a, b)
}

func TestGenerateOptions(t *testing.T) {
	name, src := generateOne(t, geoSchema(t), Options{
		Package:  "shapes",
		Header:   "Copyright shapes authors.\nSecond line.",
		FileName: "shapes.go",
	})
	require.Equal(t, "shapes.go", name)
	f, _ := declarations(t, src)
	require.Equal(t, "shapes", f.Name.Name)
	require.Contains(t, string(src), "// Copyright shapes authors.\n// Second line.\n")
	require.Contains(t, string(src), "from schema geo.")
}

func TestGenerateRejectsBadPackages(t *testing.T) {
	s := geoSchema(t)
	_, err := Generate(s, Options{Package: "wire"})
	require.ErrorIs(t, err, ErrReservedPackage)
	_, err = Generate(s, Options{Package: "not-a-name"})
	require.ErrorIs(t, err, ErrNoPackage)
	_, err = Generate(nil, Options{})
	require.Error(t, err)

	b := schema.NewBuilder("")
	require.NoError(t, b.DefineMessage("A", schema.Field{Name: "v", Type: schema.Prim(schema.Uint8)}))
	anon, err := b.Validate()
	require.NoError(t, err)
	_, err = Generate(anon, Options{})
	require.ErrorIs(t, err, ErrNoPackage)
	_, err = Generate(anon, Options{Package: "anon"})
	require.NoError(t, err)
}

func TestWriteFiles(t *testing.T) {
	g, err := New(geoSchema(t), Options{})
	require.NoError(t, err)
	require.Equal(t, "geo", g.Package())

	dir := filepath.Join(t.TempDir(), "out", "geo")
	paths, err := g.WriteFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "geo_fcodec.go")}, paths)

	got, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	require.Equal(t, g.Files()["geo_fcodec.go"], got)
}

func TestFilesIsACopy(t *testing.T) {
	g, err := New(geoSchema(t), Options{})
	require.NoError(t, err)
	files := g.Files()
	files["geo_fcodec.go"][0] = 'X'
	require.NotEqual(t, byte('X'), g.Files()["geo_fcodec.go"][0])
}

func BenchmarkGenerate(b *testing.B) {
	s := kitchenSchema(b, schema.BigEndian)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Generate(s, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
