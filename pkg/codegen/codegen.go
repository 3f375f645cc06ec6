// Package codegen turns a validated schema into Go source.
//
// The generated file declares one struct per message plus the functions that
// move it to and from a *wire.Buffer. Messages are emitted dependencies
// first. Fixed-size messages are written and read at constant offsets after a
// single bounds check; variable-size messages thread an explicit cursor
// through their fields. The bytes produced match package dynamic exactly.
package codegen

import (
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/rawbytedev/fcodec/internal/common"
	"github.com/rawbytedev/fcodec/pkg/schema"
)

// Import paths of the runtime packages the generated code depends on.
const (
	WirePackage   = "github.com/rawbytedev/fcodec/pkg/wire"
	SchemaPackage = "github.com/rawbytedev/fcodec/pkg/schema"
)

var (
	ErrNoPackage       = errors.New("codegen: no package name")
	ErrReservedPackage = errors.New("codegen: package name shadows an import")
	ErrFormat          = errors.New("codegen: generated source does not format")
)

// Options tune the generated file. The zero value is usable when the schema
// has a namespace.
type Options struct {
	// Package overrides the schema namespace as the package name.
	Package string
	// SourceName is named in the "Code generated" header, usually the schema
	// file the code came from.
	SourceName string
	// Header is an extra comment placed above the package clause.
	Header string
	// FileName overrides the default "<package>_fcodec.go".
	FileName string
}

// reservedPackages are the identifiers the generated file imports.
var reservedPackages = map[string]bool{"wire": true, "schema": true, "strconv": true}

// Generator holds the source generated for one schema.
type Generator struct {
	schema *schema.Schema
	opts   Options
	pkg    string
	files  map[string][]byte
}

// New generates the source for s. s comes from schema.Builder.Validate, so
// references are resolved and acyclic.
func New(s *schema.Schema, opts Options) (*Generator, error) {
	if s == nil {
		return nil, errors.New("codegen: nil schema")
	}
	pkg := opts.Package
	if pkg == "" {
		pkg = strings.ToLower(s.Namespace())
	}
	if pkg == "" {
		return nil, ErrNoPackage
	}
	if !common.IsIdentifier(pkg) {
		return nil, errors.Wrapf(ErrNoPackage, "%q is not an identifier", pkg)
	}
	if reservedPackages[pkg] {
		return nil, errors.Wrap(ErrReservedPackage, pkg)
	}
	g := &Generator{schema: s, opts: opts, pkg: pkg, files: make(map[string][]byte)}

	src, err := g.file()
	if err != nil {
		return nil, err
	}
	name := opts.FileName
	if name == "" {
		name = pkg + "_fcodec.go"
	}
	g.files[name] = src
	return g, nil
}

// Generate returns the generated files of s keyed by file name.
func Generate(s *schema.Schema, opts Options) (map[string][]byte, error) {
	g, err := New(s, opts)
	if err != nil {
		return nil, err
	}
	return g.Files(), nil
}

// Package returns the package name of the generated code.
func (g *Generator) Package() string { return g.pkg }

// Files returns a copy of the generated files keyed by file name.
func (g *Generator) Files() map[string][]byte {
	out := make(map[string][]byte, len(g.files))
	for name, src := range g.files {
		out[name] = append([]byte(nil), src...)
	}
	return out
}

// WriteFiles writes every generated file into dir, creating it if needed,
// and returns the paths written.
func (g *Generator) WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "codegen: create output directory")
	}
	names := make([]string, 0, len(g.files))
	for name := range g.files {
		names = append(names, name)
	}
	sort.Strings(names)
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, g.files[name], 0o644); err != nil {
			return paths, errors.Wrapf(err, "codegen: write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *Generator) file() ([]byte, error) {
	w := &writer{}
	source := g.opts.SourceName
	if source == "" {
		source = "schema " + g.schema.Namespace()
	}
	w.line("// Code generated by fcodec from %s. DO NOT EDIT.", source)
	w.line("")
	if g.opts.Header != "" {
		for _, l := range strings.Split(strings.TrimRight(g.opts.Header, "\n"), "\n") {
			w.line("// %s", l)
		}
		w.line("")
	}
	w.line("package %s", g.pkg)
	w.line("")
	w.line("import (")
	if len(g.schema.Enums()) > 0 {
		w.line("\t\"strconv\"")
		w.line("")
	}
	w.line("\t%q", SchemaPackage)
	w.line("\t%q", WirePackage)
	w.line(")")
	w.line("")
	w.line("// Identity of the schema this file was generated from.")
	w.line("const (")
	w.line("\tSchemaNamespace = %q", g.schema.Namespace())
	w.line("\tSchemaVersion = %q", g.schema.Version().String())
	w.line(")")

	for _, e := range g.schema.Enums() {
		w.line("")
		g.enum(w, e)
	}
	for _, m := range g.schema.Messages() {
		w.line("")
		g.message(w, m)
	}

	src, err := format.Source([]byte(w.String()))
	if err != nil {
		return nil, errors.Wrap(ErrFormat, err.Error())
	}
	return src, nil
}

func (g *Generator) enum(w *writer, e *schema.Enum) {
	name := common.ExportedName(e.Name())
	under := e.Underlying()
	w.line("// %s is an enum encoded as %s.", name, under)
	w.line("type %s %s", name, goPrimitive(under))
	w.line("")
	values := e.Values()
	w.line("const (")
	for _, v := range values {
		w.line("\t%s %s = %d", name+common.ExportedName(v.Name), name, v.Value)
	}
	w.line(")")
	w.line("")
	w.open("func (e %s) String() string", name)
	w.line("switch e {")
	for _, v := range values {
		w.line("case %s:", name+common.ExportedName(v.Name))
		w.line("\treturn %q", v.Name)
	}
	w.line("}")
	if isSigned(under) {
		w.line("return %q + strconv.FormatInt(int64(e), 10) + \")\"", name+"(")
	} else {
		w.line("return %q + strconv.FormatUint(uint64(e), 10) + \")\"", name+"(")
	}
	w.close()
	w.line("")
	w.line("// Valid reports whether e is a declared %s.", name)
	w.open("func (e %s) Valid() bool", name)
	w.line("switch e {")
	cases := make([]string, len(values))
	for i, v := range values {
		cases[i] = name + common.ExportedName(v.Name)
	}
	w.line("case %s:", strings.Join(cases, ", "))
	w.line("\treturn true")
	w.line("}")
	w.line("return false")
	w.close()
}

func (g *Generator) message(w *writer, m *schema.Message) {
	name := common.ExportedName(m.Name())
	fixed := m.Layout() == schema.Fixed
	if fixed {
		w.line("// %s is a fixed-size message of %d bytes.", name, m.Size())
	} else {
		w.line("// %s is a variable-size message of at least %d bytes.", name, m.Size())
	}
	w.line("type %s struct {", name)
	for _, f := range m.Fields() {
		if f.Note != "" {
			w.line("\t// %s", f.Note)
		}
		if f.Deprecated {
			w.line("\t// Deprecated: retained for wire compatibility.")
		}
		w.line("\t%s %s", fieldName(f), g.fieldType(f))
	}
	w.line("}")
	w.line("")

	lower := common.UnexportedName(m.Name())
	w.line("const (")
	w.line("\t%sFingerprint uint64 = 0x%016x", name, m.Fingerprint())
	w.line("\t%sTemplateID uint16 = %d", name, m.TemplateID())
	if fixed {
		w.line("\t%sFixedSize = %d", name, m.Size())
	} else {
		w.line("\t%sMinSize = %d", name, m.Size())
	}
	w.line(")")
	if fixed {
		w.line("")
		w.line("// Field offsets within an encoded %s.", name)
		w.line("const (")
		for i, off := range m.Offsets() {
			w.line("\t%sOffset%s = %d", lower, fieldName(m.Field(i)), off)
		}
		w.line(")")
	}
	w.line("")

	w.line("func (*%s) Fingerprint() uint64 { return %sFingerprint }", name, name)
	w.line("")
	w.line("func (*%s) TemplateID() uint16 { return %sTemplateID }", name, name)
	w.line("")
	if fixed {
		w.line("func (*%s) Layout() schema.Layout { return schema.Fixed }", name)
		w.line("")
		w.line("// Size returns the encoded size of a %s.", name)
		w.line("func (*%s) Size() int { return %sFixedSize }", name, name)
	} else {
		w.line("func (*%s) Layout() schema.Layout { return schema.Variable }", name)
		w.line("")
		g.sizeMethod(w, m, name)
	}
	w.line("")

	w.line("// EncodeTo writes m at off and leaves the cursor of b just past it.")
	w.open("func (m *%s) EncodeTo(b *wire.Buffer, off int) (int, error)", name)
	w.line("n, err := encode%s(b, off, m)", name)
	w.open("if err != nil")
	w.line("return 0, err")
	w.close()
	w.line("return n, b.SetCursor(off + n)")
	w.close()
	w.line("")

	w.line("// DecodeFrom reads m from off and leaves the cursor of b just past it.")
	w.line("// m is unchanged when decoding fails.")
	w.open("func (m *%s) DecodeFrom(b *wire.Buffer, off int) (int, error)", name)
	w.line("var v %s", name)
	w.line("n, err := decode%s(b, off, &v)", name)
	w.open("if err != nil")
	w.line("return 0, err")
	w.close()
	w.line("*m = v")
	w.line("return n, b.SetCursor(off + n)")
	w.close()
	w.line("")

	w.line("// MarshalBinary encodes m into a new slice of exactly m.Size() bytes.")
	w.open("func (m *%s) MarshalBinary() ([]byte, error)", name)
	w.line("b := wire.Wrap(make([]byte, m.Size()))")
	w.open("if _, err := encode%s(b, 0, m); err != nil", name)
	w.line("return nil, err")
	w.close()
	w.line("return b.Raw(), nil")
	w.close()
	w.line("")

	w.line("// UnmarshalBinary decodes m from the start of data. Byte fields alias data.")
	w.open("func (m *%s) UnmarshalBinary(data []byte) error", name)
	w.line("_, err := m.DecodeFrom(wire.Wrap(data), 0)")
	w.line("return err")
	w.close()
	w.line("")

	w.line("// Decode%s decodes a %s at off.", name, name)
	w.open("func Decode%s(b *wire.Buffer, off int) (%s, int, error)", name, name)
	w.line("var v %s", name)
	w.line("n, err := v.DecodeFrom(b, off)")
	w.line("return v, n, err")
	w.close()
	w.line("")

	if fixed {
		g.encodeFixed(w, m, name, lower)
		w.line("")
		g.decodeFixed(w, m, name, lower)
	} else {
		g.groups(w, m, name)
		g.encodeVariable(w, m, name)
		w.line("")
		g.decodeVariable(w, m, name)
	}
}

// writer accumulates source lines. Indentation only aids debugging; the
// result is run through go/format.
type writer struct {
	strings.Builder
	indent int
	// tmp numbers temporaries so sibling statements never redeclare a name.
	tmp int
	// depth names loop indexes by nesting level.
	depth int
	// result is the value returned beside an error; "0" when empty.
	result string
}

func (w *writer) line(format string, args ...any) {
	if format != "" {
		w.WriteString(strings.Repeat("\t", w.indent))
		fmt.Fprintf(&w.Builder, format, args...)
	}
	w.WriteByte('\n')
}

func (w *writer) open(format string, args ...any) {
	w.line(format+" {", args...)
	w.indent++
}

func (w *writer) close() {
	w.indent--
	w.line("}")
}

func (w *writer) zero() string {
	if w.result == "" {
		return "0"
	}
	return w.result
}

func (w *writer) temp(prefix string) string {
	w.tmp++
	return fmt.Sprintf("%s%d", prefix, w.tmp)
}

// loop opens a range loop over expr and returns the index variable.
func (w *writer) loop(expr string) string {
	i := fmt.Sprintf("i%d", w.depth)
	w.depth++
	w.open("for %s := range %s", i, expr)
	return i
}

func (w *writer) endLoop() {
	w.depth--
	w.close()
}
