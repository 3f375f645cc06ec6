package codegen

import (
	"strconv"

	"github.com/rawbytedev/fcodec/internal/common"
	"github.com/rawbytedev/fcodec/pkg/schema"
)

// groups emits the in-place accessors of every repeating group of m whose
// elements have a fixed size: <M><Field>Group opens the group and
// <M><Field>At decodes one element. Nullable groups are left to DecodeFrom.
func (g *Generator) groups(w *writer, m *schema.Message, name string) {
	fields := m.Fields()
	for k, f := range fields {
		if f.Nullable || !f.Type.IsVariableArray() {
			continue
		}
		elem := f.Type.Elem()
		size, fixed := g.schema.TypeSize(elem)
		if !fixed {
			continue
		}
		fn := name + fieldName(f)
		w.line("// %sGroup opens the %s group of the %s encoded at off. The fields", fn, f.Name, name)
		w.line("// before it are skipped, not decoded.")
		w.open("func %sGroup(b *wire.Buffer, off int) (wire.GroupIterator, error)", fn)
		w.result = "wire.GroupIterator{}"
		w.line("p := off")
		for _, prev := range fields[:k] {
			g.skipField(w, prev)
		}
		w.result = ""
		w.line("return wire.NewGroupIterator(b, p, %s, %s)", g.elemSize(elem, size), g.orderConst())
		w.close()
		w.line("")

		goT := g.goType(elem)
		w.line("// %sAt decodes element i of the %s group of the %s encoded at off.", fn, f.Name, name)
		w.open("func %sAt(b *wire.Buffer, off, i int) (%s, error)", fn, goT)
		w.line("var v %s", goT)
		w.line("grp, err := %sGroup(b, off)", fn)
		w.open("if err != nil")
		w.line("return v, err")
		w.close()
		w.line("at, err := grp.At(i)")
		w.open("if err != nil")
		w.line("return v, err")
		w.close()
		g.getFixed(w, elem, "v", "at")
		w.line("return v, nil")
		w.close()
		w.line("")
	}
}

func (g *Generator) elemSize(t schema.Type, size int) string {
	if t.Kind() == schema.KindMessage {
		return common.ExportedName(t.Ref()) + "FixedSize"
	}
	return strconv.Itoa(size)
}

func (g *Generator) skipField(w *writer, f schema.Field) {
	if !f.Nullable {
		g.skip(w, f.Type)
		return
	}
	ok := w.temp("ok")
	w.line("%s, err := b.GetPresence(p)", ok)
	w.checkErr()
	w.line("p += wire.PresenceSize")
	w.open("if %s", ok)
	g.skip(w, f.Type)
	w.close()
}

// skip advances p over a value of t, reading only the prefixes that size it.
func (g *Generator) skip(w *writer, t schema.Type) {
	if size, fixed := g.schema.TypeSize(t); fixed {
		w.line("p += %d", size)
		return
	}
	switch t.Kind() {
	case schema.KindBytes, schema.KindString:
		l := w.temp("l")
		w.line("%s, err := %s", l, g.getLength("p"))
		w.checkErr()
		w.line("p += wire.LengthPrefixSize")
		w.check("b.CheckLength(p, " + l + ")")
		w.line("p += int(%s)", l)
	case schema.KindArray:
		n := strconv.Itoa(t.Len())
		elemSize, elemFixed := g.schema.TypeSize(t.Elem())
		if t.IsVariableArray() {
			c := w.temp("c")
			w.line("%s, err := %s", c, g.getLength("p"))
			w.checkErr()
			w.line("p += wire.LengthPrefixSize")
			w.check("b.CheckCount(p, " + c + ", " + strconv.Itoa(elemSize) + ")")
			if elemFixed {
				w.line("p += int(%s) * %d", c, elemSize)
				return
			}
			n = c
		}
		w.open("for range %s", n)
		g.skip(w, t.Elem())
		w.close()
	case schema.KindMessage:
		m, _ := g.schema.Message(t.Ref())
		for _, f := range m.Fields() {
			g.skipField(w, f)
		}
	}
}
