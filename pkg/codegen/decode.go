package codegen

import (
	"strconv"

	"github.com/rawbytedev/fcodec/internal/common"
	"github.com/rawbytedev/fcodec/pkg/schema"
)

func (g *Generator) decodeFixed(w *writer, m *schema.Message, name, lower string) {
	w.open("func decode%s(b *wire.Buffer, off int, m *%s) (int, error)", name, name)
	w.check("b.Check(off, " + name + "FixedSize)")
	for _, f := range m.Fields() {
		g.getFixed(w, f.Type, "m."+fieldName(f), "off+"+lower+"Offset"+fieldName(f))
	}
	w.line("return %sFixedSize, nil", name)
	w.close()
}

// getFixed reads dst from pos inside an extent that was checked up front.
func (g *Generator) getFixed(w *writer, t schema.Type, dst, pos string) {
	if p, ok := g.scalar(t); ok {
		call, typ := g.get(p, pos)
		if goT := g.goType(t); goT != typ {
			v := w.temp("v")
			w.line("%s, _ := %s", v, call)
			w.line("%s = %s(%s)", dst, goT, v)
		} else {
			w.line("%s, _ = %s", dst, call)
		}
		return
	}
	switch t.Kind() {
	case schema.KindFixedBytes:
		w.line("_ = b.CopyTo(%s, %s, %d)", slice(dst), pos, t.Len())
	case schema.KindArray:
		size, _ := g.schema.TypeSize(t.Elem())
		i := w.loop(dst)
		g.getFixed(w, t.Elem(), index(dst, i), offset(pos, i, size))
		w.endLoop()
	case schema.KindMessage:
		w.line("_, _ = decode%s(b, %s, %s)", common.ExportedName(t.Ref()), pos, addr(dst))
	}
}

// decodeVariable emits the decoder of a variable-size message. The minimum
// size is checked first; every length and count is then checked against the
// bytes that remain before anything is allocated.
func (g *Generator) decodeVariable(w *writer, m *schema.Message, name string) {
	w.open("func decode%s(b *wire.Buffer, off int, m *%s) (int, error)", name, name)
	w.check("b.Check(off, " + name + "MinSize)")
	w.line("p := off")
	for _, f := range m.Fields() {
		dst := "m." + fieldName(f)
		if !f.Nullable {
			g.getVariable(w, f.Type, dst)
			continue
		}
		ok := w.temp("ok")
		w.line("%s, err := b.GetPresence(p)", ok)
		w.checkErr()
		w.line("p += wire.PresenceSize")
		w.open("if %s", ok)
		if isSlice(f.Type) {
			g.getVariable(w, f.Type, dst)
		} else {
			x := w.temp("x")
			w.line("var %s %s", x, g.goType(f.Type))
			g.getVariable(w, f.Type, x)
			w.line("%s = &%s", dst, x)
		}
		w.close()
	}
	w.line("return p - off, nil")
	w.close()
}

func (g *Generator) getVariable(w *writer, t schema.Type, dst string) {
	if p, ok := g.scalar(t); ok {
		call, typ := g.get(p, "p")
		v := w.temp("v")
		w.line("%s, err := %s", v, call)
		w.checkErr()
		if goT := g.goType(t); goT != typ {
			w.line("%s = %s(%s)", dst, goT, v)
		} else {
			w.line("%s = %s", dst, v)
		}
		w.line("p += %d", p.Width())
		return
	}
	switch t.Kind() {
	case schema.KindFixedBytes:
		w.check("b.CopyTo(" + slice(dst) + ", p, " + strconv.Itoa(t.Len()) + ")")
		w.line("p += %d", t.Len())
	case schema.KindBytes, schema.KindString:
		l := w.temp("l")
		w.line("%s, err := %s", l, g.getLength("p"))
		w.checkErr()
		w.line("p += wire.LengthPrefixSize")
		w.check("b.CheckLength(p, " + l + ")")
		if t.Kind() == schema.KindString {
			w.line("%s, _ = b.GetString(p, int(%s))", dst, l)
		} else {
			w.line("%s, _ = b.GetBytes(p, int(%s))", dst, l)
		}
		w.line("p += int(%s)", l)
	case schema.KindArray:
		if t.IsVariableArray() {
			c := w.temp("c")
			w.line("%s, err := %s", c, g.getLength("p"))
			w.checkErr()
			w.line("p += wire.LengthPrefixSize")
			elemMin, _ := g.schema.TypeSize(t.Elem())
			w.check("b.CheckCount(p, " + c + ", " + strconv.Itoa(elemMin) + ")")
			w.line("%s = make(%s, %s)", dst, g.goType(t), c)
		}
		i := w.loop(dst)
		g.getVariable(w, t.Elem(), index(dst, i))
		w.endLoop()
	case schema.KindMessage:
		n := w.temp("n")
		w.line("%s, err := decode%s(b, p, %s)", n, common.ExportedName(t.Ref()), addr(dst))
		w.checkErr()
		w.line("p += %s", n)
	}
}
