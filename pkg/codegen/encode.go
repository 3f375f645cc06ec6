package codegen

import (
	"github.com/rawbytedev/fcodec/internal/common"
	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

func (w *writer) check(call string) {
	w.open("if err := %s; err != nil", call)
	w.line("return %s, err", w.zero())
	w.close()
}

func (w *writer) checkErr() {
	w.open("if err != nil")
	w.line("return %s, err", w.zero())
	w.close()
}

// encodeFixed emits the encoder of a fixed-size message: one capacity check
// for the whole extent, then writes at constant offsets.
func (g *Generator) encodeFixed(w *writer, m *schema.Message, name, lower string) {
	w.open("func encode%s(b *wire.Buffer, off int, m *%s) (int, error)", name, name)
	w.check("b.Reserve(off, " + name + "FixedSize)")
	for _, f := range m.Fields() {
		g.putFixed(w, f.Type, "m."+fieldName(f), "off+"+lower+"Offset"+fieldName(f))
	}
	w.line("return %sFixedSize, nil", name)
	w.close()
}

// putFixed writes val at pos. The extent was reserved up front, so the
// individual writes cannot fail.
func (g *Generator) putFixed(w *writer, t schema.Type, val, pos string) {
	if p, ok := g.scalar(t); ok {
		w.line("_ = %s", g.put(p, pos, val))
		return
	}
	switch t.Kind() {
	case schema.KindFixedBytes:
		w.line("_ = b.PutBytes(%s, %s)", pos, slice(val))
	case schema.KindArray:
		size, _ := g.schema.TypeSize(t.Elem())
		i := w.loop(paren(val))
		g.putFixed(w, t.Elem(), index(val, i), offset(pos, i, size))
		w.endLoop()
	case schema.KindMessage:
		w.line("_, _ = encode%s(b, %s, %s)", common.ExportedName(t.Ref()), pos, addr(val))
	}
}

// encodeVariable emits the encoder of a variable-size message. The cursor p
// advances field by field and every write is checked.
func (g *Generator) encodeVariable(w *writer, m *schema.Message, name string) {
	w.open("func encode%s(b *wire.Buffer, off int, m *%s) (int, error)", name, name)
	w.line("p := off")
	for _, f := range m.Fields() {
		val := "m." + fieldName(f)
		if !f.Nullable {
			g.putVariable(w, f.Type, val)
			continue
		}
		w.check("b.PutPresence(p, " + val + " != nil)")
		w.line("p += wire.PresenceSize")
		w.open("if %s != nil", val)
		if isSlice(f.Type) {
			g.putVariable(w, f.Type, val)
		} else {
			g.putVariable(w, f.Type, "*"+val)
		}
		w.close()
	}
	w.line("return p - off, nil")
	w.close()
}

func (g *Generator) putVariable(w *writer, t schema.Type, val string) {
	if p, ok := g.scalar(t); ok {
		w.check(g.put(p, "p", val))
		w.line("p += %d", p.Width())
		return
	}
	switch t.Kind() {
	case schema.KindFixedBytes:
		w.check("b.PutBytes(p, " + slice(val) + ")")
		w.line("p += %d", t.Len())
	case schema.KindBytes, schema.KindString:
		w.check(g.putLength("p", "len("+val+")"))
		w.line("p += wire.LengthPrefixSize")
		if t.Kind() == schema.KindString {
			w.check("b.PutString(p, " + val + ")")
		} else {
			w.check("b.PutBytes(p, " + val + ")")
		}
		w.line("p += len(%s)", val)
	case schema.KindArray:
		if t.IsVariableArray() {
			w.check(g.putLength("p", "len("+val+")"))
			w.line("p += wire.LengthPrefixSize")
		}
		i := w.loop(paren(val))
		g.putVariable(w, t.Elem(), index(val, i))
		w.endLoop()
	case schema.KindMessage:
		n := w.temp("n")
		w.line("%s, err := encode%s(b, p, %s)", n, common.ExportedName(t.Ref()), addr(val))
		w.checkErr()
		w.line("p += %s", n)
	}
}

// sizeMethod emits Size for a variable-size message. Constant parts are
// folded into the initial value of n.
func (g *Generator) sizeMethod(w *writer, m *schema.Message, name string) {
	body := &writer{indent: w.indent + 1}
	total := 0
	for _, f := range m.Fields() {
		val := "m." + fieldName(f)
		if !f.Nullable {
			total += g.sizeOf(body, f.Type, val)
			continue
		}
		total += wire.PresenceSize
		body.open("if %s != nil", val)
		inner := val
		if !isSlice(f.Type) {
			inner = "*" + val
		}
		if c := g.sizeOf(body, f.Type, inner); c > 0 {
			body.line("n += %d", c)
		}
		body.close()
	}
	w.line("// Size returns the exact encoded size of m.")
	w.open("func (m *%s) Size() int", name)
	w.line("n := %d", total)
	w.WriteString(body.String())
	w.line("return n")
	w.close()
}

// sizeOf emits the statements adding the variable part of the size of val
// and returns the constant part.
func (g *Generator) sizeOf(w *writer, t schema.Type, val string) int {
	size, fixed := g.schema.TypeSize(t)
	if fixed {
		return size
	}
	switch t.Kind() {
	case schema.KindBytes, schema.KindString:
		w.line("n += len(%s)", val)
		return size
	case schema.KindArray:
		elem, elemFixed := g.schema.TypeSize(t.Elem())
		if t.IsVariableArray() && elemFixed {
			if elem == 1 {
				w.line("n += len(%s)", val)
			} else {
				w.line("n += len(%s) * %d", val, elem)
			}
			return size
		}
		i := w.loop(paren(val))
		if c := g.sizeOf(w, t.Elem(), index(val, i)); c > 0 {
			w.line("n += %d", c)
		}
		w.endLoop()
		if t.IsVariableArray() {
			return size
		}
		return 0
	case schema.KindMessage:
		recv := val
		if recv[0] == '*' {
			recv = recv[1:]
		}
		w.line("n += %s.Size()", recv)
	}
	return 0
}
