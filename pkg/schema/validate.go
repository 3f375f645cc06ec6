package schema

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"

	"github.com/rawbytedev/fcodec/internal/common"
)

// node colours for the depth-first cycle search.
const (
	white = iota
	grey
	black
)

// Validate resolves references, rejects reference cycles, classifies every
// message's layout and computes fingerprints. All problems found are
// returned together; each can be matched with errors.Is against the
// sentinels of this package. Validate does not modify the Builder and may be
// called any number of times.
func (b *Builder) Validate() (*Schema, error) {
	var errs []error
	if b.namespace != "" && !common.IsIdentifier(b.namespace) {
		errs = append(errs, newError(ErrInvalidName, "", "", "namespace "+b.namespace+" is not a valid package name"))
	}
	if err := b.version.check(); err != nil {
		errs = append(errs, newError(ErrInvalidVersion, "", "", err.Error()))
	}

	msgIndex := make(map[string]int, len(b.messages))
	for i, m := range b.messages {
		msgIndex[m.name] = i
	}
	enumIndex := make(map[string]int, len(b.enums))
	for i, e := range b.enums {
		enumIndex[e.name] = i
	}

	// Reference resolution, building the edge lists on the way.
	edges := make([][]int, len(b.messages))
	for i, m := range b.messages {
		dup := make(map[int]bool)
		for _, f := range m.fields {
			errs = resolve(errs, f.Type, m.name, f.Name, msgIndex, enumIndex)
			for _, ref := range f.Type.refs(nil) {
				j, ok := msgIndex[ref]
				if ok && !dup[j] {
					dup[j] = true
					edges[i] = append(edges[i], j)
				}
			}
		}
	}

	used := make(map[uint16]string)
	for _, m := range b.messages {
		if m.templateID == 0 {
			continue
		}
		if prev, ok := used[m.templateID]; ok {
			errs = append(errs, newError(ErrInvalidTemplateID, m.name, "",
				"template id already used by "+prev))
			continue
		}
		used[m.templateID] = m.name
	}
	if len(errs) > 0 {
		return nil, multierr.Combine(errs...)
	}

	order, cycles := b.sortMessages(edges)
	if len(cycles) > 0 {
		return nil, multierr.Combine(cycles...)
	}

	s := &Schema{
		namespace:  b.namespace,
		version:    b.version,
		order:      b.order,
		byName:     make(map[string]*Message, len(b.messages)),
		enumByName: make(map[string]*Enum, len(b.enums)),
	}
	for _, e := range b.enums {
		en := &Enum{name: e.name, underlying: e.underlying, values: e.values}
		s.enums = append(s.enums, en)
		s.enumByName[e.name] = en
	}

	next := uint16(1)
	for _, i := range order {
		decl := b.messages[i]
		m := &Message{name: decl.name, fields: decl.fields, templateID: decl.templateID}
		for _, j := range edges[i] {
			m.deps = append(m.deps, b.messages[j].name)
		}
		s.layout(m)
		m.fingerprint = s.fingerprint(m)
		s.messages = append(s.messages, m)
		s.byName[m.name] = m
	}
	// Unpinned template ids follow declaration order, skipping pinned ones.
	for _, decl := range b.messages {
		m := s.byName[decl.name]
		if m.templateID != 0 {
			continue
		}
		for used[next] != "" {
			next++
		}
		m.templateID = next
		used[next] = m.name
	}
	return s, nil
}

func resolve(errs []error, t Type, message, field string, msgs, enums map[string]int) []error {
	switch t.kind {
	case KindMessage:
		if _, ok := msgs[t.ref]; !ok {
			detail := "no message named " + t.ref
			if _, isEnum := enums[t.ref]; isEnum {
				detail = t.ref + " is an enum, not a message"
			}
			errs = append(errs, newError(ErrUnresolvedTypeReference, message, field, detail))
		}
	case KindEnum:
		if _, ok := enums[t.ref]; !ok {
			detail := "no enum named " + t.ref
			if _, isMsg := msgs[t.ref]; isMsg {
				detail = t.ref + " is a message, not an enum"
			}
			errs = append(errs, newError(ErrUnresolvedTypeReference, message, field, detail))
		}
	case KindArray:
		return resolve(errs, t.Elem(), message, field, msgs, enums)
	}
	return errs
}

// sortMessages runs a depth-first search over the reference graph in
// declaration order. It returns the messages in post-order, which puts every
// message after the messages it references, and one error per back edge.
func (b *Builder) sortMessages(edges [][]int) (order []int, cycles []error) {
	color := make([]uint8, len(edges))
	stack := make([]int, 0, len(edges))

	var visit func(i int)
	visit = func(i int) {
		color[i] = grey
		stack = append(stack, i)
		for _, j := range edges[i] {
			switch color[j] {
			case white:
				visit(j)
			case grey:
				start := len(stack) - 1
				for stack[start] != j {
					start--
				}
				path := make([]string, 0, len(stack)-start+1)
				for _, k := range stack[start:] {
					path = append(path, b.messages[k].name)
				}
				path = append(path, b.messages[j].name)
				cycles = append(cycles, &Error{
					Message: b.messages[i].name,
					Path:    path,
					Err:     ErrCyclicMessageReference,
				})
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		order = append(order, i)
	}
	for i := range edges {
		if color[i] == white {
			visit(i)
		}
	}
	return order, cycles
}

// layout computes the size, classification and fixed offsets of m. Every
// message m references must already be laid out.
func (s *Schema) layout(m *Message) {
	m.layout = Fixed
	size := 0
	offsets := make([]int, len(m.fields))
	for i, f := range m.fields {
		offsets[i] = size
		n, fixed := s.FieldSize(f)
		if !fixed {
			m.layout = Variable
		}
		size += n
	}
	m.size = size
	if m.layout == Fixed {
		m.offsets = offsets
	}
}

// fingerprint hashes the canonical declaration of m: its name, then for each
// field in index order its name, type and nullability. Referenced messages
// contribute their own fingerprint, so a change anywhere below m changes m.
func (s *Schema) fingerprint(m *Message) uint64 {
	d := xxhash.New()
	writeString(d, m.name)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(m.fields)))
	_, _ = d.Write(n[:])
	for _, f := range m.fields {
		writeString(d, f.Name)
		s.writeType(d, f.Type)
		if f.Nullable {
			_, _ = d.Write([]byte{1})
		} else {
			_, _ = d.Write([]byte{0})
		}
	}
	return d.Sum64()
}

func (s *Schema) writeType(d *xxhash.Digest, t Type) {
	var hdr [6]byte
	hdr[0] = byte(t.kind)
	hdr[1] = byte(t.prim)
	binary.BigEndian.PutUint32(hdr[2:], uint32(t.n))
	_, _ = d.Write(hdr[:])
	switch t.kind {
	case KindArray:
		s.writeType(d, t.Elem())
	case KindMessage:
		writeString(d, t.ref)
		var fp [8]byte
		binary.BigEndian.PutUint64(fp[:], s.byName[t.ref].fingerprint)
		_, _ = d.Write(fp[:])
	case KindEnum:
		writeString(d, t.ref)
		_, _ = d.Write([]byte{byte(s.enumByName[t.ref].underlying)})
	}
}

func writeString(d *xxhash.Digest, v string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v)))
	_, _ = d.Write(n[:])
	_, _ = d.WriteString(v)
}
