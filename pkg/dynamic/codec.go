package dynamic

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

// Codec encodes and decodes one message. It holds no per-call state.
type Codec struct {
	msg   *schema.Message
	fixed bool
	// size is the encoded size of a fixed message and the minimum size of a
	// variable one.
	size  int
	steps []step
}

type step struct {
	name     string
	nullable bool
	typ      typeCodec
}

func (cs *Codecs) compileMessage(m *schema.Message, order wire.ByteOrder) (*Codec, error) {
	c := &Codec{
		msg:   m,
		fixed: m.Layout() == schema.Fixed,
		size:  m.Size(),
	}
	for _, f := range m.Fields() {
		tc, err := cs.compileType(f.Type, order)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		c.steps = append(c.steps, step{name: f.Name, nullable: f.Nullable, typ: tc})
	}
	return c, nil
}

func (c *Codec) Name() string { return c.msg.Name() }

// Message returns the schema declaration the codec was compiled from.
func (c *Codec) Message() *schema.Message { return c.msg }

func (c *Codec) Fingerprint() uint64 { return c.msg.Fingerprint() }

func (c *Codec) Layout() schema.Layout { return c.msg.Layout() }

func (c *Codec) TemplateID() uint16 { return c.msg.TemplateID() }

// Encode writes r at off and returns the number of bytes written. On success
// the buffer's cursor is left at off+n. Fixed-size messages check the whole
// extent before writing anything.
func (c *Codec) Encode(r Record, b *wire.Buffer, off int) (int, error) {
	n, err := c.encode(r, b, off)
	if err != nil {
		return 0, err
	}
	return n, b.SetCursor(off + n)
}

// Decode reads a message at off and returns it with the number of bytes
// consumed. On success the buffer's cursor is left at off+n. A failed decode
// returns no record.
func (c *Codec) Decode(b *wire.Buffer, off int) (Record, int, error) {
	r, n, err := c.decode(b, off)
	if err != nil {
		return nil, 0, err
	}
	return r, n, b.SetCursor(off + n)
}

// Size returns the exact encoded size of r after checking every value
// against its field's type.
func (c *Codec) Size(r Record) (int, error) {
	total := 0
	for i := range c.steps {
		s := &c.steps[i]
		v, ok := r[s.name]
		present := ok && v != nil
		if s.nullable {
			total += wire.PresenceSize
			if !present {
				continue
			}
		} else if !present {
			return 0, withPath(invalid(s.typ.name, nil), s.name)
		}
		n, err := s.typ.size(v)
		if err != nil {
			return 0, withPath(err, s.name)
		}
		total += n
	}
	return total, nil
}

// Marshal encodes r into a new slice of exactly Size(r) bytes.
func (c *Codec) Marshal(r Record) ([]byte, error) {
	n, err := c.Size(r)
	if err != nil {
		return nil, err
	}
	b := wire.Wrap(make([]byte, n))
	if _, err := c.encode(r, b, 0); err != nil {
		return nil, err
	}
	return b.Raw(), nil
}

// Unmarshal decodes a message from the start of p.
func (c *Codec) Unmarshal(p []byte) (Record, error) {
	r, _, err := c.decode(wire.Wrap(p), 0)
	return r, err
}

// Zero returns a record holding the zero value of every non-nullable field.
func (c *Codec) Zero() Record {
	r := make(Record, len(c.steps))
	for _, s := range c.steps {
		if !s.nullable {
			r[s.name] = s.typ.zero()
		}
	}
	return r
}

func (c *Codec) encode(r Record, b *wire.Buffer, off int) (int, error) {
	if c.fixed {
		if err := b.Reserve(off, c.size); err != nil {
			return 0, err
		}
	}
	p := off
	for i := range c.steps {
		s := &c.steps[i]
		v, ok := r[s.name]
		present := ok && v != nil
		if s.nullable {
			if err := b.PutPresence(p, present); err != nil {
				return 0, err
			}
			p += wire.PresenceSize
			if !present {
				continue
			}
		} else if !present {
			return 0, withPath(invalid(s.typ.name, nil), s.name)
		}
		n, err := s.typ.encode(b, p, v)
		if err != nil {
			return 0, withPath(err, s.name)
		}
		p += n
	}
	return p - off, nil
}

func (c *Codec) decode(b *wire.Buffer, off int) (Record, int, error) {
	if err := b.Check(off, c.size); err != nil {
		return nil, 0, err
	}
	r := make(Record, len(c.steps))
	p := off
	for i := range c.steps {
		s := &c.steps[i]
		if s.nullable {
			present, err := b.GetPresence(p)
			if err != nil {
				return nil, 0, err
			}
			p += wire.PresenceSize
			if !present {
				continue
			}
		}
		v, n, err := s.typ.decode(b, p)
		if err != nil {
			return nil, 0, err
		}
		r[s.name] = v
		p += n
	}
	return r, p - off, nil
}
