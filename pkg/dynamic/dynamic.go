// Package dynamic compiles a validated schema into codecs at run time.
//
// Each message gets a plan of per-field steps built once by Compile; encoding
// and decoding walk that plan over a *wire.Buffer. The bytes written are
// identical to those of the code emitted by package codegen for the same
// schema, so the two forms interoperate.
package dynamic

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

// Record holds the field values of one message, keyed by field name.
//
// Values use these Go types: the exact Go type of a primitive (int32,
// float64, bool, ...), the underlying integer type of an enum, []byte for
// bytes and fixed bytes, string, []any for arrays and Record (or
// map[string]any) for nested messages. An absent nullable field is a missing
// key or a nil value.
type Record map[string]any

// ErrInvalidValue is matched by every *ValueError.
var ErrInvalidValue = errors.New("dynamic: invalid value")

// ValueError reports a record value that does not fit its field's type.
type ValueError struct {
	Path string
	Want string
	Got  any
}

func (e *ValueError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("dynamic: %s: missing value of type %s", e.Path, e.Want)
	}
	return fmt.Sprintf("dynamic: %s: want %s, got %T", e.Path, e.Want, e.Got)
}

func (e *ValueError) Is(target error) bool { return target == ErrInvalidValue }

func invalid(want string, got any) error {
	return &ValueError{Want: want, Got: got}
}

// withPath prefixes the path of a *ValueError with a field name or an array
// index. Other errors pass through untouched.
func withPath(err error, elem string) error {
	var ve *ValueError
	if !errors.As(err, &ve) {
		return err
	}
	switch {
	case ve.Path == "":
		ve.Path = elem
	case strings.HasPrefix(ve.Path, "["):
		ve.Path = elem + ve.Path
	default:
		ve.Path = elem + "." + ve.Path
	}
	return err
}

// Codecs is the set of compiled codecs of one schema. It is immutable and
// safe for concurrent use.
type Codecs struct {
	schema     *schema.Schema
	list       []*Codec
	byName     map[string]*Codec
	byTemplate map[uint16]*Codec
}

// Compile builds a codec for every message of s.
func Compile(s *schema.Schema) (*Codecs, error) {
	if s == nil {
		return nil, errors.New("dynamic: nil schema")
	}
	cs := &Codecs{
		schema:     s,
		byName:     make(map[string]*Codec),
		byTemplate: make(map[uint16]*Codec),
	}
	order := byteOrder(s.Order())
	// Messages arrive dependencies first, so every reference resolves to an
	// already compiled codec.
	for _, m := range s.Messages() {
		c, err := cs.compileMessage(m, order)
		if err != nil {
			return nil, errors.Wrapf(err, "dynamic: compile %s", m.Name())
		}
		cs.list = append(cs.list, c)
		cs.byName[m.Name()] = c
		cs.byTemplate[m.TemplateID()] = c
	}
	return cs, nil
}

// Schema returns the schema the codecs were compiled from.
func (cs *Codecs) Schema() *schema.Schema { return cs.schema }

// ByName returns the codec of the named message.
func (cs *Codecs) ByName(name string) (*Codec, bool) {
	c, ok := cs.byName[name]
	return c, ok
}

// ByTemplate returns the codec of the message with template id id.
func (cs *Codecs) ByTemplate(id uint16) (*Codec, bool) {
	c, ok := cs.byTemplate[id]
	return c, ok
}

// All returns every codec in dependency order.
func (cs *Codecs) All() []*Codec {
	out := make([]*Codec, len(cs.list))
	copy(out, cs.list)
	return out
}

func byteOrder(o schema.Order) wire.ByteOrder {
	if o == schema.LittleEndian {
		return wire.LittleEndian
	}
	return wire.BigEndian
}
