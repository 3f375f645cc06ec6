package dynamic

import "github.com/rawbytedev/fcodec/pkg/wire"

// Value pairs a record with its codec so it carries the same methods as a
// generated message: TemplateID, Fingerprint, Size, EncodeTo and DecodeFrom.
type Value struct {
	Codec  *Codec
	Record Record
}

// New returns an empty Value for c, ready to decode into.
func (c *Codec) New() *Value { return &Value{Codec: c} }

// Bind returns a Value holding r.
func (c *Codec) Bind(r Record) *Value { return &Value{Codec: c, Record: r} }

func (v *Value) TemplateID() uint16 { return v.Codec.TemplateID() }

func (v *Value) Fingerprint() uint64 { return v.Codec.Fingerprint() }

// Size is the encoded size of the record, or zero when a value does not fit
// its field. EncodeTo reports the error itself.
func (v *Value) Size() int {
	n, err := v.Codec.Size(v.Record)
	if err != nil {
		return 0
	}
	return n
}

func (v *Value) EncodeTo(b *wire.Buffer, off int) (int, error) {
	return v.Codec.Encode(v.Record, b, off)
}

// DecodeFrom replaces the record with the message at off. The record is
// unchanged when decoding fails.
func (v *Value) DecodeFrom(b *wire.Buffer, off int) (int, error) {
	r, n, err := v.Codec.Decode(b, off)
	if err != nil {
		return 0, err
	}
	v.Record = r
	return n, nil
}
