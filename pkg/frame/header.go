package frame

import (
	"github.com/pkg/errors"

	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

// Header is the fixed prefix of every frame.
type Header struct {
	FrameLength   uint32
	TemplateID    uint16
	SchemaVersion uint16
	Flags         Flags
	Checksum      uint32
}

// Version decodes the schema version carried by the header.
func (h Header) Version() schema.Version {
	return schema.VersionFromWire(h.SchemaVersion)
}

// PayloadSize is the number of bytes following the header.
func (h Header) PayloadSize() int {
	return int(h.FrameLength) - HeaderSize
}

// Put writes h at off. The reserved bytes are zeroed.
func (h Header) Put(b *wire.Buffer, off int) error {
	if err := b.Reserve(off, HeaderSize); err != nil {
		return err
	}
	_ = b.PutUint32BE(off+offFrameLength, h.FrameLength)
	_ = b.PutUint16BE(off+offTemplateID, h.TemplateID)
	_ = b.PutUint16BE(off+offSchemaVersion, h.SchemaVersion)
	_ = b.PutUint8(off+offFlags, uint8(h.Flags))
	_ = b.PutBytes(off+offFlags+1, []byte{0, 0, 0})
	_ = b.PutUint32BE(off+offChecksum, h.Checksum)
	return nil
}

// ReadHeader reads the header at off. It checks the header alone, not that
// the payload it announces is present.
func ReadHeader(b *wire.Buffer, off int) (Header, error) {
	if err := b.Check(off, HeaderSize); err != nil {
		return Header{}, err
	}
	var h Header
	h.FrameLength, _ = b.GetUint32BE(off + offFrameLength)
	h.TemplateID, _ = b.GetUint16BE(off + offTemplateID)
	h.SchemaVersion, _ = b.GetUint16BE(off + offSchemaVersion)
	flags, _ := b.GetUint8(off + offFlags)
	h.Flags = Flags(flags)
	h.Checksum, _ = b.GetUint32BE(off + offChecksum)

	if h.FrameLength < HeaderSize {
		return Header{}, errors.Wrapf(wire.ErrMalformedLength, "frame length %d is shorter than the header", h.FrameLength)
	}
	if h.Flags&^knownFlags != 0 {
		return Header{}, errors.Wrapf(ErrUnknownFlags, "flags %#02x", uint8(h.Flags))
	}
	return h, nil
}

// PeekHeader reads the header at the start of frame.
func PeekHeader(frame []byte) (Header, error) {
	return ReadHeader(wire.Wrap(frame), 0)
}
