// Package frame wraps encoded messages in a self-describing envelope.
//
// A frame is a 16-byte header followed by the payload:
//
//	offset  size  field
//	0       4     frame length, header included
//	4       2     template id
//	6       2     schema version (major<<8 | minor)
//	8       1     flags
//	9       3     reserved, zero
//	12      4     CRC-32 (IEEE) of the payload, or zero
//
// Header fields are big-endian whatever the schema byte order. The payload
// may be compressed with zstd; the checksum then covers the compressed bytes.
package frame

import (
	"github.com/pkg/errors"
)

// Header layout.
const (
	HeaderSize = 16

	offFrameLength   = 0
	offTemplateID    = 4
	offSchemaVersion = 6
	offFlags         = 8
	offChecksum      = 12
)

// Flags describe how the payload of a frame was written.
type Flags uint8

const (
	// FlagChecksum marks a frame whose header carries the payload CRC.
	FlagChecksum Flags = 1 << iota
	// FlagCompressed marks a zstd compressed payload.
	FlagCompressed

	knownFlags = FlagChecksum | FlagCompressed
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

var (
	ErrDuplicateTemplate   = errors.New("frame: template id already registered")
	ErrUnknownTemplate     = errors.New("frame: unknown template id")
	ErrChecksumMismatch    = errors.New("frame: checksum mismatch")
	ErrIncompatibleVersion = errors.New("frame: incompatible schema version")
	ErrFrameTooLarge       = errors.New("frame: frame exceeds maximum size")
	ErrUnknownFlags        = errors.New("frame: unknown flags")
)

// DefaultMaxFrameSize bounds frames when Config.MaxFrameSize is zero.
const DefaultMaxFrameSize = 16 << 20

// Config selects the optional frame features.
type Config struct {
	// Checksum adds a CRC-32 of the payload to every frame written and
	// verifies it on every frame read that carries one.
	Checksum bool
	// Compress writes payloads with zstd.
	Compress bool
	// CompressMinSize is the smallest payload worth compressing. Smaller
	// payloads are written as is even when Compress is set.
	CompressMinSize int
	// MaxFrameSize bounds both written and accepted frames, header included.
	MaxFrameSize int
}

// DefaultConfig favours safety: checksums on, no compression.
func DefaultConfig() Config {
	return Config{Checksum: true, MaxFrameSize: DefaultMaxFrameSize}
}

// HighPerformance skips checksums for trusted in-process transports.
func HighPerformance() Config {
	return Config{MaxFrameSize: DefaultMaxFrameSize}
}

func (c Config) maxFrameSize() int {
	if c.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}
