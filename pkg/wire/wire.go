// Package wire is the runtime support layer for generated codecs: a
// bounds-checked, zero-copy view over a contiguous byte region with typed
// get/put operations and a cursor.
//
// Generated code performs no bounds arithmetic of its own. Every
// offset-bearing method on Buffer validates off+width against the capacity
// and returns a *BoundsError otherwise, so that check is the single safety
// invariant the codecs rely on.
package wire

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// LengthPrefixSize is the width of the unsigned length (or element count)
	// written before strings, byte slices and variable arrays.
	LengthPrefixSize = 4

	// PresenceSize is the width of the marker written before a nullable field.
	PresenceSize = 1

	// MaxLength is the largest length prefix a Buffer accepts.
	MaxLength = 1<<32 - 1
)

// Presence marker values.
const (
	Absent  byte = 0
	Present byte = 1
)

var (
	// ErrOutOfBounds is matched by every bounds failure.
	ErrOutOfBounds = errors.New("wire: offset out of bounds")
	// ErrBufferOverflow is matched by bounds failures on writes.
	ErrBufferOverflow = errors.New("wire: buffer overflow")
	// ErrTruncatedMessage is matched by bounds failures on reads.
	ErrTruncatedMessage = errors.New("wire: truncated message")
	// ErrMalformedLength reports a decoded length prefix that runs past the
	// end of the buffer.
	ErrMalformedLength = errors.New("wire: malformed length")
	// ErrSchemaMismatch reports a fingerprint that differs from the decoder's.
	ErrSchemaMismatch = errors.New("wire: schema mismatch")
	// ErrReleased is returned when a pooled or mapped buffer is used after
	// release.
	ErrReleased = errors.New("wire: buffer released")
	// ErrInvalidPresence reports a presence marker other than 0 or 1.
	ErrInvalidPresence = errors.New("wire: invalid presence marker")
	// ErrLengthOverflow reports a length or count that does not fit a prefix.
	ErrLengthOverflow = errors.New("wire: length exceeds prefix range")
)

// ByteOrder selects the encoding of multi-byte numbers. A schema uses one
// order for every field.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	default:
		return fmt.Sprintf("ByteOrder(%d)", uint8(o))
	}
}

// ParseByteOrder accepts "big", "little" and the empty string (big).
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "", "big", "be", "big-endian":
		return BigEndian, nil
	case "little", "le", "little-endian":
		return LittleEndian, nil
	}
	return 0, errors.Errorf("wire: unknown byte order %q", s)
}

// BoundsError describes an access outside a buffer's capacity.
type BoundsError struct {
	Op       string
	Offset   int
	Width    int
	Capacity int

	kind error
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%v: %s [%d:+%d] exceeds capacity %d", e.kind, e.Op, e.Offset, e.Width, e.Capacity)
}

// Is matches ErrOutOfBounds and the read/write specific sentinel.
func (e *BoundsError) Is(target error) bool {
	return target == ErrOutOfBounds || target == e.kind
}

func (e *BoundsError) Unwrap() error { return e.kind }

func readError(op string, off, n, capacity int) error {
	return &BoundsError{Op: op, Offset: off, Width: n, Capacity: capacity, kind: ErrTruncatedMessage}
}

func writeError(op string, off, n, capacity int) error {
	return &BoundsError{Op: op, Offset: off, Width: n, Capacity: capacity, kind: ErrBufferOverflow}
}

// MalformedLength builds the error returned when a length prefix read at off
// claims n bytes but only remaining are left.
func MalformedLength(off int, n uint64, remaining int) error {
	return errors.Wrapf(ErrMalformedLength, "length %d at offset %d exceeds %d remaining bytes", n, off, remaining)
}

// InvalidPresence builds the error returned for a presence marker v at off
// that is neither Absent nor Present.
func InvalidPresence(off int, v byte) error {
	return errors.Wrapf(ErrInvalidPresence, "marker %#02x at offset %d", v, off)
}

// SchemaMismatch builds the error returned when a fingerprint check fails.
func SchemaMismatch(message string, want, got uint64) error {
	return errors.Wrapf(ErrSchemaMismatch, "%s: fingerprint %#016x, decoder expects %#016x", message, got, want)
}

// CheckFingerprint compares a caller-supplied fingerprint with the decoder's.
func CheckFingerprint(message string, want, got uint64) error {
	if want != got {
		return SchemaMismatch(message, want, got)
	}
	return nil
}
