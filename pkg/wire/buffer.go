package wire

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Buffer is a bounds-checked view over a byte region with a cursor.
//
// A Buffer created by Wrap never grows: writes past its capacity fail with
// ErrBufferOverflow. A Buffer created by NewGrowable reallocates on a write
// past its capacity, up to its limit. Growth is handled on the failure path
// only, so fixed-capacity buffers pay nothing for it.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	buf      []byte
	cursor   int
	limit    int
	growable bool
}

// Wrap returns a fixed-capacity Buffer over p. The Buffer does not copy p.
func Wrap(p []byte) *Buffer {
	return &Buffer{buf: p}
}

// NewGrowable returns a Buffer with initial bytes of capacity that grows on
// demand. A limit of 0 means unbounded.
func NewGrowable(initial, limit int) *Buffer {
	if initial < 0 {
		initial = 0
	}
	return &Buffer{buf: make([]byte, initial), limit: limit, growable: true}
}

// Growable reports whether writes past the capacity reallocate.
func (b *Buffer) Growable() bool { return b.growable }

// Capacity returns the size of the addressable region.
func (b *Buffer) Capacity() int { return len(b.buf) }

// Cursor returns the current sequential position.
func (b *Buffer) Cursor() int { return b.cursor }

// Remaining returns the bytes between the cursor and the capacity.
func (b *Buffer) Remaining() int { return len(b.buf) - b.cursor }

// SetCursor moves the cursor to off, which must lie within [0, Capacity()].
func (b *Buffer) SetCursor(off int) error {
	if off < 0 || off > len(b.buf) {
		return readError("seek", off, 0, len(b.buf))
	}
	b.cursor = off
	return nil
}

// Advance moves the cursor forward by n bytes. A growable buffer grows to
// make room.
func (b *Buffer) Advance(n int) error {
	if err := b.Reserve(b.cursor, n); err != nil {
		return err
	}
	b.cursor += n
	return nil
}

// Bytes returns the region up to the cursor. It aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.buf[:b.cursor] }

// Raw returns the whole region. It aliases the buffer.
func (b *Buffer) Raw() []byte { return b.buf }

// Reset rewinds the cursor without clearing the region.
func (b *Buffer) Reset() { b.cursor = 0 }

// Check validates that n bytes at off can be read.
func (b *Buffer) Check(off, n int) error {
	if inBounds(off, n, len(b.buf)) {
		return nil
	}
	return readError("read", off, n, len(b.buf))
}

// Reserve validates that n bytes at off can be written, growing a growable
// buffer if needed. Fixed-size encoders call it once before writing at
// constant offsets.
func (b *Buffer) Reserve(off, n int) error {
	if inBounds(off, n, len(b.buf)) {
		return nil
	}
	return b.grow("write", off, n)
}

// CheckLength validates a length prefix of n bytes whose payload starts at off.
func (b *Buffer) CheckLength(off int, n uint32) error {
	if off < 0 || off > len(b.buf) {
		return readError("length", off, 0, len(b.buf))
	}
	if rem := len(b.buf) - off; uint64(n) > uint64(rem) {
		return MalformedLength(off-LengthPrefixSize, uint64(n), rem)
	}
	return nil
}

// PutLength writes the length or element count n as a prefix at off. It
// fails with ErrLengthOverflow when n is negative or above MaxLength.
func (b *Buffer) PutLength(off, n int, order ByteOrder) error {
	if n < 0 || uint64(n) > MaxLength {
		return errors.Wrapf(ErrLengthOverflow, "length %d at offset %d", n, off)
	}
	if order == LittleEndian {
		return b.PutUint32LE(off, uint32(n))
	}
	return b.PutUint32BE(off, uint32(n))
}

// CheckCount validates an element count whose elements occupy at least
// minSize bytes each, starting at off.
func (b *Buffer) CheckCount(off int, count uint32, minSize int) error {
	if off < 0 || off > len(b.buf) {
		return readError("count", off, 0, len(b.buf))
	}
	if minSize < 1 {
		minSize = 1
	}
	if rem := len(b.buf) - off; uint64(count)*uint64(minSize) > uint64(rem) {
		return MalformedLength(off-LengthPrefixSize, uint64(count), rem)
	}
	return nil
}

func inBounds(off, n, capacity int) bool {
	return off >= 0 && n >= 0 && off <= capacity && n <= capacity-off
}

func (b *Buffer) grow(op string, off, n int) error {
	if !b.growable || off < 0 || n < 0 {
		return writeError(op, off, n, len(b.buf))
	}
	need := off + n
	if need < off || (b.limit > 0 && need > b.limit) {
		return writeError(op, off, n, b.limit)
	}
	newLen := 2 * len(b.buf)
	if newLen < need {
		newLen = need
	}
	if b.limit > 0 && newLen > b.limit {
		newLen = b.limit
	}
	if newLen <= cap(b.buf) {
		b.buf = b.buf[:newLen]
		return nil
	}
	tmp := make([]byte, newLen)
	copy(tmp, b.buf)
	b.buf = tmp
	return nil
}

// detach drops the region so later accesses fail.
func (b *Buffer) detach() {
	b.buf = nil
	b.cursor = 0
	b.growable = false
}

// PutFixed writes the low width bytes of v at off. width must be 1, 2, 4 or 8.
func (b *Buffer) PutFixed(off, width int, v uint64, order ByteOrder) error {
	switch width {
	case 1:
		return b.PutUint8(off, uint8(v))
	case 2:
		if order == LittleEndian {
			return b.PutUint16LE(off, uint16(v))
		}
		return b.PutUint16BE(off, uint16(v))
	case 4:
		if order == LittleEndian {
			return b.PutUint32LE(off, uint32(v))
		}
		return b.PutUint32BE(off, uint32(v))
	case 8:
		if order == LittleEndian {
			return b.PutUint64LE(off, v)
		}
		return b.PutUint64BE(off, v)
	}
	return writeError("put", off, width, len(b.buf))
}

// GetFixed reads width bytes at off as an unsigned integer.
func (b *Buffer) GetFixed(off, width int, order ByteOrder) (uint64, error) {
	switch width {
	case 1:
		v, err := b.GetUint8(off)
		return uint64(v), err
	case 2:
		if order == LittleEndian {
			v, err := b.GetUint16LE(off)
			return uint64(v), err
		}
		v, err := b.GetUint16BE(off)
		return uint64(v), err
	case 4:
		if order == LittleEndian {
			v, err := b.GetUint32LE(off)
			return uint64(v), err
		}
		v, err := b.GetUint32BE(off)
		return uint64(v), err
	case 8:
		if order == LittleEndian {
			return b.GetUint64LE(off)
		}
		return b.GetUint64BE(off)
	}
	return 0, readError("get", off, width, len(b.buf))
}

// PutUint8 writes a single byte.
func (b *Buffer) PutUint8(off int, v uint8) error {
	if err := b.Reserve(off, 1); err != nil {
		return err
	}
	b.buf[off] = v
	return nil
}

// GetUint8 reads a single byte.
func (b *Buffer) GetUint8(off int) (uint8, error) {
	if !inBounds(off, 1, len(b.buf)) {
		return 0, readError("get", off, 1, len(b.buf))
	}
	return b.buf[off], nil
}

// PutBool writes 1 for true and 0 for false.
func (b *Buffer) PutBool(off int, v bool) error {
	var x uint8
	if v {
		x = 1
	}
	return b.PutUint8(off, x)
}

// GetBool reads a byte; any non-zero value is true.
func (b *Buffer) GetBool(off int) (bool, error) {
	v, err := b.GetUint8(off)
	return v != 0, err
}

func (b *Buffer) PutUint16BE(off int, v uint16) error {
	if err := b.Reserve(off, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.buf[off:], v)
	return nil
}

func (b *Buffer) PutUint16LE(off int, v uint16) error {
	if err := b.Reserve(off, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b.buf[off:], v)
	return nil
}

func (b *Buffer) GetUint16BE(off int) (uint16, error) {
	if !inBounds(off, 2, len(b.buf)) {
		return 0, readError("get", off, 2, len(b.buf))
	}
	return binary.BigEndian.Uint16(b.buf[off:]), nil
}

func (b *Buffer) GetUint16LE(off int) (uint16, error) {
	if !inBounds(off, 2, len(b.buf)) {
		return 0, readError("get", off, 2, len(b.buf))
	}
	return binary.LittleEndian.Uint16(b.buf[off:]), nil
}

func (b *Buffer) PutUint32BE(off int, v uint32) error {
	if err := b.Reserve(off, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b.buf[off:], v)
	return nil
}

func (b *Buffer) PutUint32LE(off int, v uint32) error {
	if err := b.Reserve(off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b.buf[off:], v)
	return nil
}

func (b *Buffer) GetUint32BE(off int) (uint32, error) {
	if !inBounds(off, 4, len(b.buf)) {
		return 0, readError("get", off, 4, len(b.buf))
	}
	return binary.BigEndian.Uint32(b.buf[off:]), nil
}

func (b *Buffer) GetUint32LE(off int) (uint32, error) {
	if !inBounds(off, 4, len(b.buf)) {
		return 0, readError("get", off, 4, len(b.buf))
	}
	return binary.LittleEndian.Uint32(b.buf[off:]), nil
}

func (b *Buffer) PutUint64BE(off int, v uint64) error {
	if err := b.Reserve(off, 8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b.buf[off:], v)
	return nil
}

func (b *Buffer) PutUint64LE(off int, v uint64) error {
	if err := b.Reserve(off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.buf[off:], v)
	return nil
}

func (b *Buffer) GetUint64BE(off int) (uint64, error) {
	if !inBounds(off, 8, len(b.buf)) {
		return 0, readError("get", off, 8, len(b.buf))
	}
	return binary.BigEndian.Uint64(b.buf[off:]), nil
}

func (b *Buffer) GetUint64LE(off int) (uint64, error) {
	if !inBounds(off, 8, len(b.buf)) {
		return 0, readError("get", off, 8, len(b.buf))
	}
	return binary.LittleEndian.Uint64(b.buf[off:]), nil
}

// PutFloat32 writes the IEEE-754 bits of v.
func (b *Buffer) PutFloat32(off int, v float32, order ByteOrder) error {
	return b.PutFixed(off, 4, uint64(math.Float32bits(v)), order)
}

// GetFloat32 reads IEEE-754 bits written by PutFloat32.
func (b *Buffer) GetFloat32(off int, order ByteOrder) (float32, error) {
	v, err := b.GetFixed(off, 4, order)
	return math.Float32frombits(uint32(v)), err
}

// PutFloat64 writes the IEEE-754 bits of v.
func (b *Buffer) PutFloat64(off int, v float64, order ByteOrder) error {
	return b.PutFixed(off, 8, math.Float64bits(v), order)
}

// GetFloat64 reads IEEE-754 bits written by PutFloat64.
func (b *Buffer) GetFloat64(off int, order ByteOrder) (float64, error) {
	v, err := b.GetFixed(off, 8, order)
	return math.Float64frombits(v), err
}

// PutBytes copies p to off.
func (b *Buffer) PutBytes(off int, p []byte) error {
	if err := b.Reserve(off, len(p)); err != nil {
		return err
	}
	copy(b.buf[off:], p)
	return nil
}

// PutString copies s to off without converting it to a byte slice.
func (b *Buffer) PutString(off int, s string) error {
	if err := b.Reserve(off, len(s)); err != nil {
		return err
	}
	copy(b.buf[off:], s)
	return nil
}

// GetBytes returns n bytes at off. The result aliases the buffer and is only
// valid while the underlying region is.
func (b *Buffer) GetBytes(off, n int) ([]byte, error) {
	if !inBounds(off, n, len(b.buf)) {
		return nil, readError("get", off, n, len(b.buf))
	}
	return b.buf[off : off+n : off+n], nil
}

// GetString returns a copy of n bytes at off as a string.
func (b *Buffer) GetString(off, n int) (string, error) {
	if !inBounds(off, n, len(b.buf)) {
		return "", readError("get", off, n, len(b.buf))
	}
	return string(b.buf[off : off+n]), nil
}

// CopyTo copies n bytes at off into dst, which must be at least n long.
func (b *Buffer) CopyTo(dst []byte, off, n int) error {
	if !inBounds(off, n, len(b.buf)) || len(dst) < n {
		return readError("copy", off, n, len(b.buf))
	}
	copy(dst, b.buf[off:off+n])
	return nil
}

// PutPresence writes the marker that precedes a nullable field.
func (b *Buffer) PutPresence(off int, present bool) error {
	if present {
		return b.PutUint8(off, Present)
	}
	return b.PutUint8(off, Absent)
}

// GetPresence reads a nullable field's marker. Values other than Absent and
// Present fail with ErrInvalidPresence.
func (b *Buffer) GetPresence(off int) (bool, error) {
	v, err := b.GetUint8(off)
	if err != nil {
		return false, err
	}
	switch v {
	case Absent:
		return false, nil
	case Present:
		return true, nil
	}
	return false, InvalidPresence(off, v)
}
