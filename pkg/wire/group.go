package wire

import (
	"iter"

	"github.com/pkg/errors"
)

// ErrGroupIndex reports an element index outside a repeating group.
var ErrGroupIndex = errors.New("wire: group index out of range")

// ElemFunc handles one group element at off and returns its encoded size.
// Encoders such as the generated EncodeTo methods have this shape, so do the
// measuring functions passed to NewVarGroupIterator.
type ElemFunc func(b *Buffer, off int) (int, error)

// GetLength reads a length or element count prefix at off.
func (b *Buffer) GetLength(off int, order ByteOrder) (uint32, error) {
	if order == LittleEndian {
		return b.GetUint32LE(off)
	}
	return b.GetUint32BE(off)
}

// GroupIterator gives random access to a repeating group of fixed-width
// elements: a count prefix followed by count elements of elemSize bytes.
// The whole extent is validated when the group is opened, so At only checks
// the index.
type GroupIterator struct {
	off      int
	count    int
	elemSize int
}

// NewGroupIterator opens the group whose count prefix is at off.
func NewGroupIterator(b *Buffer, off, elemSize int, order ByteOrder) (GroupIterator, error) {
	if elemSize < 1 {
		return GroupIterator{}, errors.Errorf("wire: group element size %d", elemSize)
	}
	c, err := b.GetLength(off, order)
	if err != nil {
		return GroupIterator{}, err
	}
	if err := b.CheckCount(off+LengthPrefixSize, c, elemSize); err != nil {
		return GroupIterator{}, err
	}
	return GroupIterator{off: off, count: int(c), elemSize: elemSize}, nil
}

// Count returns the number of elements.
func (g GroupIterator) Count() int { return g.count }

// ElemSize returns the width of one element.
func (g GroupIterator) ElemSize() int { return g.elemSize }

// Size returns the encoded size of the group including its prefix.
func (g GroupIterator) Size() int { return LengthPrefixSize + g.count*g.elemSize }

// At returns the offset of element i.
func (g GroupIterator) At(i int) (int, error) {
	if i < 0 || i >= g.count {
		return 0, errors.Wrapf(ErrGroupIndex, "index %d of %d", i, g.count)
	}
	return g.off + LengthPrefixSize + i*g.elemSize, nil
}

// All yields the index and offset of every element.
func (g GroupIterator) All() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		at := g.off + LengthPrefixSize
		for i := 0; i < g.count; i++ {
			if !yield(i, at) {
				return
			}
			at += g.elemSize
		}
	}
}

// VarGroupIterator walks a repeating group whose elements differ in size.
// Elements have no index table, so they are visited in order and each one is
// measured by the ElemFunc given to NewVarGroupIterator.
//
//	it, err := wire.NewVarGroupIterator(b, off, 4, wire.BigEndian, wire.LengthPrefixed(wire.BigEndian))
//	for it.Next() {
//		use(it.Offset())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type VarGroupIterator struct {
	b     *Buffer
	elem  ElemFunc
	count int
	i     int
	pos   int
	cur   int
	err   error
}

// NewVarGroupIterator opens the group whose count prefix is at off. minSize
// is the smallest encoding of one element and bounds the count against the
// bytes left.
func NewVarGroupIterator(b *Buffer, off, minSize int, order ByteOrder, elem ElemFunc) (*VarGroupIterator, error) {
	if elem == nil {
		return nil, errors.New("wire: nil element function")
	}
	c, err := b.GetLength(off, order)
	if err != nil {
		return nil, err
	}
	if err := b.CheckCount(off+LengthPrefixSize, c, minSize); err != nil {
		return nil, err
	}
	return &VarGroupIterator{b: b, elem: elem, count: int(c), pos: off + LengthPrefixSize, cur: -1}, nil
}

// Count returns the number of elements.
func (it *VarGroupIterator) Count() int { return it.count }

// Next advances to the next element. It returns false once every element has
// been visited or an element fails to measure.
func (it *VarGroupIterator) Next() bool {
	if it.err != nil || it.i >= it.count {
		return false
	}
	n, err := it.elem(it.b, it.pos)
	if err == nil && n < 0 {
		err = errors.Errorf("wire: element %d measured %d bytes", it.i, n)
	}
	if err != nil {
		it.err = errors.Wrapf(err, "group element %d", it.i)
		return false
	}
	it.cur = it.pos
	it.pos += n
	it.i++
	return true
}

// Index returns the index of the current element.
func (it *VarGroupIterator) Index() int { return it.i - 1 }

// Offset returns the offset of the current element.
func (it *VarGroupIterator) Offset() int { return it.cur }

// End returns the offset just past the last element visited. After a full
// walk it is the end of the group.
func (it *VarGroupIterator) End() int { return it.pos }

// Err returns the error that stopped the walk, if any.
func (it *VarGroupIterator) Err() error { return it.err }

// LengthPrefixed measures string and byte elements: a length prefix and that
// many bytes.
func LengthPrefixed(order ByteOrder) ElemFunc {
	return func(b *Buffer, off int) (int, error) {
		n, err := b.GetLength(off, order)
		if err != nil {
			return 0, err
		}
		if err := b.CheckLength(off+LengthPrefixSize, n); err != nil {
			return 0, err
		}
		return LengthPrefixSize + int(n), nil
	}
}

// GroupBuilder writes a repeating group in one pass. The count slot is
// reserved up front and patched by Finish once the elements are written.
type GroupBuilder struct {
	b     *Buffer
	off   int
	pos   int
	count int
	order ByteOrder
}

// NewGroupBuilder starts a group at off.
func NewGroupBuilder(b *Buffer, off int, order ByteOrder) (*GroupBuilder, error) {
	if err := b.Reserve(off, LengthPrefixSize); err != nil {
		return nil, err
	}
	return &GroupBuilder{b: b, off: off, pos: off + LengthPrefixSize, order: order}, nil
}

// Append writes one element at the current offset with elem.
func (g *GroupBuilder) Append(elem ElemFunc) error {
	n, err := elem(g.b, g.pos)
	if err != nil {
		return err
	}
	if n < 0 {
		return errors.Errorf("wire: element %d wrote %d bytes", g.count, n)
	}
	g.pos += n
	g.count++
	return nil
}

// AppendFixed writes the low width bytes of v as one element.
func (g *GroupBuilder) AppendFixed(width int, v uint64) error {
	if err := g.b.PutFixed(g.pos, width, v, g.order); err != nil {
		return err
	}
	g.pos += width
	g.count++
	return nil
}

// AppendBytes writes p as a length-prefixed element.
func (g *GroupBuilder) AppendBytes(p []byte) error {
	if err := g.b.PutLength(g.pos, len(p), g.order); err != nil {
		return err
	}
	if err := g.b.PutBytes(g.pos+LengthPrefixSize, p); err != nil {
		return err
	}
	g.pos += LengthPrefixSize + len(p)
	g.count++
	return nil
}

// Count returns the elements appended so far.
func (g *GroupBuilder) Count() int { return g.count }

// Offset returns where the next element goes.
func (g *GroupBuilder) Offset() int { return g.pos }

// Finish writes the count and returns the size of the group. The cursor of
// the buffer is left past the group.
func (g *GroupBuilder) Finish() (int, error) {
	if err := g.b.PutLength(g.off, g.count, g.order); err != nil {
		return 0, err
	}
	return g.pos - g.off, g.b.SetCursor(g.pos)
}
