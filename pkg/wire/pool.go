package wire

import (
	"math/bits"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	minClassShift = 6  // 64 B
	maxClassShift = 24 // 16 MiB
)

// Pool recycles fixed-capacity buffers in power-of-two size classes. Requests
// larger than the biggest class are served by a plain allocation and are not
// recycled.
type Pool struct {
	classes [maxClassShift - minClassShift + 1]sync.Pool
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

func classOf(n int) (int, bool) {
	if n <= 1<<minClassShift {
		return 0, true
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxClassShift {
		return 0, false
	}
	return shift - minClassShift, true
}

// Acquire returns a lease on a zeroed buffer of exactly n bytes of capacity.
// The lease must be released once no codec operation uses it any more.
func (p *Pool) Acquire(n int) *Lease {
	if n < 0 {
		n = 0
	}
	class, pooled := classOf(n)
	var slab *[]byte
	if pooled {
		if v := p.classes[class].Get(); v != nil {
			slab = v.(*[]byte)
		} else {
			s := make([]byte, 1<<(class+minClassShift))
			slab = &s
		}
		clear((*slab)[:n])
	} else {
		s := make([]byte, n)
		slab = &s
	}
	return &Lease{
		pool:   p,
		slab:   slab,
		class:  class,
		pooled: pooled,
		buf:    Buffer{buf: (*slab)[:n]},
	}
}

// With acquires a buffer of n bytes, runs fn and releases the buffer on every
// exit path, including a panic in fn.
func (p *Pool) With(n int, fn func(*Buffer) error) error {
	l := p.Acquire(n)
	defer l.Release()
	return fn(&l.buf)
}

// Lease is a scoped hold on a pooled buffer.
type Lease struct {
	pool     *Pool
	slab     *[]byte
	class    int
	pooled   bool
	released bool
	buf      Buffer
}

// Buffer returns the leased buffer, or ErrReleased after Release.
func (l *Lease) Buffer() (*Buffer, error) {
	if l.released {
		return nil, ErrReleased
	}
	return &l.buf, nil
}

// Release returns the buffer to its pool. Calling it more than once is a
// no-op. Slices obtained through GetBytes must not be used afterwards.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	l.buf.detach()
	if l.pooled {
		l.pool.classes[l.class].Put(l.slab)
	}
	l.slab = nil
}

// Region is a buffer over memory mapped outside the Go heap. The caller owns
// its lifetime and must call Release; WithRegion does so automatically.
type Region struct {
	mem []byte
	buf Buffer
}

// Buffer returns the region's buffer, or ErrReleased after Release.
func (r *Region) Buffer() (*Buffer, error) {
	if r.mem == nil {
		return nil, ErrReleased
	}
	return &r.buf, nil
}

// Release unmaps the region. Calling it more than once is a no-op.
func (r *Region) Release() error {
	if r.mem == nil {
		return nil
	}
	r.buf.detach()
	mem := r.mem
	r.mem = nil
	return unmap(mem)
}

// MapRegion maps n bytes of zeroed memory.
func MapRegion(n int) (*Region, error) {
	if n <= 0 {
		return nil, errors.Errorf("wire: invalid region size %d", n)
	}
	mem, err := mapAnon(n)
	if err != nil {
		return nil, err
	}
	return &Region{mem: mem, buf: Buffer{buf: mem}}, nil
}

// WithRegion maps n bytes, runs fn and unmaps the region on every exit path.
// A release failure is combined with the error returned by fn.
func WithRegion(n int, fn func(*Buffer) error) (err error) {
	r, err := MapRegion(n)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, r.Release())
	}()
	return fn(&r.buf)
}
