// Package ring is a single-producer, single-consumer byte ring used to hand
// telemetry from the control loop to a slower writer without blocking the
// producer.
package ring

import "sync/atomic"

// Ring is a power-of-two byte ring. One goroutine writes, one reads.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	dropped atomic.Uint32

	readable chan struct{} // empty -> non-empty edge
}

// New allocates a ring of size bytes. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("ring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Space is the number of bytes that can be written now.
func (r *Ring) Space() int {
	return int(r.size() - (r.wr.Load() - r.rd.Load()))
}

// Available is the number of bytes that can be read now.
func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Dropped counts records rejected by WriteRecord.
func (r *Ring) Dropped() uint32 { return r.dropped.Load() }

// WriteFrom copies as much of src as fits and returns the count.
func (r *Ring) WriteFrom(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	rd, wr := r.rd.Load(), r.wr.Load()
	before := wr - rd
	n := int(r.size() - before)
	if n <= 0 {
		return 0
	}
	if len(src) < n {
		n = len(src)
	}
	r.put(wr, src[:n])
	r.wr.Store(wr + uint32(n)) // release
	if before == 0 {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
	return n
}

// WriteRecord writes all of p or nothing. A record that does not fit is
// dropped and counted, so a reader never sees half a line.
func (r *Ring) WriteRecord(p []byte) bool {
	if len(p) > r.Space() {
		r.dropped.Add(1)
		return false
	}
	r.WriteFrom(p)
	return true
}

func (r *Ring) put(wr uint32, src []byte) {
	idx := wr & r.mask
	first := copy(r.buf[idx:], src)
	if first < len(src) {
		copy(r.buf, src[first:])
	}
}

// ReadInto moves up to len(dst) bytes out of the ring.
func (r *Ring) ReadInto(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	rd, wr := r.rd.Load(), r.wr.Load() // acquire
	n := int(wr - rd)
	if n <= 0 {
		return 0
	}
	if len(dst) < n {
		n = len(dst)
	}
	idx := rd & r.mask
	first := copy(dst[:n], r.buf[idx:])
	if first < n {
		copy(dst[first:n], r.buf)
	}
	r.rd.Store(rd + uint32(n)) // release
	return n
}

// Readable signals the empty to non-empty transition.
func (r *Ring) Readable() <-chan struct{} { return r.readable }
