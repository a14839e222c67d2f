package script

import "errors"

// ErrBufferFull is returned by BoundedBuffer when a write would exceed its capacity.
var ErrBufferFull = errors.New("bounded buffer full")

// BoundedBuffer is a growable byte buffer with a hard capacity.
// A write that does not fit is rejected whole and leaves the buffer unchanged.
type BoundedBuffer struct {
	buf []byte
	max int
}

// NewBoundedBuffer returns an empty buffer that holds at most capacity bytes.
func NewBoundedBuffer(capacity int) *BoundedBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &BoundedBuffer{max: capacity}
}

// Len returns the number of bytes written.
func (b *BoundedBuffer) Len() int { return len(b.buf) }

// Cap returns the buffer capacity.
func (b *BoundedBuffer) Cap() int { return b.max }

// Remaining returns how many more bytes fit.
func (b *BoundedBuffer) Remaining() int { return b.max - len(b.buf) }

// Write appends p if all of it fits.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	if len(p) > b.Remaining() {
		return 0, ErrBufferFull
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends c if it fits.
func (b *BoundedBuffer) WriteByte(c byte) error {
	if b.Remaining() < 1 {
		return ErrBufferFull
	}
	b.buf = append(b.buf, c)
	return nil
}

// String returns a copy of the contents.
func (b *BoundedBuffer) String() string { return string(b.buf) }
