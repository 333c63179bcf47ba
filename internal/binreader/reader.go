package binreader

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxStringLen caps length-prefixed strings; anything larger is a corrupt prefix.
const maxStringLen = 1 << 20

// Reader is a little-endian cursor over a fixed window of an io.ReaderAt.
// Positions are relative to the window start. A failed read never moves
// the cursor.
type Reader struct {
	src  io.ReaderAt
	base int64
	size int64
	off  int64
}

// New creates a Reader over src[base : base+size].
func New(src io.ReaderAt, base, size int64) *Reader {
	if size < 0 {
		size = 0
	}
	return &Reader{src: src, base: base, size: size}
}

// Clip returns a Reader over src[base : base+size] shrunk to fit a source of
// length total. Declared spans running past the end of the file become a
// shorter window instead of failing on first access.
func Clip(src io.ReaderAt, total, base, size int64) *Reader {
	switch {
	case base >= total || base < 0:
		size = 0
	case size > total-base:
		size = total - base
	}
	return New(src, base, size)
}

// Section derives a child Reader over [off, off+size) of this window.
// The child is clipped to the parent's bounds.
func (r *Reader) Section(off, size int64) *Reader {
	if off < 0 || off > r.size {
		return New(r.src, r.base+r.size, 0)
	}
	if size < 0 || size > r.size-off {
		size = r.size - off
	}
	return New(r.src, r.base+off, size)
}

// Pos returns the current offset within the window.
func (r *Reader) Pos() int64 { return r.off }

// Len returns the window size.
func (r *Reader) Len() int64 { return r.size }

// Base returns the absolute offset of the window start.
func (r *Reader) Base() int64 { return r.base }

// Remaining returns the number of unread bytes in the window.
func (r *Reader) Remaining() int64 { return r.size - r.off }

// Seek moves the cursor to pos within the window.
func (r *Reader) Seek(pos int64) error {
	if pos < 0 || pos > r.size {
		return errors.Errorf("binreader: seek %d outside window of %d bytes", pos, r.size)
	}
	r.off = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int64) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

func (r *Reader) need(n int64) error {
	if n < 0 {
		return errors.Errorf("binreader: negative length %d at 0x%x", n, r.base+r.off)
	}
	if n > r.Remaining() {
		return errors.Wrapf(io.ErrUnexpectedEOF, "binreader: need %d bytes at 0x%x, %d left", n, r.base+r.off, r.Remaining())
	}
	return nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int64) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := r.src.ReadAt(buf, r.base+r.off)
	if int64(read) < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "binreader: short read of %d bytes at 0x%x", n, r.base+r.off)
	}
	r.off += n
	return buf, nil
}

func (r *Reader) fixed(buf []byte) error {
	n := int64(len(buf))
	if err := r.need(n); err != nil {
		return err
	}
	read, err := r.src.ReadAt(buf, r.base+r.off)
	if read < len(buf) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(err, "binreader: short read at 0x%x", r.base+r.off)
	}
	r.off += n
	return nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	var b [1]byte
	if err := r.fixed(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads one byte; any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	return b != 0, err
}

func (r *Reader) ReadU16() (uint16, error) {
	var b [2]byte
	if err := r.fixed(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	var b [4]byte
	if err := r.fixed(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadI64() (int64, error) {
	var b [8]byte
	if err := r.fixed(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// Read7BitInt reads a .NET style variable length integer (7 bits per byte,
// high bit continues, at most 5 bytes).
func (r *Reader) Read7BitInt() (int32, error) {
	start := r.off
	var v uint32
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := r.ReadU8()
		if err != nil {
			r.off = start
			return 0, err
		}
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return int32(v), nil
		}
	}
	r.off = start
	return 0, errors.Errorf("binreader: bad 7-bit length at 0x%x", r.base+start)
}

// ReadString reads a 7-bit length prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	start := r.off
	n, err := r.Read7BitInt()
	if err != nil {
		return "", err
	}
	if n < 0 || n > maxStringLen {
		r.off = start
		return "", errors.Errorf("binreader: bad string length %d at 0x%x", n, r.base+start)
	}
	b, err := r.ReadBytes(int64(n))
	if err != nil {
		r.off = start
		return "", err
	}
	return string(b), nil
}
