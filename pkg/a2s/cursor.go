package a2s

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Cursor reads and writes little-endian values over a byte slice.
// Reads advance the position by the consumed width, writes append.
// The zero value is an empty cursor ready for writing.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of b.
// The cursor does not copy b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// NewWriter returns an empty cursor with capacity preallocated for writing.
func NewWriter(capacity int) *Cursor {
	return &Cursor{buf: make([]byte, 0, capacity)}
}

// Tell returns the current read position.
func (c *Cursor) Tell() int {
	return c.pos
}

// Seek moves the read position to an absolute offset.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return ErrSeekOutOfRange
	}

	c.pos = pos
	return nil
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.pos
}

// Bytes returns the whole underlying buffer, including already read bytes.
func (c *Cursor) Bytes() []byte {
	return c.buf
}

// Rest consumes and returns all unread bytes.
func (c *Cursor) Rest() []byte {
	rest := c.buf[c.pos:]
	c.pos = len(c.buf)
	return rest
}

func (c *Cursor) next(n int) ([]byte, error) {
	if c.Len() < n {
		return nil, ErrTruncatedData
	}

	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadUint8 reads one byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.next(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadInt16 reads a signed 16-bit integer.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint16 reads an unsigned 16-bit integer.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint16BE reads a big-endian unsigned 16-bit integer, as used for
// ports in master server replies.
func (c *Cursor) ReadUint16BE() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(b), nil
}

// ReadInt32 reads a signed 32-bit integer.
func (c *Cursor) ReadInt32() (int32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ReadFloat32 reads an IEEE 754 single precision float.
func (c *Cursor) ReadFloat32() (float32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.next(8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

// ReadCString reads a NUL terminated UTF-8 string and moves past the terminator.
// A missing terminator is reported as ErrTruncatedData and leaves the position unchanged.
func (c *Cursor) ReadCString() (string, error) {
	end := bytes.IndexByte(c.buf[c.pos:], 0)
	if end < 0 {
		return "", ErrTruncatedData
	}

	raw := c.buf[c.pos : c.pos+end]
	if !utf8.Valid(raw) {
		return "", ErrInvalidEncoding
	}

	c.pos += end + 1
	return string(raw), nil
}

// WriteUint8 appends one byte.
func (c *Cursor) WriteUint8(v uint8) {
	c.buf = append(c.buf, v)
}

// WriteInt16 appends a signed 16-bit integer.
func (c *Cursor) WriteInt16(v int16) {
	c.WriteUint16(uint16(v))
}

// WriteUint16 appends an unsigned 16-bit integer.
func (c *Cursor) WriteUint16(v uint16) {
	c.buf = binary.LittleEndian.AppendUint16(c.buf, v)
}

// WriteUint16BE appends a big-endian unsigned 16-bit integer.
func (c *Cursor) WriteUint16BE(v uint16) {
	c.buf = binary.BigEndian.AppendUint16(c.buf, v)
}

// WriteInt32 appends a signed 32-bit integer.
func (c *Cursor) WriteInt32(v int32) {
	c.buf = binary.LittleEndian.AppendUint32(c.buf, uint32(v))
}

// WriteFloat32 appends an IEEE 754 single precision float.
func (c *Cursor) WriteFloat32(v float32) {
	c.buf = binary.LittleEndian.AppendUint32(c.buf, math.Float32bits(v))
}

// WriteUint64 appends an unsigned 64-bit integer.
func (c *Cursor) WriteUint64(v uint64) {
	c.buf = binary.LittleEndian.AppendUint64(c.buf, v)
}

// WriteCString appends s followed by a NUL byte.
func (c *Cursor) WriteCString(s string) {
	c.buf = append(c.buf, s...)
	c.buf = append(c.buf, 0)
}

// WriteBytes appends a raw byte block.
func (c *Cursor) WriteBytes(p []byte) {
	c.buf = append(c.buf, p...)
}
