package a2s

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedData is returned when a response ends before a field could be read.
	ErrTruncatedData = errors.New("truncated data")

	// ErrInvalidEncoding is returned when a string field is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid string encoding")

	// ErrUnexpectedHeader is matched by HeaderError and PacketHeaderError.
	ErrUnexpectedHeader = errors.New("unexpected header")

	// ErrFragmentMismatch is returned when a fragment belongs to a different response
	// than the one being collected.
	ErrFragmentMismatch = errors.New("fragment mismatch")

	// ErrUnexpectedSinglePacket is returned when an unfragmented datagram arrives
	// while fragments of a response are still missing.
	ErrUnexpectedSinglePacket = errors.New("unexpected single packet during reassembly")

	// ErrInvalidFragment is returned for a fragment descriptor with zero total count
	// or an index outside of it.
	ErrInvalidFragment = errors.New("invalid fragment descriptor")

	// ErrTimeout is returned by transports when a send or receive deadline expires.
	ErrTimeout = errors.New("request timeout")

	// ErrClosed is returned by a client whose transport was released.
	ErrClosed = errors.New("client closed")

	// ErrSeekOutOfRange is returned by Cursor.Seek for positions outside the buffer.
	ErrSeekOutOfRange = errors.New("seek out of range")
)

// HeaderError reports a response type byte that does not match the query.
type HeaderError struct {
	Expected byte
	Actual   byte
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("unexpected response type: 0x%02X, expected: 0x%02X", e.Actual, e.Expected)
}

// Is makes HeaderError match ErrUnexpectedHeader.
func (e *HeaderError) Is(target error) bool {
	return target == ErrUnexpectedHeader
}

// PacketHeaderError reports a datagram whose leading 4 bytes are neither the
// single packet nor the split packet marker.
type PacketHeaderError struct {
	Actual int32
}

func (e *PacketHeaderError) Error() string {
	return fmt.Sprintf("unknown packet header: 0x%08X", uint32(e.Actual))
}

// Is makes PacketHeaderError match ErrUnexpectedHeader.
func (e *PacketHeaderError) Is(target error) bool {
	return target == ErrUnexpectedHeader
}
