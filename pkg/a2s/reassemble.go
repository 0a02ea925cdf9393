package a2s

import (
	"bytes"
	"fmt"
	"time"
)

// fragment is one parsed split packet.
type fragment struct {
	id      int32
	index   int
	total   int
	payload []byte
}

// parseFragment reads the split header that follows the -2 marker.
// The descriptor byte holds the fragment index in the high nibble and
// the total count in the low nibble.
func parseFragment(c *Cursor) (fragment, error) {
	id, err := c.ReadInt32()
	if err != nil {
		return fragment{}, err
	}

	num, err := c.ReadUint8()
	if err != nil {
		return fragment{}, err
	}

	f := fragment{
		id:      id,
		index:   int(num >> 4),
		total:   int(num & 0x0F),
		payload: c.Rest(),
	}
	if f.total == 0 || f.index >= f.total {
		return fragment{}, fmt.Errorf("%w: index %d of %d", ErrInvalidFragment, f.index, f.total)
	}

	return f, nil
}

// fragmentTable collects the fragments of one logical response.
type fragmentTable struct {
	parts  [][]byte
	filled []bool
	id     int32
	count  int
}

func newFragmentTable(first fragment) *fragmentTable {
	t := &fragmentTable{
		id:     first.id,
		parts:  make([][]byte, first.total),
		filled: make([]bool, first.total),
	}
	t.put(first)

	return t
}

func (t *fragmentTable) put(f fragment) {
	if !t.filled[f.index] {
		t.filled[f.index] = true
		t.count++
	}
	t.parts[f.index] = f.payload
}

func (t *fragmentTable) add(f fragment) error {
	if f.id != t.id {
		return fmt.Errorf("%w: packet id 0x%08X, collecting 0x%08X", ErrFragmentMismatch, uint32(f.id), uint32(t.id))
	}
	if f.total != len(t.parts) {
		return fmt.Errorf("%w: total %d, collecting %d", ErrFragmentMismatch, f.total, len(t.parts))
	}

	t.put(f)
	return nil
}

func (t *fragmentTable) complete() bool {
	return t.count == len(t.parts)
}

// join concatenates the payloads in index order.
func (t *fragmentTable) join() []byte {
	return bytes.Join(t.parts, nil)
}

// Reassemble receives datagrams from r until one logical response is complete
// and returns its body without the packet headers.
// A receive failure, including a timeout while fragments are missing, is
// returned unchanged and the partial state is discarded.
func Reassemble(r Receiver, maxSize int, timeout time.Duration) ([]byte, error) {
	datagram, err := r.Receive(maxSize, timeout)
	if err != nil {
		return nil, err
	}

	c := NewCursor(datagram)
	header, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}

	switch header {
	case SinglePacket:
		return c.Rest(), nil
	case SplitPacket:
	default:
		return nil, &PacketHeaderError{Actual: header}
	}

	first, err := parseFragment(c)
	if err != nil {
		return nil, err
	}

	table := newFragmentTable(first)
	for !table.complete() {
		datagram, err := r.Receive(maxSize, timeout)
		if err != nil {
			return nil, err
		}

		c := NewCursor(datagram)
		header, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}

		switch header {
		case SplitPacket:
		case SinglePacket:
			return nil, ErrUnexpectedSinglePacket
		default:
			return nil, &PacketHeaderError{Actual: header}
		}

		f, err := parseFragment(c)
		if err != nil {
			return nil, err
		}
		if err := table.add(f); err != nil {
			return nil, err
		}
	}

	return table.join(), nil
}
