package a2s

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Receiver yields raw datagrams. Receive blocks for at most timeout and
// returns an error matching ErrTimeout when the deadline expires.
type Receiver interface {
	Receive(maxSize int, timeout time.Duration) ([]byte, error)
}

// Transport is a connected datagram endpoint owned by one Client.
type Transport interface {
	Receiver
	Send(p []byte, timeout time.Duration) error
	Close() error
}

// UDPTransport is a Transport over a connected UDP socket.
type UDPTransport struct {
	conn *net.UDPConn
}

// DialUDP resolves ip:port and connects a UDP socket to it.
func DialUDP(ip string, port int) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}

	return &UDPTransport{conn: conn}, nil
}

// RemoteAddr returns the address of the queried server.
func (t *UDPTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// Send writes one datagram.
func (t *UDPTransport) Send(p []byte, timeout time.Duration) error {
	if err := t.conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return err
	}

	if _, err := t.conn.Write(p); err != nil {
		return wrapNetError("write", err)
	}

	return nil
}

// Receive reads one datagram of at most maxSize bytes.
func (t *UDPTransport) Receive(maxSize int, timeout time.Duration) ([]byte, error) {
	if err := t.conn.SetReadDeadline(deadline(timeout)); err != nil {
		return nil, err
	}

	buf := make([]byte, maxSize)
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, wrapNetError("read", err)
	}

	return buf[:n], nil
}

// Close releases the socket. A blocked Receive returns immediately.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}

	return time.Now().Add(timeout)
}

func wrapNetError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%s: %w: %w", op, ErrClosed, err)
	}

	return fmt.Errorf("%s error: %w", op, err)
}
