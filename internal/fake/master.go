package fake

import (
	"errors"
	"net"
	"net/netip"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// EncodeMasterReply frames addrs as one master server reply datagram.
func EncodeMasterReply(addrs []netip.AddrPort) []byte {
	w := a2s.NewWriter(6 + 6*len(addrs))
	w.WriteInt32(a2s.SinglePacket)
	w.WriteUint8(a2s.M2AServerList)
	w.WriteUint8('\n')

	for _, addr := range addrs {
		ip := addr.Addr().Unmap().As4()
		w.WriteBytes(ip[:])
		w.WriteUint16BE(addr.Port())
	}

	return w.Bytes()
}

// Master is a fake master server listing a fixed set of addresses.
type Master struct {
	conn     *net.UDPConn
	servers  []netip.AddrPort
	wg       sync.WaitGroup
	mu       sync.Mutex
	filters  []string
	pageSize int
}

// ListenMaster binds addr and answers list queries with pages of at most
// pageSize addresses. The last page ends with the null address.
func ListenMaster(addr string, servers []netip.AddrPort, pageSize int) (*Master, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = len(servers) + 1
	}

	m := &Master{
		conn:     conn,
		servers:  servers,
		pageSize: pageSize,
	}

	m.wg.Add(1)
	go m.serve()

	return m, nil
}

// Addr returns the bound address.
func (m *Master) Addr() *net.UDPAddr {
	return m.conn.LocalAddr().(*net.UDPAddr)
}

// Close stops the master and waits for it to exit.
func (m *Master) Close() error {
	err := m.conn.Close()
	m.wg.Wait()
	return err
}

// Filters returns the filter string of every query answered so far.
func (m *Master) Filters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.filters)
}

func (m *Master) serve() {
	defer m.wg.Done()

	buf := make([]byte, a2s.DefaultBufferSize)
	for {
		n, from, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("Fake master read failed")
			}
			return
		}

		reply := m.respond(buf[:n])
		if reply == nil {
			continue
		}
		if _, err := m.conn.WriteToUDP(reply, from); err != nil {
			log.Debug().Err(err).Str("to", from.String()).Msg("Fake master write failed")
		}
	}
}

// respond answers one list query, nil for anything else.
func (m *Master) respond(req []byte) []byte {
	c := a2s.NewCursor(req)
	if kind, err := c.ReadUint8(); err != nil || kind != a2s.MasterQuery {
		return nil
	}
	if _, err := c.ReadUint8(); err != nil {
		return nil
	}

	seedStr, err := c.ReadCString()
	if err != nil {
		return nil
	}
	seed, err := netip.ParseAddrPort(seedStr)
	if err != nil {
		log.Debug().Str("seed", seedStr).Msg("Fake master ignored bad seed")
		return nil
	}

	filter, err := c.ReadCString()
	if err != nil {
		return nil
	}
	m.mu.Lock()
	m.filters = append(m.filters, filter)
	m.mu.Unlock()

	start := 0
	if seed != a2s.NullAddr {
		start = len(m.servers)
		if i := slices.Index(m.servers, seed); i >= 0 {
			start = i + 1
		}
	}

	end := min(start+m.pageSize, len(m.servers))
	page := slices.Clone(m.servers[start:end])
	if end == len(m.servers) {
		page = append(page, a2s.NullAddr)
	}

	return EncodeMasterReply(page)
}
