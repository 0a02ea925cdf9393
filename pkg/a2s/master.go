package a2s

import (
	"bytes"
	"fmt"
	"iter"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Master server message types.
const (
	MasterQuery   byte = 0x31
	M2AServerList byte = 0x66
)

// MasterBufferSize is the largest master server reply accepted.
const MasterBufferSize = 4096

// masterReplyHeader starts every master server reply: the single packet
// marker, the reply type and a newline.
var masterReplyHeader = []byte{0xFF, 0xFF, 0xFF, 0xFF, M2AServerList, '\n'}

// NullAddr seeds the first page of a listing and terminates the last one.
var NullAddr = netip.AddrPortFrom(netip.IPv4Unspecified(), 0)

// Region selects the part of the world a master server lists.
type Region byte

// Master server regions.
const (
	RegionUSEast       Region = 0x00
	RegionUSWest       Region = 0x01
	RegionSouthAmerica Region = 0x02
	RegionEurope       Region = 0x03
	RegionAsia         Region = 0x04
	RegionAustralia    Region = 0x05
	RegionMiddleEast   Region = 0x06
	RegionAfrica       Region = 0x07
	RegionAll          Region = 0xFF
)

var regionNames = map[Region]string{
	RegionUSEast:       "us-east",
	RegionUSWest:       "us-west",
	RegionSouthAmerica: "south-america",
	RegionEurope:       "europe",
	RegionAsia:         "asia",
	RegionAustralia:    "australia",
	RegionMiddleEast:   "middle-east",
	RegionAfrica:       "africa",
	RegionAll:          "all",
}

func (r Region) String() string {
	if name, ok := regionNames[r]; ok {
		return name
	}

	return "region-0x" + strconv.FormatUint(uint64(r), 16)
}

// ParseRegion resolves a region name such as "europe" or "all".
func ParseRegion(name string) (Region, error) {
	for region, n := range regionNames {
		if strings.EqualFold(n, name) {
			return region, nil
		}
	}

	return 0, fmt.Errorf("unknown region %q", name)
}

// Filter is one \key\value condition of a master server query.
// Filters are concatenated in order to form the filter string.
type Filter string

func kv(key, value string) Filter {
	return Filter(`\` + key + `\` + value)
}

// Filters joins conditions into a filter string.
func Filters(filters ...Filter) string {
	var b strings.Builder
	for _, f := range filters {
		b.WriteString(string(f))
	}

	return b.String()
}

// Nor matches servers satisfying none of filters.
func Nor(filters ...Filter) Filter {
	return kv("nor", strconv.Itoa(len(filters))) + Filter(Filters(filters...))
}

// Nand matches servers not satisfying all of filters.
func Nand(filters ...Filter) Filter {
	return kv("nand", strconv.Itoa(len(filters))) + Filter(Filters(filters...))
}

// Dedicated matches dedicated servers.
func Dedicated() Filter { return kv("dedicated", "1") }

// Secure matches servers using anti-cheat.
func Secure() Filter { return kv("secure", "1") }

// GameDir matches servers running the mod folder dir.
func GameDir(dir string) Filter { return kv("gamedir", dir) }

// Map matches servers running the map.
func Map(name string) Filter { return kv("map", name) }

// Linux matches servers running on Linux.
func Linux() Filter { return kv("linux", "1") }

// NoPassword matches servers without a password.
func NoPassword() Filter { return kv("password", "0") }

// NotEmpty matches servers with at least one player.
func NotEmpty() Filter { return kv("empty", "1") }

// NotFull matches servers with a free slot.
func NotFull() Filter { return kv("full", "1") }

// Proxy matches spectator proxies.
func Proxy() Filter { return kv("proxy", "1") }

// AppID matches servers of the application id.
func AppID(id uint32) Filter { return kv("appid", strconv.FormatUint(uint64(id), 10)) }

// NotAppID excludes servers of the application id.
func NotAppID(id uint32) Filter { return kv("napp", strconv.FormatUint(uint64(id), 10)) }

// NoPlayers matches empty servers.
func NoPlayers() Filter { return kv("noplayers", "1") }

// Whitelisted matches whitelisted servers.
func Whitelisted() Filter { return kv("white", "1") }

// GameType matches servers having all of the sv_tags.
func GameType(tags ...string) Filter { return kv("gametype", strings.Join(tags, ",")) }

// GameData matches servers having all of the hidden tags.
func GameData(tags ...string) Filter { return kv("gamedata", strings.Join(tags, ",")) }

// GameDataOr matches servers having any of the hidden tags.
func GameDataOr(tags ...string) Filter { return kv("gamedataor", strings.Join(tags, ",")) }

// NameMatch matches server names against a wildcard pattern.
func NameMatch(pattern string) Filter { return kv("name_match", pattern) }

// VersionMatch matches versions against a wildcard pattern.
func VersionMatch(pattern string) Filter { return kv("version_match", pattern) }

// CollapseAddrHash returns one server per IP address.
func CollapseAddrHash() Filter { return kv("collapse_addr_hash", "1") }

// GameAddr matches servers on the address, with or without a port.
func GameAddr(addr string) Filter { return kv("gameaddr", addr) }

// BuildMasterRequest returns a list query for the page that follows seed.
func BuildMasterRequest(region Region, seed netip.AddrPort, filter string) []byte {
	seedStr := seed.String()

	w := NewWriter(4 + len(seedStr) + len(filter))
	w.WriteUint8(MasterQuery)
	w.WriteUint8(byte(region))
	w.WriteCString(seedStr)
	w.WriteCString(filter)
	return w.Bytes()
}

// DecodeMasterReply decodes one reply datagram into its addresses.
// Each address is 4 IPv4 octets followed by a big-endian port.
func DecodeMasterReply(datagram []byte) ([]netip.AddrPort, error) {
	c := NewCursor(datagram)

	if c.Len() < len(masterReplyHeader) {
		return nil, fmt.Errorf("master reply: %w", ErrTruncatedData)
	}
	header := c.buf[:len(masterReplyHeader)]
	if !bytes.Equal(header, masterReplyHeader) {
		return nil, fmt.Errorf("master reply % X: %w", header, ErrUnexpectedHeader)
	}
	_ = c.Seek(len(masterReplyHeader))

	if c.Len()%6 != 0 {
		return nil, fmt.Errorf("master reply of %d bytes: %w", len(datagram), ErrTruncatedData)
	}

	addrs := make([]netip.AddrPort, 0, c.Len()/6)
	for c.Len() > 0 {
		ip, _ := c.next(4)
		port, _ := c.ReadUint16BE()
		addrs = append(addrs, netip.AddrPortFrom(netip.AddrFrom4([4]byte(ip)), port))
	}

	return addrs, nil
}

// MasterClient lists game servers from a master server.
// A MasterClient is not safe for concurrent use.
type MasterClient struct {
	transport Transport

	// Logger traces requests and pages at trace level. Disabled by default.
	Logger zerolog.Logger

	// Timeout applied to each send and receive.
	Timeout time.Duration
}

// NewMaster dials the master server host:port over UDP.
func NewMaster(host string, port int) (*MasterClient, error) {
	t, err := DialUDP(host, port)
	if err != nil {
		return nil, err
	}

	return NewMasterWithTransport(t), nil
}

// NewMasterWithTransport returns a master client that owns t.
func NewMasterWithTransport(t Transport) *MasterClient {
	return &MasterClient{
		transport: t,
		Logger:    zerolog.Nop(),
		Timeout:   DefaultTimeout,
	}
}

// Close releases the transport. Further queries return ErrClosed.
func (m *MasterClient) Close() error {
	if m.transport == nil {
		return nil
	}

	err := m.transport.Close()
	m.transport = nil
	return err
}

// Page requests the addresses following seed. The last page of a
// listing ends with NullAddr.
func (m *MasterClient) Page(region Region, seed netip.AddrPort, filter string) ([]netip.AddrPort, error) {
	if m.transport == nil {
		return nil, ErrClosed
	}

	m.Logger.Trace().
		Stringer("region", region).
		Stringer("seed", seed).
		Str("filter", filter).
		Msg("Requesting master page")

	if err := m.transport.Send(BuildMasterRequest(region, seed, filter), m.Timeout); err != nil {
		return nil, err
	}

	datagram, err := m.transport.Receive(MasterBufferSize, m.Timeout)
	if err != nil {
		return nil, err
	}

	return DecodeMasterReply(datagram)
}

// Servers iterates over every listed address, requesting pages as needed.
// It stops after NullAddr, on an empty page, on a page that does not advance
// the seed, or after yielding the first error.
func (m *MasterClient) Servers(region Region, filter string) iter.Seq2[netip.AddrPort, error] {
	return func(yield func(netip.AddrPort, error) bool) {
		seed := NullAddr
		for {
			page, err := m.Page(region, seed, filter)
			if err != nil {
				yield(netip.AddrPort{}, err)
				return
			}
			if len(page) == 0 {
				return
			}

			for _, addr := range page {
				if addr == NullAddr {
					return
				}
				if !yield(addr, nil) {
					return
				}
			}

			last := page[len(page)-1]
			if last == seed {
				return
			}
			seed = last
		}
	}
}
