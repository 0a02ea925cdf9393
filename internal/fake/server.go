package fake

import (
	"errors"
	"net"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// State is what the responder reports.
type State struct {
	Info    a2s.ServerInfo
	Rules   map[string]string
	Players []a2s.Player
}

// Options tune how the responder frames its answers.
type Options struct {
	// Secret salts the per-address challenge token.
	Secret string

	// FragmentSize splits bodies longer than this into fragments. Zero sends
	// everything in a single datagram.
	FragmentSize int

	// Reverse sends fragments in descending index order.
	Reverse bool

	// RulesFiller prefixes rules bodies with the 0xFFFFFFFF marker.
	RulesFiller bool

	// NoChallenge answers player and rules queries without checking the token.
	NoChallenge bool
}

// Server is a fake A2S responder on a UDP socket.
type Server struct {
	conn     *net.UDPConn
	state    State
	opts     Options
	wg       sync.WaitGroup
	packetID int32
}

// Listen binds addr and serves queries in the background until Close.
func Listen(addr string, state State, opts Options) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		conn:     conn,
		state:    state,
		opts:     opts,
		packetID: 0x0100,
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Close stops the responder and waits for it to exit.
func (s *Server) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

// Challenge returns the token the responder expects from addr.
func (s *Server) Challenge(addr net.Addr) a2s.ChallengeToken {
	token := a2s.ChallengeToken(int32(xxhash.Sum64String(s.opts.Secret + addr.String())))
	if token == a2s.NoChallenge {
		token = 0
	}

	return token
}

func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, a2s.DefaultBufferSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("Fake responder read failed")
			}
			return
		}

		datagrams := s.respond(buf[:n], from)
		for _, d := range datagrams {
			if _, err := s.conn.WriteToUDP(d, from); err != nil {
				log.Debug().Err(err).Str("to", from.String()).Msg("Fake responder write failed")
			}
		}
	}
}

// respond builds the datagrams answering one request, nil for requests it ignores.
func (s *Server) respond(req []byte, from *net.UDPAddr) [][]byte {
	c := a2s.NewCursor(req)
	header, err := c.ReadInt32()
	if err != nil || header != a2s.SinglePacket {
		return nil
	}

	kind, err := c.ReadUint8()
	if err != nil {
		return nil
	}

	var body []byte
	switch kind {
	case a2s.A2SInfo:
		if s.state.Info == nil {
			return nil
		}
		body = EncodeInfo(s.state.Info)

	case a2s.A2SPlayer, a2s.A2SRules:
		token, err := c.ReadInt32()
		if err != nil {
			return nil
		}

		expected := s.Challenge(from)
		if !s.opts.NoChallenge && a2s.ChallengeToken(token) != expected {
			body = EncodeChallenge(expected)
			break
		}

		if kind == a2s.A2SPlayer {
			body = EncodePlayers(s.state.Players)
		} else {
			body = EncodeRules(s.state.Rules, s.opts.RulesFiller)
		}

	default:
		log.Debug().Uint8("type", kind).Msg("Fake responder ignored unknown request")
		return nil
	}

	return s.frame(body)
}

func (s *Server) frame(body []byte) [][]byte {
	if s.opts.FragmentSize <= 0 || len(body) <= s.opts.FragmentSize {
		return [][]byte{Single(body)}
	}

	s.packetID++
	datagrams, err := Split(s.packetID, body, s.opts.FragmentSize)
	if err != nil {
		log.Error().Err(err).Msg("Fake responder cannot split response")
		return nil
	}

	if s.opts.Reverse {
		for i, j := 0, len(datagrams)-1; i < j; i, j = i+1, j-1 {
			datagrams[i], datagrams[j] = datagrams[j], datagrams[i]
		}
	}

	return datagrams
}
