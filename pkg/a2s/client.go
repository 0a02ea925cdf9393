// Package a2s implements the client side of the A2S server query protocol
// spoken by GoldSource and Source engine game servers.
//
// Each Client query sends one request datagram, collects the response
// (reassembling split packets) and decodes it. Compressed split responses
// are not supported.
package a2s

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every send and every receive of a query.
const DefaultTimeout = 3 * time.Second

// Client queries one game server over a transport it owns.
// A Client is not safe for concurrent use.
type Client struct {
	transport Transport

	// Logger traces datagrams at trace level. Disabled by default.
	Logger zerolog.Logger

	// Timeout applied to each send and receive.
	Timeout time.Duration

	// BufferSize is the largest datagram accepted.
	BufferSize uint16
}

// New dials ip:port over UDP and returns a client owning the socket.
func New(ip string, port int) (*Client, error) {
	t, err := DialUDP(ip, port)
	if err != nil {
		return nil, err
	}

	return NewWithTransport(t), nil
}

// NewWithTransport returns a client that owns t and closes it on Close.
func NewWithTransport(t Transport) *Client {
	return &Client{
		transport:  t,
		Logger:     zerolog.Nop(),
		Timeout:    DefaultTimeout,
		BufferSize: DefaultBufferSize,
	}
}

// Close releases the transport. Further queries return ErrClosed.
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}

	err := c.transport.Close()
	c.transport = nil
	return err
}

// GetInfo sends A2S_INFO and decodes either info layout.
func (c *Client) GetInfo() (ServerInfo, error) {
	body, err := c.exchange(BuildInfoRequest())
	if err != nil {
		return nil, err
	}

	if len(body) > 0 && body[0] != S2AInfoCurrent && body[0] != S2AInfoLegacy {
		c.Logger.Trace().
			Hex("type", body[:1]).
			Msg("Unknown info type, decoding current layout")
	}

	return DecodeInfo(body)
}

// GetChallenge requests a fresh challenge token for player and rules queries.
func (c *Client) GetChallenge() (ChallengeToken, error) {
	body, err := c.exchange(BuildChallengeRequest())
	if err != nil {
		return 0, err
	}

	return DecodeChallenge(body)
}

// GetPlayers sends A2S_PLAYER with token and decodes the player list.
func (c *Client) GetPlayers(token ChallengeToken) (*PlayerList, error) {
	body, err := c.exchange(BuildPlayerRequest(token))
	if err != nil {
		return nil, err
	}

	return DecodePlayers(body)
}

// GetRules sends A2S_RULES with token and decodes the rule list.
func (c *Client) GetRules(token ChallengeToken) (*RuleList, error) {
	body, err := c.exchange(BuildRulesRequest(token))
	if err != nil {
		return nil, err
	}

	return DecodeRules(body)
}

// exchange sends one request and returns the reassembled response body.
func (c *Client) exchange(request []byte) ([]byte, error) {
	if c.transport == nil {
		return nil, ErrClosed
	}

	c.Logger.Trace().
		Hex("request", request).
		Msg("Sending request")

	if err := c.transport.Send(request, c.Timeout); err != nil {
		return nil, err
	}

	body, err := Reassemble(tracingReceiver{c}, c.bufferSize(), c.Timeout)
	if err != nil {
		c.Logger.Trace().Err(err).Msg("Response failed")
		return nil, err
	}

	return body, nil
}

func (c *Client) bufferSize() int {
	if c.BufferSize == 0 {
		return DefaultBufferSize
	}

	return int(c.BufferSize)
}

// tracingReceiver logs every datagram the client receives.
type tracingReceiver struct {
	c *Client
}

func (r tracingReceiver) Receive(maxSize int, timeout time.Duration) ([]byte, error) {
	datagram, err := r.c.transport.Receive(maxSize, timeout)
	if err != nil {
		return nil, err
	}

	r.c.Logger.Trace().
		Int("size", len(datagram)).
		Msg("Datagram received")

	return datagram, nil
}
