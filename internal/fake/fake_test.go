package fake

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
	"go.uber.org/goleak"
)

// sliceReceiver replays datagrams in order.
type sliceReceiver struct {
	datagrams [][]byte
}

func (r *sliceReceiver) Receive(int, time.Duration) ([]byte, error) {
	if len(r.datagrams) == 0 {
		return nil, a2s.ErrTimeout
	}

	d := r.datagrams[0]
	r.datagrams = r.datagrams[1:]
	return d, nil
}

func TestSplitReassembles(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = byte(i)
	}

	datagrams, err := Split(7, body, 300)
	require.NoError(t, err)
	require.Len(t, datagrams, 4)
	assert.Equal(t, byte(0x34), datagrams[3][8], "index 3 of 4")

	got, err := a2s.Reassemble(&sliceReceiver{datagrams: datagrams}, 1400, time.Second)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestSplitLimits(t *testing.T) {
	_, err := Split(1, make([]byte, 16), 1)
	assert.Error(t, err)

	_, err = Split(1, []byte{1}, 0)
	assert.Error(t, err)

	datagrams, err := Split(1, nil, 10)
	require.NoError(t, err)
	assert.Len(t, datagrams, 1)
}

func TestEncodeInfoDerivesEDF(t *testing.T) {
	port := uint16(27016)
	id := uint64(90071992547409920)
	info := &a2s.CurrentInfo{
		Name:      "x",
		GamePort:  &port,
		ServerID:  &id,
		Spectator: &a2s.Spectator{Name: "tv", Port: 27020},
	}

	decoded, err := a2s.DecodeInfo(EncodeInfo(info))
	require.NoError(t, err)

	current, ok := decoded.(*a2s.CurrentInfo)
	require.True(t, ok)
	assert.Equal(t, a2s.EDFGamePort|a2s.EDFServerID|a2s.EDFSpectator, current.EDF)
	assert.Equal(t, port, *current.GamePort)
	assert.Equal(t, id, *current.ServerID)
	assert.Equal(t, "tv", current.Spectator.Name)
	assert.Nil(t, current.Keywords)
	assert.Nil(t, current.GameID)
}

func TestEncodeRulesFiller(t *testing.T) {
	rules := map[string]string{"b": "2", "a": "1"}

	plain, err := a2s.DecodeRules(EncodeRules(rules, false))
	require.NoError(t, err)
	filled, err := a2s.DecodeRules(EncodeRules(rules, true))
	require.NoError(t, err)

	assert.Equal(t, plain, filled)
	assert.Equal(t, []string{"a", "b"}, filled.Names())
}

func TestChallengeStablePerAddress(t *testing.T) {
	s := &Server{opts: Options{Secret: "k"}}
	a := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1000}
	b := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1001}

	assert.Equal(t, s.Challenge(a), s.Challenge(a))
	assert.NotEqual(t, s.Challenge(a), s.Challenge(b))
	assert.NotEqual(t, a2s.NoChallenge, s.Challenge(a))
}

func TestServerIgnoresUnknownRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, err := Listen("127.0.0.1:0", GenerateState(1, false), Options{})
	require.NoError(t, err)

	s := &Server{state: srv.state}
	assert.Nil(t, s.respond([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'Z'}, srv.Addr()))
	assert.Nil(t, s.respond([]byte{0xFE, 0xFF, 0xFF, 0xFF, 'T'}, srv.Addr()))
	assert.Nil(t, s.respond([]byte{0xFF}, srv.Addr()))

	require.NoError(t, srv.Close())
}

func TestGenerateState(t *testing.T) {
	state := GenerateState(300, true)
	assert.Len(t, state.Players, 255)
	assert.Equal(t, a2s.VariantLegacy, state.Info.Variant())
	assert.NotEmpty(t, state.Rules)

	state = GenerateState(-1, false)
	assert.Empty(t, state.Players)
	assert.Equal(t, byte(32), state.Info.Summary().MaxPlayers)
}
