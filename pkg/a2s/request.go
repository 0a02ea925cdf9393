package a2s

// Packet headers.
const (
	// SinglePacket marks an unfragmented datagram.
	SinglePacket int32 = -1

	// SplitPacket marks one fragment of a multi-packet response.
	SplitPacket int32 = -2
)

// Request types.
const (
	A2SInfo   byte = 'T'
	A2SPlayer byte = 'U'
	A2SRules  byte = 'V'
)

// Response types.
const (
	S2CChallenge   byte = 'A'
	S2AInfoLegacy  byte = 'm'
	S2AInfoCurrent byte = 'I'
	S2APlayer      byte = 'D'
	S2ARules       byte = 'E'
)

// NoChallenge asks the server for a fresh challenge token.
const NoChallenge ChallengeToken = -1

const infoQueryString = "Source Engine Query"

// DefaultBufferSize is the largest datagram a server sends without splitting.
const DefaultBufferSize = 1400

// BuildInfoRequest returns the A2S_INFO request datagram.
func BuildInfoRequest() []byte {
	w := newRequest(A2SInfo, len(infoQueryString)+1)
	w.WriteCString(infoQueryString)
	return w.Bytes()
}

// BuildChallengeRequest returns an A2S_PLAYER request asking for a fresh challenge token.
func BuildChallengeRequest() []byte {
	return BuildPlayerRequest(NoChallenge)
}

// BuildPlayerRequest returns an A2S_PLAYER request carrying the challenge token.
func BuildPlayerRequest(token ChallengeToken) []byte {
	return buildChallenged(A2SPlayer, token)
}

// BuildRulesRequest returns an A2S_RULES request carrying the challenge token.
func BuildRulesRequest(token ChallengeToken) []byte {
	return buildChallenged(A2SRules, token)
}

func buildChallenged(kind byte, token ChallengeToken) []byte {
	w := newRequest(kind, 4)
	w.WriteInt32(int32(token))
	return w.Bytes()
}

// newRequest starts a datagram with the single packet header and request type.
func newRequest(kind byte, payload int) *Cursor {
	w := NewWriter(5 + payload)
	w.WriteInt32(SinglePacket)
	w.WriteUint8(kind)
	return w
}
