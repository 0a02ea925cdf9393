package a2s

import "fmt"

// fieldReader reads consecutive fields and keeps the first error,
// so decoders can read a whole layout and check once.
type fieldReader struct {
	c   *Cursor
	err error
}

func (r *fieldReader) u8() byte {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadUint8()
	r.err = err
	return v
}

func (r *fieldReader) flag() bool {
	return r.u8() != 0
}

func (r *fieldReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadUint16()
	r.err = err
	return v
}

func (r *fieldReader) i32() int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadInt32()
	r.err = err
	return v
}

func (r *fieldReader) f32() float32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadFloat32()
	r.err = err
	return v
}

func (r *fieldReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadUint64()
	r.err = err
	return v
}

func (r *fieldReader) str() string {
	if r.err != nil {
		return ""
	}
	v, err := r.c.ReadCString()
	r.err = err
	return v
}

// expect consumes the response type byte and checks it.
func expect(c *Cursor, want byte) error {
	got, err := c.ReadUint8()
	if err != nil {
		return err
	}
	if got != want {
		return &HeaderError{Expected: want, Actual: got}
	}

	return nil
}

// DecodeChallenge decodes an S2C_CHALLENGE response body.
func DecodeChallenge(body []byte) (ChallengeToken, error) {
	c := NewCursor(body)
	if err := expect(c, S2CChallenge); err != nil {
		return 0, err
	}

	token, err := c.ReadInt32()
	if err != nil {
		return 0, fmt.Errorf("challenge: %w", err)
	}

	return ChallengeToken(token), nil
}

// DecodeInfo decodes an info response body. A leading 'm' selects the
// legacy layout, any other type byte the current one.
func DecodeInfo(body []byte) (ServerInfo, error) {
	c := NewCursor(body)
	kind, err := c.ReadUint8()
	if err != nil {
		return nil, err
	}

	if kind == S2AInfoLegacy {
		info, err := decodeLegacyInfo(c)
		if err != nil {
			return nil, fmt.Errorf("legacy info: %w", err)
		}
		return info, nil
	}

	info, err := decodeCurrentInfo(c)
	if err != nil {
		return nil, fmt.Errorf("info: %w", err)
	}
	return info, nil
}

func decodeLegacyInfo(c *Cursor) (*LegacyInfo, error) {
	r := &fieldReader{c: c}
	info := &LegacyInfo{
		Address:     r.str(),
		Name:        r.str(),
		Map:         r.str(),
		Folder:      r.str(),
		Game:        r.str(),
		Players:     r.u8(),
		MaxPlayers:  r.u8(),
		Protocol:    r.u8(),
		ServerType:  ServerType(r.u8()),
		Environment: Environment(r.u8()),
		Visibility:  r.flag(),
	}

	if r.u8() == 1 {
		mod := &Mod{
			Link:         r.str(),
			DownloadLink: r.str(),
		}
		r.u8() // NUL separator
		mod.Version = r.i32()
		mod.Size = r.i32()
		mod.Type = r.u8()
		mod.CustomDLL = r.u8() == 1
		info.Mod = mod
	}

	info.VAC = r.flag()
	info.Bots = r.u8()

	if r.err != nil {
		return nil, r.err
	}
	return info, nil
}

func decodeCurrentInfo(c *Cursor) (*CurrentInfo, error) {
	r := &fieldReader{c: c}
	info := &CurrentInfo{
		Protocol:    r.u8(),
		Name:        r.str(),
		Map:         r.str(),
		Folder:      r.str(),
		Game:        r.str(),
		AppID:       r.u16(),
		Players:     r.u8(),
		MaxPlayers:  r.u8(),
		Bots:        r.u8(),
		ServerType:  ServerType(r.u8()),
		Environment: Environment(r.u8()),
		Visibility:  r.flag(),
		VAC:         r.flag(),
		Version:     r.str(),
		EDF:         r.u8(),
	}
	if r.err != nil {
		return nil, r.err
	}

	edf := info.EDF
	if edf&EDFGamePort != 0 {
		port := r.u16()
		info.GamePort = &port
	}
	if edf&EDFServerID != 0 {
		id := r.u64()
		info.ServerID = &id
	}
	if edf&EDFSpectator != 0 {
		info.Spectator = &Spectator{Port: r.u16(), Name: r.str()}
	}
	if edf&EDFKeywords != 0 {
		keywords := r.str()
		info.Keywords = &keywords
	}
	if edf&EDFGameID != 0 {
		id := r.u64()
		info.GameID = &id
	}

	if r.err != nil {
		return nil, r.err
	}
	return info, nil
}

// DecodePlayers decodes an S2A_PLAYER response body. The declared count
// drives the loop, a short body fails with ErrTruncatedData.
func DecodePlayers(body []byte) (*PlayerList, error) {
	c := NewCursor(body)
	if err := expect(c, S2APlayer); err != nil {
		return nil, err
	}

	count, err := c.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("players count: %w", err)
	}

	list := &PlayerList{
		Count:   count,
		Players: make([]Player, 0, count),
	}

	r := &fieldReader{c: c}
	for i := 0; i < int(count); i++ {
		p := Player{
			Index:    r.u8(),
			Name:     r.str(),
			Score:    r.i32(),
			Duration: r.f32(),
		}
		if r.err != nil {
			return nil, fmt.Errorf("player %d: %w", i, r.err)
		}
		list.Players = append(list.Players, p)
	}

	return list, nil
}

// DecodeRules decodes an S2A_RULES response body.
// Some servers repeat the 0xFFFFFFFF marker in front of the type byte;
// it is skipped when present.
func DecodeRules(body []byte) (*RuleList, error) {
	c := NewCursor(body)
	start := c.Tell()
	if marker, err := c.ReadInt32(); err != nil || marker != SinglePacket {
		if err := c.Seek(start); err != nil {
			return nil, err
		}
	}

	if err := expect(c, S2ARules); err != nil {
		return nil, err
	}

	count, err := c.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("rules count: %w", err)
	}

	list := &RuleList{
		Count: count,
		Rules: make(map[string]string, count),
	}

	r := &fieldReader{c: c}
	for i := 0; i < int(count); i++ {
		name := r.str()
		value := r.str()
		if r.err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, r.err)
		}
		list.Rules[name] = value
	}

	return list, nil
}
