// Package fake provides an in-process A2S responder and response encoders
// for testing and local development.
package fake

import (
	"fmt"
	"sort"

	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// maxFragments is the largest count a split descriptor nibble can hold.
const maxFragments = 15

// EncodeInfo encodes an info response body including its type byte.
func EncodeInfo(info a2s.ServerInfo) []byte {
	w := a2s.NewWriter(128)

	switch v := info.(type) {
	case *a2s.LegacyInfo:
		w.WriteUint8(a2s.S2AInfoLegacy)
		w.WriteCString(v.Address)
		w.WriteCString(v.Name)
		w.WriteCString(v.Map)
		w.WriteCString(v.Folder)
		w.WriteCString(v.Game)
		w.WriteUint8(v.Players)
		w.WriteUint8(v.MaxPlayers)
		w.WriteUint8(v.Protocol)
		w.WriteUint8(byte(v.ServerType))
		w.WriteUint8(byte(v.Environment))
		w.WriteUint8(boolByte(v.Visibility))
		if v.Mod != nil {
			w.WriteUint8(1)
			w.WriteCString(v.Mod.Link)
			w.WriteCString(v.Mod.DownloadLink)
			w.WriteUint8(0)
			w.WriteInt32(v.Mod.Version)
			w.WriteInt32(v.Mod.Size)
			w.WriteUint8(v.Mod.Type)
			w.WriteUint8(boolByte(v.Mod.CustomDLL))
		} else {
			w.WriteUint8(0)
		}
		w.WriteUint8(boolByte(v.VAC))
		w.WriteUint8(v.Bots)

	case *a2s.CurrentInfo:
		w.WriteUint8(a2s.S2AInfoCurrent)
		w.WriteUint8(v.Protocol)
		w.WriteCString(v.Name)
		w.WriteCString(v.Map)
		w.WriteCString(v.Folder)
		w.WriteCString(v.Game)
		w.WriteUint16(v.AppID)
		w.WriteUint8(v.Players)
		w.WriteUint8(v.MaxPlayers)
		w.WriteUint8(v.Bots)
		w.WriteUint8(byte(v.ServerType))
		w.WriteUint8(byte(v.Environment))
		w.WriteUint8(boolByte(v.Visibility))
		w.WriteUint8(boolByte(v.VAC))
		w.WriteCString(v.Version)

		// EDF is derived from the optional members present
		var edf byte
		if v.GamePort != nil {
			edf |= a2s.EDFGamePort
		}
		if v.ServerID != nil {
			edf |= a2s.EDFServerID
		}
		if v.Spectator != nil {
			edf |= a2s.EDFSpectator
		}
		if v.Keywords != nil {
			edf |= a2s.EDFKeywords
		}
		if v.GameID != nil {
			edf |= a2s.EDFGameID
		}
		w.WriteUint8(edf)

		if v.GamePort != nil {
			w.WriteUint16(*v.GamePort)
		}
		if v.ServerID != nil {
			w.WriteUint64(*v.ServerID)
		}
		if v.Spectator != nil {
			w.WriteUint16(v.Spectator.Port)
			w.WriteCString(v.Spectator.Name)
		}
		if v.Keywords != nil {
			w.WriteCString(*v.Keywords)
		}
		if v.GameID != nil {
			w.WriteUint64(*v.GameID)
		}
	}

	return w.Bytes()
}

// EncodeChallenge encodes a challenge response body.
func EncodeChallenge(token a2s.ChallengeToken) []byte {
	w := a2s.NewWriter(5)
	w.WriteUint8(a2s.S2CChallenge)
	w.WriteInt32(int32(token))
	return w.Bytes()
}

// EncodePlayers encodes a player response body. The count byte is len(players).
func EncodePlayers(players []a2s.Player) []byte {
	w := a2s.NewWriter(2 + len(players)*16)
	w.WriteUint8(a2s.S2APlayer)
	w.WriteUint8(byte(len(players)))
	for _, p := range players {
		w.WriteUint8(p.Index)
		w.WriteCString(p.Name)
		w.WriteInt32(p.Score)
		w.WriteFloat32(p.Duration)
	}

	return w.Bytes()
}

// EncodeRules encodes a rules response body with rules sorted by name.
// With filler set the body starts with the repeated 0xFFFFFFFF marker.
func EncodeRules(rules map[string]string, filler bool) []byte {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	w := a2s.NewWriter(3 + len(rules)*16)
	if filler {
		w.WriteInt32(a2s.SinglePacket)
	}
	w.WriteUint8(a2s.S2ARules)
	w.WriteUint16(uint16(len(names)))
	for _, name := range names {
		w.WriteCString(name)
		w.WriteCString(rules[name])
	}

	return w.Bytes()
}

// Single wraps a body into an unfragmented datagram.
func Single(body []byte) []byte {
	w := a2s.NewWriter(4 + len(body))
	w.WriteInt32(a2s.SinglePacket)
	w.WriteBytes(body)
	return w.Bytes()
}

// Fragment builds one split datagram.
func Fragment(id int32, index, total int, payload []byte) []byte {
	w := a2s.NewWriter(9 + len(payload))
	w.WriteInt32(a2s.SplitPacket)
	w.WriteInt32(id)
	w.WriteUint8(byte(index<<4 | total&0x0F))
	w.WriteBytes(payload)
	return w.Bytes()
}

// Split cuts body into split datagrams carrying at most size payload bytes each,
// in index order.
func Split(id int32, body []byte, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid fragment size %d", size)
	}

	total := (len(body) + size - 1) / size
	if total == 0 {
		total = 1
	}
	if total > maxFragments {
		return nil, fmt.Errorf("response of %d bytes needs %d fragments, limit is %d", len(body), total, maxFragments)
	}

	datagrams := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		end := min((i+1)*size, len(body))
		datagrams = append(datagrams, Fragment(id, i, total, body[i*size:end]))
	}

	return datagrams, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}

	return 0
}
