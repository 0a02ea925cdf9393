package a2s

import (
	"sort"
	"time"
)

// ChallengeToken is the opaque value a server issues to authorize player and rules queries.
type ChallengeToken int32

// Variant identifies the layout of an info response.
type Variant string

// Info layouts.
const (
	VariantLegacy  Variant = "legacy"
	VariantCurrent Variant = "current"
)

// ServerType is the single character server type code.
type ServerType byte

func (t ServerType) String() string {
	switch t {
	case 'd', 'D':
		return "Dedicated"
	case 'l', 'L':
		return "Non-Dedicated"
	case 'p', 'P':
		return "Proxy"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the type as its wire character.
func (t ServerType) MarshalText() ([]byte, error) {
	return []byte{byte(t)}, nil
}

// Environment is the single character operating system code.
type Environment byte

func (e Environment) String() string {
	switch e {
	case 'l', 'L':
		return "Linux"
	case 'w', 'W':
		return "Windows"
	case 'm', 'o':
		return "Mac"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the environment as its wire character.
func (e Environment) MarshalText() ([]byte, error) {
	return []byte{byte(e)}, nil
}

// ServerInfo is a decoded info response, either *LegacyInfo or *CurrentInfo.
type ServerInfo interface {
	Variant() Variant
	Summary() Summary
	isServerInfo()
}

// Summary holds the fields both info layouts share.
type Summary struct {
	Name        string      `json:"name"`
	Map         string      `json:"map"`
	Folder      string      `json:"folder"`
	Game        string      `json:"game"`
	Protocol    byte        `json:"protocol"`
	Players     byte        `json:"players"`
	MaxPlayers  byte        `json:"max_players"`
	Bots        byte        `json:"bots"`
	ServerType  ServerType  `json:"server_type"`
	Environment Environment `json:"environment"`
	Visibility  bool        `json:"visibility"`
	VAC         bool        `json:"vac"`
}

// Mod describes the Half-Life modification a legacy server runs.
type Mod struct {
	Link         string `json:"link"`
	DownloadLink string `json:"download_link"`
	Version      int32  `json:"version"`
	Size         int32  `json:"size"`
	Type         byte   `json:"type"`
	CustomDLL    bool   `json:"custom_dll"`
}

// LegacyInfo is the obsolete GoldSource info layout ('m').
type LegacyInfo struct {
	Mod         *Mod        `json:"mod,omitempty"`
	Address     string      `json:"address"`
	Name        string      `json:"name"`
	Map         string      `json:"map"`
	Folder      string      `json:"folder"`
	Game        string      `json:"game"`
	Players     byte        `json:"players"`
	MaxPlayers  byte        `json:"max_players"`
	Protocol    byte        `json:"protocol"`
	ServerType  ServerType  `json:"server_type"`
	Environment Environment `json:"environment"`
	Visibility  bool        `json:"visibility"`
	VAC         bool        `json:"vac"`
	Bots        byte        `json:"bots"`
}

// Variant implements ServerInfo.
func (*LegacyInfo) Variant() Variant { return VariantLegacy }

// Summary implements ServerInfo.
func (i *LegacyInfo) Summary() Summary {
	return Summary{
		Name:        i.Name,
		Map:         i.Map,
		Folder:      i.Folder,
		Game:        i.Game,
		Protocol:    i.Protocol,
		Players:     i.Players,
		MaxPlayers:  i.MaxPlayers,
		Bots:        i.Bots,
		ServerType:  i.ServerType,
		Environment: i.Environment,
		Visibility:  i.Visibility,
		VAC:         i.VAC,
	}
}

func (*LegacyInfo) isServerInfo() {}

// Spectator is the SourceTV relay advertised by a server.
type Spectator struct {
	Name string `json:"name"`
	Port uint16 `json:"port"`
}

// Extra data flag bits of a current info response.
const (
	EDFGamePort  byte = 0x80
	EDFSpectator byte = 0x40
	EDFKeywords  byte = 0x20
	EDFServerID  byte = 0x10
	EDFGameID    byte = 0x01
)

// CurrentInfo is the Source info layout. Optional members are nil
// unless the matching EDF bit was set.
type CurrentInfo struct {
	GamePort    *uint16     `json:"game_port,omitempty"`
	ServerID    *uint64     `json:"server_id,omitempty"`
	Spectator   *Spectator  `json:"spectator,omitempty"`
	Keywords    *string     `json:"keywords,omitempty"`
	GameID      *uint64     `json:"game_id,omitempty"`
	Name        string      `json:"name"`
	Map         string      `json:"map"`
	Folder      string      `json:"folder"`
	Game        string      `json:"game"`
	Version     string      `json:"version"`
	AppID       uint16      `json:"app_id"`
	Protocol    byte        `json:"protocol"`
	Players     byte        `json:"players"`
	MaxPlayers  byte        `json:"max_players"`
	Bots        byte        `json:"bots"`
	ServerType  ServerType  `json:"server_type"`
	Environment Environment `json:"environment"`
	Visibility  bool        `json:"visibility"`
	VAC         bool        `json:"vac"`
	EDF         byte        `json:"edf"`
}

// Variant implements ServerInfo.
func (*CurrentInfo) Variant() Variant { return VariantCurrent }

// Summary implements ServerInfo.
func (i *CurrentInfo) Summary() Summary {
	return Summary{
		Name:        i.Name,
		Map:         i.Map,
		Folder:      i.Folder,
		Game:        i.Game,
		Protocol:    i.Protocol,
		Players:     i.Players,
		MaxPlayers:  i.MaxPlayers,
		Bots:        i.Bots,
		ServerType:  i.ServerType,
		Environment: i.Environment,
		Visibility:  i.Visibility,
		VAC:         i.VAC,
	}
}

func (*CurrentInfo) isServerInfo() {}

// Player is one entry of a player response.
type Player struct {
	Name     string  `json:"name"`
	Score    int32   `json:"score"`
	Duration float32 `json:"duration"`
	Index    byte    `json:"index"`
}

// Connected returns the connection time as a time.Duration.
func (p Player) Connected() time.Duration {
	return time.Duration(float64(p.Duration) * float64(time.Second))
}

// PlayerList is a decoded player response.
type PlayerList struct {
	Players []Player `json:"players"`
	Count   byte     `json:"count"`
}

// RuleList is a decoded rules response.
type RuleList struct {
	Rules map[string]string `json:"rules"`
	Count uint16            `json:"count"`
}

// Names returns the rule names in lexical order.
func (l *RuleList) Names() []string {
	names := make([]string, 0, len(l.Rules))
	for name := range l.Rules {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
