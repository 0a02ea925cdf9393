// Package models defines the data structures used for API responses and database persistence.
package models

import (
	"time"

	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// Server is the last recorded state of a probed game server.
type Server struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	IP          string    `json:"ip"`
	Variant     string    `json:"variant"`
	Name        string    `json:"name"`
	Map         string    `json:"map"`
	Folder      string    `json:"folder"`
	Game        string    `json:"game"`
	Version     string    `json:"version"`
	Keywords    string    `json:"keywords"`
	ServerType  string    `json:"server_type"`
	Environment string    `json:"environment"`
	CountryCode string    `json:"country_code"`
	Rules       []Rule    `json:"rules,omitempty"`
	RulesHash   uint64    `json:"rules_hash,omitempty"`
	Count       int64     `json:"count"`
	Port        int       `json:"port"`
	AppID       int       `json:"app_id"`
	Players     byte      `json:"players"`
	MaxPlayers  byte      `json:"max_players"`
	Bots        byte      `json:"bots"`
	Visibility  bool      `json:"visibility"`
	VAC         bool      `json:"vac"`
}

// Rule is one recorded server rule.
type Rule struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewServer maps a decoded info response onto a Server record.
func NewServer(ip string, port int, info a2s.ServerInfo, seen time.Time) Server {
	s := info.Summary()

	srv := Server{
		IP:          ip,
		Port:        port,
		Variant:     string(info.Variant()),
		Name:        s.Name,
		Map:         s.Map,
		Folder:      s.Folder,
		Game:        s.Game,
		Players:     s.Players,
		MaxPlayers:  s.MaxPlayers,
		Bots:        s.Bots,
		ServerType:  s.ServerType.String(),
		Environment: s.Environment.String(),
		Visibility:  s.Visibility,
		VAC:         s.VAC,
		FirstSeen:   seen,
		LastSeen:    seen,
	}

	if current, ok := info.(*a2s.CurrentInfo); ok {
		srv.AppID = int(current.AppID)
		srv.Version = current.Version
		if current.Keywords != nil {
			srv.Keywords = *current.Keywords
		}
	}

	return srv
}

// RuleSlice flattens a rule list into name order.
func RuleSlice(list *a2s.RuleList) []Rule {
	if list == nil {
		return nil
	}

	rules := make([]Rule, 0, len(list.Rules))
	for _, name := range list.Names() {
		rules = append(rules, Rule{Name: name, Value: list.Rules[name]})
	}

	return rules
}
