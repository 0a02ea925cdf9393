// Package game queries game servers with the A2S protocol client.
package game

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/internal/config"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// Report is the outcome of one probe. Players and Rules are nil when not requested.
type Report struct {
	Info    a2s.ServerInfo  `json:"info"`
	Players *a2s.PlayerList `json:"players,omitempty"`
	Rules   *a2s.RuleList   `json:"rules,omitempty"`
	IP      string          `json:"ip"`
	Variant a2s.Variant     `json:"variant"`
	Latency time.Duration   `json:"latency_ns"`
	Port    int             `json:"port"`
}

// Dial opens a client to ip:port configured from options.
func Dial(ip string, port int, options config.A2S) (*a2s.Client, error) {
	client, err := a2s.New(ip, port)
	if err != nil {
		return nil, err
	}

	client.Timeout = options.Timeout
	client.BufferSize = options.BufferSize
	client.Logger = log.Logger.With().Str("ip", ip).Int("port", port).Logger()

	return client, nil
}

// QueryInfo requests A2S_INFO from ip:port.
func QueryInfo(ip string, port int, options config.A2S) (a2s.ServerInfo, error) {
	client, err := Dial(ip, port, options)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return client.GetInfo()
}

// QueryPlayers obtains a challenge and requests A2S_PLAYER from ip:port.
func QueryPlayers(ip string, port int, options config.A2S) (*a2s.PlayerList, error) {
	client, err := Dial(ip, port, options)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return players(client)
}

// QueryRules obtains a challenge and requests A2S_RULES from ip:port.
func QueryRules(ip string, port int, options config.A2S) (*a2s.RuleList, error) {
	client, err := Dial(ip, port, options)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	return rules(client)
}

// Probe runs the queries selected by probe over a single client.
// Info is always requested first; the first failing query aborts the probe.
func Probe(ip string, port int, options config.A2S, probe config.Probe) (*Report, error) {
	client, err := Dial(ip, port, options)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	start := time.Now()
	report := &Report{IP: ip, Port: port}

	if report.Info, err = client.GetInfo(); err != nil {
		return nil, fmt.Errorf("info: %w", err)
	}
	report.Variant = report.Info.Variant()
	report.Latency = time.Since(start)

	if probe.Wants(config.QueryPlayers) {
		if report.Players, err = players(client); err != nil {
			return nil, fmt.Errorf("players: %w", err)
		}
	}

	if probe.Wants(config.QueryRules) {
		if report.Rules, err = rules(client); err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
	}

	return report, nil
}

func players(client *a2s.Client) (*a2s.PlayerList, error) {
	token, err := client.GetChallenge()
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	return client.GetPlayers(token)
}

func rules(client *a2s.Client) (*a2s.RuleList, error) {
	token, err := client.GetChallenge()
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}

	return client.GetRules(token)
}
