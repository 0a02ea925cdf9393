package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsProbeDefaults(t *testing.T) {
	cfg, err := ParseArgs([]string{"127.0.0.1:27015"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:27015", cfg.Args.Target)
	assert.Equal(t, []string{QueryInfo, QueryPlayers, QueryRules}, cfg.Probe.Queries)
	assert.Equal(t, 3*time.Second, cfg.A2S.Timeout)
	assert.Equal(t, uint16(1400), cfg.A2S.BufferSize)
	assert.Equal(t, "a2sprobe.db", cfg.Storage.Path)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestParseArgsQuerySelection(t *testing.T) {
	cfg, err := ParseArgs([]string{"-q", "players", "--query", "rules", "--record", "10.0.0.1:27015"})
	require.NoError(t, err)

	assert.True(t, cfg.Probe.Record)
	assert.False(t, cfg.Probe.Wants(QueryInfo))
	assert.True(t, cfg.Probe.Wants(QueryPlayers))
	assert.True(t, cfg.Probe.Wants(QueryRules))
}

func TestParseArgsEnvironment(t *testing.T) {
	t.Setenv("A2SPROBE_A2S_TIMEOUT", "750ms")
	t.Setenv("A2SPROBE_LISTEN_ADDRESS", ":8080")
	t.Setenv("A2SPROBE_AUTH_TOKEN", "token")
	t.Setenv("A2SPROBE_DB_PATH", "/tmp/x.db")

	cfg, err := ParseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.A2S.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "token", cfg.Server.AuthToken)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
}

func TestParseArgsModesWithoutTarget(t *testing.T) {
	for _, args := range [][]string{
		{"--fake-listen", "127.0.0.1:27015"},
		{"--db-refresh"},
		{"--db-prune", "24h"},
		{"--listen", ":8080", "--auth-token", "t"},
		{"--master-list"},
		{"--master-discover", "--master-address", "127.0.0.1:27011"},
	} {
		_, err := ParseArgs(args)
		assert.NoError(t, err, args)
	}
}

func TestParseArgsMaster(t *testing.T) {
	cfg, err := ParseArgs([]string{"--master-list"})
	require.NoError(t, err)
	assert.Equal(t, "hl2master.steampowered.com:27011", cfg.Master.Address)
	assert.Equal(t, "all", cfg.Master.Region)
	assert.Equal(t, 500, cfg.Master.Limit)
	assert.Empty(t, cfg.Master.Filter)

	t.Setenv("A2SPROBE_MASTER_FILTER", `\appid\240`)
	t.Setenv("A2SPROBE_MASTER_REGION", "europe")
	cfg, err = ParseArgs([]string{"--master-discover", "--master-limit", "0"})
	require.NoError(t, err)
	assert.True(t, cfg.Master.Discover)
	assert.Equal(t, `\appid\240`, cfg.Master.Filter)
	assert.Equal(t, "europe", cfg.Master.Region)
	assert.Zero(t, cfg.Master.Limit)

	_, err = ParseArgs([]string{"--master-list", "--master-address", "nowhere"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"--master-list", "--master-region", "mars"})
	assert.Error(t, err)
}

func TestParseArgsErrors(t *testing.T) {
	_, err := ParseArgs(nil)
	assert.Error(t, err, "target required")

	_, err = ParseArgs([]string{"--listen", ":8080"})
	assert.Error(t, err, "token required")

	_, err = ParseArgs([]string{"localhost"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"-v"})
	assert.ErrorIs(t, err, ErrVersion)
}

func TestSplitTarget(t *testing.T) {
	host, port, err := SplitTarget("[::1]:27015")
	require.NoError(t, err)
	assert.Equal(t, "::1", host)
	assert.Equal(t, 27015, port)

	for _, bad := range []string{"host", "host:0", "host:65536", "host:abc"} {
		_, _, err := SplitTarget(bad)
		assert.Error(t, err, bad)
	}
}
