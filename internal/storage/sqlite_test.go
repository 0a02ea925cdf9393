package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/a2sprobe/internal/models"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func testServer(seen time.Time) models.Server {
	return models.Server{
		IP:          "10.0.0.1",
		Port:        27015,
		Variant:     "current",
		Name:        "Test Server",
		Map:         "de_dust2",
		Folder:      "cstrike",
		Game:        "Counter-Strike",
		Version:     "1.0.0.1",
		ServerType:  "dedicated",
		Environment: "linux",
		CountryCode: "DE",
		AppID:       10,
		Players:     5,
		MaxPlayers:  16,
		FirstSeen:   seen,
		LastSeen:    seen,
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())
}

func TestUpsertServerCountsAndKeepsFirstSeen(t *testing.T) {
	repo := openTestRepo(t)

	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertServer(testServer(first)))

	later := first.Add(time.Hour)
	update := testServer(later)
	update.Name = "Renamed"
	update.CountryCode = ""
	require.NoError(t, repo.UpsertServer(update))

	got, err := repo.GetServer("10.0.0.1", 27015)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, int64(2), got.Count)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "DE", got.CountryCode, "blank country must not overwrite")
	assert.True(t, got.FirstSeen.Equal(first))
	assert.True(t, got.LastSeen.Equal(later))
	assert.Equal(t, byte(16), got.MaxPlayers)
}

func TestGetServerMissing(t *testing.T) {
	repo := openTestRepo(t)

	got, err := repo.GetServer("10.0.0.9", 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetServersOrder(t *testing.T) {
	repo := openTestRepo(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := testServer(base)
	old.IP = "10.0.0.2"
	require.NoError(t, repo.UpsertServer(old))
	require.NoError(t, repo.UpsertServer(testServer(base.Add(time.Minute))))

	servers, err := repo.GetServers()
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "10.0.0.1", servers[0].IP)
	assert.Equal(t, "10.0.0.2", servers[1].IP)
}

func TestSaveRulesOnlyOnChange(t *testing.T) {
	repo := openTestRepo(t)
	require.NoError(t, repo.UpsertServer(testServer(time.Now())))

	rules := []models.Rule{{Name: "mp_friendlyfire", Value: "0"}, {Name: "sv_gravity", Value: "800"}}

	changed, err := repo.SaveRules("10.0.0.1", 27015, rules)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SaveRules("10.0.0.1", 27015, rules)
	require.NoError(t, err)
	assert.False(t, changed)

	rules[1].Value = "400"
	changed, err = repo.SaveRules("10.0.0.1", 27015, rules)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := repo.GetServer("10.0.0.1", 27015)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rules, got.Rules)
	assert.Equal(t, RulesHash(rules), got.RulesHash)
}

func TestSaveRulesUnknownServer(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.SaveRules("10.0.0.1", 27015, []models.Rule{{Name: "a", Value: "b"}})
	assert.Error(t, err)
}

func TestRulesHashSeparatesFields(t *testing.T) {
	a := RulesHash([]models.Rule{{Name: "ab", Value: "c"}})
	b := RulesHash([]models.Rule{{Name: "a", Value: "bc"}})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, RulesHash([]models.Rule{{Name: "ab", Value: "c"}}))
}

func TestDeleteServer(t *testing.T) {
	repo := openTestRepo(t)
	require.NoError(t, repo.UpsertServer(testServer(time.Now())))
	_, err := repo.SaveRules("10.0.0.1", 27015, []models.Rule{{Name: "a", Value: "b"}})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteServer("10.0.0.1", 27015))

	got, err := repo.GetServer("10.0.0.1", 27015)
	require.NoError(t, err)
	assert.Nil(t, got)

	rules, err := repo.GetRules("10.0.0.1", 27015)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestDeleteStale(t *testing.T) {
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	stale := testServer(now.Add(-48 * time.Hour))
	stale.IP = "10.0.0.2"
	require.NoError(t, repo.UpsertServer(stale))
	_, err := repo.SaveRules("10.0.0.2", 27015, []models.Rule{{Name: "a", Value: "b"}})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertServer(testServer(now)))

	n, err := repo.DeleteStale(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	servers, err := repo.GetServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "10.0.0.1", servers[0].IP)

	rules, err := repo.GetRules("10.0.0.2", 27015)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
