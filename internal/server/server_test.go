package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/a2sprobe/internal/config"
	"github.com/woozymasta/a2sprobe/internal/fake"
	"github.com/woozymasta/a2sprobe/internal/models"
	"github.com/woozymasta/a2sprobe/internal/storage"
	"github.com/woozymasta/a2sprobe/internal/vars"
)

const testToken = "secret"

type staticLocator string

func (l staticLocator) CountryCode(string) string { return string(l) }

type harness struct {
	srv     *Server
	repo    *storage.Repository
	handler http.Handler
	stop    func()
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cfg := &config.Config{}
	cfg.Server.AuthToken = testToken
	cfg.Server.RateCount = 100
	cfg.Server.RateWindow = time.Minute
	cfg.Server.RecordEvery = time.Minute
	cfg.A2S = config.A2S{Timeout: time.Second, BufferSize: 1400}
	if mutate != nil {
		mutate(cfg)
	}

	srv := New(repo, staticLocator("NL"), cfg)
	h := &harness{srv: srv, repo: repo, handler: srv.Run()}
	srv.StartWorkers()

	var once sync.Once
	h.stop = func() { once.Do(srv.StopWorkers) }
	t.Cleanup(h.stop)

	return h
}

func (h *harness) do(method, target string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	return rec
}

func startFake(t *testing.T, state fake.State) string {
	t.Helper()

	fs, err := fake.Listen("127.0.0.1:0", state, fake.Options{Secret: "api"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	addr := fs.Addr()
	return "ip=" + addr.IP.String() + "&port=" + strconv.Itoa(addr.Port)
}

func TestVersionIsPublic(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/version", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var info vars.BuildInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, vars.Name, info.Name)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t, nil)

	for _, path := range []string{"/api/servers", "/api/server?ip=1.1.1.1&port=1", "/api/a2s/info?ip=1.1.1.1&port=1"} {
		rec := h.do(http.MethodGet, path, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newHarness(t, nil)

	id := "2f1c7a52-6a35-4b49-a8b5-0d1d2e3f4a5b"
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestLiveInfo(t *testing.T) {
	state := fake.GenerateState(4, false)
	query := startFake(t, state)
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/a2s/info?"+query, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Variant string         `json:"variant"`
		Info    map[string]any `json:"info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "current", body.Variant)
	assert.Equal(t, state.Info.Summary().Name, body.Info["name"])
}

func TestLivePlayersAndRules(t *testing.T) {
	state := fake.GenerateState(3, false)
	query := startFake(t, state)
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/a2s/players?"+query, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":3`)

	rec = h.do(http.MethodGet, "/api/a2s/rules?"+query, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sv_gravity")
}

func TestLiveInfoTimeout(t *testing.T) {
	query := startFake(t, fake.State{})
	h := newHarness(t, func(cfg *config.Config) { cfg.A2S.Timeout = 100 * time.Millisecond })

	rec := h.do(http.MethodGet, "/api/a2s/info?"+query, true)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestBadTarget(t *testing.T) {
	h := newHarness(t, nil)

	for _, q := range []string{"", "?ip=1.1.1.1", "?ip=1.1.1.1&port=x", "?ip=1.1.1.1&port=70000"} {
		rec := h.do(http.MethodGet, "/api/a2s/info"+q, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRecordLookups(t *testing.T) {
	query := startFake(t, fake.GenerateState(2, true))
	h := newHarness(t, func(cfg *config.Config) { cfg.Server.RecordLookup = true })

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/a2s/info?"+query, true).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/a2s/info?"+query, true).Code)
	h.stop()

	servers, err := h.repo.GetServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "legacy", servers[0].Variant)
	assert.Equal(t, "NL", servers[0].CountryCode)
	assert.Equal(t, int64(1), servers[0].Count, "second lookup within the interval is not recorded")
}

func TestStoredServers(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/servers", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	seen := time.Now()
	require.NoError(t, h.repo.UpsertServer(models.Server{IP: "10.0.0.1", Port: 27015, Name: "A", FirstSeen: seen, LastSeen: seen}))
	_, err := h.repo.SaveRules("10.0.0.1", 27015, []models.Rule{{Name: "sv_gravity", Value: "800"}})
	require.NoError(t, err)

	rec = h.do(http.MethodGet, "/api/server?ip=10.0.0.1&port=27015", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "A", got.Name)
	assert.Equal(t, []models.Rule{{Name: "sv_gravity", Value: "800"}}, got.Rules)

	rec = h.do(http.MethodDelete, "/api/server?ip=10.0.0.1&port=27015", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/server?ip=10.0.0.1&port=27015", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Server.RateCount = 2 })

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/version", false).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/version", false).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodGet, "/api/version", false).Code)
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", GetRealIP(req, false))
	assert.Equal(t, "203.0.113.7", GetRealIP(req, true))

	req.Header.Set("CF-Connecting-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", GetRealIP(req, true))
}
