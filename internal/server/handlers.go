package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/woozymasta/a2sprobe/internal/game"
	"github.com/woozymasta/a2sprobe/internal/models"
	"github.com/woozymasta/a2sprobe/internal/vars"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// infoResponse tags a live info result with its layout.
type infoResponse struct {
	Info    a2s.ServerInfo `json:"info"`
	Variant a2s.Variant    `json:"variant"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// target reads the ip and port query parameters.
func target(r *http.Request) (string, int, error) {
	ip := r.URL.Query().Get("ip")
	portStr := r.URL.Query().Get("port")

	if ip == "" || portStr == "" {
		return "", 0, errors.New("missing ip or port")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, errors.New("invalid port")
	}

	return ip, port, nil
}

// handleVersion returns build metadata. It needs no authentication.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleInfo performs a live A2S_INFO query.
// Query params: ?ip=1.2.3.4&port=27015
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ip, port, err := target(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := game.QueryInfo(ip, port, s.a2sOptions)
	if err != nil {
		s.queryFailed(w, r, "info", ip, port, err)
		return
	}

	if s.record {
		s.enqueue(ip, port, info)
	}

	writeJSON(w, http.StatusOK, infoResponse{Variant: info.Variant(), Info: info})
}

// handlePlayers performs a live challenge and A2S_PLAYER query.
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	ip, port, err := target(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	players, err := game.QueryPlayers(ip, port, s.a2sOptions)
	if err != nil {
		s.queryFailed(w, r, "players", ip, port, err)
		return
	}

	writeJSON(w, http.StatusOK, players)
}

// handleRules performs a live challenge and A2S_RULES query.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	ip, port, err := target(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rules, err := game.QueryRules(ip, port, s.a2sOptions)
	if err != nil {
		s.queryFailed(w, r, "rules", ip, port, err)
		return
	}

	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) queryFailed(w http.ResponseWriter, r *http.Request, query, ip string, port int, err error) {
	zerolog.Ctx(r.Context()).Debug().
		Err(err).
		Str("query", query).
		Str("ip", ip).
		Int("port", port).
		Msg("A2S query failed")

	writeError(w, http.StatusGatewayTimeout, err.Error())
}

// handleServers returns every recorded server.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.storage.GetServers()
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to fetch servers")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if servers == nil {
		servers = []models.Server{}
	}

	writeJSON(w, http.StatusOK, servers)
}

// handleGetServer returns one recorded server with its rules.
// Query params: ?ip=1.2.3.4&port=27015
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	ip, port, err := target(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv, err := s.storage.GetServer(ip, port)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to fetch server")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if srv == nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}

	writeJSON(w, http.StatusOK, srv)
}

// handleDeleteServer removes a recorded server and its rules.
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	ip, port, err := target(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger := zerolog.Ctx(r.Context()).With().Str("ip", ip).Int("port", port).Logger()

	if err := s.storage.DeleteServer(ip, port); err != nil {
		logger.Error().Err(err).Msg("Failed to delete server")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	logger.Info().Msg("Server deleted manually")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server deleted"})
}
