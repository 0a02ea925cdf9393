// Package server implements the HTTP API, its middleware, and the background recorder of live lookups.
package server

import (
	"net/http"
	"time"

	"github.com/woozymasta/a2sprobe/internal/config"
	"github.com/woozymasta/a2sprobe/internal/geoip"
	"github.com/woozymasta/a2sprobe/internal/storage"
)

const (
	recordWorkers = 4
	recordQueue   = 256
)

// New creates a Server. A nil geo disables country lookups.
func New(store *storage.Repository, geo geoip.Locator, cfg *config.Config) *Server {
	if geo == nil {
		geo = geoip.Nop{}
	}

	return &Server{
		storage:     store,
		geoip:       geo,
		a2sOptions:  cfg.A2S,
		authToken:   cfg.Server.AuthToken,
		trustProxy:  cfg.Server.TrustProxy,
		rateCount:   cfg.Server.RateCount,
		rateWindow:  cfg.Server.RateWindow,
		record:      cfg.Server.RecordLookup,
		recordEvery: cfg.Server.RecordEvery,

		queue:    make(chan recordJob, recordQueue),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the recording workers and the recording cache cleanup.
func (s *Server) StartWorkers() {
	for range recordWorkers {
		s.wg.Add(1)
		go s.worker()
	}

	s.wg.Add(1)
	go s.gcSeenCache()
}

// StopWorkers stops background goroutines after draining queued recordings.
// Lookups finishing afterwards are dropped. It must be called once.
func (s *Server) StopWorkers() {
	close(s.shutdown)

	s.queueMu.Lock()
	s.queueClosed = true
	close(s.queue)
	s.queueMu.Unlock()

	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))

	mux.Handle("GET /api/a2s/info", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleInfo)))
	mux.Handle("GET /api/a2s/players", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handlePlayers)))
	mux.Handle("GET /api/a2s/rules", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleRules)))

	mux.Handle("GET /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleServers)))
	mux.Handle("GET /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleGetServer)))
	mux.Handle("DELETE /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteServer)))

	return s.LoggingMiddleware(s.RateLimitMiddleware(mux))
}

// gcSeenCache drops recording timestamps older than the recording interval.
func (s *Server) gcSeenCache() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.seenCache.Range(func(key, value any) bool {
				if t, ok := value.(time.Time); !ok || now.Sub(t) > s.recordEvery {
					s.seenCache.Delete(key)
				}
				return true
			})
		}
	}
}
