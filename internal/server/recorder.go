package server

import (
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/internal/models"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// enqueue hands a live info result to the recording workers unless the
// same server was recorded within the recording interval, the queue is full
// or the workers were stopped.
func (s *Server) enqueue(ip string, port int, info a2s.ServerInfo) {
	key := net.JoinHostPort(ip, strconv.Itoa(port))
	now := time.Now()

	if val, ok := s.seenCache.Load(key); ok {
		if last, ok := val.(time.Time); ok && now.Sub(last) < s.recordEvery {
			log.Trace().Str("server", key).Msg("Recording skipped, seen recently")
			return
		}
	}
	s.seenCache.Store(key, now)

	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.queueClosed {
		log.Debug().Str("server", key).Msg("Recording stopped, lookup dropped")
		return
	}

	select {
	case s.queue <- recordJob{IP: ip, Port: port, Info: info, Seen: now}:
	default:
		log.Warn().Str("server", key).Msg("Record queue full, lookup dropped")
	}
}

// worker stores queued lookups until the queue is closed.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

func (s *Server) processJob(job recordJob) {
	srv := models.NewServer(job.IP, job.Port, job.Info, job.Seen)
	srv.CountryCode = s.geoip.CountryCode(job.IP)

	if err := s.storage.UpsertServer(srv); err != nil {
		log.Error().Err(err).Str("ip", job.IP).Int("port", job.Port).Msg("Failed to record server")
		return
	}

	log.Debug().Str("ip", job.IP).Int("port", job.Port).Msg("Lookup recorded")
}
