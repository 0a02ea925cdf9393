package server

import (
	"sync"
	"time"

	"github.com/woozymasta/a2sprobe/internal/config"
	"github.com/woozymasta/a2sprobe/internal/geoip"
	"github.com/woozymasta/a2sprobe/internal/storage"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// Server holds the dependencies, configuration, and runtime state required
// to serve the HTTP API and record live lookups in the background.
type Server struct {
	// storage is the repository of recorded servers.
	storage *storage.Repository

	// geoip resolves recorded addresses to country codes.
	geoip geoip.Locator

	// queue carries successful live lookups to the recording workers.
	// Sends hold queueMu for reading and stop once queueClosed is set.
	queue chan recordJob

	// shutdown is closed to stop background goroutines.
	shutdown chan struct{}

	// seenCache maps "ip:port" to the time it was last recorded.
	seenCache sync.Map

	// authToken is the bearer token required by every endpoint but /api/version.
	authToken string

	// a2sOptions configures live queries.
	a2sOptions config.A2S

	wg sync.WaitGroup

	queueMu     sync.RWMutex
	queueClosed bool

	// rateCount requests are allowed per client IP within rateWindow.
	rateCount  int
	rateWindow time.Duration

	// recordEvery is the minimum interval between recordings of one server.
	recordEvery time.Duration

	// trustProxy enables CF-Connecting-IP and X-Forwarded-For.
	trustProxy bool

	// record enables recording of successful live info queries.
	record bool
}

// recordJob is a live info result waiting to be stored.
type recordJob struct {
	Info a2s.ServerInfo
	Seen time.Time
	IP   string
	Port int
}
