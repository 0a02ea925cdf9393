// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/a2sprobe/internal/logger"
	"github.com/woozymasta/a2sprobe/internal/vars"
)

// Query kinds accepted by --query.
const (
	QueryInfo    = "info"
	QueryPlayers = "players"
	QueryRules   = "rules"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Args struct {
		Target string `positional-arg-name:"host:port" description:"Game server query address"`
	} `positional-args:"yes"`

	Probe   Probe         `group:"Probe Options"`
	Server  Server        `group:"Server Options" env-namespace:"A2SPROBE"`
	Storage Storage       `group:"Storage Options" namespace:"db" env-namespace:"A2SPROBE_DB"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"A2SPROBE_GEOIP"`
	A2S     A2S           `group:"A2S Options" namespace:"a2s" env-namespace:"A2SPROBE_A2S"`
	Master  Master        `group:"Master Server Options" namespace:"master" env-namespace:"A2SPROBE_MASTER"`
	Fake    Fake          `group:"Fake Responder Options" namespace:"fake" env-namespace:"A2SPROBE_FAKE"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"A2SPROBE_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Probe holds one-shot probe options.
type Probe struct {
	// betteralign:ignore

	Queries []string `short:"q" long:"query" description:"Queries to run" choice:"info" choice:"players" choice:"rules" default:"info" default:"players" default:"rules"`
	Record  bool     `short:"r" long:"record" description:"Record the probe result into the database"`
}

// Server holds HTTP API configuration.
type Server struct {
	// betteralign:ignore

	Address      string        `short:"l" long:"listen" env:"LISTEN_ADDRESS" description:"Run the HTTP API on this address instead of probing"`
	AuthToken    string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"API authentication token"`
	TrustProxy   bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	RateCount    int           `long:"rate-count" env:"RATE_COUNT" description:"Requests allowed per IP within the rate window" default:"30"`
	RateWindow   time.Duration `long:"rate-window" env:"RATE_WINDOW" description:"Rate limit window duration" default:"1m"`
	RecordLookup bool          `long:"record-lookups" env:"RECORD_LOOKUPS" description:"Record successful live info queries"`
	RecordEvery  time.Duration `long:"record-interval" env:"RECORD_INTERVAL" description:"Minimum interval between recordings of the same server" default:"1m"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path    string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"a2sprobe.db"`
	Refresh bool          `long:"refresh" description:"Re-probe every recorded server. Update if UP, delete if DOWN."`
	Prune   time.Duration `long:"prune" description:"Delete servers not seen within the given duration"`
	Workers int           `long:"workers" env:"WORKERS" description:"Concurrent probes during refresh" default:"10"`
	Rate    float64       `long:"rate" env:"RATE" description:"Probes per second during refresh (0 for unlimited)" default:"20"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"a2sprobe.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Skip country lookups"`
}

// A2S holds Source Query protocol configuration.
type A2S struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Timeout of each send and receive" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Largest accepted datagram" default:"1400"`
}

// Master holds master server listing configuration.
type Master struct {
	// betteralign:ignore

	Address  string `long:"address" env:"ADDRESS" description:"Master server host:port" default:"hl2master.steampowered.com:27011"`
	Region   string `long:"region" env:"REGION" description:"Region to list" choice:"us-east" choice:"us-west" choice:"south-america" choice:"europe" choice:"asia" choice:"australia" choice:"middle-east" choice:"africa" choice:"all" default:"all"`
	Filter   string `long:"filter" env:"FILTER" description:"Filter string, e.g. \\appid\\240\\dedicated\\1"`
	Limit    int    `long:"limit" env:"LIMIT" description:"Stop after this many addresses (0 for no limit)" default:"500"`
	List     bool   `long:"list" description:"Print the addresses listed by the master server"`
	Discover bool   `long:"discover" description:"Query every listed server and record the ones that answer"`
}

// Fake holds fake responder configuration.
type Fake struct {
	// betteralign:ignore

	Listen       string `long:"listen" env:"LISTEN" description:"Run a fake A2S responder on this UDP address"`
	Players      int    `long:"players" env:"PLAYERS" description:"Number of generated players" default:"12"`
	Legacy       bool   `long:"legacy" env:"LEGACY" description:"Answer with the legacy GoldSource info layout"`
	FragmentSize int    `long:"fragment-size" env:"FRAGMENT_SIZE" description:"Split responses above this many bytes" default:"1200"`
	RulesFiller  bool   `long:"rules-filler" env:"RULES_FILLER" description:"Prefix rules responses with 0xFFFFFFFF"`
}

// ErrVersion is returned by ParseArgs when --version was requested.
var ErrVersion = errors.New("version requested")

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		switch {
		case errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp:
			os.Exit(0)
		case errors.Is(err, ErrVersion):
			vars.Print(os.Stdout)
			os.Exit(0)
		case errors.As(err, &flagsErr):
			// go-flags already printed it
		default:
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	return cfg
}

// ParseArgs parses args and validates the result.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return nil, ErrVersion
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) validate() error {
	switch {
	case cfg.Fake.Listen != "", cfg.Storage.Refresh, cfg.Storage.Prune > 0:
		return nil
	case cfg.Master.List, cfg.Master.Discover:
		if _, _, err := SplitTarget(cfg.Master.Address); err != nil {
			return fmt.Errorf("master address: %w", err)
		}
		return nil
	case cfg.Server.Address != "":
		if cfg.Server.AuthToken == "" {
			return errors.New("required flag `-t, --auth-token' or environment variable `A2SPROBE_AUTH_TOKEN` was not specified")
		}
		return nil
	}

	if cfg.Args.Target == "" {
		return errors.New("a target host:port is required")
	}
	if _, _, err := SplitTarget(cfg.Args.Target); err != nil {
		return err
	}

	return nil
}

// SplitTarget splits a host:port target and validates the port.
func SplitTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid target %q: %w", target, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in target %q", target)
	}

	return host, port, nil
}

// Wants reports whether the probe should run query kind.
func (p Probe) Wants(kind string) bool {
	for _, q := range p.Queries {
		if q == kind {
			return true
		}
	}

	return false
}
