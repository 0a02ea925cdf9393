package game

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/internal/config"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
)

// List pages through the master server in opts and returns the listed
// addresses, at most opts.Limit of them when the limit is positive.
// Addresses collected before a failure are returned with the error.
func List(ctx context.Context, opts config.Master, a2sOpts config.A2S) ([]netip.AddrPort, error) {
	region, err := a2s.ParseRegion(opts.Region)
	if err != nil {
		return nil, err
	}

	host, port, err := config.SplitTarget(opts.Address)
	if err != nil {
		return nil, err
	}

	client, err := a2s.NewMaster(host, port)
	if err != nil {
		return nil, fmt.Errorf("dial master: %w", err)
	}
	defer func() { _ = client.Close() }()

	if a2sOpts.Timeout > 0 {
		client.Timeout = a2sOpts.Timeout
	}
	client.Logger = log.Logger.With().Str("master", opts.Address).Logger()

	var addrs []netip.AddrPort
	for addr, err := range client.Servers(region, opts.Filter) {
		if err != nil {
			return addrs, fmt.Errorf("list servers: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return addrs, err
		}

		addrs = append(addrs, addr)
		if opts.Limit > 0 && len(addrs) >= opts.Limit {
			break
		}
	}

	log.Debug().
		Str("master", opts.Address).
		Stringer("region", region).
		Int("count", len(addrs)).
		Msg("Master listing finished")

	return addrs, nil
}
