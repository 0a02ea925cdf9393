// Package maintenance provides tasks that discover, refresh and prune recorded servers.
package maintenance

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/internal/config"
	"github.com/woozymasta/a2sprobe/internal/game"
	"github.com/woozymasta/a2sprobe/internal/geoip"
	"github.com/woozymasta/a2sprobe/internal/models"
	"github.com/woozymasta/a2sprobe/internal/storage"
	"github.com/woozymasta/a2sprobe/pkg/a2s"
	"golang.org/x/time/rate"
)

// Stats counts refresh and discovery outcomes.
type Stats struct {
	Updated int
	Added   int
	Deleted int
	Failed  int
}

// Run executes the maintenance tasks selected in cfg: prune, then discovery,
// then refresh.
// It returns true if any task ran, meaning the program should exit.
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository, geo geoip.Locator) bool {
	ran := false

	if cfg.Storage.Prune > 0 {
		ran = true
		log.Info().Dur("older_than", cfg.Storage.Prune).Msg("Pruning stale servers...")

		count, err := Prune(store, cfg.Storage.Prune)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune servers")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}
	}

	if cfg.Master.Discover {
		ran = true

		stats, err := Discover(ctx, store, geo, cfg.Master, cfg.Storage, cfg.A2S)
		if err != nil {
			log.Error().Err(err).Msg("Discovery failed")
		} else {
			log.Info().
				Int("added", stats.Added).
				Int("failed", stats.Failed).
				Msg("Discovery finished")
		}
	}

	if cfg.Storage.Refresh {
		ran = true

		stats, err := Refresh(ctx, store, geo, cfg.Storage, cfg.A2S)
		if err != nil {
			log.Error().Err(err).Msg("Refresh failed")
		} else {
			log.Info().
				Int("updated", stats.Updated).
				Int("deleted", stats.Deleted).
				Int("failed", stats.Failed).
				Msg("Refresh finished")
		}
	}

	return ran
}

// Prune deletes servers not seen within maxAge.
func Prune(store *storage.Repository, maxAge time.Duration) (int64, error) {
	return store.DeleteStale(time.Now().Add(-maxAge))
}

// Refresh re-probes every recorded server with a bounded, rate limited
// worker pool. Reachable servers are updated with their rules and
// unreachable ones are deleted.
func Refresh(ctx context.Context, store *storage.Repository, geo geoip.Locator, opts config.Storage, a2sOpts config.A2S) (Stats, error) {
	servers, err := store.GetServers()
	if err != nil {
		return Stats{}, fmt.Errorf("fetch servers: %w", err)
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for refresh")
		return Stats{}, nil
	}

	if geo == nil {
		geo = geoip.Nop{}
	}

	log.Info().Int("count", len(servers)).Msg("Starting refresh...")

	return runPool(ctx, servers, opts, func(srv models.Server) outcome {
		return refreshServer(srv, store, geo, a2sOpts)
	})
}

// Discover lists servers from the master server and records every one that
// answers an info query. Silent servers are counted as failed.
func Discover(ctx context.Context, store *storage.Repository, geo geoip.Locator, master config.Master, opts config.Storage, a2sOpts config.A2S) (Stats, error) {
	addrs, err := game.List(ctx, master, a2sOpts)
	if err != nil && len(addrs) == 0 {
		return Stats{}, err
	}
	if err != nil {
		log.Warn().Err(err).Int("count", len(addrs)).Msg("Master listing incomplete, discovering partial list")
	}

	if geo == nil {
		geo = geoip.Nop{}
	}

	log.Info().Int("count", len(addrs)).Str("master", master.Address).Msg("Starting discovery...")

	return runPool(ctx, addrs, opts, func(addr netip.AddrPort) outcome {
		return discoverServer(addr, store, geo, a2sOpts)
	})
}

// runPool feeds items to opts.Workers goroutines at no more than opts.Rate
// per second and tallies their outcomes. It stops feeding when ctx ends.
func runPool[T any](ctx context.Context, items []T, opts config.Storage, fn func(T) outcome) (Stats, error) {
	workers := max(opts.Workers, 1)
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	limiter := rate.NewLimiter(limit, workers)

	var (
		mu    sync.Mutex
		stats Stats
		wg    sync.WaitGroup
		jobs  = make(chan T)
		err   error
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				result := fn(item)

				mu.Lock()
				switch result {
				case updated:
					stats.Updated++
				case added:
					stats.Added++
				case deleted:
					stats.Deleted++
				default:
					stats.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, item := range items {
		if err = limiter.Wait(ctx); err != nil {
			break
		}
		jobs <- item
	}
	close(jobs)
	wg.Wait()

	return stats, err
}

type outcome int

const (
	failed outcome = iota
	updated
	added
	deleted
)

func refreshServer(srv models.Server, store *storage.Repository, geo geoip.Locator, a2sOpts config.A2S) outcome {
	logCtx := log.With().
		Str("ip", srv.IP).
		Int("port", srv.Port).
		Logger()

	client, err := game.Dial(srv.IP, srv.Port, a2sOpts)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Cannot dial server, deleting")
		return remove(srv, store, logCtx)
	}
	defer func() { _ = client.Close() }()

	info, err := client.GetInfo()
	if err != nil {
		logCtx.Debug().Err(err).Msg("Server unreachable, deleting")
		return remove(srv, store, logCtx)
	}

	fresh := models.NewServer(srv.IP, srv.Port, info, time.Now())
	fresh.CountryCode = geo.CountryCode(srv.IP)
	if err := store.UpsertServer(fresh); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
		return failed
	}

	if err := refreshRules(client, srv, store, logCtx); err != nil {
		logCtx.Debug().Err(err).Msg("Rules not refreshed")
	}

	logCtx.Trace().Msg("Server updated")

	return updated
}

func discoverServer(addr netip.AddrPort, store *storage.Repository, geo geoip.Locator, a2sOpts config.A2S) outcome {
	ip, port := addr.Addr().String(), int(addr.Port())
	logCtx := log.With().
		Str("ip", ip).
		Int("port", port).
		Logger()

	client, err := game.Dial(ip, port, a2sOpts)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Cannot dial listed server")
		return failed
	}
	defer func() { _ = client.Close() }()

	info, err := client.GetInfo()
	if err != nil {
		logCtx.Debug().Err(err).Msg("Listed server did not answer")
		return failed
	}

	srv := models.NewServer(ip, port, info, time.Now())
	srv.CountryCode = geo.CountryCode(ip)
	if err := store.UpsertServer(srv); err != nil {
		logCtx.Error().Err(err).Msg("Failed to record listed server")
		return failed
	}

	if err := refreshRules(client, srv, store, logCtx); err != nil {
		logCtx.Debug().Err(err).Msg("Rules not recorded")
	}

	logCtx.Trace().Msg("Server discovered")

	return added
}

func refreshRules(client *a2s.Client, srv models.Server, store *storage.Repository, logCtx zerolog.Logger) error {
	token, err := client.GetChallenge()
	if err != nil {
		return err
	}

	list, err := client.GetRules(token)
	if err != nil {
		return err
	}

	rules := models.RuleSlice(list)
	changed, err := store.SaveRules(srv.IP, srv.Port, rules)
	if err != nil {
		return err
	}
	if changed {
		logCtx.Debug().Int("rules", len(rules)).Msg("Rules changed")
	}

	return nil
}

func remove(srv models.Server, store *storage.Repository, logCtx zerolog.Logger) outcome {
	if err := store.DeleteServer(srv.IP, srv.Port); err != nil {
		logCtx.Error().Err(err).Msg("Failed to delete unreachable server")
		return failed
	}

	return deleted
}
