// main is the entry point of a2sprobe.
// It probes a game server once, lists a master server, or runs the HTTP API,
// database maintenance or a fake responder.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/internal/config"
	"github.com/woozymasta/a2sprobe/internal/fake"
	"github.com/woozymasta/a2sprobe/internal/game"
	"github.com/woozymasta/a2sprobe/internal/geoip"
	"github.com/woozymasta/a2sprobe/internal/logger"
	"github.com/woozymasta/a2sprobe/internal/maintenance"
	"github.com/woozymasta/a2sprobe/internal/models"
	"github.com/woozymasta/a2sprobe/internal/server"
	"github.com/woozymasta/a2sprobe/internal/storage"
	"github.com/woozymasta/a2sprobe/internal/vars"
)

func main() {
	cfg := config.Parse()
	logger.Setup(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("Failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Fake.Listen != "" {
		return runFake(ctx, cfg.Fake)
	}
	if cfg.Master.List && !cfg.Master.Discover {
		return listMaster(ctx, cfg)
	}

	serve := cfg.Server.Address != ""
	maintain := cfg.Storage.Refresh || cfg.Storage.Prune > 0 || cfg.Master.Discover
	if !serve && !maintain && !cfg.Probe.Record {
		return probe(cfg, nil, nil)
	}

	geo, closeGeo := openGeoIP(ctx, cfg.GeoIP)
	defer closeGeo()

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	switch {
	case maintenance.Run(ctx, cfg, store, geo):
		return nil
	case serve:
		return runServer(ctx, cfg, store, geo)
	default:
		return probe(cfg, store, geo)
	}
}

// openGeoIP refreshes and opens the country database. Failures only disable lookups.
func openGeoIP(ctx context.Context, cfg config.GeoIP) (geoip.Locator, func()) {
	if cfg.Disable {
		return geoip.Nop{}, func() {}
	}

	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return geoip.Nop{}, func() {}
	}

	return provider, func() {
		if err := provider.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GeoIP provider")
		}
	}
}

// probe queries the target once, prints the report and optionally records it.
func probe(cfg *config.Config, store *storage.Repository, geo geoip.Locator) error {
	host, port, err := config.SplitTarget(cfg.Args.Target)
	if err != nil {
		return err
	}

	log.Debug().Str("ip", host).Int("port", port).Strs("query", cfg.Probe.Queries).Msg("Probing server")

	report, err := game.Probe(host, port, cfg.A2S, cfg.Probe)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if store == nil {
		return nil
	}

	srv := models.NewServer(report.IP, report.Port, report.Info, time.Now())
	srv.CountryCode = geo.CountryCode(report.IP)
	if err := store.UpsertServer(srv); err != nil {
		return fmt.Errorf("record server: %w", err)
	}

	if report.Rules != nil {
		if _, err := store.SaveRules(report.IP, report.Port, models.RuleSlice(report.Rules)); err != nil {
			return fmt.Errorf("record rules: %w", err)
		}
	}

	log.Info().Str("ip", report.IP).Int("port", report.Port).Msg("Probe recorded")

	return nil
}

// listMaster prints the addresses listed by the master server, one per line.
func listMaster(ctx context.Context, cfg *config.Config) error {
	addrs, err := game.List(ctx, cfg.Master, cfg.A2S)
	for _, addr := range addrs {
		fmt.Println(addr.String())
	}

	return err
}

func runServer(ctx context.Context, cfg *config.Config, store *storage.Repository, geo geoip.Locator) error {
	log.Info().Str("version", vars.Version).Msg("Starting a2sprobe API...")

	srvHandler := server.New(store, geo, cfg)
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 4*cfg.A2S.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// drain recordings
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")

	return serveErr
}

func runFake(ctx context.Context, cfg config.Fake) error {
	state := fake.GenerateState(cfg.Players, cfg.Legacy)

	srv, err := fake.Listen(cfg.Listen, state, fake.Options{
		Secret:       uuid.NewString(),
		FragmentSize: cfg.FragmentSize,
		RulesFiller:  cfg.RulesFiller,
	})
	if err != nil {
		return fmt.Errorf("start fake responder: %w", err)
	}

	log.Info().
		Str("address", srv.Addr().String()).
		Str("variant", string(state.Info.Variant())).
		Int("players", len(state.Players)).
		Msg("Fake responder listening")

	<-ctx.Done()

	log.Info().Msg("Stopping fake responder...")

	return srv.Close()
}
