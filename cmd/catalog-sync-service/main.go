// Package main boots the catalog sync service: the delta ingestion pipeline
// plus its HTTP status/trigger surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kioshini/catalog-sync-service/internal/catalog"
	"github.com/kioshini/catalog-sync-service/internal/config"
	httpapi "github.com/kioshini/catalog-sync-service/internal/http"
	"github.com/kioshini/catalog-sync-service/internal/obs"
	"github.com/kioshini/catalog-sync-service/internal/syncer"
)

func main() {
	cfg := config.Load()
	obs.InitLogger()
	obs.Logger.Info("service_starting")

	st := catalog.New()
	svc := syncer.New(cfg, st)

	// Seed the catalog before watching; a missing source is survivable (delta
	// records will just miss until the first successful resync).
	ctxSeed, cancelSeed := context.WithTimeout(context.Background(), time.Minute)
	if err := svc.FullResync(ctxSeed); err != nil {
		obs.Logger.Warn("initial_resync_failed", "error", err)
	}
	cancelSeed()

	if err := svc.Start(context.Background()); err != nil {
		obs.Logger.Error("monitoring_start_failed", "error", err)
		os.Exit(1)
	}

	app := httpapi.NewApp(cfg, st, svc)
	mux := httpapi.NewRouter(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}

	// Stop waits for any file already admitted past the gate to finish.
	if err := svc.Stop(); err != nil && err != syncer.ErrNotRunning {
		obs.Logger.Error("monitoring_stop_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}
