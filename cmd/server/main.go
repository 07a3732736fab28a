package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/gateway/ws"
	repo "github.com/Wyydra/rendezvous/internal/adapter/driven/persistence/memory"
	handler "github.com/Wyydra/rendezvous/internal/adapter/driving/http"
	"github.com/Wyydra/rendezvous/internal/config"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	l, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	log.Logger = l

	registry := repo.NewRoomRegistry()
	hub := ws.NewHub()

	relayService := service.NewRelayService(hub)
	roomService := service.NewRoomService(registry, hub, relayService,
		service.WithMaxParticipants(cfg.MaxParticipants))
	h := handler.NewHandler(roomService, hub, cfg)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: h.NewRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go service.NewStatsReporter(roomService, cfg.StatsInterval).Run(ctx)

	go func() {
		l.Info().
			Str("addr", cfg.Addr()).
			Str("environment", cfg.Environment).
			Int("max_participants", cfg.MaxParticipants).
			Msg("Starting signaling server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	l.Info().Msg("Server exited")
}
