package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pintr/p2p-videocall/internal/config"
	"github.com/pintr/p2p-videocall/internal/iceservers"
	"github.com/pintr/p2p-videocall/internal/server"
	"github.com/pintr/p2p-videocall/internal/signaling"
)

func main() {
	var (
		flagAddr   = flag.String("addr", "", "listen address (default :8080)")
		flagICEURL = flag.String("ice-config-url", "", "connectivity-server credential service URL")
		flagTTL    = flag.Duration("room-ttl", 0, "expiry for rooms stuck below capacity (default 10m)")
	)
	flag.Parse()

	w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log := zerolog.New(w).With().Timestamp().Logger()

	cfg, err := config.LoadServer(config.ServerOptions{
		Addr:         *flagAddr,
		ICEConfigURL: *flagICEURL,
		RoomTTL:      *flagTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credentials arrive asynchronously; joins before the first fetch get
	// null iceServers rather than blocking.
	ice := iceservers.New(cfg.ICEConfigURL, cfg.ICERefreshInterval, log)
	ice.Start(ctx)

	hub := signaling.NewHub(log, ice, signaling.Options{RoomTTL: cfg.RoomTTL})
	go hub.Run()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.NewRouter(hub, cfg.AllowedOrigins, log),
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting signaling relay")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	hub.Stop()
	log.Info().Msg("relay exited")
}
