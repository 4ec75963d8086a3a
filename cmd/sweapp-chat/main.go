package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"tailscale.com/tsnet"

	"github.com/mozzarellastix/SWE-App/internal/auth"
	"github.com/mozzarellastix/SWE-App/internal/config"
	"github.com/mozzarellastix/SWE-App/internal/db"
	"github.com/mozzarellastix/SWE-App/internal/relay"
	"github.com/mozzarellastix/SWE-App/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.SetupLogging()
	log.Infof("Starting chat server with config: %s", cfg)

	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		log.WithError(err).Fatal("Failed to create state directory")
	}

	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer store.Close()

	tokens := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	authenticators := auth.Chain{}

	var (
		ln       net.Listener
		tsServer *tsnet.Server
	)
	switch cfg.ListenMode {
	case config.ListenTailnet:
		tsServer = &tsnet.Server{
			Hostname: cfg.TailnetHostname,
			Dir:      filepath.Join(cfg.StateDir, "tailnet-state"),
		}
		defer tsServer.Close()

		ln, err = tsServer.ListenTLS("tcp", ":443")
		if err != nil {
			log.WithError(err).Fatal("Failed to listen on tailnet")
		}

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.WithError(err).Fatal("Failed to get local client")
		}
		// Tailnet identity first, so peers need no token.
		authenticators = append(authenticators, auth.NewTailnetAuthenticator(lc, store))
	default:
		ln, err = net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			log.WithError(err).Fatal("Failed to listen")
		}
	}
	defer ln.Close()
	authenticators = append(authenticators, auth.NewBearerAuthenticator(tokens, store))

	rl := relay.New(store, store,
		relay.WithQueueSize(cfg.ClientQueueSize),
		relay.WithLocation(cfg.Location()),
	)
	srv := server.NewServer(rl, store, authenticators, tokens,
		server.WithAllowedOrigins(cfg.AllowedOrigins...),
	)

	httpServer := &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Shutdown did not complete cleanly")
		}
	}()

	addr := ln.Addr().String()
	if tsServer != nil {
		if domains := tsServer.CertDomains(); len(domains) > 0 {
			addr = "https://" + domains[0]
		}
	}
	log.WithField("addr", addr).Info("Chat server running")

	if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server error")
	}
}
