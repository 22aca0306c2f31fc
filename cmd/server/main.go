// Command server runs the shell co-pilot HTTP server: it accepts session
// lifecycle requests, brokers the Tool Service's JSON-RPC surface, and
// bridges the Event Gateway's WebSocket and SSE streams to whatever AI CLI
// and SSH shell each session owns.
//
// Grounded on CLAUDE-PUNK's cmd/server/main.go (env-driven config, signal-
// triggered graceful shutdown) and the teacher's deleted cmd/daemon.go
// Unix-socket listener loop, retargeted to a single net/http.Server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schovi/shellcopilot/internal/config"
	"github.com/schovi/shellcopilot/internal/logging"
	"github.com/schovi/shellcopilot/internal/router"
	"github.com/schovi/shellcopilot/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.String("error", err.Error()))
		return 1
	}

	log := logging.New(cfg.LogLevel)

	reg := session.NewRegistry(session.Options{
		Logger:               log,
		OutputBufferCapacity: cfg.OutputBufferCapacity,
		AIContextCapacity:    cfg.AIContextCapacity,
		IdleTimeout:          cfg.SessionIdleTimeout,
	})
	defer reg.Shutdown()

	handler := router.New(reg, cfg, log)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	log.Info("listening", slog.String("addr", cfg.ListenAddr))

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server", slog.String("error", err.Error()))
			return 1
		}
	case sig := <-sigCh:
		log.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown", slog.String("error", err.Error()))
			return 1
		}
	}

	return 0
}
