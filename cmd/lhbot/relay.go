package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/pkg/relay"
)

func cmdRelay(args []string) {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	addr := fs.String("addr", "localhost:8090", "Address to listen on")
	path := fs.String("path", "/ws", "WebSocket path")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	jsonLogs := fs.Bool("json", false, "JSON logs")
	fs.Parse(args)

	log := logger.Init(*logLevel, *jsonLogs)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle(*path, relay.New(nil, log))
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("relay listening", zap.String("addr", *addr), zap.String("path", *path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatalf("relay: %v", err)
	}
	log.Info("relay stopped")
}
