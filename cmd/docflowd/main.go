// Command docflowd runs the document processing engine's server: it opens
// the central database, brings up a dispatcher for every active tenant,
// and serves the progress/metrics/upload HTTP API until signalled to stop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docuflow/enginecore/internal/app"
	"github.com/docuflow/enginecore/internal/config"
	"github.com/docuflow/enginecore/internal/httpapi"
	"github.com/docuflow/enginecore/internal/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	rootCtx := context.Background()
	application, err := app.New(rootCtx, cfg, lg)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}

	listenAddr := strings.TrimSpace(*addr)
	if listenAddr == "" {
		listenAddr = cfg.HTTPAddr
	}
	server := httpapi.NewServer(application, listenAddr, lg)

	if err := application.Start(rootCtx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	if err := server.Start(rootCtx); err != nil {
		log.Fatalf("start http server: %v", err)
	}
	lg.Infof("docflowd listening on %s", listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	lg.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		lg.WithError(err).Warn("http server did not shut down cleanly")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
