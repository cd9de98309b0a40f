// Command master runs the collabwsd master process: it accepts client
// WebSockets, brokers the handshake to per-document worker processes
// over a named-pipe pair with the spawning supervisor, and fronts the
// artifact cache.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/collabwsd/wsd/internal/broker"
	"github.com/collabwsd/wsd/internal/config"
	"github.com/collabwsd/wsd/internal/httpapi"
	"github.com/collabwsd/wsd/internal/httpapi/middleware"
	"github.com/collabwsd/wsd/internal/logging"
	"github.com/collabwsd/wsd/internal/master"
	"github.com/collabwsd/wsd/internal/metrics"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadOrDefault()

	addr := flag.String("addr", cfg.Server.Host+":"+cfg.Server.Port, "client-facing listen address")
	jailRoot := flag.String("jail-root", cfg.Collab.JailRoot, "saveas: re-rooting directory")
	devLog := flag.Bool("dev", cfg.Logging.Development, "enable development (console) logging")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *devLog {
		logCfg = logging.DevelopmentConfig()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("master: failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	m := metrics.New()

	s2m, err := os.OpenFile(cfg.Broker.SupervisorToMasterPipe, os.O_RDONLY|os.O_CREATE, 0o600)
	if err != nil {
		logger.Fatal("master: open supervisor-to-master pipe failed", zap.Error(err))
	}
	defer s2m.Close()
	m2s, err := os.OpenFile(cfg.Broker.MasterToSupervisorPipe, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		logger.Fatal("master: open master-to-supervisor pipe failed", zap.Error(err))
	}
	defer m2s.Close()

	reader := broker.NewReader(s2m)
	defer reader.Stop()
	writer := broker.NewWriter(m2s)
	masterClient := broker.NewMasterClient(writer)

	// Supervisor pushes/responses on this pipe are outside this core's
	// scope (spec §6.1); drain so a filling pipe never blocks the
	// supervisor's writes.
	go func() {
		for range reader.Lines() {
		}
	}()

	available := master.NewAvailableTable()
	rendez := master.NewRendezvous(available, masterClient)
	router := master.NewRouter(available, rendez, *jailRoot, logger.Logger)

	srv := httpapi.NewServer(router, m, logger.Logger, httpapi.Options{
		Addr:      *addr,
		CORS:      middleware.DefaultCORSConfig(),
		RateLimit: middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimit.RequestsPerSecond, Burst: cfg.RateLimit.Burst, Enabled: cfg.RateLimit.Enabled},
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("master listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("master shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("master shutdown error", zap.Error(err))
		}
	case err := <-errChan:
		logger.Fatal("master server error", zap.Error(err))
	}
}
