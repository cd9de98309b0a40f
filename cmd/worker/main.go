// Command worker hosts a single document for collabwsd: it answers
// query/thread requests from the supervisor over a broker pipe, dials
// back an outbound WebSocket to the master per session, and drives the
// document engine directly (spec §6.2, §6.4).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/broker"
	"github.com/collabwsd/wsd/internal/config"
	"github.com/collabwsd/wsd/internal/engine"
	"github.com/collabwsd/wsd/internal/logging"
	"github.com/collabwsd/wsd/internal/worker"
)

func main() {
	cfg := config.LoadOrDefault()

	var (
		losubpath  = flag.String("losubpath", "", "document engine subpath, passed through unused by the stub engine")
		jailID     = flag.String("jailid", "", "jail id this worker was spawned under")
		pipePath   = flag.String("pipe", cfg.Broker.WorkerPipe, "broker pipe path shared with the supervisor")
		masterBase = flag.String("master", "ws://127.0.0.1:"+cfg.Server.Port, "master's WebSocket base URL")
		devLog     = flag.Bool("dev", cfg.Logging.Development, "enable development (console) logging")
	)
	flag.Parse()
	_ = losubpath // consumed by the real document engine; unused by engine.NullEngine

	logCfg := logging.DefaultConfig()
	if *devLog {
		logCfg = logging.DevelopmentConfig()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("worker: failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if *jailID == "" {
		logger.Fatal("worker: --jailid is required")
	}

	pipeFile, err := os.OpenFile(*pipePath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		logger.Fatal("worker: open broker pipe failed", zap.String("pipe", *pipePath), zap.Error(err))
	}
	defer pipeFile.Close()

	reader := broker.NewReader(pipeFile)
	defer reader.Stop()
	writer := broker.NewWriter(pipeFile)

	dialer := worker.NewWSDialer(*masterBase)
	host := worker.NewHost(engine.NewNullEngine(), dialer, worker.Config{
		JailID:               *jailID,
		ViewCallbacksEnabled: cfg.Collab.ViewCallbacksEnabled,
		IdleTimeout:          cfg.Collab.IdleTimeout,
	}, logger.Logger)

	client := broker.NewWorkerClient(os.Getpid(), reader, writer, host)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("worker shutting down", zap.String("jailid", *jailID))
		cancel()
	}()

	logger.Info("worker ready", zap.String("jailid", *jailID), zap.Int("pid", os.Getpid()))
	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("worker broker loop error", zap.Error(err))
	}
}
