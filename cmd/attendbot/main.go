package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"attendbot/internal/app"
	"attendbot/internal/config"
	"attendbot/internal/logging"
)

// drainDelay gives the balancer time to observe /ready flipping to 503
// before the HTTP server stops accepting connections.
const drainDelay = 5 * time.Second

func main() {
	// Local development only; absent .env files are not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(sigCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init application", zap.Error(err))
	}
	defer application.Close()

	// Serve on a context that outlives the signal by the drain delay, so the
	// overlapping instance takes traffic before this one shuts down.
	serveCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sigCtx.Done()
		logger.Info("shutdown signal received, draining")
		application.BeginDrain()
		time.Sleep(drainDelay)
		cancel()
	}()

	if err := application.Run(serveCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("application stopped with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
