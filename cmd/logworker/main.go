package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/worker"
)

func main() {
	log := logger.NewLogger("logworker")

	rt, err := worker.LoadRuntime(os.Getenv("CONFIG_DIR"))
	if err != nil {
		log.Fatal().Err(err).Msg("error loading worker bundle")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := worker.NewLogWorker(rt, log).RunForever(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("worker terminated with error")
	}

	log.Info().Msg("worker shut down")
}
