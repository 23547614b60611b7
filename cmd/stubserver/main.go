package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vidgen/internal/infra"
	"vidgen/internal/stubapi"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	stub := stubapi.New(stubapi.Options{
		Logger:          &logger,
		VisibilityDelay: cfg.StubVisibilityDelay,
		StepInterval:    cfg.StubStepInterval,
	})

	server := infra.NewHTTPServer(cfg, stub.Router())

	go func() {
		logger.Info().Msgf("stub backend listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
