package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sipterm/uasd"
	"github.com/sipterm/uasd/calllog"
	"github.com/sipterm/uasd/metrics"
)

func main() {
	cfg, err := uasd.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05.000",
	}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	cdr := calllog.New(os.Stdout)
	m := metrics.New()

	log.Info().
		Str("listen", cfg.ListenAddr).
		Str("admin", cfg.AdminAddr).
		Int("workers", cfg.WorkerCount).
		Msg("starting sipuasd")

	srv, err := uasd.NewServer(cfg, log, m, cdr)
	if err != nil {
		log.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Serve(ctx); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
