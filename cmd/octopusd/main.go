// Command octopusd is the Octopus appliance: it wires configuration,
// persistence, storage, the job queue, the background worker pool, and the
// HTTP API into one running process, keeping main.go thin and delegating
// service construction and lifetime to the runtime package.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/octopus-bim/octopus/cmd/octopusd/runtime"
	"github.com/octopus-bim/octopus/pkg/config"
)

var configFlag = flag.String("c", "", "path to config file (TOML, YAML, or JSON)")

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if *configFlag != "" {
		config.SetFile(*configFlag)
	}
	if err := config.Read(); err != nil {
		log.Fatal().Err(err).Msg("octopusd: failed to read config file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("octopusd: failed to decode config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtime.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("octopusd: failed to construct runtime")
	}

	rt.Start(ctx)
	log.Info().Str("addr", cfg.HTTP.Addr).Msg("octopusd: listening")

	<-ctx.Done()
	log.Info().Msg("octopusd: shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("octopusd: shutdown did not complete cleanly")
	}
}
