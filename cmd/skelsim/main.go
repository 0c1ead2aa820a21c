package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/skelstream/internal/config"
	"github.com/danmuck/skelstream/internal/observability"
	"github.com/danmuck/skelstream/internal/simulator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("skelsim")
	configPath := flag.String("config", "", "simulator config path (.toml, .yaml)")
	flag.Parse()

	cfg, err := config.LoadSimConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load sim config")
	}
	log.Info().Str("path", *configPath).Msg("loaded sim config")

	gin.SetMode(gin.ReleaseMode)
	sim := simulator.New(simulator.Config{
		Addr:        cfg.Addr,
		Bones:       cfg.Bones,
		FPS:         cfg.FPS,
		CorsOrigins: cfg.CorsOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := sim.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("simulator stopped")
	}
	log.Info().Msg("simulator stopped")
}
