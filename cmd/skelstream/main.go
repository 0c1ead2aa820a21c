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

	"github.com/danmuck/skelstream/internal/observability"
	"github.com/danmuck/skelstream/internal/protocol/session"
	"github.com/danmuck/skelstream/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("skelstream")
	fs := flag.NewFlagSet("skelstream", flag.ExitOnError)
	flags, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse flags")
	}
	cfg, err := loadClientConfig(fs, flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load client config")
	}
	log.Info().Str("path", flags.configPath).Str("url", cfg.URL).Str("policy", cfg.FramePolicy).Msg("loaded client config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.RegisterMetrics()
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	scene := &debugScene{}
	rt := router.New(cfg.Router(), scene)
	scene.source = rt.Skeletons

	client, err := session.New(cfg.Session(), rt, session.WithStatus(func(s session.Status) {
		log.Info().Str("status", s.String()).Msg("session status")
	}))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid session config")
	}
	if err := client.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start session")
	}
	go scene.run(ctx, cfg.StatusEvery())

	select {
	case <-ctx.Done():
	case <-client.Done():
	}
	if err := client.Stop(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("session ended")
		os.Exit(1)
	}
	log.Info().Msg("skelstream stopped")
}

func serveMetrics(ctx context.Context, addr string) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.HTTPMiddleware("skelstream"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}
