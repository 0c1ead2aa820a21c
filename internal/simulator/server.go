package simulator

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danmuck/skelstream/internal/observability"
	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/danmuck/skelstream/internal/protocol/frame"
	"github.com/danmuck/skelstream/internal/protocol/handshake"
	"github.com/danmuck/skelstream/internal/protocol/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"
)

const nodeName = "skelsim"

type Config struct {
	Addr        string
	Bones       int
	FPS         int
	CorsOrigins []string
}

// Simulator streams the demo rig to every websocket peer. Each peer gets its
// own handshake and a frame counter starting at zero.
type Simulator struct {
	cfg      Config
	rig      Rig
	router   *gin.Engine
	started  time.Time
	sessions atomic.Int64
}

func New(cfg Config) *Simulator {
	if cfg.Bones <= 0 {
		cfg.Bones = 8
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.HTTPMiddleware(nodeName))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Simulator{
		cfg:     cfg,
		rig:     Rig{Bones: cfg.Bones},
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Simulator) HTTPRouter() *gin.Engine {
	return s.router
}

// Sessions is the number of connected stream peers.
func (s *Simulator) Sessions() int {
	return int(s.sessions.Load())
}

func (s *Simulator) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   time.Since(s.started).String(),
			"bones":    s.cfg.Bones,
			"fps":      s.cfg.FPS,
			"sessions": s.Sessions(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// websocket.Server with no Handshake hook accepts peers that send no Origin.
	s.router.GET("/ws", gin.WrapH(websocket.Server{Handler: s.stream}))
}

// Serve listens on cfg.Addr until ctx is cancelled.
func (s *Simulator) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Int("bones", s.cfg.Bones).Int("fps", s.cfg.FPS).Msg("simulator listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Simulator) stream(ws *websocket.Conn) {
	defer ws.Close()
	s.sessions.Add(1)
	defer s.sessions.Add(-1)

	peer := ws.Request().RemoteAddr
	ctx := ws.Request().Context()

	def, err := handshake.Marshal(s.rig.Def())
	if err != nil {
		log.Error().Err(err).Msg("simulator handshake encode failed")
		return
	}
	if err := session.Codec.Send(ws, protocol.TextMessage(string(def))); err != nil {
		log.Debug().Str("peer", peer).Err(err).Msg("simulator handshake send failed")
		return
	}
	log.Info().Str("peer", peer).Int("bones", s.cfg.Bones).Msg("simulator session started")

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()
	var frameID uint32
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := now.Sub(s.started).Seconds()
			payload := frame.EncodeMatrices(frameID, 0, s.rig.Pose(t))
			if err := session.Codec.Send(ws, protocol.BinaryMessage(payload)); err != nil {
				log.Info().Str("peer", peer).Uint32("frames", frameID).Msg("simulator session ended")
				return
			}
			observability.RecordSimFrame()
			frameID++
		}
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:5173"}
	}
	return origins
}
