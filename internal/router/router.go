// Package router classifies inbound pose-stream messages and dispatches them
// to the hierarchy builder or to the registered skeleton instances.
package router

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/skelstream/internal/observability"
	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/danmuck/skelstream/internal/protocol/frame"
	"github.com/danmuck/skelstream/internal/protocol/handshake"
	"github.com/danmuck/skelstream/internal/skeleton"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Action is the routing outcome for one message.
type Action int

const (
	ActionIgnored Action = iota
	ActionHandshake
	ActionFrame
	ActionUnknown
	ActionMalformed
)

func (a Action) String() string {
	switch a {
	case ActionHandshake:
		return "handshake"
	case ActionFrame:
		return "frame"
	case ActionUnknown:
		return "unknown"
	case ActionMalformed:
		return "malformed"
	default:
		return "ignored"
	}
}

// Scene receives each newly built skeleton. It is the render collaborator.
type Scene interface {
	AddSkeleton(s *skeleton.Skeleton)
}

// SceneFunc adapts a function to Scene.
type SceneFunc func(s *skeleton.Skeleton)

func (f SceneFunc) AddSkeleton(s *skeleton.Skeleton) { f(s) }

// Config controls skeleton creation.
type Config struct {
	FramePolicy skeleton.FramePolicy
}

// Result describes how one message was handled. Err is set when a handshake or
// frame was classified but rejected.
type Result struct {
	Action   Action
	Skeleton *skeleton.Skeleton
	Header   frame.Header
	Applied  int
	Err      error
}

// Router owns the skeleton instances created from handshakes on one session.
// Route is meant to be called from a single reader goroutine; the instance
// list is guarded so renderers and Remove can run alongside it.
type Router struct {
	cfg   Config
	scene Scene

	mu        sync.RWMutex
	skeletons []*skeleton.Skeleton
}

func New(cfg Config, scene Scene) *Router {
	return &Router{cfg: cfg, scene: scene}
}

// Route handles one message to completion. No error escapes: rejected
// messages are logged, counted and reported in Result.
func (r *Router) Route(msg protocol.Message) Result {
	var res Result
	switch msg.Kind {
	case protocol.MessageBinary:
		res = r.routeFrame(msg.Data)
	case protocol.MessageText:
		res = r.routeText(msg.Data)
	default:
		log.Warn().Uint8("kind", uint8(msg.Kind)).Msg("router.Route unsupported message kind")
		res = Result{Action: ActionIgnored}
	}
	observability.RecordMessage(msg.Kind.String(), res.Action.String())
	return res
}

func (r *Router) routeText(data []byte) Result {
	if !gjson.ValidBytes(data) {
		err := fmt.Errorf("%w: %d bytes", protocol.ErrMalformed, len(data))
		log.Warn().Err(err).Msg("router.Route malformed text message")
		return Result{Action: ActionMalformed, Err: err}
	}
	tag := gjson.GetBytes(data, "type")
	if tag.Type != gjson.String || tag.Str != protocol.TagSkeletonDef {
		log.Info().Str("type", tag.String()).Msg("router.Route unknown message")
		return Result{Action: ActionUnknown}
	}

	s, err := r.handshake(data)
	if errors.Is(err, handshake.ErrNotSkeletonDef) {
		// gjson keeps the first duplicate key, encoding/json the last.
		log.Info().Err(err).Msg("router.Route unknown message")
		return Result{Action: ActionUnknown}
	}
	observability.RecordHandshake(protocol.Kind(err))
	if err != nil {
		log.Error().Err(err).Str("kind", protocol.Kind(err)).Msg("router.Route handshake rejected")
		return Result{Action: ActionHandshake, Err: err}
	}

	r.mu.Lock()
	r.skeletons = append(r.skeletons, s)
	count := len(r.skeletons)
	r.mu.Unlock()
	observability.SetSkeletons(count)

	if r.scene != nil {
		r.scene.AddSkeleton(s)
	}
	log.Info().Str("skeleton", s.ID()).Int("bones", s.Len()).Int("instances", count).Msg("router.Route skeleton loaded")
	return Result{Action: ActionHandshake, Skeleton: s}
}

func (r *Router) handshake(data []byte) (*skeleton.Skeleton, error) {
	def, err := handshake.Parse(data)
	if err != nil {
		return nil, err
	}
	return skeleton.Build(def, skeleton.WithFramePolicy(r.cfg.FramePolicy))
}

func (r *Router) routeFrame(data []byte) Result {
	start := time.Now()
	f, err := frame.Decode(data)
	if err != nil {
		observability.RecordFrame(protocol.Kind(err), 0)
		log.Warn().Err(err).Int("bytes", len(data)).Msg("router.Route frame dropped")
		return Result{Action: ActionFrame, Err: err}
	}

	r.mu.RLock()
	targets := append([]*skeleton.Skeleton(nil), r.skeletons...)
	r.mu.RUnlock()

	applied := 0
	for _, s := range targets {
		res := s.ApplyFrame(f.Floats)
		applied += res.Applied
		if res.Clamped || res.Dropped {
			observability.RecordCountMismatch(s.Policy().String())
			log.Debug().
				Str("skeleton", s.ID()).
				Uint32("frame_id", f.Header.FrameID).
				Int("bones", s.Len()).
				Int("matrices", res.Matrices).
				Bool("dropped", res.Dropped).
				Msg("router.Route frame count mismatch")
		}
	}
	observability.RecordFrame("ok", time.Since(start))
	if len(targets) == 0 {
		log.Debug().Uint32("frame_id", f.Header.FrameID).Msg("router.Route frame before handshake")
	}
	return Result{Action: ActionFrame, Header: f.Header, Applied: applied}
}

// Skeletons returns the registered instances in creation order.
func (r *Router) Skeletons() []*skeleton.Skeleton {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*skeleton.Skeleton(nil), r.skeletons...)
}

// Remove unregisters the instance with id. Later frames no longer reach it.
func (r *Router) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.skeletons {
		if s.ID() == id {
			r.skeletons = append(r.skeletons[:i], r.skeletons[i+1:]...)
			observability.SetSkeletons(len(r.skeletons))
			return true
		}
	}
	return false
}

// Reset drops every instance, as when the owning session ends.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skeletons = nil
	observability.SetSkeletons(0)
}
