package main

import (
	"context"
	"time"

	"github.com/danmuck/skelstream/internal/skeleton"
	"github.com/rs/zerolog/log"
)

// debugScene stands in for a renderer. Instances come from the router so a
// session reset drops them here too.
type debugScene struct {
	source func() []*skeleton.Skeleton
}

func (d *debugScene) AddSkeleton(s *skeleton.Skeleton) {
	log.Info().Str("skeleton", s.ID()).Int("bones", s.Len()).Ints("roots", s.Roots()).Msg("scene: skeleton added")
}

func (d *debugScene) report() {
	if d.source == nil {
		return
	}
	all := d.source()
	log.Debug().Int("skeletons", len(all)).Msg("scene: report")
	for _, s := range all {
		for _, root := range s.Roots() {
			t := s.LocalMatrix(root).Col(3)
			log.Info().
				Str("skeleton", s.ID()).
				Int("root", root).
				Float32("x", t.X()).
				Float32("y", t.Y()).
				Float32("z", t.Z()).
				Msg("scene: root translation")
		}
	}
}

func (d *debugScene) run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.report()
		}
	}
}
