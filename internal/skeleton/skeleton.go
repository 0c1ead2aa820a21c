package skeleton

import (
	"sync"

	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/danmuck/skelstream/internal/protocol/frame"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FramePolicy decides what happens when a frame's matrix count differs from
// the bone count.
type FramePolicy int

const (
	// FramePolicyClamp applies min(bones, matrices) blocks and ignores the rest.
	FramePolicyClamp FramePolicy = iota
	// FramePolicyStrict drops any frame whose matrix count differs.
	FramePolicyStrict
)

func (p FramePolicy) String() string {
	switch p {
	case FramePolicyStrict:
		return "strict"
	default:
		return "clamp"
	}
}

// ParseFramePolicy maps a config value to a policy. Empty means clamp.
func ParseFramePolicy(raw string) (FramePolicy, bool) {
	switch raw {
	case "", "clamp":
		return FramePolicyClamp, true
	case "strict":
		return FramePolicyStrict, true
	default:
		return FramePolicyClamp, false
	}
}

type Option func(*Skeleton)

func WithFramePolicy(p FramePolicy) Option {
	return func(s *Skeleton) { s.policy = p }
}

// ApplyResult describes one ApplyFrame call.
type ApplyResult struct {
	// Applied is the number of bones overwritten.
	Applied int
	// Matrices is the number of whole blocks the frame carried.
	Matrices int
	// Clamped is set when the clamp policy ignored bones or blocks.
	Clamped bool
	// Dropped is set when the strict policy rejected the frame.
	Dropped bool
}

// Skeleton is one reconstructed bone tree. The zero value is not usable; call
// New or Build.
type Skeleton struct {
	id     string
	policy FramePolicy

	mu          sync.RWMutex
	bones       []Bone
	roots       []int
	children    [][]int
	initialized bool
}

// New returns an empty, uninitialized skeleton.
func New(opts ...Option) *Skeleton {
	s := &Skeleton{id: uuid.NewString()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Skeleton) ID() string {
	return s.id
}

func (s *Skeleton) Policy() FramePolicy {
	return s.policy
}

func (s *Skeleton) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Len is the bone count, 0 before initialization.
func (s *Skeleton) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bones)
}

// Roots returns the indices of bones without a parent, in index order.
func (s *Skeleton) Roots() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.roots...)
}

// Children returns the direct children of bone i, in index order.
func (s *Skeleton) Children(i int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.children) {
		return nil
	}
	return append([]int(nil), s.children[i]...)
}

// Bone returns a copy of bone i.
func (s *Skeleton) Bone(i int) (Bone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.bones) {
		return Bone{}, false
	}
	return s.bones[i], true
}

// LocalMatrix returns bone i's current column-major local transform, or the
// identity for an unknown index.
func (s *Skeleton) LocalMatrix(i int) mgl32.Mat4 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.bones) {
		return mgl32.Ident4()
	}
	return s.bones[i].Local
}

// LocalMatrices snapshots every bone's local transform.
func (s *Skeleton) LocalMatrices() []mgl32.Mat4 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mgl32.Mat4, len(s.bones))
	for i := range s.bones {
		out[i] = s.bones[i].Local
	}
	return out
}

// ApplyFrame overwrites local transforms from a flat float body, one
// transposed 16-float block per bone in index order. It is a no-op on an
// uninitialized skeleton. Bones past the last applied block keep their
// previous transform.
func (s *Skeleton) ApplyFrame(floats []float32) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ApplyResult{}
	}

	res := ApplyResult{Matrices: len(floats) / protocol.MatrixFloats}
	n := min(len(s.bones), res.Matrices)
	if res.Matrices != len(s.bones) {
		if s.policy == FramePolicyStrict {
			res.Dropped = true
			log.Debug().
				Str("skeleton", s.id).
				Int("bones", len(s.bones)).
				Int("matrices", res.Matrices).
				Msg("skeleton.ApplyFrame dropped count mismatch")
			return res
		}
		res.Clamped = true
	}

	for i := 0; i < n; i++ {
		off := i * protocol.MatrixFloats
		s.bones[i].Local = frame.Transposed(floats[off : off+protocol.MatrixFloats])
	}
	res.Applied = n
	return res
}

// Reset restores every bone to its bind pose.
func (s *Skeleton) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bones {
		s.bones[i].Local = s.bones[i].Bind.Mat4()
	}
}
