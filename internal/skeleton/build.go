package skeleton

import (
	"errors"
	"fmt"

	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/danmuck/skelstream/internal/protocol/handshake"
	"github.com/rs/zerolog/log"
)

var ErrAlreadyInitialized = errors.New("skeleton: already initialized")

// BuildError reports the first hierarchy violation found while building.
type BuildError struct {
	Kind   error
	Bone   int
	Parent int
}

func (e BuildError) Error() string {
	return fmt.Sprintf("skeleton: bone=%d parent=%d: %v", e.Bone, e.Parent, e.Kind)
}

func (e BuildError) Unwrap() error {
	return e.Kind
}

// Build validates def and returns a new initialized Skeleton.
func Build(def handshake.SkeletonDef, opts ...Option) (*Skeleton, error) {
	s := New(opts...)
	if err := s.Initialize(def); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize builds the bone tree from def. Validation runs to completion
// before any state changes, so a failed call leaves s uninitialized. A
// skeleton can be initialized once; a new handshake needs a new Skeleton.
func (s *Skeleton) Initialize(def handshake.SkeletonDef) error {
	if err := validateHierarchy(def); err != nil {
		log.Warn().Str("skeleton", s.id).Err(err).Str("kind", protocol.Kind(err)).Msg("skeleton.Initialize rejected")
		return err
	}

	n := def.BoneCount()
	bones := make([]Bone, n)
	children := make([][]int, n)
	roots := make([]int, 0, 1)
	for i := 0; i < n; i++ {
		bind := transformFromTuples(
			def.BindPose.Positions[i],
			def.BindPose.Rotations[i],
			def.BindPose.Scales[i],
		)
		parent := int(def.Parents[i])
		bones[i] = Bone{
			Name:   def.BoneNames[i],
			Parent: parent,
			Bind:   bind,
			Local:  bind.Mat4(),
		}
		if parent == NoParent {
			roots = append(roots, i)
			continue
		}
		children[parent] = append(children[parent], i)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.bones = bones
	s.roots = roots
	s.children = children
	s.initialized = true

	log.Info().
		Str("skeleton", s.id).
		Int("bones", n).
		Ints("roots", roots).
		Msg("skeleton.Initialize ok")
	return nil
}

// validateHierarchy runs the schema check then one pass per hierarchy rule,
// so the reported kind follows a fixed precedence regardless of bone order.
func validateHierarchy(def handshake.SkeletonDef) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("skeleton: %w", err)
	}
	n := def.BoneCount()
	for i, p := range def.Parents {
		if p < NoParent || int(p) >= n {
			return BuildError{Kind: protocol.ErrInvalidParentIndex, Bone: i, Parent: int(p)}
		}
	}
	for i, p := range def.Parents {
		if int(p) == i {
			return BuildError{Kind: protocol.ErrSelfParent, Bone: i, Parent: i}
		}
	}
	return checkAcyclic(def.Parents)
}

// checkAcyclic walks each bone toward a root. A walk longer than len(parents)
// hops must revisit a bone. Bones already proven to reach a root end later
// walks early.
func checkAcyclic(parents []int32) error {
	n := len(parents)
	rooted := make([]bool, n)
	path := make([]int, 0, n)
	for start := 0; start < n; start++ {
		path = path[:0]
		cur := start
		for hops := 0; ; hops++ {
			if cur == NoParent || rooted[cur] {
				break
			}
			if hops > n {
				return BuildError{Kind: protocol.ErrCyclicHierarchy, Bone: start, Parent: int(parents[start])}
			}
			path = append(path, cur)
			cur = int(parents[cur])
		}
		for _, b := range path {
			rooted[b] = true
		}
	}
	return nil
}
