package skeleton

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/danmuck/skelstream/internal/testutil/posetest"
	"github.com/danmuck/skelstream/internal/testutil/testlog"
	"github.com/go-gl/mathgl/mgl32"
)

func TestBuildRootsAndBoneCount(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		parents []int32
		roots   []int
	}{
		{[]int32{-1}, []int{0}},
		{[]int32{-1, 0, 1, 1}, []int{0}},
		{[]int32{-1, -1, 0, 1}, []int{0, 1}},
		{[]int32{2, 2, -1}, []int{2}},
		{[]int32{}, []int{}},
	}
	for _, tc := range cases {
		s, err := Build(posetest.Def(tc.parents...))
		if err != nil {
			t.Fatalf("parents=%v: build: %v", tc.parents, err)
		}
		if s.Len() != len(tc.parents) {
			t.Fatalf("parents=%v: expected %d bones, got %d", tc.parents, len(tc.parents), s.Len())
		}
		got := s.Roots()
		if len(got) == 0 && len(tc.roots) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.roots) {
			t.Fatalf("parents=%v: expected roots %v, got %v", tc.parents, tc.roots, got)
		}
		if !s.Initialized() {
			t.Fatalf("parents=%v: expected initialized", tc.parents)
		}
	}
}

func TestBuildChildrenAdjacency(t *testing.T) {
	testlog.Start(t)
	s, err := Build(posetest.Def(-1, 0, 0, 1, -1, 4))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := map[int][]int{0: {1, 2}, 1: {3}, 2: {}, 3: {}, 4: {5}, 5: {}}
	for bone, kids := range want {
		got := s.Children(bone)
		if len(got) == 0 && len(kids) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, kids) {
			t.Fatalf("children(%d): expected %v, got %v", bone, kids, got)
		}
	}
	if s.Children(99) != nil {
		t.Fatalf("expected nil children for unknown bone")
	}
}

func TestBuildBindPoseLocalTransform(t *testing.T) {
	testlog.Start(t)
	def := posetest.Def(-1, 0)
	def.BindPose.Positions[1] = []float32{1, 2, 3}
	def.BindPose.Scales[1] = []float32{2, 2, 2}
	s, err := Build(def)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, ok := s.Bone(1)
	if !ok {
		t.Fatalf("missing bone 1")
	}
	if b.Name != "bone1" || b.Parent != 0 || b.IsRoot() {
		t.Fatalf("unexpected bone %+v", b)
	}
	if got := b.Local.Col(3); got != (mgl32.Vec4{1, 2, 3, 1}) {
		t.Fatalf("bind translation: got %v", got)
	}
	if b.Local.At(0, 0) != 2 || b.Local.At(1, 1) != 2 || b.Local.At(2, 2) != 2 {
		t.Fatalf("bind scale not applied: %v", b.Local)
	}
}

func TestBuildRotationQuaternionOrderIsXYZW(t *testing.T) {
	testlog.Start(t)
	def := posetest.Def(-1)
	// 90 degrees about Z, given as x,y,z,w.
	def.BindPose.Rotations[0] = []float32{0, 0, 0.70710677, 0.70710677}
	s, err := Build(def)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, _ := s.Bone(0)
	x := b.Local.Mul4x1(mgl32.Vec4{1, 0, 0, 0})
	if !x.ApproxEqualThreshold(mgl32.Vec4{0, 1, 0, 0}, 1e-5) {
		t.Fatalf("expected +X to rotate onto +Y, got %v", x)
	}
}

func TestBuildValidationErrors(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		parents []int32
		want    error
	}{
		{"below range", []int32{-1, -2}, protocol.ErrInvalidParentIndex},
		{"past end", []int32{-1, 2}, protocol.ErrInvalidParentIndex},
		{"self parent root slot", []int32{0}, protocol.ErrSelfParent},
		{"self parent", []int32{-1, 0, 2}, protocol.ErrSelfParent},
		{"two cycle", []int32{1, 0}, protocol.ErrCyclicHierarchy},
		{"three cycle beside root", []int32{-1, 3, 1, 2}, protocol.ErrCyclicHierarchy},
		{"branch into cycle", []int32{-1, 2, 3, 2}, protocol.ErrCyclicHierarchy},
		{"range before self", []int32{0, 5}, protocol.ErrInvalidParentIndex},
		{"self before cycle", []int32{1, 0, 2}, protocol.ErrSelfParent},
	}
	for _, tc := range cases {
		s, err := Build(posetest.Def(tc.parents...))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if s != nil {
			t.Fatalf("%s: expected no skeleton on failure", tc.name)
		}
	}
}

func TestBuildSchemaMismatch(t *testing.T) {
	testlog.Start(t)
	def := posetest.Def(-1, 0)
	def.BindPose.Scales = def.BindPose.Scales[:1]
	_, err := Build(def)
	if !errors.Is(err, protocol.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if protocol.Kind(err) != "schema_mismatch" {
		t.Fatalf("unexpected kind %q", protocol.Kind(err))
	}
}

func TestBuildErrorCarriesBone(t *testing.T) {
	testlog.Start(t)
	_, err := Build(posetest.Def(-1, 0, 2))
	var berr BuildError
	if !errors.As(err, &berr) {
		t.Fatalf("expected BuildError, got %T", err)
	}
	if berr.Bone != 2 || berr.Parent != 2 {
		t.Fatalf("unexpected build error %+v", berr)
	}
}

func TestInitializeFailureLeavesSkeletonUninitialized(t *testing.T) {
	testlog.Start(t)
	s := New()
	if err := s.Initialize(posetest.Def(1, 0)); err == nil {
		t.Fatalf("expected cycle error")
	}
	if s.Initialized() || s.Len() != 0 {
		t.Fatalf("failed initialize must not expose bones")
	}
	if err := s.Initialize(posetest.Chain(3)); err != nil {
		t.Fatalf("initialize after failure: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 bones, got %d", s.Len())
	}
}

func TestInitializeOnlyOnce(t *testing.T) {
	testlog.Start(t)
	s, err := Build(posetest.Chain(2))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.Initialize(posetest.Chain(4)); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("re-initialize must not replace bones, got %d", s.Len())
	}
}

func TestBuildDeepChainIsNotCyclic(t *testing.T) {
	testlog.Start(t)
	s, err := Build(posetest.Chain(512))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := s.Roots(); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("expected single root, got %v", got)
	}
}
