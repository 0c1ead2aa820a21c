// Package posetest builds handshakes and pose frames for tests.
package posetest

import (
	"strconv"
	"testing"

	"github.com/danmuck/skelstream/internal/protocol/frame"
	"github.com/danmuck/skelstream/internal/protocol/handshake"
)

// Def returns a definition with one bone per parent entry. Bone i is named
// "bone<i>", sits at (0, i, 0) and has identity rotation and unit scale.
func Def(parents ...int32) handshake.SkeletonDef {
	n := len(parents)
	def := handshake.SkeletonDef{
		Type:      "SKELETON_DEF",
		BoneNames: make([]string, n),
		Parents:   append(make([]int32, 0, n), parents...),
		BindPose: handshake.BindPose{
			Positions: make([][]float32, n),
			Rotations: make([][]float32, n),
			Scales:    make([][]float32, n),
		},
	}
	for i := 0; i < n; i++ {
		def.BoneNames[i] = boneName(i)
		def.BindPose.Positions[i] = []float32{0, float32(i), 0}
		def.BindPose.Rotations[i] = []float32{0, 0, 0, 1}
		def.BindPose.Scales[i] = []float32{1, 1, 1}
	}
	return def
}

// Chain returns a single-root chain of n bones.
func Chain(n int) handshake.SkeletonDef {
	parents := make([]int32, n)
	for i := range parents {
		parents[i] = int32(i) - 1
	}
	return Def(parents...)
}

// JSON encodes def as a handshake text message.
func JSON(t *testing.T, def handshake.SkeletonDef) string {
	t.Helper()
	data, err := handshake.Marshal(def)
	if err != nil {
		t.Fatalf("marshal handshake: %v", err)
	}
	return string(data)
}

// TranslationBlock is the row-major wire block
// [[1,0,0,0],[0,1,0,0],[0,0,1,0],[tx,ty,tz,1]].
func TranslationBlock(tx, ty, tz float32) []float32 {
	return []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		tx, ty, tz, 1,
	}
}

// TranslationFloats concatenates one TranslationBlock per entry in ts.
func TranslationFloats(ts ...[3]float32) []float32 {
	out := make([]float32, 0, len(ts)*16)
	for _, v := range ts {
		out = append(out, TranslationBlock(v[0], v[1], v[2])...)
	}
	return out
}

// Frame encodes floats behind a valid header.
func Frame(frameID uint32, floats []float32) []byte {
	return frame.Encode(frame.Header{FrameID: frameID}, floats)
}

func boneName(i int) string {
	return "bone" + strconv.Itoa(i)
}
