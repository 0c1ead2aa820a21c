package simulator

import (
	"fmt"
	"math"

	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/danmuck/skelstream/internal/protocol/handshake"
	"github.com/go-gl/mathgl/mgl32"
)

// LinkLength is the bind-pose offset between consecutive chain bones.
const LinkLength float32 = 1

// Rig is a single chain: bone 0 is the root, bone i hangs off bone i-1.
type Rig struct {
	Bones int
}

// Def is the handshake describing the chain in its bind pose.
func (r Rig) Def() handshake.SkeletonDef {
	n := r.Bones
	def := handshake.SkeletonDef{
		Type:      protocol.TagSkeletonDef,
		BoneNames: make([]string, n),
		Parents:   make([]int32, n),
		BindPose: handshake.BindPose{
			Positions: make([][]float32, n),
			Rotations: make([][]float32, n),
			Scales:    make([][]float32, n),
		},
	}
	for i := 0; i < n; i++ {
		def.BoneNames[i] = fmt.Sprintf("link_%02d", i)
		def.Parents[i] = int32(i - 1)
		y := LinkLength
		if i == 0 {
			y = 0
		}
		def.BindPose.Positions[i] = []float32{0, y, 0}
		def.BindPose.Rotations[i] = []float32{0, 0, 0, 1}
		def.BindPose.Scales[i] = []float32{1, 1, 1}
	}
	return def
}

// Pose returns the column-major local matrices at time t seconds. The root
// sways along x and every link bends about z with a phase offset, so the
// chain reads as a wave.
func (r Rig) Pose(t float64) []mgl32.Mat4 {
	mats := make([]mgl32.Mat4, r.Bones)
	for i := range mats {
		angle := float32(0.25 * math.Sin(t*2+float64(i)*0.6))
		var offset mgl32.Vec3
		if i == 0 {
			offset = mgl32.Vec3{float32(0.5 * math.Sin(t)), 0, 0}
		} else {
			offset = mgl32.Vec3{0, LinkLength, 0}
		}
		mats[i] = mgl32.Translate3D(offset.X(), offset.Y(), offset.Z()).Mul4(mgl32.HomogRotate3DZ(angle))
	}
	return mats
}
