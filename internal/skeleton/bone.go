package skeleton

import "github.com/go-gl/mathgl/mgl32"

// NoParent marks a root bone.
const NoParent = -1

// Transform is a decomposed local transform.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// IdentityTransform has no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Mat4 composes T * R * S in column-major form.
func (t Transform) Mat4() mgl32.Mat4 {
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// Bone is one arena record. Name and Parent are fixed at build time; Local is
// overwritten by every frame that reaches this bone's index.
type Bone struct {
	Name   string
	Parent int
	Bind   Transform
	Local  mgl32.Mat4
}

// IsRoot reports whether the bone has no parent.
func (b Bone) IsRoot() bool {
	return b.Parent == NoParent
}

func transformFromTuples(pos, rot, scl []float32) Transform {
	q := mgl32.Quat{W: rot[3], V: mgl32.Vec3{rot[0], rot[1], rot[2]}}
	return Transform{
		Position: mgl32.Vec3{pos[0], pos[1], pos[2]},
		Rotation: q.Normalize(),
		Scale:    mgl32.Vec3{scl[0], scl[1], scl[2]},
	}
}
