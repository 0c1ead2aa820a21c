package handshake

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danmuck/skelstream/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ErrNotSkeletonDef is returned by Parse for well-formed messages whose type
// is not protocol.TagSkeletonDef.
var ErrNotSkeletonDef = errors.New("handshake: not a skeleton definition")

// Tuple arities for the bind pose arrays.
const (
	PositionArity = 3
	RotationArity = 4 // x, y, z, w
	ScaleArity    = 3
)

// BindPose holds per-bone rest transforms, index-aligned with BoneNames.
type BindPose struct {
	Positions [][]float32 `json:"positions"`
	Rotations [][]float32 `json:"rotations"`
	Scales    [][]float32 `json:"scales"`
}

// SkeletonDef is the one-time hierarchy handshake.
type SkeletonDef struct {
	Type      string   `json:"type"`
	BoneNames []string `json:"bone_names"`
	Parents   []int32  `json:"parents"`
	BindPose  BindPose `json:"bind_pose"`
}

// BoneCount is the length of BoneNames; Validate checks the other arrays agree.
func (d SkeletonDef) BoneCount() int {
	return len(d.BoneNames)
}

// ValidationError reports the first schema violation of a SkeletonDef.
type ValidationError struct {
	Field  string
	Index  int
	Reason string
}

func (e ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("handshake: field=%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("handshake: field=%s[%d]: %s", e.Field, e.Index, e.Reason)
}

func (e ValidationError) Unwrap() error {
	return protocol.ErrSchemaMismatch
}

// Validate cross-checks array lengths and tuple arities. It does not inspect
// parent values; hierarchy checks belong to the skeleton builder.
func (d SkeletonDef) Validate() error {
	n := d.BoneCount()
	lengths := []struct {
		field string
		got   int
	}{
		{"parents", len(d.Parents)},
		{"bind_pose.positions", len(d.BindPose.Positions)},
		{"bind_pose.rotations", len(d.BindPose.Rotations)},
		{"bind_pose.scales", len(d.BindPose.Scales)},
	}
	for _, l := range lengths {
		if l.got != n {
			return ValidationError{
				Field:  l.field,
				Index:  -1,
				Reason: fmt.Sprintf("length %d does not match bone_names length %d", l.got, n),
			}
		}
	}
	if err := checkArity("bind_pose.positions", d.BindPose.Positions, PositionArity); err != nil {
		return err
	}
	if err := checkArity("bind_pose.rotations", d.BindPose.Rotations, RotationArity); err != nil {
		return err
	}
	return checkArity("bind_pose.scales", d.BindPose.Scales, ScaleArity)
}

func checkArity(field string, tuples [][]float32, arity int) error {
	for i, tup := range tuples {
		if len(tup) != arity {
			return ValidationError{
				Field:  field,
				Index:  i,
				Reason: fmt.Sprintf("tuple has %d values, want %d", len(tup), arity),
			}
		}
	}
	return nil
}

// requiredArrays must be present as JSON arrays, spelled exactly. An explicit
// empty array is a valid zero-bone definition; absent or null is not.
var requiredArrays = []string{
	"bone_names",
	"parents",
	"bind_pose.positions",
	"bind_pose.rotations",
	"bind_pose.scales",
}

func checkPresence(data []byte) error {
	for i, r := range gjson.GetManyBytes(data, requiredArrays...) {
		if r.IsArray() {
			continue
		}
		reason := "missing"
		if r.Exists() && r.Type != gjson.Null {
			reason = "not an array"
		}
		return ValidationError{Field: requiredArrays[i], Index: -1, Reason: reason}
	}
	return nil
}

// Parse decodes a textual handshake. The discriminant is checked before any
// other field is trusted:
//   - invalid JSON -> protocol.ErrMalformed
//   - type != SKELETON_DEF -> ErrNotSkeletonDef
//   - required arrays absent, null or misspelled -> protocol.ErrSchemaMismatch
//   - wrong JSON types or array shapes -> protocol.ErrSchemaMismatch
func Parse(data []byte) (SkeletonDef, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return SkeletonDef{}, fmt.Errorf("%w: type: %v", ErrNotSkeletonDef, err)
		}
		return SkeletonDef{}, fmt.Errorf("%w: %v", protocol.ErrMalformed, err)
	}
	if envelope.Type != protocol.TagSkeletonDef {
		return SkeletonDef{}, fmt.Errorf("%w: type=%q", ErrNotSkeletonDef, envelope.Type)
	}

	if err := checkPresence(data); err != nil {
		log.Debug().Err(err).Msg("handshake.Parse schema rejected")
		return SkeletonDef{}, err
	}

	var def SkeletonDef
	if err := json.Unmarshal(data, &def); err != nil {
		return SkeletonDef{}, fmt.Errorf("%w: %v", protocol.ErrSchemaMismatch, err)
	}
	if err := def.Validate(); err != nil {
		log.Debug().Err(err).Msg("handshake.Parse schema rejected")
		return SkeletonDef{}, err
	}
	log.Debug().Int("bones", def.BoneCount()).Msg("handshake.Parse ok")
	return def, nil
}

// Marshal encodes d with the SKELETON_DEF tag set.
func Marshal(d SkeletonDef) ([]byte, error) {
	d.Type = protocol.TagSkeletonDef
	return json.Marshal(d)
}
