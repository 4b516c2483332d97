package pmx

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Bone flag bits as stored on the wire. The decoder splits them into
// the Bone fields below; the encoder reassembles the word from which
// optional payloads are populated, so the flags and the payloads can
// never disagree in written files.
const (
	BONE_FLAG_TAIL_IS_BONE        uint16 = 0x0001
	BONE_FLAG_ROTATABLE           uint16 = 0x0002
	BONE_FLAG_TRANSLATABLE        uint16 = 0x0004
	BONE_FLAG_VISIBLE             uint16 = 0x0008
	BONE_FLAG_ENABLED             uint16 = 0x0010
	BONE_FLAG_IK                  uint16 = 0x0020
	BONE_FLAG_INHERIT_LOCAL       uint16 = 0x0080
	BONE_FLAG_INHERIT_ROTATION    uint16 = 0x0100
	BONE_FLAG_INHERIT_TRANSLATION uint16 = 0x0200
	BONE_FLAG_FIXED_AXIS          uint16 = 0x0400
	BONE_FLAG_LOCAL_AXES          uint16 = 0x0800
	BONE_FLAG_PHYSICS_AFTER       uint16 = 0x1000
	BONE_FLAG_EXTERNAL_PARENT     uint16 = 0x2000
)

// boneKnownFlags covers every bit the Bone struct models. The rest
// round-trip through Bone.UnknownFlags.
const boneKnownFlags = BONE_FLAG_TAIL_IS_BONE |
	BONE_FLAG_ROTATABLE |
	BONE_FLAG_TRANSLATABLE |
	BONE_FLAG_VISIBLE |
	BONE_FLAG_ENABLED |
	BONE_FLAG_IK |
	BONE_FLAG_INHERIT_LOCAL |
	BONE_FLAG_INHERIT_ROTATION |
	BONE_FLAG_INHERIT_TRANSLATION |
	BONE_FLAG_FIXED_AXIS |
	BONE_FLAG_LOCAL_AXES |
	BONE_FLAG_PHYSICS_AFTER |
	BONE_FLAG_EXTERNAL_PARENT

// BoneInherit makes the bone follow another bone's rotation and/or
// translation, scaled by Weight. At least one of the two must be set,
// otherwise the payload has no flag bit to travel under.
type BoneInherit struct {
	Rotation    bool
	Translation bool
	Source      int32
	Weight      float32
}

// BoneLocalAxes overrides the local coordinate frame; Y follows from
// the cross product.
type BoneLocalAxes struct {
	X mgl32.Vec3
	Z mgl32.Vec3
}

// IKLimit clamps a link's rotation, radians per axis.
type IKLimit struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

type IKLink struct {
	Bone  int32
	Limit *IKLimit
}

type BoneIK struct {
	Target int32
	Loops  int32

	// LimitAngle caps the rotation step per iteration, in radians.
	LimitAngle float32
	Links      []IKLink
}

type Bone struct {
	Name   string
	NameEN string

	Position mgl32.Vec3
	Parent   int32 // NoIndex for root bones

	// Layer is the deform order tier; higher layers evaluate later.
	Layer int32

	Rotatable    bool
	Translatable bool
	Visible      bool
	Enabled      bool

	// PhysicsAfter defers this bone's deform until after physics.
	PhysicsAfter bool

	// InheritLocal applies inherited motion in local space. The bit
	// carries no payload of its own, so it lives outside Inherit.
	InheritLocal bool

	// TailBone is used when TailIsBone, TailOffset otherwise. The
	// tail only affects how the bone is drawn in editors.
	TailIsBone bool
	TailBone   int32
	TailOffset mgl32.Vec3

	Inherit   *BoneInherit
	FixedAxis *mgl32.Vec3
	LocalAxes *BoneLocalAxes

	// ExternalParent is a runtime parent key, not a reference into
	// Model.Bones, so it is not range checked.
	HasExternalParent bool
	ExternalParent    int32

	IK *BoneIK

	// UnknownFlags preserves wire bits outside boneKnownFlags.
	UnknownFlags uint16
}

// Flags assembles the wire flag word from the populated fields.
func (b *Bone) Flags() uint16 {
	f := b.UnknownFlags &^ boneKnownFlags
	if b.TailIsBone {
		f |= BONE_FLAG_TAIL_IS_BONE
	}
	if b.Rotatable {
		f |= BONE_FLAG_ROTATABLE
	}
	if b.Translatable {
		f |= BONE_FLAG_TRANSLATABLE
	}
	if b.Visible {
		f |= BONE_FLAG_VISIBLE
	}
	if b.Enabled {
		f |= BONE_FLAG_ENABLED
	}
	if b.PhysicsAfter {
		f |= BONE_FLAG_PHYSICS_AFTER
	}
	if b.InheritLocal {
		f |= BONE_FLAG_INHERIT_LOCAL
	}
	if b.Inherit != nil {
		if b.Inherit.Rotation {
			f |= BONE_FLAG_INHERIT_ROTATION
		}
		if b.Inherit.Translation {
			f |= BONE_FLAG_INHERIT_TRANSLATION
		}
	}
	if b.FixedAxis != nil {
		f |= BONE_FLAG_FIXED_AXIS
	}
	if b.LocalAxes != nil {
		f |= BONE_FLAG_LOCAL_AXES
	}
	if b.HasExternalParent {
		f |= BONE_FLAG_EXTERNAL_PARENT
	}
	if b.IK != nil {
		f |= BONE_FLAG_IK
	}
	return f
}

func (d *Decoder) readBones(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("bones: %d", n)
	m.Bones = make([]Bone, n)
	for i := range m.Bones {
		if err := d.readBone(&m.Bones[i]); err != nil {
			return errors.WithMessagef(err, "bone %d", i)
		}
	}
	return nil
}

func (d *Decoder) readBone(b *Bone) error {
	var err error
	if b.Name, err = d.r.text(); err != nil {
		return err
	}
	if b.NameEN, err = d.r.text(); err != nil {
		return err
	}
	if b.Position, err = d.r.vec3(); err != nil {
		return err
	}
	sz := d.r.hdr.BoneIndexSize
	if b.Parent, err = d.r.index(sz); err != nil {
		return err
	}
	if b.Layer, err = d.r.i32(); err != nil {
		return err
	}
	flags, err := d.r.u16()
	if err != nil {
		return err
	}
	b.Rotatable = flags&BONE_FLAG_ROTATABLE != 0
	b.Translatable = flags&BONE_FLAG_TRANSLATABLE != 0
	b.Visible = flags&BONE_FLAG_VISIBLE != 0
	b.Enabled = flags&BONE_FLAG_ENABLED != 0
	b.PhysicsAfter = flags&BONE_FLAG_PHYSICS_AFTER != 0
	b.InheritLocal = flags&BONE_FLAG_INHERIT_LOCAL != 0
	b.UnknownFlags = flags &^ boneKnownFlags

	// Optional payloads follow in this exact order.
	b.TailIsBone = flags&BONE_FLAG_TAIL_IS_BONE != 0
	if b.TailIsBone {
		if b.TailBone, err = d.r.index(sz); err != nil {
			return err
		}
	} else {
		if b.TailOffset, err = d.r.vec3(); err != nil {
			return err
		}
	}
	if flags&(BONE_FLAG_INHERIT_ROTATION|BONE_FLAG_INHERIT_TRANSLATION) != 0 {
		b.Inherit = &BoneInherit{
			Rotation:    flags&BONE_FLAG_INHERIT_ROTATION != 0,
			Translation: flags&BONE_FLAG_INHERIT_TRANSLATION != 0,
		}
		if b.Inherit.Source, err = d.r.index(sz); err != nil {
			return err
		}
		if b.Inherit.Weight, err = d.r.f32(); err != nil {
			return err
		}
	}
	if flags&BONE_FLAG_FIXED_AXIS != 0 {
		axis, err := d.r.vec3()
		if err != nil {
			return err
		}
		b.FixedAxis = &axis
	}
	if flags&BONE_FLAG_LOCAL_AXES != 0 {
		b.LocalAxes = &BoneLocalAxes{}
		if b.LocalAxes.X, err = d.r.vec3(); err != nil {
			return err
		}
		if b.LocalAxes.Z, err = d.r.vec3(); err != nil {
			return err
		}
	}
	if flags&BONE_FLAG_EXTERNAL_PARENT != 0 {
		b.HasExternalParent = true
		if b.ExternalParent, err = d.r.index(sz); err != nil {
			return err
		}
	}
	if flags&BONE_FLAG_IK != 0 {
		if b.IK, err = d.readBoneIK(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) readBoneIK() (*BoneIK, error) {
	var err error
	ik := &BoneIK{}
	sz := d.r.hdr.BoneIndexSize
	if ik.Target, err = d.r.index(sz); err != nil {
		return nil, err
	}
	if ik.Loops, err = d.r.i32(); err != nil {
		return nil, err
	}
	if ik.LimitAngle, err = d.r.f32(); err != nil {
		return nil, err
	}
	n, err := d.r.count()
	if err != nil {
		return nil, err
	}
	ik.Links = make([]IKLink, n)
	for i := range ik.Links {
		if ik.Links[i].Bone, err = d.r.index(sz); err != nil {
			return nil, err
		}
		limited, err := d.r.bool8()
		if err != nil {
			return nil, errors.WithMessagef(err, "ik link %d", i)
		}
		if limited {
			lim := &IKLimit{}
			if lim.Min, err = d.r.vec3(); err != nil {
				return nil, err
			}
			if lim.Max, err = d.r.vec3(); err != nil {
				return nil, err
			}
			ik.Links[i].Limit = lim
		}
	}
	return ik, nil
}

func (e *Encoder) writeBones(m *Model) error {
	if err := e.w.count(len(m.Bones)); err != nil {
		return err
	}
	for i := range m.Bones {
		if err := e.writeBone(&m.Bones[i]); err != nil {
			return errors.WithMessagef(err, "bone %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeBone(b *Bone) error {
	if err := e.w.text(b.Name); err != nil {
		return err
	}
	if err := e.w.text(b.NameEN); err != nil {
		return err
	}
	if err := e.w.vec3(b.Position); err != nil {
		return err
	}
	sz := e.w.hdr.BoneIndexSize
	if err := e.w.index(sz, b.Parent); err != nil {
		return err
	}
	if err := e.w.i32(b.Layer); err != nil {
		return err
	}
	if err := e.w.u16(b.Flags()); err != nil {
		return err
	}
	if b.TailIsBone {
		if err := e.w.index(sz, b.TailBone); err != nil {
			return err
		}
	} else {
		if err := e.w.vec3(b.TailOffset); err != nil {
			return err
		}
	}
	if b.Inherit != nil {
		if err := e.w.index(sz, b.Inherit.Source); err != nil {
			return err
		}
		if err := e.w.f32(b.Inherit.Weight); err != nil {
			return err
		}
	}
	if b.FixedAxis != nil {
		if err := e.w.vec3(*b.FixedAxis); err != nil {
			return err
		}
	}
	if b.LocalAxes != nil {
		if err := e.w.vec3(b.LocalAxes.X); err != nil {
			return err
		}
		if err := e.w.vec3(b.LocalAxes.Z); err != nil {
			return err
		}
	}
	if b.HasExternalParent {
		if err := e.w.index(sz, b.ExternalParent); err != nil {
			return err
		}
	}
	if b.IK != nil {
		return e.writeBoneIK(b.IK)
	}
	return nil
}

func (e *Encoder) writeBoneIK(ik *BoneIK) error {
	sz := e.w.hdr.BoneIndexSize
	if err := e.w.index(sz, ik.Target); err != nil {
		return err
	}
	if err := e.w.i32(ik.Loops); err != nil {
		return err
	}
	if err := e.w.f32(ik.LimitAngle); err != nil {
		return err
	}
	if err := e.w.count(len(ik.Links)); err != nil {
		return err
	}
	for i := range ik.Links {
		l := &ik.Links[i]
		if err := e.w.index(sz, l.Bone); err != nil {
			return err
		}
		if err := e.w.bool8(l.Limit != nil); err != nil {
			return err
		}
		if l.Limit != nil {
			if err := e.w.vec3(l.Limit.Min); err != nil {
				return err
			}
			if err := e.w.vec3(l.Limit.Max); err != nil {
				return err
			}
		}
	}
	return nil
}
