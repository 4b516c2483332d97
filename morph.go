package pmx

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// MorphPanel is the editor panel a morph slider is filed under.
type MorphPanel uint8

const (
	PANEL_SYSTEM  MorphPanel = 0
	PANEL_EYEBROW MorphPanel = 1
	PANEL_EYE     MorphPanel = 2
	PANEL_MOUTH   MorphPanel = 3
	PANEL_OTHER   MorphPanel = 4
)

// MorphKind is the wire discriminator for the offset payload. UV
// channels 1..4 get their own tags.
type MorphKind uint8

const (
	MORPH_GROUP    MorphKind = 0
	MORPH_VERTEX   MorphKind = 1
	MORPH_BONE     MorphKind = 2
	MORPH_UV       MorphKind = 3
	MORPH_UV1      MorphKind = 4
	MORPH_UV2      MorphKind = 5
	MORPH_UV3      MorphKind = 6
	MORPH_UV4      MorphKind = 7
	MORPH_MATERIAL MorphKind = 8
	MORPH_FLIP     MorphKind = 9  // version 2.1
	MORPH_IMPULSE  MorphKind = 10 // version 2.1
)

// MorphOffsets is the payload of one morph: a slice of offsets, all of
// the kind the morph's wire tag picks.
type MorphOffsets interface {
	MorphKind() MorphKind
}

// GroupOffset drives another morph at Weight times the group value.
type GroupOffset struct {
	Morph  int32
	Weight float32
}

// VertexOffset displaces a vertex.
type VertexOffset struct {
	Vertex int32
	Offset mgl32.Vec3
}

// BoneOffset moves and rotates a bone; Rotation is a quaternion.
type BoneOffset struct {
	Bone     int32
	Move     mgl32.Vec3
	Rotation mgl32.Vec4
}

// UVOffset shifts a UV coordinate. Only the first two components act
// on the base channel; all four act on extra channels.
type UVOffset struct {
	Vertex int32
	Offset mgl32.Vec4
}

// MaterialMorphOp selects how a material offset combines with the
// material's current value.
type MaterialMorphOp uint8

const (
	MATERIAL_MORPH_MULTIPLY MaterialMorphOp = 0
	MATERIAL_MORPH_ADDITIVE MaterialMorphOp = 1
)

// MaterialOffset modulates material parameters. Material may be
// NoIndex to hit every material at once.
type MaterialOffset struct {
	Material int32
	Op       MaterialMorphOp

	Diffuse          mgl32.Vec4
	Specular         mgl32.Vec3
	SpecularStrength float32
	Ambient          mgl32.Vec3
	EdgeColor        mgl32.Vec4
	EdgeSize         float32
	Texture          mgl32.Vec4
	Environment      mgl32.Vec4
	Toon             mgl32.Vec4
}

// FlipOffset switches between morphs by the group rules (version 2.1).
type FlipOffset struct {
	Morph  int32
	Weight float32
}

// ImpulseOffset kicks a rigid body (version 2.1). Local applies the
// velocities in body space.
type ImpulseOffset struct {
	RigidBody int32
	Local     bool
	Velocity  mgl32.Vec3
	Torque    mgl32.Vec3
}

type GroupOffsets []GroupOffset
type VertexOffsets []VertexOffset
type BoneOffsets []BoneOffset

// UVOffsets carries Channel 0 for the base UV or 1..4 for an extra
// Vec4 channel.
type UVOffsets struct {
	Channel uint8
	Offsets []UVOffset
}

type MaterialOffsets []MaterialOffset
type FlipOffsets []FlipOffset
type ImpulseOffsets []ImpulseOffset

func (GroupOffsets) MorphKind() MorphKind    { return MORPH_GROUP }
func (VertexOffsets) MorphKind() MorphKind   { return MORPH_VERTEX }
func (BoneOffsets) MorphKind() MorphKind     { return MORPH_BONE }
func (u UVOffsets) MorphKind() MorphKind     { return MORPH_UV + MorphKind(u.Channel) }
func (MaterialOffsets) MorphKind() MorphKind { return MORPH_MATERIAL }
func (FlipOffsets) MorphKind() MorphKind     { return MORPH_FLIP }
func (ImpulseOffsets) MorphKind() MorphKind  { return MORPH_IMPULSE }

type Morph struct {
	Name   string
	NameEN string

	Panel   MorphPanel
	Offsets MorphOffsets
}

func (d *Decoder) readMorphs(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("morphs: %d", n)
	m.Morphs = make([]Morph, n)
	for i := range m.Morphs {
		if err := d.readMorph(&m.Morphs[i]); err != nil {
			return errors.WithMessagef(err, "morph %d", i)
		}
	}
	return nil
}

func (d *Decoder) readMorph(mr *Morph) error {
	var err error
	if mr.Name, err = d.r.text(); err != nil {
		return err
	}
	if mr.NameEN, err = d.r.text(); err != nil {
		return err
	}
	panel, err := d.r.u8()
	if err != nil {
		return err
	}
	if panel > uint8(PANEL_OTHER) {
		return errors.Wrapf(ErrMalformedSection, "unknown control panel %d", panel)
	}
	mr.Panel = MorphPanel(panel)
	kind, err := d.r.u8()
	if err != nil {
		return err
	}
	n, err := d.r.count()
	if err != nil {
		return err
	}
	mr.Offsets, err = d.readMorphOffsets(MorphKind(kind), n)
	return err
}

func (d *Decoder) readMorphOffsets(kind MorphKind, n int) (MorphOffsets, error) {
	switch kind {
	case MORPH_GROUP:
		out := make(GroupOffsets, n)
		for i := range out {
			if err := d.readGroupOffset(&out[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case MORPH_VERTEX:
		out := make(VertexOffsets, n)
		for i := range out {
			if err := d.readVertexOffset(&out[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case MORPH_BONE:
		out := make(BoneOffsets, n)
		for i := range out {
			if err := d.readBoneOffset(&out[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case MORPH_UV, MORPH_UV1, MORPH_UV2, MORPH_UV3, MORPH_UV4:
		out := UVOffsets{
			Channel: uint8(kind - MORPH_UV),
			Offsets: make([]UVOffset, n),
		}
		for i := range out.Offsets {
			if err := d.readUVOffset(&out.Offsets[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case MORPH_MATERIAL:
		out := make(MaterialOffsets, n)
		for i := range out {
			if err := d.readMaterialOffset(&out[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case MORPH_FLIP:
		out := make(FlipOffsets, n)
		for i := range out {
			var g GroupOffset
			if err := d.readGroupOffset(&g); err != nil {
				return nil, err
			}
			out[i] = FlipOffset(g)
		}
		return out, nil
	case MORPH_IMPULSE:
		out := make(ImpulseOffsets, n)
		for i := range out {
			if err := d.readImpulseOffset(&out[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrMalformedSection, "unknown morph kind %d", kind)
}

func (d *Decoder) readGroupOffset(o *GroupOffset) error {
	var err error
	if o.Morph, err = d.r.index(d.r.hdr.MorphIndexSize); err != nil {
		return err
	}
	o.Weight, err = d.r.f32()
	return err
}

func (d *Decoder) readVertexOffset(o *VertexOffset) error {
	var err error
	if o.Vertex, err = d.r.uindex(d.r.hdr.VertexIndexSize); err != nil {
		return err
	}
	o.Offset, err = d.r.vec3()
	return err
}

func (d *Decoder) readBoneOffset(o *BoneOffset) error {
	var err error
	if o.Bone, err = d.r.index(d.r.hdr.BoneIndexSize); err != nil {
		return err
	}
	if o.Move, err = d.r.vec3(); err != nil {
		return err
	}
	o.Rotation, err = d.r.vec4()
	return err
}

func (d *Decoder) readUVOffset(o *UVOffset) error {
	var err error
	if o.Vertex, err = d.r.uindex(d.r.hdr.VertexIndexSize); err != nil {
		return err
	}
	o.Offset, err = d.r.vec4()
	return err
}

func (d *Decoder) readMaterialOffset(o *MaterialOffset) error {
	var err error
	if o.Material, err = d.r.index(d.r.hdr.MaterialIndexSize); err != nil {
		return err
	}
	op, err := d.r.u8()
	if err != nil {
		return err
	}
	o.Op = MaterialMorphOp(op)
	if o.Diffuse, err = d.r.vec4(); err != nil {
		return err
	}
	if o.Specular, err = d.r.vec3(); err != nil {
		return err
	}
	if o.SpecularStrength, err = d.r.f32(); err != nil {
		return err
	}
	if o.Ambient, err = d.r.vec3(); err != nil {
		return err
	}
	if o.EdgeColor, err = d.r.vec4(); err != nil {
		return err
	}
	if o.EdgeSize, err = d.r.f32(); err != nil {
		return err
	}
	if o.Texture, err = d.r.vec4(); err != nil {
		return err
	}
	if o.Environment, err = d.r.vec4(); err != nil {
		return err
	}
	o.Toon, err = d.r.vec4()
	return err
}

func (d *Decoder) readImpulseOffset(o *ImpulseOffset) error {
	var err error
	if o.RigidBody, err = d.r.index(d.r.hdr.RigidIndexSize); err != nil {
		return err
	}
	if o.Local, err = d.r.bool8(); err != nil {
		return err
	}
	if o.Velocity, err = d.r.vec3(); err != nil {
		return err
	}
	o.Torque, err = d.r.vec3()
	return err
}

func (e *Encoder) writeMorphs(m *Model) error {
	if err := e.w.count(len(m.Morphs)); err != nil {
		return err
	}
	for i := range m.Morphs {
		if err := e.writeMorph(&m.Morphs[i]); err != nil {
			return errors.WithMessagef(err, "morph %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeMorph(mr *Morph) error {
	if err := e.w.text(mr.Name); err != nil {
		return err
	}
	if err := e.w.text(mr.NameEN); err != nil {
		return err
	}
	if err := e.w.u8(uint8(mr.Panel)); err != nil {
		return err
	}
	if mr.Offsets == nil {
		return errors.Wrap(ErrInvariant, "nil morph offsets")
	}
	if err := e.w.u8(uint8(mr.Offsets.MorphKind())); err != nil {
		return err
	}
	switch o := mr.Offsets.(type) {
	case GroupOffsets:
		if err := e.w.count(len(o)); err != nil {
			return err
		}
		for i := range o {
			if err := e.writeGroupOffset(&o[i]); err != nil {
				return err
			}
		}
	case VertexOffsets:
		if err := e.w.count(len(o)); err != nil {
			return err
		}
		for i := range o {
			if err := e.writeVertexOffset(&o[i]); err != nil {
				return err
			}
		}
	case BoneOffsets:
		if err := e.w.count(len(o)); err != nil {
			return err
		}
		for i := range o {
			if err := e.writeBoneOffset(&o[i]); err != nil {
				return err
			}
		}
	case UVOffsets:
		if err := e.w.count(len(o.Offsets)); err != nil {
			return err
		}
		for i := range o.Offsets {
			if err := e.writeUVOffset(&o.Offsets[i]); err != nil {
				return err
			}
		}
	case MaterialOffsets:
		if err := e.w.count(len(o)); err != nil {
			return err
		}
		for i := range o {
			if err := e.writeMaterialOffset(&o[i]); err != nil {
				return err
			}
		}
	case FlipOffsets:
		if err := e.w.count(len(o)); err != nil {
			return err
		}
		for i := range o {
			g := GroupOffset(o[i])
			if err := e.writeGroupOffset(&g); err != nil {
				return err
			}
		}
	case ImpulseOffsets:
		if err := e.w.count(len(o)); err != nil {
			return err
		}
		for i := range o {
			if err := e.writeImpulseOffset(&o[i]); err != nil {
				return err
			}
		}
	default:
		return errors.Wrapf(ErrInvariant, "unsupported morph offsets %T", mr.Offsets)
	}
	return nil
}

func (e *Encoder) writeGroupOffset(o *GroupOffset) error {
	if err := e.w.index(e.w.hdr.MorphIndexSize, o.Morph); err != nil {
		return err
	}
	return e.w.f32(o.Weight)
}

func (e *Encoder) writeVertexOffset(o *VertexOffset) error {
	if err := e.w.uindex(e.w.hdr.VertexIndexSize, o.Vertex); err != nil {
		return err
	}
	return e.w.vec3(o.Offset)
}

func (e *Encoder) writeBoneOffset(o *BoneOffset) error {
	if err := e.w.index(e.w.hdr.BoneIndexSize, o.Bone); err != nil {
		return err
	}
	if err := e.w.vec3(o.Move); err != nil {
		return err
	}
	return e.w.vec4(o.Rotation)
}

func (e *Encoder) writeUVOffset(o *UVOffset) error {
	if err := e.w.uindex(e.w.hdr.VertexIndexSize, o.Vertex); err != nil {
		return err
	}
	return e.w.vec4(o.Offset)
}

func (e *Encoder) writeMaterialOffset(o *MaterialOffset) error {
	if err := e.w.index(e.w.hdr.MaterialIndexSize, o.Material); err != nil {
		return err
	}
	if err := e.w.u8(uint8(o.Op)); err != nil {
		return err
	}
	if err := e.w.vec4(o.Diffuse); err != nil {
		return err
	}
	if err := e.w.vec3(o.Specular); err != nil {
		return err
	}
	if err := e.w.f32(o.SpecularStrength); err != nil {
		return err
	}
	if err := e.w.vec3(o.Ambient); err != nil {
		return err
	}
	if err := e.w.vec4(o.EdgeColor); err != nil {
		return err
	}
	if err := e.w.f32(o.EdgeSize); err != nil {
		return err
	}
	if err := e.w.vec4(o.Texture); err != nil {
		return err
	}
	if err := e.w.vec4(o.Environment); err != nil {
		return err
	}
	return e.w.vec4(o.Toon)
}

func (e *Encoder) writeImpulseOffset(o *ImpulseOffset) error {
	if err := e.w.index(e.w.hdr.RigidIndexSize, o.RigidBody); err != nil {
		return err
	}
	if err := e.w.bool8(o.Local); err != nil {
		return err
	}
	if err := e.w.vec3(o.Velocity); err != nil {
		return err
	}
	return e.w.vec3(o.Torque)
}
