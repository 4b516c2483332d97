package pmx

import "github.com/pkg/errors"

// refInRange accepts NoIndex or a reference into a list of n entries.
func refInRange(v int32, n int) bool {
	return v == NoIndex || (v >= 0 && int(v) < n)
}

// validateModel checks every structural rule Encode relies on, before
// a single byte is written. Decoded files always pass: the decoder
// rejects anything that would fail here, except for cross-references
// it has no later section to check against.
func validateModel(h *Header, m *Model) error {
	for _, c := range []struct {
		name  string
		count int
		limit int
	}{
		{"vertex", len(m.Vertices), h.VertexIndexSize.maxUnsigned()},
		{"texture", len(m.Textures), h.TextureIndexSize.maxSigned()},
		{"material", len(m.Materials), h.MaterialIndexSize.maxSigned()},
		{"bone", len(m.Bones), h.BoneIndexSize.maxSigned()},
		{"morph", len(m.Morphs), h.MorphIndexSize.maxSigned()},
		{"rigid body", len(m.RigidBodies), h.RigidIndexSize.maxSigned()},
	} {
		if c.count-1 > c.limit {
			return errors.Wrapf(ErrInvariant, "%s count %d does not fit its index width", c.name, c.count)
		}
	}

	for i := range m.Vertices {
		v := &m.Vertices[i]
		if len(v.ExtraUVs) != int(h.ExtraUVs) {
			return errors.Wrapf(ErrInvariant, "vertex %d carries %d extra uv channels, header declares %d",
				i, len(v.ExtraUVs), h.ExtraUVs)
		}
		if err := validateDeform(h, m, i, v.Deform); err != nil {
			return err
		}
	}

	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || int(v) >= len(m.Vertices) {
				return errors.Wrapf(ErrInvariant, "face %d references vertex %d of %d", i, v, len(m.Vertices))
			}
		}
	}

	var surfaces int64
	for i := range m.Materials {
		mt := &m.Materials[i]
		if !refInRange(mt.Texture, len(m.Textures)) {
			return errors.Wrapf(ErrInvariant, "material %d: texture %d of %d", i, mt.Texture, len(m.Textures))
		}
		if !refInRange(mt.Environment, len(m.Textures)) {
			return errors.Wrapf(ErrInvariant, "material %d: environment texture %d of %d", i, mt.Environment, len(m.Textures))
		}
		if !mt.Toon.Shared && !refInRange(mt.Toon.Texture, len(m.Textures)) {
			return errors.Wrapf(ErrInvariant, "material %d: toon texture %d of %d", i, mt.Toon.Texture, len(m.Textures))
		}
		if mt.EnvironmentMode > ENV_EXTRA_UV {
			return errors.Wrapf(ErrInvariant, "material %d: environment blend mode %d", i, mt.EnvironmentMode)
		}
		if mt.SurfaceCount < 0 || mt.SurfaceCount%3 != 0 {
			return errors.Wrapf(ErrInvariant, "material %d: surface count %d is not a whole number of triangles",
				i, mt.SurfaceCount)
		}
		surfaces += int64(mt.SurfaceCount)
	}
	if want := int64(len(m.Faces)) * 3; surfaces != want {
		return errors.Wrapf(ErrInvariant, "materials claim %d face indices, model carries %d", surfaces, want)
	}

	for i := range m.Bones {
		if err := validateBone(m, i, &m.Bones[i]); err != nil {
			return err
		}
	}

	for i := range m.Morphs {
		if err := validateMorph(h, m, i, &m.Morphs[i]); err != nil {
			return err
		}
	}

	for i := range m.DisplayFrames {
		f := &m.DisplayFrames[i]
		for j, el := range f.Elements {
			switch el.Target {
			case FRAME_BONE:
				if !refInRange(el.Index, len(m.Bones)) {
					return errors.Wrapf(ErrInvariant, "display frame %d element %d: bone %d of %d",
						i, j, el.Index, len(m.Bones))
				}
			case FRAME_MORPH:
				if !refInRange(el.Index, len(m.Morphs)) {
					return errors.Wrapf(ErrInvariant, "display frame %d element %d: morph %d of %d",
						i, j, el.Index, len(m.Morphs))
				}
			default:
				return errors.Wrapf(ErrInvariant, "display frame %d element %d: unknown target %d",
					i, j, el.Target)
			}
		}
	}

	for i := range m.RigidBodies {
		rb := &m.RigidBodies[i]
		if !refInRange(rb.Bone, len(m.Bones)) {
			return errors.Wrapf(ErrInvariant, "rigid body %d: bone %d of %d", i, rb.Bone, len(m.Bones))
		}
		if rb.Shape > RIGID_SHAPE_CAPSULE {
			return errors.Wrapf(ErrInvariant, "rigid body %d: shape %d", i, rb.Shape)
		}
		if rb.Mode > RIGID_MODE_DYNAMIC_BONE {
			return errors.Wrapf(ErrInvariant, "rigid body %d: mode %d", i, rb.Mode)
		}
	}

	for i := range m.Joints {
		j := &m.Joints[i]
		if j.Kind > JOINT_HINGE {
			return errors.Wrapf(ErrInvariant, "joint %d: kind %d", i, j.Kind)
		}
		if !refInRange(j.RigidA, len(m.RigidBodies)) {
			return errors.Wrapf(ErrInvariant, "joint %d: rigid body A %d of %d", i, j.RigidA, len(m.RigidBodies))
		}
		if !refInRange(j.RigidB, len(m.RigidBodies)) {
			return errors.Wrapf(ErrInvariant, "joint %d: rigid body B %d of %d", i, j.RigidB, len(m.RigidBodies))
		}
	}

	if len(m.SoftBodies) != 0 && !h.hasSoftBodies() {
		return errors.Wrapf(ErrInvariant, "soft bodies require version 2.1, header says %v", h.Version)
	}
	for i := range m.SoftBodies {
		if err := validateSoftBody(m, i, &m.SoftBodies[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateDeform(h *Header, m *Model, i int, df Deform) error {
	bones := func(refs ...int32) error {
		for _, b := range refs {
			if !refInRange(b, len(m.Bones)) {
				return errors.Wrapf(ErrInvariant, "vertex %d: deform bone %d of %d", i, b, len(m.Bones))
			}
		}
		return nil
	}
	switch s := df.(type) {
	case BDEF1:
		return bones(s.Bone)
	case BDEF2:
		return bones(s.Bones[:]...)
	case BDEF4:
		return bones(s.Bones[:]...)
	case SDEF:
		return bones(s.Bones[:]...)
	case QDEF:
		if h.Version < 2.1 {
			return errors.Wrapf(ErrInvariant, "vertex %d: QDEF requires version 2.1", i)
		}
		return bones(s.Bones[:]...)
	case nil:
		return errors.Wrapf(ErrInvariant, "vertex %d: nil deform", i)
	}
	return errors.Wrapf(ErrInvariant, "vertex %d: unsupported deform %T", i, df)
}

func validateBone(m *Model, i int, b *Bone) error {
	if !refInRange(b.Parent, len(m.Bones)) {
		return errors.Wrapf(ErrInvariant, "bone %d: parent %d of %d", i, b.Parent, len(m.Bones))
	}
	if b.TailIsBone && !refInRange(b.TailBone, len(m.Bones)) {
		return errors.Wrapf(ErrInvariant, "bone %d: tail bone %d of %d", i, b.TailBone, len(m.Bones))
	}
	if b.Inherit != nil {
		if !b.Inherit.Rotation && !b.Inherit.Translation {
			return errors.Wrapf(ErrInvariant, "bone %d: inherit payload without rotation or translation", i)
		}
		if !refInRange(b.Inherit.Source, len(m.Bones)) {
			return errors.Wrapf(ErrInvariant, "bone %d: inherit source %d of %d", i, b.Inherit.Source, len(m.Bones))
		}
	}
	if b.IK != nil {
		if !refInRange(b.IK.Target, len(m.Bones)) {
			return errors.Wrapf(ErrInvariant, "bone %d: ik target %d of %d", i, b.IK.Target, len(m.Bones))
		}
		for j := range b.IK.Links {
			if !refInRange(b.IK.Links[j].Bone, len(m.Bones)) {
				return errors.Wrapf(ErrInvariant, "bone %d: ik link %d bone %d of %d",
					i, j, b.IK.Links[j].Bone, len(m.Bones))
			}
		}
	}
	return nil
}

func validateMorph(h *Header, m *Model, i int, mr *Morph) error {
	if mr.Panel > PANEL_OTHER {
		return errors.Wrapf(ErrInvariant, "morph %d: control panel %d", i, mr.Panel)
	}
	switch o := mr.Offsets.(type) {
	case GroupOffsets:
		for j := range o {
			if !refInRange(o[j].Morph, len(m.Morphs)) {
				return errors.Wrapf(ErrInvariant, "morph %d offset %d: morph %d of %d", i, j, o[j].Morph, len(m.Morphs))
			}
		}
	case VertexOffsets:
		for j := range o {
			if !refInRange(o[j].Vertex, len(m.Vertices)) {
				return errors.Wrapf(ErrInvariant, "morph %d offset %d: vertex %d of %d", i, j, o[j].Vertex, len(m.Vertices))
			}
		}
	case BoneOffsets:
		for j := range o {
			if !refInRange(o[j].Bone, len(m.Bones)) {
				return errors.Wrapf(ErrInvariant, "morph %d offset %d: bone %d of %d", i, j, o[j].Bone, len(m.Bones))
			}
		}
	case UVOffsets:
		if o.Channel > 4 {
			return errors.Wrapf(ErrInvariant, "morph %d: uv channel %d", i, o.Channel)
		}
		if o.Channel > 0 && o.Channel > h.ExtraUVs {
			return errors.Wrapf(ErrInvariant, "morph %d: uv channel %d, header declares %d extra channels",
				i, o.Channel, h.ExtraUVs)
		}
		for j := range o.Offsets {
			if !refInRange(o.Offsets[j].Vertex, len(m.Vertices)) {
				return errors.Wrapf(ErrInvariant, "morph %d offset %d: vertex %d of %d",
					i, j, o.Offsets[j].Vertex, len(m.Vertices))
			}
		}
	case MaterialOffsets:
		for j := range o {
			if !refInRange(o[j].Material, len(m.Materials)) {
				return errors.Wrapf(ErrInvariant, "morph %d offset %d: material %d of %d",
					i, j, o[j].Material, len(m.Materials))
			}
		}
	case FlipOffsets:
		for j := range o {
			if !refInRange(o[j].Morph, len(m.Morphs)) {
				return errors.Wrapf(ErrInvariant, "morph %d offset %d: morph %d of %d", i, j, o[j].Morph, len(m.Morphs))
			}
		}
	case ImpulseOffsets:
		for j := range o {
			if !refInRange(o[j].RigidBody, len(m.RigidBodies)) {
				return errors.Wrapf(ErrInvariant, "morph %d offset %d: rigid body %d of %d",
					i, j, o[j].RigidBody, len(m.RigidBodies))
			}
		}
	case nil:
		return errors.Wrapf(ErrInvariant, "morph %d: nil offsets", i)
	default:
		return errors.Wrapf(ErrInvariant, "morph %d: unsupported offsets %T", i, mr.Offsets)
	}
	return nil
}

func validateSoftBody(m *Model, i int, sb *SoftBody) error {
	if sb.Shape > SOFT_BODY_ROPE {
		return errors.Wrapf(ErrInvariant, "soft body %d: shape %d", i, sb.Shape)
	}
	if sb.AeroModel < AERO_V_POINT || sb.AeroModel > AERO_F_ONE_SIDED {
		return errors.Wrapf(ErrInvariant, "soft body %d: aero model %d", i, sb.AeroModel)
	}
	if !refInRange(sb.Material, len(m.Materials)) {
		return errors.Wrapf(ErrInvariant, "soft body %d: material %d of %d", i, sb.Material, len(m.Materials))
	}
	for j, a := range sb.Anchors {
		if !refInRange(a.RigidBody, len(m.RigidBodies)) {
			return errors.Wrapf(ErrInvariant, "soft body %d anchor %d: rigid body %d of %d",
				i, j, a.RigidBody, len(m.RigidBodies))
		}
		if !refInRange(a.Vertex, len(m.Vertices)) {
			return errors.Wrapf(ErrInvariant, "soft body %d anchor %d: vertex %d of %d",
				i, j, a.Vertex, len(m.Vertices))
		}
	}
	for j, p := range sb.Pins {
		if !refInRange(p, len(m.Vertices)) {
			return errors.Wrapf(ErrInvariant, "soft body %d pin %d: vertex %d of %d", i, j, p, len(m.Vertices))
		}
	}
	return nil
}
