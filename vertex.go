package pmx

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// DeformKind discriminates the skinning variants a vertex can carry.
type DeformKind uint8

const (
	DEFORM_BDEF1 DeformKind = 0
	DEFORM_BDEF2 DeformKind = 1
	DEFORM_BDEF4 DeformKind = 2
	DEFORM_SDEF  DeformKind = 3
	DEFORM_QDEF  DeformKind = 4 // version 2.1
)

// Deform is one of BDEF1, BDEF2, BDEF4, SDEF or QDEF.
type Deform interface {
	DeformKind() DeformKind
}

// BDEF1 binds the vertex to a single bone with full weight.
type BDEF1 struct {
	Bone int32
}

// BDEF2 blends two bones. The second weight is 1 - Weight.
type BDEF2 struct {
	Bones  [2]int32
	Weight float32
}

// BDEF4 blends four bones. Weights are stored as is and are not
// required to sum to 1.
type BDEF4 struct {
	Bones   [4]int32
	Weights [4]float32
}

// SDEF is spherical deform: a BDEF2 pair plus the C/R0/R1 helper
// points that shape the blend.
type SDEF struct {
	Bones  [2]int32
	Weight float32
	C      mgl32.Vec3
	R0     mgl32.Vec3
	R1     mgl32.Vec3
}

// QDEF is dual quaternion deform with the BDEF4 layout (version 2.1).
type QDEF struct {
	Bones   [4]int32
	Weights [4]float32
}

func (BDEF1) DeformKind() DeformKind { return DEFORM_BDEF1 }
func (BDEF2) DeformKind() DeformKind { return DEFORM_BDEF2 }
func (BDEF4) DeformKind() DeformKind { return DEFORM_BDEF4 }
func (SDEF) DeformKind() DeformKind  { return DEFORM_SDEF }
func (QDEF) DeformKind() DeformKind  { return DEFORM_QDEF }

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2

	// ExtraUVs length always equals Header.ExtraUVs.
	ExtraUVs []mgl32.Vec4

	Deform    Deform
	EdgeScale float32
}

func (d *Decoder) readVertices(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("vertices: %d", n)
	m.Vertices = make([]Vertex, n)
	for i := range m.Vertices {
		if err := d.readVertex(&m.Vertices[i]); err != nil {
			return errors.WithMessagef(err, "vertex %d", i)
		}
	}
	return nil
}

func (d *Decoder) readVertex(v *Vertex) error {
	var err error
	if v.Position, err = d.r.vec3(); err != nil {
		return err
	}
	if v.Normal, err = d.r.vec3(); err != nil {
		return err
	}
	if v.UV, err = d.r.vec2(); err != nil {
		return err
	}
	if n := int(d.r.hdr.ExtraUVs); n != 0 {
		v.ExtraUVs = make([]mgl32.Vec4, n)
		for i := range v.ExtraUVs {
			if v.ExtraUVs[i], err = d.r.vec4(); err != nil {
				return err
			}
		}
	}
	if v.Deform, err = d.readDeform(); err != nil {
		return err
	}
	v.EdgeScale, err = d.r.f32()
	return err
}

func (d *Decoder) readDeform() (Deform, error) {
	kind, err := d.r.u8()
	if err != nil {
		return nil, err
	}
	sz := d.r.hdr.BoneIndexSize
	switch DeformKind(kind) {
	case DEFORM_BDEF1:
		var s BDEF1
		if s.Bone, err = d.r.index(sz); err != nil {
			return nil, err
		}
		return s, nil
	case DEFORM_BDEF2:
		var s BDEF2
		for i := range s.Bones {
			if s.Bones[i], err = d.r.index(sz); err != nil {
				return nil, err
			}
		}
		if s.Weight, err = d.r.f32(); err != nil {
			return nil, err
		}
		return s, nil
	case DEFORM_BDEF4:
		var s BDEF4
		if err := d.readFourBones(&s.Bones, &s.Weights); err != nil {
			return nil, err
		}
		return s, nil
	case DEFORM_SDEF:
		var s SDEF
		for i := range s.Bones {
			if s.Bones[i], err = d.r.index(sz); err != nil {
				return nil, err
			}
		}
		if s.Weight, err = d.r.f32(); err != nil {
			return nil, err
		}
		if s.C, err = d.r.vec3(); err != nil {
			return nil, err
		}
		if s.R0, err = d.r.vec3(); err != nil {
			return nil, err
		}
		if s.R1, err = d.r.vec3(); err != nil {
			return nil, err
		}
		return s, nil
	case DEFORM_QDEF:
		var s QDEF
		if err := d.readFourBones(&s.Bones, &s.Weights); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.Wrapf(ErrMalformedSection, "unknown deform kind %d", kind)
}

func (d *Decoder) readFourBones(bones *[4]int32, weights *[4]float32) error {
	var err error
	sz := d.r.hdr.BoneIndexSize
	for i := range bones {
		if bones[i], err = d.r.index(sz); err != nil {
			return err
		}
	}
	for i := range weights {
		if weights[i], err = d.r.f32(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeVertices(m *Model) error {
	if err := e.w.count(len(m.Vertices)); err != nil {
		return err
	}
	for i := range m.Vertices {
		if err := e.writeVertex(&m.Vertices[i]); err != nil {
			return errors.WithMessagef(err, "vertex %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeVertex(v *Vertex) error {
	if err := e.w.vec3(v.Position); err != nil {
		return err
	}
	if err := e.w.vec3(v.Normal); err != nil {
		return err
	}
	if err := e.w.vec2(v.UV); err != nil {
		return err
	}
	for _, uv := range v.ExtraUVs {
		if err := e.w.vec4(uv); err != nil {
			return err
		}
	}
	if err := e.writeDeform(v.Deform); err != nil {
		return err
	}
	return e.w.f32(v.EdgeScale)
}

func (e *Encoder) writeDeform(df Deform) error {
	sz := e.w.hdr.BoneIndexSize
	switch s := df.(type) {
	case BDEF1:
		if err := e.w.u8(uint8(DEFORM_BDEF1)); err != nil {
			return err
		}
		return e.w.index(sz, s.Bone)
	case BDEF2:
		if err := e.w.u8(uint8(DEFORM_BDEF2)); err != nil {
			return err
		}
		for _, b := range s.Bones {
			if err := e.w.index(sz, b); err != nil {
				return err
			}
		}
		return e.w.f32(s.Weight)
	case BDEF4:
		if err := e.w.u8(uint8(DEFORM_BDEF4)); err != nil {
			return err
		}
		return e.writeFourBones(s.Bones, s.Weights)
	case SDEF:
		if err := e.w.u8(uint8(DEFORM_SDEF)); err != nil {
			return err
		}
		for _, b := range s.Bones {
			if err := e.w.index(sz, b); err != nil {
				return err
			}
		}
		if err := e.w.f32(s.Weight); err != nil {
			return err
		}
		if err := e.w.vec3(s.C); err != nil {
			return err
		}
		if err := e.w.vec3(s.R0); err != nil {
			return err
		}
		return e.w.vec3(s.R1)
	case QDEF:
		if err := e.w.u8(uint8(DEFORM_QDEF)); err != nil {
			return err
		}
		return e.writeFourBones(s.Bones, s.Weights)
	}
	return errors.Wrapf(ErrInvariant, "unsupported deform %T", df)
}

func (e *Encoder) writeFourBones(bones [4]int32, weights [4]float32) error {
	sz := e.w.hdr.BoneIndexSize
	for _, b := range bones {
		if err := e.w.index(sz, b); err != nil {
			return err
		}
	}
	for _, w := range weights {
		if err := e.w.f32(w); err != nil {
			return err
		}
	}
	return nil
}
