package pmx

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Material flag bits. The 0x20..0x80 group only has meaning in
// version 2.1 files but round-trips regardless.
const (
	MATERIAL_FLAG_DOUBLE_SIDED   uint8 = 0x01
	MATERIAL_FLAG_GROUND_SHADOW  uint8 = 0x02
	MATERIAL_FLAG_CAST_SHADOW    uint8 = 0x04
	MATERIAL_FLAG_RECEIVE_SHADOW uint8 = 0x08
	MATERIAL_FLAG_EDGE           uint8 = 0x10
	MATERIAL_FLAG_VERTEX_COLOR   uint8 = 0x20
	MATERIAL_FLAG_POINT_DRAW     uint8 = 0x40
	MATERIAL_FLAG_LINE_DRAW      uint8 = 0x80
)

// EnvironmentMode controls how the environment (sphere) texture is
// blended over the diffuse texture.
type EnvironmentMode uint8

const (
	ENV_DISABLED EnvironmentMode = 0
	ENV_MULTIPLY EnvironmentMode = 1
	ENV_ADDITIVE EnvironmentMode = 2

	// ENV_EXTRA_UV samples the environment texture with the first
	// extra Vec4 channel instead of a sphere map.
	ENV_EXTRA_UV EnvironmentMode = 3
)

// ToonRef selects the toon ramp: either an entry of Model.Textures or
// one of the ten ramps every runtime ships (see BuiltinToonName).
type ToonRef struct {
	Shared  bool
	Texture int32 // when !Shared; NoIndex disables toon shading
	Builtin uint8 // when Shared, 0..9
}

// BuiltinToonName returns the stock ramp filename for a shared toon
// id: toon01.bmp for 0 through toon10.bmp for 9.
func BuiltinToonName(id uint8) string {
	return fmt.Sprintf("toon%02d.bmp", int(id)+1)
}

type Material struct {
	Name   string
	NameEN string

	Diffuse          mgl32.Vec4
	Specular         mgl32.Vec3
	SpecularStrength float32
	Ambient          mgl32.Vec3

	Flags     uint8
	EdgeColor mgl32.Vec4
	EdgeSize  float32

	Texture         int32 // into Model.Textures, NoIndex for none
	Environment     int32 // into Model.Textures, NoIndex for none
	EnvironmentMode EnvironmentMode
	Toon            ToonRef

	// Memo is a free-form note; some tools stick scripting hints here.
	Memo string

	// SurfaceCount is how many face indices (3 per triangle) this
	// material paints. Materials consume Model.Faces front to back,
	// so the counts must sum to exactly 3*len(Model.Faces).
	SurfaceCount int32
}

func (d *Decoder) readTextures(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("textures: %d", n)
	m.Textures = make([]string, n)
	for i := range m.Textures {
		if m.Textures[i], err = d.r.text(); err != nil {
			return errors.WithMessagef(err, "texture %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeTextures(m *Model) error {
	if err := e.w.count(len(m.Textures)); err != nil {
		return err
	}
	for i := range m.Textures {
		if err := e.w.text(m.Textures[i]); err != nil {
			return errors.WithMessagef(err, "texture %d", i)
		}
	}
	return nil
}

func (d *Decoder) readMaterials(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("materials: %d", n)
	m.Materials = make([]Material, n)
	var total int64
	for i := range m.Materials {
		if err := d.readMaterial(&m.Materials[i]); err != nil {
			return errors.WithMessagef(err, "material %d", i)
		}
		if c := m.Materials[i].SurfaceCount; c < 0 {
			return errors.Wrapf(ErrMalformedSection, "material %d: negative surface count %d", i, c)
		}
		total += int64(m.Materials[i].SurfaceCount)
	}
	if want := int64(len(m.Faces)) * 3; total != want {
		return errors.Wrapf(ErrMalformedSection, "materials claim %d face indices, file carries %d", total, want)
	}
	return nil
}

func (d *Decoder) readMaterial(mt *Material) error {
	var err error
	if mt.Name, err = d.r.text(); err != nil {
		return err
	}
	if mt.NameEN, err = d.r.text(); err != nil {
		return err
	}
	if mt.Diffuse, err = d.r.vec4(); err != nil {
		return err
	}
	if mt.Specular, err = d.r.vec3(); err != nil {
		return err
	}
	if mt.SpecularStrength, err = d.r.f32(); err != nil {
		return err
	}
	if mt.Ambient, err = d.r.vec3(); err != nil {
		return err
	}
	if mt.Flags, err = d.r.u8(); err != nil {
		return err
	}
	if mt.EdgeColor, err = d.r.vec4(); err != nil {
		return err
	}
	if mt.EdgeSize, err = d.r.f32(); err != nil {
		return err
	}
	sz := d.r.hdr.TextureIndexSize
	if mt.Texture, err = d.r.index(sz); err != nil {
		return err
	}
	if mt.Environment, err = d.r.index(sz); err != nil {
		return err
	}
	env, err := d.r.u8()
	if err != nil {
		return err
	}
	if env > uint8(ENV_EXTRA_UV) {
		return errors.Wrapf(ErrMalformedSection, "unknown environment blend mode %d", env)
	}
	mt.EnvironmentMode = EnvironmentMode(env)
	toon, err := d.r.u8()
	if err != nil {
		return err
	}
	switch toon {
	case 0:
		mt.Toon.Shared = false
		if mt.Toon.Texture, err = d.r.index(sz); err != nil {
			return err
		}
	case 1:
		mt.Toon.Shared = true
		if mt.Toon.Builtin, err = d.r.u8(); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrMalformedSection, "unknown toon mode %d", toon)
	}
	if mt.Memo, err = d.r.text(); err != nil {
		return err
	}
	mt.SurfaceCount, err = d.r.i32()
	return err
}

func (e *Encoder) writeMaterials(m *Model) error {
	if err := e.w.count(len(m.Materials)); err != nil {
		return err
	}
	for i := range m.Materials {
		if err := e.writeMaterial(&m.Materials[i]); err != nil {
			return errors.WithMessagef(err, "material %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeMaterial(mt *Material) error {
	if err := e.w.text(mt.Name); err != nil {
		return err
	}
	if err := e.w.text(mt.NameEN); err != nil {
		return err
	}
	if err := e.w.vec4(mt.Diffuse); err != nil {
		return err
	}
	if err := e.w.vec3(mt.Specular); err != nil {
		return err
	}
	if err := e.w.f32(mt.SpecularStrength); err != nil {
		return err
	}
	if err := e.w.vec3(mt.Ambient); err != nil {
		return err
	}
	if err := e.w.u8(mt.Flags); err != nil {
		return err
	}
	if err := e.w.vec4(mt.EdgeColor); err != nil {
		return err
	}
	if err := e.w.f32(mt.EdgeSize); err != nil {
		return err
	}
	sz := e.w.hdr.TextureIndexSize
	if err := e.w.index(sz, mt.Texture); err != nil {
		return err
	}
	if err := e.w.index(sz, mt.Environment); err != nil {
		return err
	}
	if err := e.w.u8(uint8(mt.EnvironmentMode)); err != nil {
		return err
	}
	if mt.Toon.Shared {
		if err := e.w.u8(1); err != nil {
			return err
		}
		if err := e.w.u8(mt.Toon.Builtin); err != nil {
			return err
		}
	} else {
		if err := e.w.u8(0); err != nil {
			return err
		}
		if err := e.w.index(sz, mt.Toon.Texture); err != nil {
			return err
		}
	}
	if err := e.w.text(mt.Memo); err != nil {
		return err
	}
	return e.w.i32(mt.SurfaceCount)
}
