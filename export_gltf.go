package pmx

import (
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ExportGLTF builds a glTF document from the model: shared vertex
// accessors, one primitive per material surface run and textures
// referenced by URI. SDEF helper points and extra UV channels have no
// glTF mapping and are dropped; SDEF skins as its BDEF2 pair.
func (m *Model) ExportGLTF() (*gltf.Document, error) {
	doc := gltf.NewDocument()

	positions := make([][3]float32, len(m.Vertices))
	normals := make([][3]float32, len(m.Vertices))
	uvs := make([][2]float32, len(m.Vertices))
	joints := make([][4]uint16, len(m.Vertices))
	weights := make([][4]float32, len(m.Vertices))
	for i := range m.Vertices {
		v := &m.Vertices[i]
		positions[i] = v.Position
		normals[i] = v.Normal
		uvs[i] = v.UV
		joints[i], weights[i] = skinAttributes(v.Deform)
	}

	attributes := make(map[string]uint32)
	if len(m.Vertices) != 0 {
		attributes["POSITION"] = modeler.WritePosition(doc, positions)
		attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(doc, uvs)
		if len(m.Bones) != 0 {
			attributes["JOINTS_0"] = modeler.WriteJoints(doc, joints)
			attributes["WEIGHTS_0"] = modeler.WriteWeights(doc, weights)
		}
	}

	textures := make(map[int32]uint32)
	mesh := &gltf.Mesh{Name: m.Info.Name}
	face := 0
	for i := range m.Materials {
		mt := &m.Materials[i]
		count := int(mt.SurfaceCount) / 3
		if face+count > len(m.Faces) {
			return nil, errors.Wrapf(ErrInvariant, "material %d: surface run exceeds %d faces", i, len(m.Faces))
		}
		indices := make([]uint32, 0, count*3)
		for _, f := range m.Faces[face : face+count] {
			indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
		}
		face += count

		gm := &gltf.Material{
			Name:        mt.Name,
			DoubleSided: mt.Flags&MATERIAL_FLAG_DOUBLE_SIDED != 0,
		}
		gm.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{
			BaseColorFactor:  &[4]float32{mt.Diffuse[0], mt.Diffuse[1], mt.Diffuse[2], mt.Diffuse[3]},
			BaseColorTexture: textureInfo(doc, m, textures, mt.Texture),
		}
		doc.Materials = append(doc.Materials, gm)
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Attributes: attributes,
			Material:   gltf.Index(uint32(len(doc.Materials) - 1)),
		})
	}
	if face != len(m.Faces) {
		return nil, errors.Wrapf(ErrInvariant, "materials cover %d of %d faces", face, len(m.Faces))
	}

	doc.Meshes = append(doc.Meshes, mesh)
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: m.Info.Name,
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	return doc, nil
}

// ExportGLTFBinary writes the model as a single GLB blob.
func (m *Model) ExportGLTFBinary(w io.Writer) error {
	doc, err := m.ExportGLTF()
	if err != nil {
		return err
	}
	e := gltf.NewEncoder(w)
	e.AsBinary = true
	return e.Encode(doc)
}

// skinAttributes flattens a deform into the four-influence form glTF
// skins use. Unbound slots get joint 0 with weight 0.
func skinAttributes(df Deform) (joints [4]uint16, weights [4]float32) {
	set := func(slot int, bone int32, weight float32) {
		if bone == NoIndex || weight == 0 {
			return
		}
		joints[slot] = uint16(bone)
		weights[slot] = weight
	}
	switch s := df.(type) {
	case BDEF1:
		set(0, s.Bone, 1)
	case BDEF2:
		set(0, s.Bones[0], s.Weight)
		set(1, s.Bones[1], 1-s.Weight)
	case BDEF4:
		for i := range s.Bones {
			set(i, s.Bones[i], s.Weights[i])
		}
	case SDEF:
		set(0, s.Bones[0], s.Weight)
		set(1, s.Bones[1], 1-s.Weight)
	case QDEF:
		for i := range s.Bones {
			set(i, s.Bones[i], s.Weights[i])
		}
	}
	return joints, weights
}

func textureInfo(doc *gltf.Document, m *Model, cache map[int32]uint32, ti int32) *gltf.TextureInfo {
	if ti == NoIndex || int(ti) >= len(m.Textures) || ti < 0 {
		return nil
	}
	id, ok := cache[ti]
	if !ok {
		doc.Images = append(doc.Images, &gltf.Image{URI: m.Textures[ti]})
		doc.Textures = append(doc.Textures, &gltf.Texture{
			Source: gltf.Index(uint32(len(doc.Images) - 1)),
		})
		id = uint32(len(doc.Textures) - 1)
		cache[ti] = id
	}
	return &gltf.TextureInfo{Index: id}
}
