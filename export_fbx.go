package pmx

import (
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/mogaika/pmx/fbxbuilder"
)

// FbxExporter remembers the object ids a model contributed to an FBX
// document, so callers can attach more connections to them.
type FbxExporter struct {
	GeometryId  int64
	ModelId     int64
	MaterialIds []int64
}

// ExportFbx adds the model to f as one geometry with a per-polygon
// material layer and a phong material per surface run. The model node
// is not attached to the scene root; ExportFbxDefault does that.
//
// The V coordinate is flipped since PMX counts it from the top.
func (m *Model) ExportFbx(f *fbxbuilder.FBXBuilder) *FbxExporter {
	fe := &FbxExporter{
		GeometryId:  f.GenerateId(),
		ModelId:     f.GenerateId(),
		MaterialIds: make([]int64, 0, len(m.Materials)),
	}

	vertices := make([]float64, 0, len(m.Vertices)*3)
	normals := make([]float64, 0, len(m.Vertices)*3)
	uvs := make([]float64, 0, len(m.Vertices)*2)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		vertices = append(vertices,
			float64(v.Position[0]), float64(v.Position[1]), float64(v.Position[2]))
		normals = append(normals,
			float64(v.Normal[0]), float64(v.Normal[1]), float64(v.Normal[2]))
		uvs = append(uvs, float64(v.UV[0]), float64(1-v.UV[1]))
	}

	indexes := make([]int32, 0, len(m.Faces)*3)
	uvIndexes := make([]int32, 0, len(m.Faces)*3)
	materials := make([]int32, 0, len(m.Faces))
	face := 0
	for i := range m.Materials {
		count := int(m.Materials[i].SurfaceCount) / 3
		if face+count > len(m.Faces) {
			count = len(m.Faces) - face
		}
		for _, fc := range m.Faces[face : face+count] {
			indexes = append(indexes, fc[0], fc[1], -(fc[2] + 1))
			uvIndexes = append(uvIndexes, fc[0], fc[1], fc[2])
			materials = append(materials, int32(i))
		}
		face += count
	}

	geometry := bfbx73.Geometry(fe.GeometryId, "\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(0.8), float64(0.8), float64(0.8)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
		bfbx73.LayerElementNormal(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByVertice"),
			bfbx73.ReferenceInformationType("Direct"),
			bfbx73.Normals(normals),
		),
		bfbx73.LayerElementUV(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygonVertex"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.UV(uvs),
			bfbx73.UVIndex(uvIndexes),
		),
		bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygon"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials(materials),
		),
		bfbx73.Layer(0).AddNodes(
			bfbx73.Version(100),
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementNormal"),
				bfbx73.TypedIndex(0),
			),
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementMaterial"),
				bfbx73.TypedIndex(0),
			),
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementUV"),
				bfbx73.TypedIndex(0),
			),
		),
	)

	model := bfbx73.Model(fe.ModelId, m.Info.Name+"\x00\x01Model", "Mesh").AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("InheritType", "enum", "", "", int32(1)),
			bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
			bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
		),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)

	f.AddObjects(geometry, model)
	f.AddConnections(bfbx73.C("OO", fe.GeometryId, fe.ModelId))

	for i := range m.Materials {
		mt := &m.Materials[i]
		materialId := f.GenerateId()
		material := bfbx73.Material(materialId, mt.Name+"\x00\x01Material", "").AddNodes(
			bfbx73.Version(102),
			bfbx73.ShadingModel("phong"),
			bfbx73.MultiLayer(0),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("AmbientColor", "Color", "", "A",
					float64(mt.Ambient[0]), float64(mt.Ambient[1]), float64(mt.Ambient[2])),
				bfbx73.P("DiffuseColor", "Color", "", "A",
					float64(mt.Diffuse[0]), float64(mt.Diffuse[1]), float64(mt.Diffuse[2])),
				bfbx73.P("SpecularColor", "Color", "", "A",
					float64(mt.Specular[0]), float64(mt.Specular[1]), float64(mt.Specular[2])),
				bfbx73.P("SpecularFactor", "Number", "", "A", float64(mt.SpecularStrength)),
				bfbx73.P("Opacity", "double", "Number", "", float64(mt.Diffuse[3])),
			),
		)
		f.AddObjects(material)
		f.AddConnections(bfbx73.C("OO", materialId, fe.ModelId))
		fe.MaterialIds = append(fe.MaterialIds, materialId)
	}

	return fe
}

// ExportFbxDefault builds a standalone document with the model
// attached to the scene root.
func (m *Model) ExportFbxDefault(filename string) *fbxbuilder.FBXBuilder {
	f := fbxbuilder.NewFBXBuilder(filename)
	fe := m.ExportFbx(f)
	f.AddConnections(bfbx73.C("OO", fe.ModelId, 0))
	return f
}
