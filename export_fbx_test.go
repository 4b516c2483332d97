package pmx

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/mogaika/pmx/fbxbuilder"
)

func TestExportFbx(t *testing.T) {
	m := exportTestModel()
	f := fbxbuilder.NewFBXBuilder("prism.fbx")
	fe := m.ExportFbx(f)

	if fe.GeometryId == 0 || fe.ModelId == 0 || fe.GeometryId == fe.ModelId {
		t.Fatalf("object ids %d, %d; expected distinct nonzero", fe.GeometryId, fe.ModelId)
	}
	if len(fe.MaterialIds) != len(m.Materials) {
		t.Fatalf("%d material ids; expected %d", len(fe.MaterialIds), len(m.Materials))
	}

	objects := f.Root().GetNode("Objects")
	if objects == nil {
		t.Fatal("no Objects node")
	}
	for _, c := range []struct {
		name string
		want int
	}{
		{"Geometry", 1},
		{"Model", 1},
		{"Material", len(m.Materials)},
	} {
		if got := len(objects.GetNodes(c.name)); got != c.want {
			t.Errorf("%d %s objects; expected %d", got, c.name, c.want)
		}
	}

	geometry := objects.GetNode("Geometry")
	if got := geometry.Properties[0].(int64); got != fe.GeometryId {
		t.Errorf("geometry id %d; expected %d", got, fe.GeometryId)
	}
	for _, name := range []string{
		"GeometryVersion", "Vertices", "PolygonVertexIndex",
		"LayerElementNormal", "LayerElementUV", "LayerElementMaterial", "Layer",
	} {
		if geometry.GetNode(name) == nil {
			t.Errorf("geometry lacks %s", name)
		}
	}

	// FBX closes each polygon by bitwise-negating its last index.
	indexes := geometry.GetNode("PolygonVertexIndex").Properties[0].([]int32)
	want := []int32{0, 1, -3, 1, 3, -3}
	if !reflect.DeepEqual(indexes, want) {
		t.Errorf("polygon indices %v; expected %v", indexes, want)
	}

	model := objects.GetNode("Model")
	if got := model.Properties[0].(int64); got != fe.ModelId {
		t.Errorf("model id %d; expected %d", got, fe.ModelId)
	}

	// One geometry to model connection plus one per material; nothing
	// attaches to the scene root yet.
	connections := f.Root().GetNode("Connections")
	if got := len(connections.GetNodes("C")); got != 1+len(m.Materials) {
		t.Errorf("%d connections; expected %d", got, 1+len(m.Materials))
	}
}

func TestExportFbxDefault(t *testing.T) {
	m := exportTestModel()
	f := m.ExportFbxDefault("prism.fbx")

	connections := f.Root().GetNode("Connections")
	if got := len(connections.GetNodes("C")); got != 2+len(m.Materials) {
		t.Errorf("%d connections; expected %d", got, 2+len(m.Materials))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Write produced no bytes")
	}
}
