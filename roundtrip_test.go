package pmx

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"

	"github.com/Pallinder/go-randomdata"
	"github.com/go-gl/mathgl/mgl32"
)

// nameGenerator hands out unique fixture names so a DeepEqual failure
// points at one element instead of many look-alikes.
type nameGenerator map[string]struct{}

func (ng *nameGenerator) next() string {
	if *ng == nil {
		*ng = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
	}
	for {
		name := randomdata.SillyName()
		// avoid duplicate names
		if _, exists := (*ng)[name]; !exists {
			(*ng)[name] = struct{}{}
			return name
		}
	}
}

// buildTestModel covers every section and discriminator. Version 2.1
// adds QDEF skinning, a hinge joint, flip and impulse morphs and the
// soft body section on top of the 2.0 content.
func buildTestModel(ng *nameGenerator, version float32) *Model {
	m := &Model{
		Info: ModelInfo{
			Name:      ng.next(),
			NameEN:    ng.next(),
			Comment:   "丸い緑のフィクスチャ",
			CommentEN: "codec fixture 😀",
		},
	}

	deforms := []Deform{
		BDEF1{Bone: 0},
		BDEF2{Bones: [2]int32{0, 1}, Weight: 0.75},
		BDEF4{Bones: [4]int32{0, 1, 2, NoIndex}, Weights: [4]float32{0.4, 0.3, 0.3, 0}},
		SDEF{
			Bones:  [2]int32{1, 2},
			Weight: 0.5,
			C:      mgl32.Vec3{0.1, 0.2, 0.3},
			R0:     mgl32.Vec3{0.4, 0.5, 0.6},
			R1:     mgl32.Vec3{0.7, 0.8, 0.9},
		},
		BDEF1{Bone: 1},
		BDEF2{Bones: [2]int32{2, NoIndex}, Weight: 1},
	}
	if version >= 2.1 {
		deforms[4] = QDEF{Bones: [4]int32{3, 2, 1, 0}, Weights: [4]float32{0.1, 0.2, 0.3, 0.4}}
	}
	for i, df := range deforms {
		fi := float32(i)
		m.Vertices = append(m.Vertices, Vertex{
			Position: mgl32.Vec3{fi, fi * 2, fi * 3},
			Normal:   mgl32.Vec3{0, 1, 0},
			UV:       mgl32.Vec2{fi / 8, 1 - fi/8},
			ExtraUVs: []mgl32.Vec4{
				{fi, 0, 0, 1},
				{0, fi, 1, 0},
			},
			Deform:    df,
			EdgeScale: 1 + fi/4,
		})
	}

	m.Faces = []Face{{0, 1, 2}, {2, 3, 4}, {4, 5, 0}, {1, 3, 5}}

	m.Textures = []string{
		ng.next() + ".png",
		ng.next() + ".spa",
		ng.next() + ".bmp",
	}

	m.Materials = []Material{
		{
			Name:             ng.next(),
			NameEN:           ng.next(),
			Diffuse:          mgl32.Vec4{1, 0.9, 0.8, 1},
			Specular:         mgl32.Vec3{0.5, 0.5, 0.5},
			SpecularStrength: 12,
			Ambient:          mgl32.Vec3{0.3, 0.3, 0.3},
			Flags:            MATERIAL_FLAG_DOUBLE_SIDED | MATERIAL_FLAG_CAST_SHADOW | MATERIAL_FLAG_EDGE,
			EdgeColor:        mgl32.Vec4{0, 0, 0, 1},
			EdgeSize:         1,
			Texture:          0,
			Environment:      1,
			EnvironmentMode:  ENV_MULTIPLY,
			Toon:             ToonRef{Shared: true, Builtin: 3},
			Memo:             "outline pass",
			SurfaceCount:     6,
		},
		{
			Name:             ng.next(),
			NameEN:           ng.next(),
			Diffuse:          mgl32.Vec4{0.2, 0.4, 0.6, 0.5},
			Specular:         mgl32.Vec3{1, 1, 1},
			SpecularStrength: 50,
			Ambient:          mgl32.Vec3{0.1, 0.2, 0.3},
			Flags:            MATERIAL_FLAG_GROUND_SHADOW,
			EdgeColor:        mgl32.Vec4{1, 0, 0, 1},
			EdgeSize:         0.5,
			Texture:          NoIndex,
			Environment:      NoIndex,
			EnvironmentMode:  ENV_DISABLED,
			Toon:             ToonRef{Shared: false, Texture: 2},
			SurfaceCount:     6,
		},
	}

	m.Bones = []Bone{
		{
			Name:         "センター",
			NameEN:       "center",
			Parent:       NoIndex,
			Rotatable:    true,
			Translatable: true,
			Visible:      true,
			Enabled:      true,
			TailOffset:   mgl32.Vec3{0, 1, 0},
		},
		{
			Name:       ng.next(),
			NameEN:     ng.next(),
			Position:   mgl32.Vec3{0, 1, 0},
			Parent:     0,
			Layer:      1,
			Rotatable:  true,
			Visible:    true,
			Enabled:    true,
			TailIsBone: true,
			TailBone:   2,
			Inherit:    &BoneInherit{Rotation: true, Source: 0, Weight: 0.5},
		},
		{
			Name:         ng.next(),
			NameEN:       ng.next(),
			Position:     mgl32.Vec3{0, 2, 0},
			Parent:       1,
			Rotatable:    true,
			PhysicsAfter: true,
			InheritLocal: true,
			TailOffset:   mgl32.Vec3{0, 0.5, 0},
			FixedAxis:    &mgl32.Vec3{0, 1, 0},
			LocalAxes: &BoneLocalAxes{
				X: mgl32.Vec3{1, 0, 0},
				Z: mgl32.Vec3{0, 0, 1},
			},
			UnknownFlags: 0x4000,
		},
		{
			Name:              ng.next(),
			NameEN:            ng.next(),
			Position:          mgl32.Vec3{1, 2, 3},
			Parent:            2,
			Layer:             2,
			Enabled:           true,
			TailIsBone:        true,
			TailBone:          NoIndex,
			HasExternalParent: true,
			ExternalParent:    1,
			IK: &BoneIK{
				Target:     0,
				Loops:      40,
				LimitAngle: 1.0471976,
				Links: []IKLink{
					{Bone: 1, Limit: &IKLimit{
						Min: mgl32.Vec3{-3.1415927, 0, 0},
						Max: mgl32.Vec3{-0.008726646, 0, 0},
					}},
					{Bone: 2},
				},
			},
		},
	}

	m.Morphs = []Morph{
		{
			Name: ng.next(), NameEN: ng.next(), Panel: PANEL_EYEBROW,
			Offsets: GroupOffsets{{Morph: 1, Weight: 0.5}, {Morph: 2, Weight: 1}},
		},
		{
			Name: ng.next(), NameEN: ng.next(), Panel: PANEL_EYE,
			Offsets: VertexOffsets{
				{Vertex: 0, Offset: mgl32.Vec3{0, 0.01, 0}},
				{Vertex: 5, Offset: mgl32.Vec3{0.02, 0, 0}},
			},
		},
		{
			Name: ng.next(), NameEN: ng.next(), Panel: PANEL_MOUTH,
			Offsets: BoneOffsets{
				{Bone: 1, Move: mgl32.Vec3{0, 0.1, 0}, Rotation: mgl32.Vec4{0, 0, 0.25881904, 0.9659258}},
			},
		},
		{
			Name: ng.next(), NameEN: ng.next(), Panel: PANEL_OTHER,
			Offsets: UVOffsets{Channel: 0, Offsets: []UVOffset{
				{Vertex: 2, Offset: mgl32.Vec4{0.1, -0.1, 0, 0}},
			}},
		},
		{
			Name: ng.next(), NameEN: ng.next(), Panel: PANEL_OTHER,
			Offsets: UVOffsets{Channel: 2, Offsets: []UVOffset{
				{Vertex: 3, Offset: mgl32.Vec4{0, 0, 0.5, 0.5}},
			}},
		},
		{
			Name: ng.next(), NameEN: ng.next(), Panel: PANEL_SYSTEM,
			Offsets: MaterialOffsets{
				{
					Material:         NoIndex,
					Op:               MATERIAL_MORPH_MULTIPLY,
					Diffuse:          mgl32.Vec4{1, 1, 1, 0.5},
					Specular:         mgl32.Vec3{1, 1, 1},
					SpecularStrength: 1,
					Ambient:          mgl32.Vec3{1, 1, 1},
					EdgeColor:        mgl32.Vec4{1, 1, 1, 1},
					EdgeSize:         1,
					Texture:          mgl32.Vec4{1, 1, 1, 1},
					Environment:      mgl32.Vec4{1, 1, 1, 1},
					Toon:             mgl32.Vec4{1, 1, 1, 1},
				},
				{
					Material:  1,
					Op:        MATERIAL_MORPH_ADDITIVE,
					Diffuse:   mgl32.Vec4{0.1, 0, 0, 0},
					EdgeColor: mgl32.Vec4{0, 0.2, 0, 0},
					EdgeSize:  0.1,
				},
			},
		},
	}
	if version >= 2.1 {
		m.Morphs = append(m.Morphs,
			Morph{
				Name: ng.next(), NameEN: ng.next(), Panel: PANEL_OTHER,
				Offsets: FlipOffsets{{Morph: 0, Weight: 1}},
			},
			Morph{
				Name: ng.next(), NameEN: ng.next(), Panel: PANEL_OTHER,
				Offsets: ImpulseOffsets{{
					RigidBody: 0,
					Local:     true,
					Velocity:  mgl32.Vec3{0, -1, 0},
					Torque:    mgl32.Vec3{0.1, 0, 0},
				}},
			},
		)
	}

	m.DisplayFrames = []DisplayFrame{
		{
			Name: "Root", NameEN: "Root", Special: true,
			Elements: []FrameElement{{Target: FRAME_BONE, Index: 0}},
		},
		{
			Name: "表情", NameEN: "Exp", Special: true,
			Elements: []FrameElement{
				{Target: FRAME_MORPH, Index: 0},
				{Target: FRAME_MORPH, Index: 1},
			},
		},
		{
			Name: ng.next(), NameEN: ng.next(),
			Elements: []FrameElement{
				{Target: FRAME_BONE, Index: 2},
				{Target: FRAME_MORPH, Index: 3},
				{Target: FRAME_BONE, Index: 3},
			},
		},
	}

	m.RigidBodies = []RigidBody{
		{
			Name: ng.next(), NameEN: ng.next(),
			Bone: 1, Group: 1, GroupMask: 0xFFFE,
			Shape:    RIGID_SHAPE_SPHERE,
			Size:     mgl32.Vec3{0.5, 0, 0},
			Position: mgl32.Vec3{0, 1, 0},
			Mass:     1, LinearDamping: 0.5, AngularDamping: 0.99,
			Restitution: 0, Friction: 0.5,
			Mode: RIGID_MODE_STATIC,
		},
		{
			Name: ng.next(), NameEN: ng.next(),
			Bone: 3, Group: 2, GroupMask: 0xFFFD,
			Shape:    RIGID_SHAPE_BOX,
			Size:     mgl32.Vec3{0.3, 0.4, 0.5},
			Position: mgl32.Vec3{0, 2, 0},
			Rotation: mgl32.Vec3{0, 0, 0.7853982},
			Mass:     2, LinearDamping: 0.1, AngularDamping: 0.1,
			Restitution: 0.3, Friction: 0.7,
			Mode: RIGID_MODE_DYNAMIC,
		},
		{
			Name: ng.next(), NameEN: ng.next(),
			Bone: NoIndex, Group: 15,
			Shape: RIGID_SHAPE_CAPSULE,
			Size:  mgl32.Vec3{0.2, 1, 0},
			Mass:  0.5, AngularDamping: 0.5,
			Mode: RIGID_MODE_DYNAMIC_BONE,
		},
	}

	m.Joints = []Joint{
		{
			Name: ng.next(), NameEN: ng.next(),
			Kind: JOINT_SPRING_6DOF, RigidA: 0, RigidB: 1,
			Position:      mgl32.Vec3{0, 1.5, 0},
			Rotation:      mgl32.Vec3{0, 0, 0.1},
			LinearLower:   mgl32.Vec3{-0.1, -0.1, -0.1},
			LinearUpper:   mgl32.Vec3{0.1, 0.1, 0.1},
			AngularLower:  mgl32.Vec3{-0.5, -0.5, -0.5},
			AngularUpper:  mgl32.Vec3{0.5, 0.5, 0.5},
			LinearSpring:  mgl32.Vec3{100, 100, 100},
			AngularSpring: mgl32.Vec3{10, 10, 10},
		},
		{
			Name: ng.next(), NameEN: ng.next(),
			Kind: JOINT_SPRING_6DOF, RigidA: 1, RigidB: 2,
			Position:     mgl32.Vec3{0, 2.5, 0},
			AngularLower: mgl32.Vec3{-1, 0, 0},
			AngularUpper: mgl32.Vec3{1, 0, 0},
		},
	}
	if version >= 2.1 {
		m.Joints[1].Kind = JOINT_HINGE

		m.SoftBodies = []SoftBody{
			{
				Name: ng.next(), NameEN: ng.next(),
				Shape: SOFT_BODY_TRI_MESH, Material: 0,
				Group: 3, GroupMask: 0xFFF7,
				Flags:         SOFT_BODY_FLAG_B_LINK | SOFT_BODY_FLAG_CLUSTERS,
				BLinkDistance: 2, ClusterCount: 4,
				TotalMass: 1.5, Margin: 0.05,
				AeroModel: AERO_V_POINT,
				Config: SoftBodyConfig{
					VCF: 1, DP: 0.005, DG: 0.01, LF: 0.02,
					PR: 0.5, VC: 1.5, DF: 0.2, MT: 0.05,
					CHR: 1, KHR: 0.1, SHR: 1, AHR: 0.7,
				},
				Cluster: SoftBodyCluster{
					SRHR: 0.1, SKHR: 1, SSHR: 0.5,
					SRSplit: 0.5, SKSplit: 0.5, SSSplit: 0.5,
				},
				Iteration: SoftBodyIteration{Velocity: 0, Position: 1, Drift: 0, Cluster: 4},
				Stiffness: SoftBodyMaterial{Linear: 1, Angular: 0.7, Volume: 1},
				Anchors: []SoftBodyAnchor{
					{RigidBody: 0, Vertex: 1, Near: true},
					{RigidBody: 2, Vertex: 4},
				},
				Pins: []int32{0, 3},
			},
			{
				Name: ng.next(), NameEN: ng.next(),
				Shape: SOFT_BODY_ROPE, Material: 1,
				Flags:     SOFT_BODY_FLAG_HYBRID_LINK,
				TotalMass: 0.2, Margin: 0.01,
				AeroModel: AERO_F_ONE_SIDED,
				Anchors:   []SoftBodyAnchor{{RigidBody: 1, Vertex: 0}},
				Pins:      []int32{5},
			},
		}
	}
	return m
}

func firstDiff(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func diffWindow(b []byte, off int) string {
	if off > len(b) {
		off = len(b)
	}
	end := off + 16
	if end > len(b) {
		end = len(b)
	}
	return dumpOneLine(b[off:end])
}

func checkRoundTrip(t *testing.T, want *Model, h *Header) {
	var first bytes.Buffer
	if err := EncodeWithHeader(&first, want, h); err != nil {
		t.Fatalf("encode: %v", err)
	}

	gotHeader, got, err := Decode(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(gotHeader, h) {
		t.Errorf("decoded header differs\n got: %swant: %s", sdump(gotHeader), sdump(h))
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded model differs\n got: %swant: %s", sdump(got), sdump(want))
	}

	var second bytes.Buffer
	if err := EncodeWithHeader(&second, got, gotHeader); err != nil {
		t.Fatalf("reencode: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		off := firstDiff(first.Bytes(), second.Bytes())
		t.Errorf("reencoded stream differs at 0x%x (%d vs %d bytes): %q / %q",
			off, first.Len(), second.Len(),
			diffWindow(first.Bytes(), off), diffWindow(second.Bytes(), off))
	}
}

func TestRoundTrip21(t *testing.T) {
	var ng nameGenerator
	m := buildTestModel(&ng, 2.1)
	checkRoundTrip(t, m, NewHeader(2.1, m))
}

func TestRoundTrip20(t *testing.T) {
	var ng nameGenerator
	m := buildTestModel(&ng, 2.0)
	h := NewHeader(2.0, m)
	if h.ExtraUVs != 2 {
		t.Errorf("derived extra uv count %d; expected 2", h.ExtraUVs)
	}
	checkRoundTrip(t, m, h)
}

// Wide index widths and UTF-8 strings are legal regardless of element
// counts, so a caller supplied header must survive unchanged.
func TestRoundTripExplicitWidths(t *testing.T) {
	var ng nameGenerator
	m := buildTestModel(&ng, 2.1)
	checkRoundTrip(t, m, &Header{
		Version:           2.1,
		Encoding:          TEXT_UTF8,
		ExtraUVs:          2,
		VertexIndexSize:   2,
		TextureIndexSize:  4,
		MaterialIndexSize: 2,
		BoneIndexSize:     4,
		MorphIndexSize:    2,
		RigidIndexSize:    4,
	})
}

func TestRoundTripExtraGlobals(t *testing.T) {
	var ng nameGenerator
	m := buildTestModel(&ng, 2.1)
	h := NewHeader(2.1, m)
	h.Extra = []byte{0xAA, 0xBB}
	checkRoundTrip(t, m, h)
}

func TestMinimalModel(t *testing.T) {
	m := &Model{
		Info:     ModelInfo{Name: "stub"},
		Vertices: []Vertex{{Deform: BDEF1{Bone: 0}}},
		Bones:    []Bone{{Name: "root", Parent: NoIndex}},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, m, 2.0); err != nil {
		t.Fatalf("encode: %v", err)
	}
	h, got, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Version != 2.0 || h.Encoding != TEXT_UTF16 || h.ExtraUVs != 0 {
		t.Errorf("unexpected header: %s", sdump(h))
	}
	if got.Info.Name != "stub" {
		t.Errorf("model name %q; expected %q", got.Info.Name, "stub")
	}
	if len(got.Vertices) != 1 || !reflect.DeepEqual(got.Vertices[0].Deform, Deform(BDEF1{Bone: 0})) {
		t.Errorf("unexpected vertices: %s", sdump(got.Vertices))
	}
	if len(got.Bones) != 1 || got.Bones[0].Parent != NoIndex {
		t.Errorf("unexpected bones: %s", sdump(got.Bones))
	}
	if got.SoftBodies != nil {
		t.Errorf("2.0 file produced a soft body section: %s", sdump(got.SoftBodies))
	}
}

// TestWireFormatPin fixes the exact bytes of an empty width-1 UTF-8
// file in both directions: the header block followed by four empty
// strings and nine zero section counts.
func TestWireFormatPin(t *testing.T) {
	want := []byte{
		0x50, 0x4D, 0x58, 0x20, // "PMX "
		0x00, 0x00, 0x00, 0x40, // 2.0
		0x08,
		0x01, 0x00, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01,
	}
	want = append(want, make([]byte, 13*4)...)

	h, m, err := Decode(bytes.NewReader(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Version != 2.0 || h.Encoding != TEXT_UTF8 || h.VertexIndexSize != 1 {
		t.Errorf("unexpected header: %s", sdump(h))
	}
	total := len(m.Vertices) + len(m.Faces) + len(m.Textures) + len(m.Materials) +
		len(m.Bones) + len(m.Morphs) + len(m.DisplayFrames) + len(m.RigidBodies) +
		len(m.Joints) + len(m.SoftBodies)
	if total != 0 {
		t.Errorf("empty file decoded into %d elements: %s", total, sdump(m))
	}

	var got bytes.Buffer
	if err := EncodeWithHeader(&got, m, h); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(got.Bytes(), want) {
		t.Errorf("stream differs at 0x%x: %q / %q",
			firstDiff(got.Bytes(), want),
			diffWindow(got.Bytes(), firstDiff(got.Bytes(), want)),
			diffWindow(want, firstDiff(got.Bytes(), want)))
	}
}

func TestCodecTrace(t *testing.T) {
	var ng nameGenerator
	m := buildTestModel(&ng, 2.1)

	var file, trace bytes.Buffer
	e := NewEncoder(&file)
	e.SetLogger(&Logger{&trace})
	if err := e.Encode(m, NewHeader(2.1, m)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if trace.Len() == 0 {
		t.Error("encoder trace is empty")
	}

	trace.Reset()
	d := NewDecoder(bytes.NewReader(file.Bytes()))
	d.SetLogger(&Logger{&trace})
	if _, _, err := d.Decode(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if trace.Len() == 0 {
		t.Error("decoder trace is empty")
	}
}
