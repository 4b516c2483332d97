package pmx

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

func TestHeaderRoundTrip(t *testing.T) {
	headers := []*Header{
		{
			Version:           2.0,
			Encoding:          TEXT_UTF16,
			VertexIndexSize:   1,
			TextureIndexSize:  1,
			MaterialIndexSize: 1,
			BoneIndexSize:     1,
			MorphIndexSize:    1,
			RigidIndexSize:    1,
		},
		{
			Version:           2.1,
			Encoding:          TEXT_UTF8,
			ExtraUVs:          3,
			VertexIndexSize:   2,
			TextureIndexSize:  4,
			MaterialIndexSize: 1,
			BoneIndexSize:     2,
			MorphIndexSize:    4,
			RigidIndexSize:    2,
			Extra:             []byte{0xAA, 0xBB},
		},
	}
	for _, h := range headers {
		var buf bytes.Buffer
		if err := h.write(&writer{w: &buf}); err != nil {
			t.Errorf("write %s: %v", sdump(h), err)
			continue
		}
		if want := 4 + 4 + 1 + headerGlobals + len(h.Extra); buf.Len() != want {
			t.Errorf("header wire size %d; expected %d", buf.Len(), want)
		}
		got, err := readHeader(&reader{r: bytes.NewReader(buf.Bytes())})
		if err != nil {
			t.Errorf("read back: %v", err)
			continue
		}
		if !reflect.DeepEqual(got, h) {
			t.Errorf("header differs\n got: %swant: %s", sdump(got), sdump(h))
		}
	}
}

func validHeaderBytes() []byte {
	var buf bytes.Buffer
	h := &Header{
		Version:           2.0,
		Encoding:          TEXT_UTF8,
		VertexIndexSize:   1,
		TextureIndexSize:  1,
		MaterialIndexSize: 1,
		BoneIndexSize:     1,
		MorphIndexSize:    1,
		RigidIndexSize:    1,
	}
	if err := h.write(&writer{w: &buf}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Offsets into validHeaderBytes: 0 magic, 4 version, 8 globals length,
// 9 encoding, 10 extra uv count, 11..16 index widths.
var headerRejectTests = []struct {
	name   string
	mutate func(b []byte) []byte
}{
	{"bad magic", func(b []byte) []byte {
		b[3] = 'Q'
		return b
	}},
	{"unsupported version", func(b []byte) []byte {
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(1.9))
		return b
	}},
	{"short globals", func(b []byte) []byte {
		b[8] = 7
		return b
	}},
	{"unknown encoding", func(b []byte) []byte {
		b[9] = 2
		return b
	}},
	{"extra uv count out of range", func(b []byte) []byte {
		b[10] = 5
		return b
	}},
	{"invalid vertex width", func(b []byte) []byte {
		b[11] = 3
		return b
	}},
	{"invalid bone width", func(b []byte) []byte {
		b[14] = 0
		return b
	}},
	{"truncated", func(b []byte) []byte {
		return b[:6]
	}},
}

func TestHeaderRejects(t *testing.T) {
	for _, test := range headerRejectTests {
		b := test.mutate(validHeaderBytes())
		_, _, err := Decode(bytes.NewReader(b))
		if err == nil {
			t.Errorf("%s: decode succeeded", test.name)
			continue
		}
		if errors.Cause(err) != ErrMalformedHeader {
			t.Errorf("%s: cause %v; expected %v", test.name, errors.Cause(err), ErrMalformedHeader)
		}
	}
}

var indexSizeTests = []struct {
	count    int
	unsigned IndexSize
	signed   IndexSize
}{
	{0, 1, 1},
	{1, 1, 1},
	{0x7E, 1, 1},
	{0x7F, 1, 2},
	{0xFE, 1, 2},
	{0xFF, 2, 2},
	{0x7FFE, 2, 2},
	{0x7FFF, 2, 4},
	{0xFFFE, 2, 4},
	{0xFFFF, 4, 4},
	{0x10000, 4, 4},
}

func TestIndexSizeForCount(t *testing.T) {
	for _, test := range indexSizeTests {
		if got := unsignedIndexSize(test.count); got != test.unsigned {
			t.Errorf("unsignedIndexSize(%d)=%d; expected %d", test.count, got, test.unsigned)
		}
		if got := signedIndexSize(test.count); got != test.signed {
			t.Errorf("signedIndexSize(%d)=%d; expected %d", test.count, got, test.signed)
		}
	}
}

func TestIndexSizeLimits(t *testing.T) {
	limits := []struct {
		size        IndexSize
		maxSigned   int
		maxUnsigned int
	}{
		{1, math.MaxInt8, 0xFE},
		{2, math.MaxInt16, 0xFFFE},
		{4, math.MaxInt32, math.MaxInt32},
	}
	for _, test := range limits {
		if got := test.size.maxSigned(); got != test.maxSigned {
			t.Errorf("IndexSize(%d).maxSigned()=%d; expected %d", test.size, got, test.maxSigned)
		}
		if got := test.size.maxUnsigned(); got != test.maxUnsigned {
			t.Errorf("IndexSize(%d).maxUnsigned()=%d; expected %d", test.size, got, test.maxUnsigned)
		}
	}
}

// The vertex category reads unsigned, so it packs up to 254 entries
// into one byte; the signed categories flip to the next width at 127.
func TestNewHeaderWidths(t *testing.T) {
	m := &Model{
		Vertices:  make([]Vertex, 300),
		Textures:  make([]string, 1),
		Materials: make([]Material, 126),
		Bones:     make([]Bone, 130),
	}
	m.Vertices[0].ExtraUVs = make([]mgl32.Vec4, 2)

	h := NewHeader(2.1, m)
	if h.Version != 2.1 {
		t.Errorf("version %v; expected 2.1", h.Version)
	}
	if h.Encoding != TEXT_UTF16 {
		t.Errorf("encoding %v; expected utf16", h.Encoding)
	}
	if h.ExtraUVs != 2 {
		t.Errorf("extra uv count %d; expected 2", h.ExtraUVs)
	}
	widths := []struct {
		name string
		got  IndexSize
		want IndexSize
	}{
		{"vertex", h.VertexIndexSize, 2},
		{"texture", h.TextureIndexSize, 1},
		{"material", h.MaterialIndexSize, 1},
		{"bone", h.BoneIndexSize, 2},
		{"morph", h.MorphIndexSize, 1},
		{"rigid", h.RigidIndexSize, 1},
	}
	for _, w := range widths {
		if w.got != w.want {
			t.Errorf("%s index width %d; expected %d", w.name, w.got, w.want)
		}
	}
}

func TestHeaderExtraTooLong(t *testing.T) {
	h := &Header{
		Version:           2.0,
		Encoding:          TEXT_UTF16,
		VertexIndexSize:   1,
		TextureIndexSize:  1,
		MaterialIndexSize: 1,
		BoneIndexSize:     1,
		MorphIndexSize:    1,
		RigidIndexSize:    1,
		Extra:             make([]byte, 248),
	}
	var buf bytes.Buffer
	err := h.write(&writer{w: &buf})
	if errors.Cause(err) != ErrInvariant {
		t.Errorf("cause %v; expected %v", err, ErrInvariant)
	}
}
