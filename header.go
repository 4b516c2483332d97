package pmx

import (
	"math"

	"github.com/pkg/errors"
)

// PMX_MAGIC is the file signature "PMX " as a little endian uint32.
// Note the trailing space.
const PMX_MAGIC uint32 = 0x20584D50

// headerGlobals is how many global bytes this package understands.
// Files may carry more; they are preserved in Header.Extra.
const headerGlobals = 8

// IndexSize is a per-category reference width from the header
// globals: 1, 2 or 4 bytes.
type IndexSize uint8

func (s IndexSize) valid() bool {
	return s == 1 || s == 2 || s == 4
}

// maxSigned is the largest reference writable at this width on the
// sign extending path.
func (s IndexSize) maxSigned() int {
	switch s {
	case 1:
		return math.MaxInt8
	case 2:
		return math.MaxInt16
	}
	return math.MaxInt32
}

// maxUnsigned is the largest reference writable at this width on the
// unsigned path, keeping the all-ones sentinel free.
func (s IndexSize) maxUnsigned() int {
	switch s {
	case 1:
		return 0xFE
	case 2:
		return 0xFFFE
	}
	return math.MaxInt32
}

// unsignedIndexSize picks the smallest width able to address count
// elements on the unsigned read path.
func unsignedIndexSize(count int) IndexSize {
	switch {
	case count <= 0xFE:
		return 1
	case count <= 0xFFFE:
		return 2
	}
	return 4
}

// signedIndexSize picks the smallest width able to address count
// elements on the sign extending read path.
func signedIndexSize(count int) IndexSize {
	switch {
	case count <= 0x7E:
		return 1
	case count <= 0x7FFE:
		return 2
	}
	return 4
}

// Header carries the file globals that parameterize every section:
// the string encoding, the per-vertex extra channel count and the six
// reference widths. It describes representation, not model content,
// which is why Decode returns it separately from the Model.
type Header struct {
	Version  float32
	Encoding TextEncoding

	// ExtraUVs is the number of additional Vec4 channels carried by
	// every vertex, 0 to 4.
	ExtraUVs uint8

	VertexIndexSize   IndexSize
	TextureIndexSize  IndexSize
	MaterialIndexSize IndexSize
	BoneIndexSize     IndexSize
	MorphIndexSize    IndexSize
	RigidIndexSize    IndexSize

	// Extra preserves global bytes beyond the eight this package
	// understands, so such files survive a decode/encode cycle.
	Extra []byte
}

// NewHeader derives the most compact header able to carry m. Strings
// are encoded as UTF-16, matching what the reference tools emit. The
// vertex category sizes against the unsigned caps since its references
// travel the unsigned path; the other five size against the signed
// caps.
func NewHeader(version float32, m *Model) *Header {
	extra := uint8(0)
	if len(m.Vertices) > 0 {
		extra = uint8(len(m.Vertices[0].ExtraUVs))
	}
	return &Header{
		Version:           version,
		Encoding:          TEXT_UTF16,
		ExtraUVs:          extra,
		VertexIndexSize:   unsignedIndexSize(len(m.Vertices)),
		TextureIndexSize:  signedIndexSize(len(m.Textures)),
		MaterialIndexSize: signedIndexSize(len(m.Materials)),
		BoneIndexSize:     signedIndexSize(len(m.Bones)),
		MorphIndexSize:    signedIndexSize(len(m.Morphs)),
		RigidIndexSize:    signedIndexSize(len(m.RigidBodies)),
	}
}

func (h *Header) validate() error {
	if h.Version != 2.0 && h.Version != 2.1 {
		return errors.Wrapf(ErrMalformedHeader, "unsupported version %v", h.Version)
	}
	if !h.Encoding.valid() {
		return errors.Wrapf(ErrMalformedHeader, "unknown text encoding %d", uint8(h.Encoding))
	}
	if h.ExtraUVs > 4 {
		return errors.Wrapf(ErrMalformedHeader, "extra uv count %d out of range", h.ExtraUVs)
	}
	for _, c := range []struct {
		name string
		size IndexSize
	}{
		{"vertex", h.VertexIndexSize},
		{"texture", h.TextureIndexSize},
		{"material", h.MaterialIndexSize},
		{"bone", h.BoneIndexSize},
		{"morph", h.MorphIndexSize},
		{"rigid", h.RigidIndexSize},
	} {
		if !c.size.valid() {
			return errors.Wrapf(ErrMalformedHeader, "invalid %s index width %d", c.name, c.size)
		}
	}
	return nil
}

func readHeader(r *reader) (*Header, error) {
	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != PMX_MAGIC {
		return nil, errors.Wrapf(ErrMalformedHeader, "bad magic 0x%.8x", magic)
	}
	version, err := r.f32()
	if err != nil {
		return nil, err
	}
	globals, err := r.u8()
	if err != nil {
		return nil, err
	}
	if globals < headerGlobals {
		return nil, errors.Wrapf(ErrMalformedHeader, "globals length %d, want at least %d", globals, headerGlobals)
	}
	g, err := r.bytes(int(globals))
	if err != nil {
		return nil, err
	}
	h := &Header{
		Version:           version,
		Encoding:          TextEncoding(g[0]),
		ExtraUVs:          g[1],
		VertexIndexSize:   IndexSize(g[2]),
		TextureIndexSize:  IndexSize(g[3]),
		MaterialIndexSize: IndexSize(g[4]),
		BoneIndexSize:     IndexSize(g[5]),
		MorphIndexSize:    IndexSize(g[6]),
		RigidIndexSize:    IndexSize(g[7]),
		Extra:             append([]byte(nil), g[headerGlobals:]...),
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) write(w *writer) error {
	if len(h.Extra) > math.MaxUint8-headerGlobals {
		return errors.Wrapf(ErrInvariant, "header carries %d extra global bytes, limit is %d",
			len(h.Extra), math.MaxUint8-headerGlobals)
	}
	if err := w.u32(PMX_MAGIC); err != nil {
		return err
	}
	if err := w.f32(h.Version); err != nil {
		return err
	}
	if err := w.u8(uint8(headerGlobals + len(h.Extra))); err != nil {
		return err
	}
	g := [headerGlobals]byte{
		uint8(h.Encoding),
		h.ExtraUVs,
		uint8(h.VertexIndexSize),
		uint8(h.TextureIndexSize),
		uint8(h.MaterialIndexSize),
		uint8(h.BoneIndexSize),
		uint8(h.MorphIndexSize),
		uint8(h.RigidIndexSize),
	}
	if err := w.write(g[:]); err != nil {
		return err
	}
	return w.write(h.Extra)
}

// hasSoftBodies reports whether the soft body section exists for this
// version. It was introduced with 2.1.
func (h *Header) hasSoftBodies() bool {
	return h.Version >= 2.1
}
