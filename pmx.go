// Package pmx reads and writes PMX model files, the binary format
// used by MikuMikuDance style tooling for rigged polygon models.
//
// The format is header driven: a small globals block picks the string
// encoding and a byte width (1, 2 or 4) for each of six reference
// categories, and every later section changes layout accordingly.
// Decode returns both the Header and the Model so a file can be
// written back byte for byte with EncodeWithHeader, while Encode
// derives the most compact header for the model it is given.
//
// Absent cross-references are NoIndex (-1) in memory and the all-ones
// pattern of the active width on the wire.
package pmx

import (
	"io"

	"github.com/pkg/errors"
)

// ModelInfo is the leading name/comment section. The EN variants hold
// the English translations and are routinely empty.
type ModelInfo struct {
	Name      string
	NameEN    string
	Comment   string
	CommentEN string
}

// Model is a fully decoded file minus the header globals. Slice order
// matches file order everywhere; cross-references index into these
// slices or hold NoIndex.
type Model struct {
	Info          ModelInfo
	Vertices      []Vertex
	Faces         []Face
	Textures      []string
	Materials     []Material
	Bones         []Bone
	Morphs        []Morph
	DisplayFrames []DisplayFrame
	RigidBodies   []RigidBody
	Joints        []Joint

	// SoftBodies exists only in version 2.1 files.
	SoftBodies []SoftBody
}

// Decode reads a complete model from r in one forward pass.
func Decode(r io.Reader) (*Header, *Model, error) {
	return NewDecoder(r).Decode()
}

// Encode derives the most compact header for m (see NewHeader) and
// writes the complete file. version must be 2.0 or 2.1.
func Encode(w io.Writer, m *Model, version float32) error {
	return NewEncoder(w).Encode(m, NewHeader(version, m))
}

// EncodeWithHeader writes the file with caller supplied globals, e.g.
// to keep the exact representation of a previously decoded file.
func EncodeWithHeader(w io.Writer, m *Model, h *Header) error {
	return NewEncoder(w).Encode(m, h)
}

// Decoder reads one model from a stream. It performs many small reads
// and never seeks or reads ahead, so callers streaming from slow media
// should hand it a buffered reader.
type Decoder struct {
	r   *reader
	log *Logger
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: &reader{r: r}}
}

// SetLogger installs a trace sink. A nil logger disables tracing.
func (d *Decoder) SetLogger(l *Logger) {
	d.log = l
}

// Decode parses the header and every section in file order. On any
// failure it returns the first error, annotated with the section and
// stream offset, and no partial model.
func (d *Decoder) Decode() (*Header, *Model, error) {
	h, err := readHeader(d.r)
	if err != nil {
		return nil, nil, d.wrapHeader(err)
	}
	d.r.hdr = h
	d.log.Printf("header: %s", sdump(h))

	m := &Model{}
	if err := d.readInfo(m); err != nil {
		return nil, nil, d.wrap("model info", err)
	}
	if err := d.readVertices(m); err != nil {
		return nil, nil, d.wrap("vertices", err)
	}
	if err := d.readFaces(m); err != nil {
		return nil, nil, d.wrap("faces", err)
	}
	if err := d.readTextures(m); err != nil {
		return nil, nil, d.wrap("textures", err)
	}
	if err := d.readMaterials(m); err != nil {
		return nil, nil, d.wrap("materials", err)
	}
	if err := d.readBones(m); err != nil {
		return nil, nil, d.wrap("bones", err)
	}
	if err := d.readMorphs(m); err != nil {
		return nil, nil, d.wrap("morphs", err)
	}
	if err := d.readDisplayFrames(m); err != nil {
		return nil, nil, d.wrap("display frames", err)
	}
	if err := d.readRigidBodies(m); err != nil {
		return nil, nil, d.wrap("rigid bodies", err)
	}
	if err := d.readJoints(m); err != nil {
		return nil, nil, d.wrap("joints", err)
	}
	if err := d.readSoftBodies(m); err != nil {
		return nil, nil, d.wrap("soft bodies", err)
	}
	return h, m, nil
}

func (d *Decoder) wrapHeader(err error) error {
	if errors.Cause(err) == errUnexpectedEOF {
		return errors.Wrapf(ErrMalformedHeader, "%v (at 0x%x)", err, d.r.off)
	}
	return errors.WithMessage(err, "header")
}

func (d *Decoder) wrap(section string, err error) error {
	if errors.Cause(err) == errUnexpectedEOF {
		return errors.Wrapf(ErrMalformedSection, "%s: %v (at 0x%x)", section, err, d.r.off)
	}
	return errors.WithMessagef(err, "%s (at 0x%x)", section, d.r.off)
}

func (d *Decoder) readInfo(m *Model) error {
	var err error
	if m.Info.Name, err = d.r.text(); err != nil {
		return err
	}
	if m.Info.NameEN, err = d.r.text(); err != nil {
		return err
	}
	if m.Info.Comment, err = d.r.text(); err != nil {
		return err
	}
	if m.Info.CommentEN, err = d.r.text(); err != nil {
		return err
	}
	d.log.Printf("model: %q (en %q)", m.Info.Name, m.Info.NameEN)
	return nil
}

// Encoder writes one model to a stream. Writes are small and
// unbuffered, mirroring the Decoder.
type Encoder struct {
	w   *writer
	log *Logger
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: &writer{w: w}}
}

// SetLogger installs a trace sink. A nil logger disables tracing.
func (e *Encoder) SetLogger(l *Logger) {
	e.log = l
}

// Encode validates m against h and writes the complete file. Nothing
// reaches the writer until the model passed validation, so a failed
// Encode with an ErrInvariant cause leaves w untouched.
func (e *Encoder) Encode(m *Model, h *Header) error {
	if err := h.validate(); err != nil {
		return err
	}
	if err := validateModel(h, m); err != nil {
		return err
	}
	e.w.hdr = h
	e.log.Printf("header: %s", sdump(h))
	if err := h.write(e.w); err != nil {
		return e.wrap("header", err)
	}
	if err := e.writeInfo(m); err != nil {
		return e.wrap("model info", err)
	}
	if err := e.writeVertices(m); err != nil {
		return e.wrap("vertices", err)
	}
	if err := e.writeFaces(m); err != nil {
		return e.wrap("faces", err)
	}
	if err := e.writeTextures(m); err != nil {
		return e.wrap("textures", err)
	}
	if err := e.writeMaterials(m); err != nil {
		return e.wrap("materials", err)
	}
	if err := e.writeBones(m); err != nil {
		return e.wrap("bones", err)
	}
	if err := e.writeMorphs(m); err != nil {
		return e.wrap("morphs", err)
	}
	if err := e.writeDisplayFrames(m); err != nil {
		return e.wrap("display frames", err)
	}
	if err := e.writeRigidBodies(m); err != nil {
		return e.wrap("rigid bodies", err)
	}
	if err := e.writeJoints(m); err != nil {
		return e.wrap("joints", err)
	}
	return e.wrap("soft bodies", e.writeSoftBodies(m))
}

func (e *Encoder) wrap(section string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithMessagef(err, "%s (at 0x%x)", section, e.w.off)
}

func (e *Encoder) writeInfo(m *Model) error {
	if err := e.w.text(m.Info.Name); err != nil {
		return err
	}
	if err := e.w.text(m.Info.NameEN); err != nil {
		return err
	}
	if err := e.w.text(m.Info.Comment); err != nil {
		return err
	}
	return e.w.text(m.Info.CommentEN)
}
