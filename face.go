package pmx

import "github.com/pkg/errors"

// Face is one triangle of vertex indices. The file stores a flat face
// index list whose count is always a multiple of three; the decoder
// folds it into triangles and the encoder flattens it back.
type Face [3]int32

func (d *Decoder) readFaces(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	if n%3 != 0 {
		return errors.Wrapf(ErrMalformedSection, "face index count %d is not divisible by 3", n)
	}
	d.log.Printf("faces: %d", n/3)
	sz := d.r.hdr.VertexIndexSize
	m.Faces = make([]Face, n/3)
	for i := range m.Faces {
		for j := 0; j < 3; j++ {
			v, err := d.r.uindex(sz)
			if err != nil {
				return err
			}
			if v < 0 || int(v) >= len(m.Vertices) {
				return errors.Wrapf(ErrMalformedSection, "face %d: vertex index %d out of range (%d vertices)",
					i, v, len(m.Vertices))
			}
			m.Faces[i][j] = v
		}
	}
	return nil
}

func (e *Encoder) writeFaces(m *Model) error {
	if err := e.w.count(len(m.Faces) * 3); err != nil {
		return err
	}
	sz := e.w.hdr.VertexIndexSize
	for i := range m.Faces {
		for _, v := range m.Faces[i] {
			if err := e.w.uindex(sz, v); err != nil {
				return errors.WithMessagef(err, "face %d", i)
			}
		}
	}
	return nil
}
