package pmx

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// NoIndex marks an absent cross-reference. On the wire it is the
// all-ones pattern of the active index width, for both the signed and
// the unsigned index flavor.
const NoIndex int32 = -1

type reader struct {
	r   io.Reader
	hdr *Header
	off int64
	buf [16]byte
}

// fail converts end-of-stream conditions into errUnexpectedEOF so the
// decoder can classify them; transport errors pass through.
func (r *reader) fail(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errUnexpectedEOF
	}
	return err
}

func (r *reader) bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, r.fail(err)
	}
	r.off += int64(n)
	return b, nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	b := r.buf[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, r.fail(err)
	}
	r.off += int64(n)
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.fixed(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	return math.Float32frombits(v), err
}

func (r *reader) vec2() (mgl32.Vec2, error) {
	b, err := r.fixed(8)
	if err != nil {
		return mgl32.Vec2{}, err
	}
	return mgl32.Vec2{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
	}, nil
}

func (r *reader) vec3() (mgl32.Vec3, error) {
	b, err := r.fixed(12)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}, nil
}

func (r *reader) vec4() (mgl32.Vec4, error) {
	b, err := r.fixed(16)
	if err != nil {
		return mgl32.Vec4{}, err
	}
	return mgl32.Vec4{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
	}, nil
}

// bool8 accepts exactly 0 or 1. The format never produces other
// values, so anything else means the stream is out of sync.
func (r *reader) bool8() (bool, error) {
	v, err := r.u8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.Wrapf(ErrMalformedSection, "invalid bool byte %d", v)
}

func (r *reader) count() (int, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, errors.Wrapf(ErrMalformedSection, "unreasonable element count %d", v)
	}
	return int(v), nil
}

func (r *reader) text() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if n > math.MaxInt32 {
		return "", errors.Wrapf(ErrMalformedSection, "unreasonable string length %d", n)
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return r.hdr.Encoding.decode(b)
}

// index reads a signed variable-width reference, sign extending from
// the stored width. The all-ones pattern therefore naturally decodes
// to NoIndex at every width.
func (r *reader) index(sz IndexSize) (int32, error) {
	switch sz {
	case 1:
		v, err := r.u8()
		return int32(int8(v)), err
	case 2:
		v, err := r.u16()
		return int32(int16(v)), err
	case 4:
		return r.i32()
	}
	return 0, errors.Wrapf(ErrMalformedHeader, "invalid index width %d", sz)
}

// uindex reads an unsigned variable-width reference (the vertex index
// category). Widths 1 and 2 map their all-ones pattern to NoIndex;
// width 4 is stored as a plain int32 like the signed flavor.
func (r *reader) uindex(sz IndexSize) (int32, error) {
	switch sz {
	case 1:
		v, err := r.u8()
		if err != nil {
			return 0, err
		}
		if v == 0xFF {
			return NoIndex, nil
		}
		return int32(v), nil
	case 2:
		v, err := r.u16()
		if err != nil {
			return 0, err
		}
		if v == 0xFFFF {
			return NoIndex, nil
		}
		return int32(v), nil
	case 4:
		return r.i32()
	}
	return 0, errors.Wrapf(ErrMalformedHeader, "invalid index width %d", sz)
}

type writer struct {
	w   io.Writer
	hdr *Header
	off int64
	buf [16]byte
}

func (w *writer) write(b []byte) error {
	n, err := w.w.Write(b)
	w.off += int64(n)
	return err
}

func (w *writer) u8(v uint8) error {
	w.buf[0] = v
	return w.write(w.buf[:1])
}

func (w *writer) u16(v uint16) error {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	return w.write(w.buf[:2])
}

func (w *writer) u32(v uint32) error {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	return w.write(w.buf[:4])
}

func (w *writer) i32(v int32) error {
	return w.u32(uint32(v))
}

func (w *writer) f32(v float32) error {
	return w.u32(math.Float32bits(v))
}

func (w *writer) vec2(v mgl32.Vec2) error {
	binary.LittleEndian.PutUint32(w.buf[0:], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(w.buf[4:], math.Float32bits(v[1]))
	return w.write(w.buf[:8])
}

func (w *writer) vec3(v mgl32.Vec3) error {
	binary.LittleEndian.PutUint32(w.buf[0:], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(w.buf[4:], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(w.buf[8:], math.Float32bits(v[2]))
	return w.write(w.buf[:12])
}

func (w *writer) vec4(v mgl32.Vec4) error {
	binary.LittleEndian.PutUint32(w.buf[0:], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(w.buf[4:], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(w.buf[8:], math.Float32bits(v[2]))
	binary.LittleEndian.PutUint32(w.buf[12:], math.Float32bits(v[3]))
	return w.write(w.buf[:16])
}

func (w *writer) bool8(v bool) error {
	if v {
		return w.u8(1)
	}
	return w.u8(0)
}

func (w *writer) count(n int) error {
	return w.u32(uint32(n))
}

func (w *writer) text(s string) error {
	b, err := w.hdr.Encoding.encode(s)
	if err != nil {
		return err
	}
	if err := w.u32(uint32(len(b))); err != nil {
		return err
	}
	return w.write(b)
}

func (w *writer) index(sz IndexSize, v int32) error {
	switch sz {
	case 1:
		if v < math.MinInt8 || v > math.MaxInt8 {
			return errors.Wrapf(ErrInvariant, "index %d does not fit width 1", v)
		}
		return w.u8(uint8(v))
	case 2:
		if v < math.MinInt16 || v > math.MaxInt16 {
			return errors.Wrapf(ErrInvariant, "index %d does not fit width 2", v)
		}
		return w.u16(uint16(v))
	case 4:
		return w.i32(v)
	}
	return errors.Wrapf(ErrMalformedHeader, "invalid index width %d", sz)
}

func (w *writer) uindex(sz IndexSize, v int32) error {
	if v == NoIndex {
		switch sz {
		case 1:
			return w.u8(0xFF)
		case 2:
			return w.u16(0xFFFF)
		case 4:
			return w.i32(-1)
		}
		return errors.Wrapf(ErrMalformedHeader, "invalid index width %d", sz)
	}
	switch sz {
	case 1:
		if v < 0 || v > 0xFE {
			return errors.Wrapf(ErrInvariant, "vertex index %d does not fit width 1", v)
		}
		return w.u8(uint8(v))
	case 2:
		if v < 0 || v > 0xFFFE {
			return errors.Wrapf(ErrInvariant, "vertex index %d does not fit width 2", v)
		}
		return w.u16(uint16(v))
	case 4:
		if v < 0 {
			return errors.Wrapf(ErrInvariant, "negative vertex index %d", v)
		}
		return w.i32(v)
	}
	return errors.Wrapf(ErrMalformedHeader, "invalid index width %d", sz)
}
