package pmx

import "github.com/pkg/errors"

// FrameTarget says what a display frame element points at.
type FrameTarget uint8

const (
	FRAME_BONE  FrameTarget = 0
	FRAME_MORPH FrameTarget = 1
)

type FrameElement struct {
	Target FrameTarget
	Index  int32
}

// DisplayFrame is an editor-side grouping of bones and morphs. The
// two special frames ("Root" and the expression list) are flagged so
// tools keep them pinned.
type DisplayFrame struct {
	Name   string
	NameEN string

	Special  bool
	Elements []FrameElement
}

func (d *Decoder) readDisplayFrames(m *Model) error {
	n, err := d.r.count()
	if err != nil {
		return err
	}
	d.log.Printf("display frames: %d", n)
	m.DisplayFrames = make([]DisplayFrame, n)
	for i := range m.DisplayFrames {
		if err := d.readDisplayFrame(&m.DisplayFrames[i]); err != nil {
			return errors.WithMessagef(err, "display frame %d", i)
		}
	}
	return nil
}

func (d *Decoder) readDisplayFrame(f *DisplayFrame) error {
	var err error
	if f.Name, err = d.r.text(); err != nil {
		return err
	}
	if f.NameEN, err = d.r.text(); err != nil {
		return err
	}
	if f.Special, err = d.r.bool8(); err != nil {
		return err
	}
	n, err := d.r.count()
	if err != nil {
		return err
	}
	f.Elements = make([]FrameElement, n)
	for i := range f.Elements {
		target, err := d.r.u8()
		if err != nil {
			return err
		}
		switch FrameTarget(target) {
		case FRAME_BONE:
			f.Elements[i].Target = FRAME_BONE
			f.Elements[i].Index, err = d.r.index(d.r.hdr.BoneIndexSize)
		case FRAME_MORPH:
			f.Elements[i].Target = FRAME_MORPH
			f.Elements[i].Index, err = d.r.index(d.r.hdr.MorphIndexSize)
		default:
			return errors.Wrapf(ErrMalformedSection, "element %d: unknown frame target %d", i, target)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeDisplayFrames(m *Model) error {
	if err := e.w.count(len(m.DisplayFrames)); err != nil {
		return err
	}
	for i := range m.DisplayFrames {
		if err := e.writeDisplayFrame(&m.DisplayFrames[i]); err != nil {
			return errors.WithMessagef(err, "display frame %d", i)
		}
	}
	return nil
}

func (e *Encoder) writeDisplayFrame(f *DisplayFrame) error {
	if err := e.w.text(f.Name); err != nil {
		return err
	}
	if err := e.w.text(f.NameEN); err != nil {
		return err
	}
	if err := e.w.bool8(f.Special); err != nil {
		return err
	}
	if err := e.w.count(len(f.Elements)); err != nil {
		return err
	}
	for i := range f.Elements {
		el := &f.Elements[i]
		if err := e.w.u8(uint8(el.Target)); err != nil {
			return err
		}
		var err error
		switch el.Target {
		case FRAME_BONE:
			err = e.w.index(e.w.hdr.BoneIndexSize, el.Index)
		case FRAME_MORPH:
			err = e.w.index(e.w.hdr.MorphIndexSize, el.Index)
		default:
			err = errors.Wrapf(ErrInvariant, "element %d: unknown frame target %d", i, el.Target)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
