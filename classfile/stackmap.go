package classfile

import (
	"fmt"
	"math"

	"github.com/wippyai/jvm-rewrite/classfile/internal/binary"
)

// FrameKind is the compressed form a StackMapTable frame was written in.
type FrameKind byte

const (
	FrameSame FrameKind = iota
	FrameSameLocals1
	FrameChop
	FrameAppend
	FrameFull
)

// VerificationType is one verification_type_info entry.
type VerificationType struct {
	// New is the label of the new instruction for VTUninitialized.
	New *Label
	// Class is the Class constant index for VTObject.
	Class uint16
	Tag   byte
}

// Frame is one StackMapTable entry anchored at Label.
//
// Locals holds the appended locals for FrameAppend and all locals for
// FrameFull. Stack holds the single item for FrameSameLocals1 and the
// whole stack for FrameFull. Chop is the number of removed locals.
type Frame struct {
	Label    *Label
	Locals   []VerificationType
	Stack    []VerificationType
	Chop     int
	Kind     FrameKind
	Extended bool
}

// Frame type byte ranges.
const (
	frameSameMax         = 63
	frameSameLocals1Base = 64
	frameSameLocals1Max  = 127
	frameSameLocals1Ext  = 247
	frameSameExt         = 251
	frameChopBase        = 251
	frameAppendBase      = 251
	frameAppendMax       = 254
	frameFull            = 255
	frameCompactDeltaMax = 63
)

func decodeStackMap(data []byte, pool *ConstantPool, labels *labelSet) ([]Frame, error) {
	r := binary.NewReader(data)
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, n)
	offset := -1
	for i := 0; i < int(n); i++ {
		t, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		var f Frame
		var delta int
		switch {
		case t <= frameSameMax:
			f.Kind = FrameSame
			delta = int(t)
		case t <= frameSameLocals1Max:
			f.Kind = FrameSameLocals1
			delta = int(t) - frameSameLocals1Base
		case t < frameSameLocals1Ext:
			return nil, fmt.Errorf("frame %d: reserved frame type %d", i, t)
		default:
			d, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			delta = int(d)
			switch {
			case t == frameSameLocals1Ext:
				f.Kind = FrameSameLocals1
				f.Extended = true
			case t < frameSameExt:
				f.Kind = FrameChop
				f.Chop = frameChopBase - int(t)
			case t == frameSameExt:
				f.Kind = FrameSame
				f.Extended = true
			case t <= frameAppendMax:
				f.Kind = FrameAppend
			default:
				f.Kind = FrameFull
			}
		}

		switch f.Kind {
		case FrameSameLocals1:
			vt, err := readVerificationType(r, pool, labels)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.Stack = []VerificationType{vt}
		case FrameAppend:
			if f.Locals, err = readVerificationTypes(r, int(t)-frameAppendBase, pool, labels); err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
		case FrameFull:
			nl, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			if f.Locals, err = readVerificationTypes(r, int(nl), pool, labels); err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			ns, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			if f.Stack, err = readVerificationTypes(r, int(ns), pool, labels); err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
		}

		offset += delta + 1
		f.Label = labels.at(offset)
		frames = append(frames, f)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return frames, nil
}

func readVerificationTypes(r *binary.Reader, n int, pool *ConstantPool, labels *labelSet) ([]VerificationType, error) {
	if n > r.Len() {
		return nil, binary.ErrTruncated
	}
	out := make([]VerificationType, 0, n)
	for i := 0; i < n; i++ {
		vt, err := readVerificationType(r, pool, labels)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func readVerificationType(r *binary.Reader, pool *ConstantPool, labels *labelSet) (VerificationType, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return VerificationType{}, err
	}
	vt := VerificationType{Tag: tag}
	switch tag {
	case VTTop, VTInteger, VTFloat, VTDouble, VTLong, VTNull, VTUninitializedThis:
	case VTObject:
		if vt.Class, err = r.ReadU16(); err != nil {
			return VerificationType{}, err
		}
		if _, err := pool.ClassName(vt.Class); err != nil {
			return VerificationType{}, err
		}
	case VTUninitialized:
		off, err := r.ReadU16()
		if err != nil {
			return VerificationType{}, err
		}
		vt.New = labels.at(int(off))
	default:
		return VerificationType{}, fmt.Errorf("unknown verification type %d", tag)
	}
	return vt, nil
}

func encodeStackMap(frames []Frame) ([]byte, error) {
	w := binary.NewWriter()
	w.WriteU16(uint16(len(frames)))
	prev := -1
	for i, f := range frames {
		delta := f.Label.Offset - prev - 1
		if delta < 0 || delta > math.MaxUint16 {
			return nil, fmt.Errorf("stack map frame %d: offset %d does not follow %d", i, f.Label.Offset, prev)
		}
		prev = f.Label.Offset
		compact := !f.Extended && delta <= frameCompactDeltaMax

		switch f.Kind {
		case FrameSame:
			if compact {
				w.Byte(byte(delta))
			} else {
				w.Byte(frameSameExt)
				w.WriteU16(uint16(delta))
			}
		case FrameSameLocals1:
			if len(f.Stack) != 1 {
				return nil, fmt.Errorf("stack map frame %d: same_locals_1 with %d stack items", i, len(f.Stack))
			}
			if compact {
				w.Byte(byte(frameSameLocals1Base + delta))
			} else {
				w.Byte(frameSameLocals1Ext)
				w.WriteU16(uint16(delta))
			}
			writeVerificationType(w, f.Stack[0])
		case FrameChop:
			if f.Chop < 1 || f.Chop > 3 {
				return nil, fmt.Errorf("stack map frame %d: chop %d", i, f.Chop)
			}
			w.Byte(byte(frameChopBase - f.Chop))
			w.WriteU16(uint16(delta))
		case FrameAppend:
			if len(f.Locals) < 1 || len(f.Locals) > 3 {
				return nil, fmt.Errorf("stack map frame %d: append of %d locals", i, len(f.Locals))
			}
			w.Byte(byte(frameAppendBase + len(f.Locals)))
			w.WriteU16(uint16(delta))
			for _, vt := range f.Locals {
				writeVerificationType(w, vt)
			}
		case FrameFull:
			w.Byte(frameFull)
			w.WriteU16(uint16(delta))
			w.WriteU16(uint16(len(f.Locals)))
			for _, vt := range f.Locals {
				writeVerificationType(w, vt)
			}
			w.WriteU16(uint16(len(f.Stack)))
			for _, vt := range f.Stack {
				writeVerificationType(w, vt)
			}
		default:
			return nil, fmt.Errorf("stack map frame %d: unknown kind %d", i, f.Kind)
		}
	}
	return w.Bytes(), nil
}

func writeVerificationType(w *binary.Writer, vt VerificationType) {
	w.Byte(vt.Tag)
	switch vt.Tag {
	case VTObject:
		w.WriteU16(vt.Class)
	case VTUninitialized:
		w.WriteU16(uint16(vt.New.Offset))
	}
}
