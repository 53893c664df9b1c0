package classfile

import (
	"fmt"
	"math"

	"github.com/wippyai/jvm-rewrite/classfile/internal/binary"
	"github.com/wippyai/jvm-rewrite/errors"
)

// ExceptionHandler is one exception table entry. CatchType 0 catches all.
type ExceptionHandler struct {
	Start     *Label
	End       *Label
	Handler   *Label
	CatchType uint16
}

// LineNumber is one LineNumberTable entry.
type LineNumber struct {
	Start *Label
	Line  uint16
}

// LocalVar is one LocalVariableTable or LocalVariableTypeTable entry.
// Descriptor holds the signature index for the type table.
type LocalVar struct {
	Start      *Label
	End        *Label
	Name       uint16
	Descriptor uint16
	Index      uint16
}

// Attribute is a raw attribute. Attributes the codec models structurally
// (StackMapTable and the debug tables inside Code) keep only their name here
// and are regenerated from the structured fields on encode.
type Attribute struct {
	Name string
	Data []byte
}

// Code is a decoded Code attribute.
type Code struct {
	Instructions  []Instruction
	Handlers      []ExceptionHandler
	LineNumbers   []LineNumber
	LocalVars     []LocalVar
	LocalVarTypes []LocalVar
	Frames        []Frame
	Attributes    []Attribute
	MaxStack      uint16
	MaxLocals     uint16
}

// labelSet materialises one label per referenced bytecode offset.
type labelSet struct {
	byOffset map[int]*Label
}

func (s *labelSet) at(off int) *Label {
	if l, ok := s.byOffset[off]; ok {
		return l
	}
	l := &Label{Offset: off, origin: off}
	s.byOffset[off] = l
	return l
}

type rawInsn struct {
	ins    Instruction
	offset int
}

func decodeCode(data []byte, pool *ConstantPool) (*Code, error) {
	r := binary.NewReader(data)
	c := &Code{}
	var err error
	if c.MaxStack, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = r.ReadU16(); err != nil {
		return nil, err
	}
	codeLen, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if codeLen == 0 || codeLen > MaxCodeLength {
		return nil, fmt.Errorf("invalid code length %d", codeLen)
	}
	code, err := r.ReadBytes(int(codeLen))
	if err != nil {
		return nil, err
	}

	labels := &labelSet{byOffset: make(map[int]*Label)}
	raw, err := decodeInstructions(code, labels)
	if err != nil {
		return nil, err
	}

	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	c.Handlers = make([]ExceptionHandler, 0, n)
	for i := 0; i < int(n); i++ {
		var v [4]uint16
		for j := range v {
			if v[j], err = r.ReadU16(); err != nil {
				return nil, err
			}
		}
		if v[0] >= v[1] {
			return nil, fmt.Errorf("exception handler %d: empty range %d..%d", i, v[0], v[1])
		}
		if v[3] != 0 {
			if _, err := pool.ClassName(v[3]); err != nil {
				return nil, fmt.Errorf("exception handler %d: %w", i, err)
			}
		}
		c.Handlers = append(c.Handlers, ExceptionHandler{
			Start:     labels.at(int(v[0])),
			End:       labels.at(int(v[1])),
			Handler:   labels.at(int(v[2])),
			CatchType: v[3],
		})
	}

	attrs, err := readAttributes(r, pool)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes in Code attribute", r.Len())
	}
	for _, a := range attrs {
		structured := true
		switch a.Name {
		case AttrLineNumberTable:
			err = c.decodeLineNumbers(a.Data, labels)
		case AttrLocalVariableTable:
			c.LocalVars, err = decodeLocalVars(c.LocalVars, a.Data, pool, labels)
		case AttrLocalVariableTypeTable:
			c.LocalVarTypes, err = decodeLocalVars(c.LocalVarTypes, a.Data, pool, labels)
		case AttrStackMapTable:
			c.Frames, err = decodeStackMap(a.Data, pool, labels)
		default:
			structured = false
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
		if structured {
			if !c.hasAttribute(a.Name) {
				c.Attributes = append(c.Attributes, Attribute{Name: a.Name})
			}
			continue
		}
		c.Attributes = append(c.Attributes, a)
	}

	// The end label is always present so ranges closing at the end of the
	// code survive edits.
	labels.at(int(codeLen))

	boundary := make(map[int]bool, len(raw)+1)
	for _, ri := range raw {
		boundary[ri.offset] = true
	}
	boundary[int(codeLen)] = true
	for off := range labels.byOffset {
		if !boundary[off] {
			return nil, fmt.Errorf("offset %d is not an instruction boundary", off)
		}
	}

	c.Instructions = make([]Instruction, 0, len(raw)+len(labels.byOffset))
	for _, ri := range raw {
		if l, ok := labels.byOffset[ri.offset]; ok {
			c.Instructions = append(c.Instructions, LabelInstruction(l))
		}
		c.Instructions = append(c.Instructions, ri.ins)
	}
	c.Instructions = append(c.Instructions, LabelInstruction(labels.byOffset[int(codeLen)]))
	return c, nil
}

func (c *Code) hasAttribute(name string) bool {
	for _, a := range c.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

func decodeInstructions(code []byte, labels *labelSet) ([]rawInsn, error) {
	r := binary.NewReader(code)
	out := make([]rawInsn, 0, len(code)/2)

	jump := func(at int, delta int) (*Label, error) {
		t := at + delta
		if t < 0 || t >= len(code) {
			return nil, fmt.Errorf("branch at %d targets %d outside code", at, t)
		}
		return labels.at(t), nil
	}

	for r.Len() > 0 {
		at := r.Position()
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if !IsValidOpcode(op) {
			return nil, fmt.Errorf("invalid opcode 0x%02x at %d", op, at)
		}
		ins := Instruction{Opcode: op}

		switch {
		case op == OpWide:
			inner, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			idx, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			ins.Opcode = inner
			switch {
			case inner == OpIinc:
				d, err := r.ReadU16()
				if err != nil {
					return nil, err
				}
				ins.Imm = IIncImm{Index: idx, Delta: int16(d), Wide: true}
			case isLocalOp(inner):
				ins.Imm = LocalImm{Index: idx, Wide: true}
			default:
				return nil, fmt.Errorf("wide applied to %s at %d", OpName(inner), at)
			}

		case isLocalOp(op):
			idx, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ins.Imm = LocalImm{Index: uint16(idx)}

		case op == OpIinc:
			idx, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			d, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ins.Imm = IIncImm{Index: uint16(idx), Delta: int16(int8(d))}

		case op == OpBipush:
			v, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ins.Imm = IntImm{Value: int32(int8(v))}

		case op == OpSipush:
			v, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			ins.Imm = IntImm{Value: int32(int16(v))}

		case op == OpLdc:
			idx, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ins.Imm = ConstImm{Index: uint16(idx)}

		case op == OpLdcW || op == OpLdc2W:
			idx, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			ins.Imm = ConstImm{Index: idx}

		case isRefOp(op):
			idx, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			ins.Imm = RefImm{Index: idx}

		case op == OpInvokeinterface:
			idx, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			count, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
			ins.Imm = InvokeInterfaceImm{Index: idx, Count: count}

		case op == OpInvokedynamic:
			idx, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			if _, err := r.ReadU16(); err != nil {
				return nil, err
			}
			ins.Imm = InvokeDynamicImm{Index: idx}

		case op == OpNewarray:
			t, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ins.Imm = NewArrayImm{Type: t}

		case op == OpMultianewarray:
			idx, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			dims, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			ins.Imm = MultiANewArrayImm{Index: idx, Dimensions: dims}

		case isBranchOp(op):
			d, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			t, err := jump(at, int(int16(d)))
			if err != nil {
				return nil, err
			}
			ins.Imm = JumpImm{Target: t}

		case op == OpGotoW || op == OpJsrW:
			d, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			t, err := jump(at, int(d))
			if err != nil {
				return nil, err
			}
			ins.Imm = JumpImm{Target: t}

		case op == OpTableswitch || op == OpLookupswitch:
			if _, err := r.ReadBytes(switchPadding(at)); err != nil {
				return nil, err
			}
			def, err := r.ReadS32()
			if err != nil {
				return nil, err
			}
			defLabel, err := jump(at, int(def))
			if err != nil {
				return nil, err
			}
			if op == OpTableswitch {
				imm, err := decodeTableSwitch(r, at, jump)
				if err != nil {
					return nil, err
				}
				imm.Default = defLabel
				ins.Imm = imm
			} else {
				imm, err := decodeLookupSwitch(r, at, jump)
				if err != nil {
					return nil, err
				}
				imm.Default = defLabel
				ins.Imm = imm
			}
		}

		out = append(out, rawInsn{ins: ins, offset: at})
	}
	return out, nil
}

func decodeTableSwitch(r *binary.Reader, at int, jump func(int, int) (*Label, error)) (TableSwitchImm, error) {
	low, err := r.ReadS32()
	if err != nil {
		return TableSwitchImm{}, err
	}
	high, err := r.ReadS32()
	if err != nil {
		return TableSwitchImm{}, err
	}
	if low > high {
		return TableSwitchImm{}, fmt.Errorf("tableswitch at %d: low %d > high %d", at, low, high)
	}
	n := int64(high) - int64(low) + 1
	if n*4 > int64(r.Len()) {
		return TableSwitchImm{}, fmt.Errorf("tableswitch at %d: %w", at, binary.ErrTruncated)
	}
	imm := TableSwitchImm{Low: low, High: high, Targets: make([]*Label, n)}
	for i := range imm.Targets {
		d, err := r.ReadS32()
		if err != nil {
			return TableSwitchImm{}, err
		}
		if imm.Targets[i], err = jump(at, int(d)); err != nil {
			return TableSwitchImm{}, err
		}
	}
	return imm, nil
}

func decodeLookupSwitch(r *binary.Reader, at int, jump func(int, int) (*Label, error)) (LookupSwitchImm, error) {
	npairs, err := r.ReadS32()
	if err != nil {
		return LookupSwitchImm{}, err
	}
	if npairs < 0 || int64(npairs)*8 > int64(r.Len()) {
		return LookupSwitchImm{}, fmt.Errorf("lookupswitch at %d: bad pair count %d", at, npairs)
	}
	imm := LookupSwitchImm{Keys: make([]int32, npairs), Targets: make([]*Label, npairs)}
	for i := 0; i < int(npairs); i++ {
		if imm.Keys[i], err = r.ReadS32(); err != nil {
			return LookupSwitchImm{}, err
		}
		d, err := r.ReadS32()
		if err != nil {
			return LookupSwitchImm{}, err
		}
		if imm.Targets[i], err = jump(at, int(d)); err != nil {
			return LookupSwitchImm{}, err
		}
	}
	return imm, nil
}

// switchPadding returns the bytes between a switch opcode at offset at and
// its 4-byte aligned operands.
func switchPadding(at int) int {
	return (4 - (at+1)%4) % 4
}

func (c *Code) decodeLineNumbers(data []byte, labels *labelSet) error {
	r := binary.NewReader(data)
	n, err := r.ReadU16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		pc, err := r.ReadU16()
		if err != nil {
			return err
		}
		line, err := r.ReadU16()
		if err != nil {
			return err
		}
		c.LineNumbers = append(c.LineNumbers, LineNumber{Start: labels.at(int(pc)), Line: line})
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}
	return nil
}

func decodeLocalVars(dst []LocalVar, data []byte, pool *ConstantPool, labels *labelSet) ([]LocalVar, error) {
	r := binary.NewReader(data)
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		var v [5]uint16
		for j := range v {
			if v[j], err = r.ReadU16(); err != nil {
				return nil, err
			}
		}
		if _, err := pool.UTF8(v[2]); err != nil {
			return nil, fmt.Errorf("entry %d name: %w", i, err)
		}
		if _, err := pool.UTF8(v[3]); err != nil {
			return nil, fmt.Errorf("entry %d descriptor: %w", i, err)
		}
		dst = append(dst, LocalVar{
			Start:      labels.at(int(v[0])),
			End:        labels.at(int(v[0]) + int(v[1])),
			Name:       v[2],
			Descriptor: v[3],
			Index:      v[4],
		})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return dst, nil
}

// layout assigns offsets to every label and reports, per instruction,
// whether a goto or jsr needs its 32-bit form. Widening only grows code,
// so iteration stops once no new jump needs it.
func (c *Code) layout(path []string) (long []bool, length int, err error) {
	placed := make(map[*Label]bool)
	for _, ins := range c.Instructions {
		if ins.Opcode == OpLabel {
			l := ins.Label()
			if l == nil {
				return nil, 0, errors.InvalidInput(errors.PhaseEncode, "label instruction without label")
			}
			if placed[l] {
				return nil, 0, errors.InvalidInput(errors.PhaseEncode, "label "+l.String()+" placed twice")
			}
			placed[l] = true
		}
	}
	for _, l := range c.referencedLabels() {
		if l == nil || !placed[l] {
			return nil, 0, errors.InvalidInput(errors.PhaseEncode, "reference to a label that is not in the instruction list")
		}
	}

	long = make([]bool, len(c.Instructions))
	offsets := make([]int, len(c.Instructions))
	for {
		pos := 0
		for i, ins := range c.Instructions {
			offsets[i] = pos
			if ins.Opcode == OpLabel {
				ins.Label().Offset = pos
				continue
			}
			pos += instructionSize(ins, pos, long[i])
		}

		widened := false
		var overflow error
		for i, ins := range c.Instructions {
			j, ok := ins.Imm.(JumpImm)
			if !ok || long[i] || ins.Opcode == OpGotoW || ins.Opcode == OpJsrW {
				continue
			}
			d := j.Target.Offset - offsets[i]
			if d >= math.MinInt16 && d <= math.MaxInt16 {
				continue
			}
			if ins.Opcode == OpGoto || ins.Opcode == OpJsr {
				long[i] = true
				widened = true
				continue
			}
			if overflow == nil {
				overflow = errors.EncodingOverflow(path, d, "16-bit branch offset of "+OpName(ins.Opcode))
			}
		}
		if widened {
			continue
		}
		if overflow != nil {
			return nil, 0, overflow
		}
		if pos > MaxCodeLength {
			return nil, 0, errors.EncodingOverflow(path, pos, "max code length 65535")
		}
		return long, pos, nil
	}
}

func (c *Code) referencedLabels() []*Label {
	var out []*Label
	for _, ins := range c.Instructions {
		out = append(out, ins.Targets()...)
	}
	for _, h := range c.Handlers {
		out = append(out, h.Start, h.End, h.Handler)
	}
	for _, ln := range c.LineNumbers {
		out = append(out, ln.Start)
	}
	for _, lv := range c.LocalVars {
		out = append(out, lv.Start, lv.End)
	}
	for _, lv := range c.LocalVarTypes {
		out = append(out, lv.Start, lv.End)
	}
	for _, f := range c.Frames {
		out = append(out, f.Label)
		for _, vt := range f.Locals {
			if vt.Tag == VTUninitialized {
				out = append(out, vt.New)
			}
		}
		for _, vt := range f.Stack {
			if vt.Tag == VTUninitialized {
				out = append(out, vt.New)
			}
		}
	}
	return out
}

func wideLocal(imm LocalImm) bool {
	return imm.Wide || imm.Index > math.MaxUint8
}

func wideIInc(imm IIncImm) bool {
	return imm.Wide || imm.Index > math.MaxUint8 || imm.Delta < math.MinInt8 || imm.Delta > math.MaxInt8
}

func instructionSize(ins Instruction, pos int, long bool) int {
	switch imm := ins.Imm.(type) {
	case LabelImm:
		return 0
	case LocalImm:
		if wideLocal(imm) {
			return 4
		}
		return 2
	case IIncImm:
		if wideIInc(imm) {
			return 6
		}
		return 3
	case IntImm:
		if ins.Opcode == OpBipush {
			return 2
		}
		return 3
	case ConstImm:
		if ins.Opcode == OpLdc && imm.Index <= math.MaxUint8 {
			return 2
		}
		return 3
	case RefImm:
		return 3
	case InvokeInterfaceImm, InvokeDynamicImm:
		return 5
	case JumpImm:
		if long || ins.Opcode == OpGotoW || ins.Opcode == OpJsrW {
			return 5
		}
		return 3
	case TableSwitchImm:
		return 1 + switchPadding(pos) + 12 + 4*len(imm.Targets)
	case LookupSwitchImm:
		return 1 + switchPadding(pos) + 8 + 8*len(imm.Keys)
	case NewArrayImm:
		return 2
	case MultiANewArrayImm:
		return 4
	}
	return 1
}

// encodeInstructions writes the code array. Offsets must already be assigned
// by layout.
func (c *Code) encodeInstructions(w *binary.Writer, long []bool) error {
	base := w.Len()
	for i, ins := range c.Instructions {
		if ins.Opcode == OpLabel {
			continue
		}
		at := w.Len() - base
		if err := checkImmediate(ins); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		switch imm := ins.Imm.(type) {
		case nil:
			w.Byte(ins.Opcode)
		case LocalImm:
			if wideLocal(imm) {
				w.Byte(OpWide)
				w.Byte(ins.Opcode)
				w.WriteU16(imm.Index)
			} else {
				w.Byte(ins.Opcode)
				w.Byte(byte(imm.Index))
			}
		case IIncImm:
			if wideIInc(imm) {
				w.Byte(OpWide)
				w.Byte(OpIinc)
				w.WriteU16(imm.Index)
				w.WriteU16(uint16(imm.Delta))
			} else {
				w.Byte(OpIinc)
				w.Byte(byte(imm.Index))
				w.Byte(byte(int8(imm.Delta)))
			}
		case IntImm:
			w.Byte(ins.Opcode)
			if ins.Opcode == OpBipush {
				w.Byte(byte(int8(imm.Value)))
			} else {
				w.WriteU16(uint16(int16(imm.Value)))
			}
		case ConstImm:
			switch {
			case ins.Opcode == OpLdc && imm.Index <= math.MaxUint8:
				w.Byte(OpLdc)
				w.Byte(byte(imm.Index))
			case ins.Opcode == OpLdc:
				w.Byte(OpLdcW)
				w.WriteU16(imm.Index)
			default:
				w.Byte(ins.Opcode)
				w.WriteU16(imm.Index)
			}
		case RefImm:
			w.Byte(ins.Opcode)
			w.WriteU16(imm.Index)
		case InvokeInterfaceImm:
			w.Byte(ins.Opcode)
			w.WriteU16(imm.Index)
			w.Byte(imm.Count)
			w.Byte(0)
		case InvokeDynamicImm:
			w.Byte(ins.Opcode)
			w.WriteU16(imm.Index)
			w.WriteU16(0)
		case JumpImm:
			d := imm.Target.Offset - at
			switch {
			case ins.Opcode == OpGotoW || ins.Opcode == OpJsrW:
				w.Byte(ins.Opcode)
				w.WriteS32(int32(d))
			case long[i] && ins.Opcode == OpGoto:
				w.Byte(OpGotoW)
				w.WriteS32(int32(d))
			case long[i] && ins.Opcode == OpJsr:
				w.Byte(OpJsrW)
				w.WriteS32(int32(d))
			default:
				w.Byte(ins.Opcode)
				w.WriteU16(uint16(int16(d)))
			}
		case TableSwitchImm:
			w.Byte(ins.Opcode)
			w.WriteBytes(make([]byte, switchPadding(at)))
			w.WriteS32(int32(imm.Default.Offset - at))
			w.WriteS32(imm.Low)
			w.WriteS32(imm.High)
			for _, t := range imm.Targets {
				w.WriteS32(int32(t.Offset - at))
			}
		case LookupSwitchImm:
			w.Byte(ins.Opcode)
			w.WriteBytes(make([]byte, switchPadding(at)))
			w.WriteS32(int32(imm.Default.Offset - at))
			w.WriteS32(int32(len(imm.Keys)))
			for k, key := range imm.Keys {
				w.WriteS32(key)
				w.WriteS32(int32(imm.Targets[k].Offset - at))
			}
		case NewArrayImm:
			w.Byte(ins.Opcode)
			w.Byte(imm.Type)
		case MultiANewArrayImm:
			w.Byte(ins.Opcode)
			w.WriteU16(imm.Index)
			w.Byte(imm.Dimensions)
		}
	}
	return nil
}

// checkImmediate verifies that the immediate type matches the opcode.
func checkImmediate(ins Instruction) error {
	op := ins.Opcode
	ok := false
	switch imm := ins.Imm.(type) {
	case nil:
		ok = !isLocalOp(op) && !isRefOp(op) && !isBranchOp(op) &&
			op != OpIinc && op != OpBipush && op != OpSipush &&
			op != OpLdc && op != OpLdcW && op != OpLdc2W &&
			op != OpInvokeinterface && op != OpInvokedynamic &&
			op != OpNewarray && op != OpMultianewarray &&
			op != OpGotoW && op != OpJsrW &&
			op != OpTableswitch && op != OpLookupswitch &&
			op != OpWide && IsValidOpcode(op)
	case LocalImm:
		ok = isLocalOp(op)
	case IIncImm:
		ok = op == OpIinc
	case IntImm:
		ok = (op == OpBipush && imm.Value >= math.MinInt8 && imm.Value <= math.MaxInt8) ||
			(op == OpSipush && imm.Value >= math.MinInt16 && imm.Value <= math.MaxInt16)
	case ConstImm:
		ok = op == OpLdc || op == OpLdcW || op == OpLdc2W
	case RefImm:
		ok = isRefOp(op)
	case InvokeInterfaceImm:
		ok = op == OpInvokeinterface
	case InvokeDynamicImm:
		ok = op == OpInvokedynamic
	case JumpImm:
		ok = (isBranchOp(op) || op == OpGotoW || op == OpJsrW) && imm.Target != nil
	case TableSwitchImm:
		ok = op == OpTableswitch && int64(imm.High)-int64(imm.Low)+1 == int64(len(imm.Targets))
	case LookupSwitchImm:
		ok = op == OpLookupswitch && len(imm.Keys) == len(imm.Targets)
	case NewArrayImm:
		ok = op == OpNewarray
	case MultiANewArrayImm:
		ok = op == OpMultianewarray
	}
	if !ok {
		return errors.InvalidInput(errors.PhaseEncode,
			fmt.Sprintf("%s cannot carry immediate %T", OpName(op), ins.Imm))
	}
	return nil
}

// encode serialises the Code attribute body. MaxStack and MaxLocals are
// written as stored; callers recompute them first.
func (c *Code) encode(pool *ConstantPool, path []string) ([]byte, error) {
	long, length, err := c.layout(path)
	if err != nil {
		return nil, err
	}

	w := binary.NewWriter()
	w.WriteU16(c.MaxStack)
	w.WriteU16(c.MaxLocals)
	w.WriteU32(uint32(length))
	if err := c.encodeInstructions(w, long); err != nil {
		return nil, err
	}

	w.WriteU16(uint16(len(c.Handlers)))
	for _, h := range c.Handlers {
		w.WriteU16(uint16(h.Start.Offset))
		w.WriteU16(uint16(h.End.Offset))
		w.WriteU16(uint16(h.Handler.Offset))
		w.WriteU16(h.CatchType)
	}

	attrs, err := c.encodeAttributes(pool)
	if err != nil {
		return nil, err
	}
	if err := writeAttributes(w, pool, attrs); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (c *Code) moved() bool {
	for _, ins := range c.Instructions {
		if l := ins.Label(); l != nil && l.Moved() {
			return true
		}
	}
	return false
}

func (c *Code) encodeAttributes(pool *ConstantPool) ([]Attribute, error) {
	moved := c.moved()
	out := make([]Attribute, 0, len(c.Attributes)+4)
	emitted := make(map[string]bool)
	structured := func(name string) (Attribute, bool, error) {
		var data []byte
		var err error
		switch name {
		case AttrLineNumberTable:
			data = c.encodeLineNumbers()
		case AttrLocalVariableTable:
			data = encodeLocalVars(c.LocalVars)
		case AttrLocalVariableTypeTable:
			data = encodeLocalVars(c.LocalVarTypes)
		case AttrStackMapTable:
			data, err = encodeStackMap(c.Frames)
		default:
			return Attribute{}, false, nil
		}
		return Attribute{Name: name, Data: data}, true, err
	}

	for _, a := range c.Attributes {
		if moved && (a.Name == AttrRuntimeVisibleTypeAnnotations || a.Name == AttrRuntimeInvisibleTypeAnnotations) {
			continue
		}
		s, ok, err := structured(a.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, a)
			continue
		}
		if !emitted[a.Name] {
			emitted[a.Name] = true
			out = append(out, s)
		}
	}

	// Structured data added without a matching attribute entry.
	extra := []struct {
		name string
		set  bool
	}{
		{AttrLineNumberTable, len(c.LineNumbers) > 0},
		{AttrLocalVariableTable, len(c.LocalVars) > 0},
		{AttrLocalVariableTypeTable, len(c.LocalVarTypes) > 0},
		{AttrStackMapTable, len(c.Frames) > 0},
	}
	for _, e := range extra {
		if !e.set || emitted[e.name] {
			continue
		}
		s, _, err := structured(e.name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Code) encodeLineNumbers() []byte {
	w := binary.NewWriter()
	w.WriteU16(uint16(len(c.LineNumbers)))
	for _, ln := range c.LineNumbers {
		w.WriteU16(uint16(ln.Start.Offset))
		w.WriteU16(ln.Line)
	}
	return w.Bytes()
}

func encodeLocalVars(vars []LocalVar) []byte {
	w := binary.NewWriter()
	w.WriteU16(uint16(len(vars)))
	for _, lv := range vars {
		w.WriteU16(uint16(lv.Start.Offset))
		w.WriteU16(uint16(lv.End.Offset - lv.Start.Offset))
		w.WriteU16(lv.Name)
		w.WriteU16(lv.Descriptor)
		w.WriteU16(lv.Index)
	}
	return w.Bytes()
}
