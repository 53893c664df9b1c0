package classfile

import "fmt"

// Opcode constants are defined in constants.go

// Label marks a position in an instruction sequence. Labels appear in the
// sequence as OpLabel pseudo-instructions and are referenced by branches,
// switches, exception ranges, debug tables and stack map frames.
type Label struct {
	// Offset is the bytecode offset assigned by the last decode or layout.
	// It is -1 for a label that has never been placed.
	Offset int
	origin int
}

// NewLabel returns an unplaced label.
func NewLabel() *Label {
	return &Label{Offset: -1, origin: -1}
}

// Moved reports whether the label was decoded at a different offset than
// the one it currently has.
func (l *Label) Moved() bool {
	return l.origin >= 0 && l.Offset != l.origin
}

func (l *Label) String() string {
	return fmt.Sprintf("L%d", l.Offset)
}

// Instruction represents a decoded JVM instruction
type Instruction struct {
	Imm    any
	Opcode byte
}

// LabelImm holds the label of an OpLabel pseudo-instruction.
type LabelImm struct {
	Label *Label
}

// LocalImm holds the local variable index for load, store and ret.
// Wide is set when the instruction was (or must be) prefixed by wide.
type LocalImm struct {
	Index uint16
	Wide  bool
}

// IIncImm holds the operands of iinc.
type IIncImm struct {
	Index uint16
	Delta int16
	Wide  bool
}

// IntImm holds the operand of bipush and sipush.
type IntImm struct {
	Value int32
}

// ConstImm holds the constant pool index for ldc, ldc_w and ldc2_w.
type ConstImm struct {
	Index uint16
}

// RefImm holds the constant pool index for field access, invokevirtual,
// invokespecial, invokestatic, new, anewarray, checkcast and instanceof.
type RefImm struct {
	Index uint16
}

// InvokeInterfaceImm holds the operands of invokeinterface.
type InvokeInterfaceImm struct {
	Index uint16
	Count byte
}

// InvokeDynamicImm holds the call site index of invokedynamic.
type InvokeDynamicImm struct {
	Index uint16
}

// JumpImm holds the target of a branch, goto or jsr.
type JumpImm struct {
	Target *Label
}

// TableSwitchImm holds the operands of tableswitch.
type TableSwitchImm struct {
	Default *Label
	Targets []*Label
	Low     int32
	High    int32
}

// LookupSwitchImm holds the operands of lookupswitch.
type LookupSwitchImm struct {
	Default *Label
	Keys    []int32
	Targets []*Label
}

// NewArrayImm holds the primitive element type of newarray.
type NewArrayImm struct {
	Type byte
}

// MultiANewArrayImm holds the operands of multianewarray.
type MultiANewArrayImm struct {
	Index      uint16
	Dimensions byte
}

// LabelInstruction returns the pseudo-instruction placing l.
func LabelInstruction(l *Label) Instruction {
	return Instruction{Opcode: OpLabel, Imm: LabelImm{Label: l}}
}

// IsLabel reports whether the instruction is a label pseudo-instruction.
func (i Instruction) IsLabel() bool {
	return i.Opcode == OpLabel
}

// Label returns the label placed by an OpLabel instruction, or nil.
func (i Instruction) Label() *Label {
	if imm, ok := i.Imm.(LabelImm); ok {
		return imm.Label
	}
	return nil
}

// PoolIndex returns the constant pool index referenced by the instruction.
func (i Instruction) PoolIndex() (uint16, bool) {
	switch imm := i.Imm.(type) {
	case ConstImm:
		return imm.Index, true
	case RefImm:
		return imm.Index, true
	case InvokeInterfaceImm:
		return imm.Index, true
	case InvokeDynamicImm:
		return imm.Index, true
	case MultiANewArrayImm:
		return imm.Index, true
	}
	return 0, false
}

// Targets returns every label the instruction may transfer control to.
func (i Instruction) Targets() []*Label {
	switch imm := i.Imm.(type) {
	case JumpImm:
		return []*Label{imm.Target}
	case TableSwitchImm:
		return append([]*Label{imm.Default}, imm.Targets...)
	case LookupSwitchImm:
		return append([]*Label{imm.Default}, imm.Targets...)
	}
	return nil
}

// IsInvoke reports whether the instruction is a method invocation.
func (i Instruction) IsInvoke() bool {
	switch i.Opcode {
	case OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokeinterface, OpInvokedynamic:
		return true
	}
	return false
}

func (i Instruction) String() string {
	switch imm := i.Imm.(type) {
	case LabelImm:
		return imm.Label.String() + ":"
	case LocalImm:
		return fmt.Sprintf("%s %d", OpName(i.Opcode), imm.Index)
	case IIncImm:
		return fmt.Sprintf("iinc %d %d", imm.Index, imm.Delta)
	case IntImm:
		return fmt.Sprintf("%s %d", OpName(i.Opcode), imm.Value)
	case ConstImm:
		return fmt.Sprintf("%s #%d", OpName(i.Opcode), imm.Index)
	case RefImm:
		return fmt.Sprintf("%s #%d", OpName(i.Opcode), imm.Index)
	case InvokeInterfaceImm:
		return fmt.Sprintf("invokeinterface #%d %d", imm.Index, imm.Count)
	case InvokeDynamicImm:
		return fmt.Sprintf("invokedynamic #%d", imm.Index)
	case JumpImm:
		return fmt.Sprintf("%s %s", OpName(i.Opcode), imm.Target)
	case TableSwitchImm:
		return fmt.Sprintf("tableswitch %d..%d", imm.Low, imm.High)
	case LookupSwitchImm:
		return fmt.Sprintf("lookupswitch %d", len(imm.Keys))
	case NewArrayImm:
		return fmt.Sprintf("newarray %d", imm.Type)
	case MultiANewArrayImm:
		return fmt.Sprintf("multianewarray #%d %d", imm.Index, imm.Dimensions)
	}
	return OpName(i.Opcode)
}

// isLocalOp reports opcodes carrying a one-byte (or wide two-byte) local index.
func isLocalOp(op byte) bool {
	return (op >= OpIload && op <= OpAload) || (op >= OpIstore && op <= OpAstore) || op == OpRet
}

func isBranchOp(op byte) bool {
	return (op >= OpIfeq && op <= OpJsr) || op == OpIfnull || op == OpIfnonnull
}

func isRefOp(op byte) bool {
	switch op {
	case OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof:
		return true
	}
	return false
}
