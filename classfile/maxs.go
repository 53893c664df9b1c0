package classfile

import (
	"fmt"

	"github.com/wippyai/jvm-rewrite/errors"
)

// StackEffect is the number of operand stack slots an instruction pops and
// pushes. Long and double values count as two slots.
type StackEffect struct {
	Pops   int
	Pushes int
}

// GetStackEffect returns the stack effect of ins. Invocations, field access,
// ldc and multianewarray resolve descriptors through pool. For jsr the
// pushed return address is reported; it is only live at the target.
func GetStackEffect(ins Instruction, pool *ConstantPool) (StackEffect, error) {
	op := ins.Opcode
	switch {
	case op == OpNop, op == OpIinc, op == OpGoto, op == OpGotoW, op == OpRet,
		op == OpReturn, op == OpLabel:
		return StackEffect{}, nil
	case op == OpAconstNull, op >= OpIconstM1 && op <= OpIconst5,
		op >= OpFconst0 && op <= OpFconst2, op == OpBipush, op == OpSipush:
		return StackEffect{Pushes: 1}, nil
	case op == OpLconst0, op == OpLconst1, op == OpDconst0, op == OpDconst1, op == OpLdc2W:
		return StackEffect{Pushes: 2}, nil
	case op == OpLdc, op == OpLdcW:
		return StackEffect{Pushes: 1}, nil

	case op == OpIload, op == OpFload, op == OpAload,
		op >= OpIload0 && op <= OpIload3, op >= OpFload0 && op <= OpFload3,
		op >= OpAload0 && op <= OpAload3:
		return StackEffect{Pushes: 1}, nil
	case op == OpLload, op == OpDload,
		op >= OpLload0 && op <= OpLload3, op >= OpDload0 && op <= OpDload3:
		return StackEffect{Pushes: 2}, nil

	case op == OpLaload, op == OpDaload:
		return StackEffect{Pops: 2, Pushes: 2}, nil
	case op >= OpIaload && op <= OpSaload:
		return StackEffect{Pops: 2, Pushes: 1}, nil

	case op == OpIstore, op == OpFstore, op == OpAstore,
		op >= OpIstore0 && op <= OpIstore3, op >= OpFstore0 && op <= OpFstore3,
		op >= OpAstore0 && op <= OpAstore3:
		return StackEffect{Pops: 1}, nil
	case op == OpLstore, op == OpDstore,
		op >= OpLstore0 && op <= OpLstore3, op >= OpDstore0 && op <= OpDstore3:
		return StackEffect{Pops: 2}, nil

	case op == OpLastore, op == OpDastore:
		return StackEffect{Pops: 4}, nil
	case op >= OpIastore && op <= OpSastore:
		return StackEffect{Pops: 3}, nil

	case op == OpPop:
		return StackEffect{Pops: 1}, nil
	case op == OpPop2:
		return StackEffect{Pops: 2}, nil
	case op == OpDup:
		return StackEffect{Pops: 1, Pushes: 2}, nil
	case op == OpDupX1:
		return StackEffect{Pops: 2, Pushes: 3}, nil
	case op == OpDupX2:
		return StackEffect{Pops: 3, Pushes: 4}, nil
	case op == OpDup2:
		return StackEffect{Pops: 2, Pushes: 4}, nil
	case op == OpDup2X1:
		return StackEffect{Pops: 3, Pushes: 5}, nil
	case op == OpDup2X2:
		return StackEffect{Pops: 4, Pushes: 6}, nil
	case op == OpSwap:
		return StackEffect{Pops: 2, Pushes: 2}, nil

	case op >= OpIadd && op <= OpDrem:
		// add, sub, mul, div, rem cycle through i, l, f, d.
		if (op-OpIadd)%2 == 1 {
			return StackEffect{Pops: 4, Pushes: 2}, nil
		}
		return StackEffect{Pops: 2, Pushes: 1}, nil
	case op == OpIneg, op == OpFneg:
		return StackEffect{Pops: 1, Pushes: 1}, nil
	case op == OpLneg, op == OpDneg:
		return StackEffect{Pops: 2, Pushes: 2}, nil
	case op == OpIshl, op == OpIshr, op == OpIushr:
		return StackEffect{Pops: 2, Pushes: 1}, nil
	case op == OpLshl, op == OpLshr, op == OpLushr:
		return StackEffect{Pops: 3, Pushes: 2}, nil
	case op == OpIand, op == OpIor, op == OpIxor:
		return StackEffect{Pops: 2, Pushes: 1}, nil
	case op == OpLand, op == OpLor, op == OpLxor:
		return StackEffect{Pops: 4, Pushes: 2}, nil

	case op == OpI2f, op == OpF2i, op == OpI2b, op == OpI2c, op == OpI2s:
		return StackEffect{Pops: 1, Pushes: 1}, nil
	case op == OpI2l, op == OpI2d, op == OpF2l, op == OpF2d:
		return StackEffect{Pops: 1, Pushes: 2}, nil
	case op == OpL2i, op == OpL2f, op == OpD2i, op == OpD2f:
		return StackEffect{Pops: 2, Pushes: 1}, nil
	case op == OpL2d, op == OpD2l:
		return StackEffect{Pops: 2, Pushes: 2}, nil

	case op == OpLcmp, op == OpDcmpl, op == OpDcmpg:
		return StackEffect{Pops: 4, Pushes: 1}, nil
	case op == OpFcmpl, op == OpFcmpg:
		return StackEffect{Pops: 2, Pushes: 1}, nil

	case op >= OpIfeq && op <= OpIfle, op == OpIfnull, op == OpIfnonnull:
		return StackEffect{Pops: 1}, nil
	case op >= OpIfIcmpeq && op <= OpIfAcmpne:
		return StackEffect{Pops: 2}, nil
	case op == OpJsr, op == OpJsrW:
		return StackEffect{Pushes: 1}, nil
	case op == OpTableswitch, op == OpLookupswitch:
		return StackEffect{Pops: 1}, nil

	case op == OpIreturn, op == OpFreturn, op == OpAreturn, op == OpAthrow,
		op == OpMonitorenter, op == OpMonitorexit:
		return StackEffect{Pops: 1}, nil
	case op == OpLreturn, op == OpDreturn:
		return StackEffect{Pops: 2}, nil

	case op == OpNew:
		return StackEffect{Pushes: 1}, nil
	case op == OpNewarray, op == OpAnewarray, op == OpArraylength,
		op == OpCheckcast, op == OpInstanceof:
		return StackEffect{Pops: 1, Pushes: 1}, nil
	case op == OpMultianewarray:
		imm, ok := ins.Imm.(MultiANewArrayImm)
		if !ok {
			return StackEffect{}, fmt.Errorf("multianewarray without operands")
		}
		return StackEffect{Pops: int(imm.Dimensions), Pushes: 1}, nil

	case op >= OpGetstatic && op <= OpPutfield:
		idx, _ := ins.PoolIndex()
		ref, err := pool.Member(idx)
		if err != nil {
			return StackEffect{}, err
		}
		size := TypeSlots(ref.Descriptor)
		switch op {
		case OpGetstatic:
			return StackEffect{Pushes: size}, nil
		case OpPutstatic:
			return StackEffect{Pops: size}, nil
		case OpGetfield:
			return StackEffect{Pops: 1, Pushes: size}, nil
		default:
			return StackEffect{Pops: 1 + size}, nil
		}

	case op >= OpInvokevirtual && op <= OpInvokeinterface:
		idx, _ := ins.PoolIndex()
		ref, err := pool.Member(idx)
		if err != nil {
			return StackEffect{}, err
		}
		return invokeEffect(ref.Descriptor, op != OpInvokestatic)

	case op == OpInvokedynamic:
		idx, _ := ins.PoolIndex()
		_, desc, err := pool.Dynamic(idx)
		if err != nil {
			return StackEffect{}, err
		}
		return invokeEffect(desc, false)
	}
	return StackEffect{}, fmt.Errorf("no stack effect for %s", OpName(op))
}

func invokeEffect(desc string, receiver bool) (StackEffect, error) {
	params, ret, err := ParseMethodDescriptor(desc)
	if err != nil {
		return StackEffect{}, err
	}
	e := StackEffect{Pushes: TypeSlots(ret)}
	for _, p := range params {
		e.Pops += TypeSlots(p)
	}
	if receiver {
		e.Pops++
	}
	return e, nil
}

// endsBlock reports instructions after which control never falls through.
func endsBlock(op byte) bool {
	switch op {
	case OpGoto, OpGotoW, OpRet, OpAthrow, OpTableswitch, OpLookupswitch,
		OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn, OpReturn:
		return true
	}
	return false
}

// ComputeMaxs recomputes MaxStack and MaxLocals from the instructions.
// MaxStack is the deepest operand stack over every path reachable from the
// entry point or an exception handler. MaxLocals covers the parameters
// (and receiver unless static), every local slot an instruction touches and
// every slot named by the local variable tables.
func (c *Code) ComputeMaxs(pool *ConstantPool, static bool, desc string) error {
	locals, err := ArgSlots(desc)
	if err != nil {
		return err
	}
	if !static {
		locals++
	}
	for _, ins := range c.Instructions {
		if n := localSlotsUsed(ins); n > locals {
			locals = n
		}
	}
	for _, table := range [][]LocalVar{c.LocalVars, c.LocalVarTypes} {
		for _, lv := range table {
			n, err := localVarSlots(pool, lv)
			if err != nil {
				return err
			}
			if n > locals {
				locals = n
			}
		}
	}

	labelIndex := make(map[*Label]int)
	for i, ins := range c.Instructions {
		if l := ins.Label(); l != nil {
			labelIndex[l] = i
		}
	}
	indexOf := func(l *Label) (int, error) {
		i, ok := labelIndex[l]
		if !ok {
			return 0, errors.InvalidInput(errors.PhaseEncode, "branch to a label that is not in the instruction list")
		}
		return i, nil
	}

	heights := make([]int, len(c.Instructions))
	for i := range heights {
		heights[i] = -1
	}
	var work []int
	push := func(i, h int) {
		if i < len(heights) && heights[i] < 0 {
			heights[i] = h
			work = append(work, i)
		}
	}
	push(0, 0)
	for _, h := range c.Handlers {
		i, err := indexOf(h.Handler)
		if err != nil {
			return err
		}
		push(i, 1)
	}

	maxStack := 0
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		ins := c.Instructions[i]
		h := heights[i]
		if h > maxStack {
			maxStack = h
		}

		eff, err := GetStackEffect(ins, pool)
		if err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, OpName(ins.Opcode), err)
		}
		if ins.Opcode == OpJsr || ins.Opcode == OpJsrW {
			if h+1 > maxStack {
				maxStack = h + 1
			}
			j, ok := ins.Imm.(JumpImm)
			if !ok {
				return fmt.Errorf("instruction %d: jsr without target", i)
			}
			t, err := indexOf(j.Target)
			if err != nil {
				return err
			}
			push(t, h+1)
			push(i+1, h)
			continue
		}

		next := h - eff.Pops
		if next < 0 {
			next = 0
		}
		next += eff.Pushes
		if next > maxStack {
			maxStack = next
		}
		for _, l := range ins.Targets() {
			t, err := indexOf(l)
			if err != nil {
				return err
			}
			push(t, next)
		}
		if !endsBlock(ins.Opcode) {
			push(i+1, next)
		}
	}

	if maxStack > MaxStackOrLocals {
		return errors.EncodingOverflow(nil, maxStack, "max stack 65535")
	}
	if locals > MaxStackOrLocals {
		return errors.EncodingOverflow(nil, locals, "max locals 65535")
	}
	c.MaxStack = uint16(maxStack)
	c.MaxLocals = uint16(locals)
	return nil
}

// localVarSlots returns one past the highest slot a debug table entry names.
// Long and double entries span two slots; type table signatures for them are
// the same single letter.
func localVarSlots(pool *ConstantPool, lv LocalVar) (int, error) {
	d, err := pool.UTF8(lv.Descriptor)
	if err != nil {
		return 0, fmt.Errorf("local variable %d: %w", lv.Index, err)
	}
	if d == "J" || d == "D" {
		return int(lv.Index) + 2, nil
	}
	return int(lv.Index) + 1, nil
}

// localSlotsUsed returns one past the highest local slot ins reads or writes.
func localSlotsUsed(ins Instruction) int {
	op := ins.Opcode
	switch imm := ins.Imm.(type) {
	case LocalImm:
		switch op {
		case OpLload, OpDload, OpLstore, OpDstore:
			return int(imm.Index) + 2
		}
		return int(imm.Index) + 1
	case IIncImm:
		return int(imm.Index) + 1
	}
	var base byte
	var twoSlot bool
	switch {
	case op >= OpIload0 && op <= OpAload3:
		base, twoSlot = (op-OpIload0)%4, op >= OpLload0 && op <= OpLload3 || op >= OpDload0 && op <= OpDload3
	case op >= OpIstore0 && op <= OpAstore3:
		base, twoSlot = (op-OpIstore0)%4, op >= OpLstore0 && op <= OpLstore3 || op >= OpDstore0 && op <= OpDstore3
	default:
		return 0
	}
	if twoSlot {
		return int(base) + 2
	}
	return int(base) + 1
}
