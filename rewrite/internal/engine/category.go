package engine

import "github.com/wippyai/jvm-rewrite/classfile"

// Category is the closed set of instruction kinds the engine distinguishes.
// Everything it does not act on is CategoryOther and is left untouched.
type Category int

const (
	CategoryOther Category = iota
	CategoryStaticCall
	CategoryAllocation
	CategoryConstructorCall
	CategoryPushConstant
)

var categoryNames = [...]string{
	CategoryOther:           "other",
	CategoryStaticCall:      "static_call",
	CategoryAllocation:      "allocation",
	CategoryConstructorCall: "constructor_call",
	CategoryPushConstant:    "push_constant",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Classify returns the category of ins. ConstructorCall needs the pool to
// tell invokespecial <init> from private and super calls; a nil pool
// classifies every invokespecial as CategoryOther.
func Classify(ins classfile.Instruction, pool *classfile.ConstantPool) Category {
	switch ins.Opcode {
	case classfile.OpInvokestatic:
		return CategoryStaticCall
	case classfile.OpNew:
		return CategoryAllocation
	case classfile.OpLdc, classfile.OpLdcW, classfile.OpLdc2W:
		return CategoryPushConstant
	case classfile.OpInvokespecial:
		if pool == nil {
			return CategoryOther
		}
		idx, _ := ins.PoolIndex()
		if ref, err := pool.Member(idx); err == nil && ref.Name == "<init>" {
			return CategoryConstructorCall
		}
	}
	return CategoryOther
}
