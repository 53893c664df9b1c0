package classfile

// Class-file magic number and supported version range.
const (
	// Magic is the class-file magic number.
	Magic uint32 = 0xCAFEBABE

	// MinMajorVersion is the oldest supported major version (JDK 1.0.2).
	MinMajorVersion uint16 = 45

	// MaxMajorVersion is the newest supported major version (Java 25).
	MaxMajorVersion uint16 = 69

	// StackMapMajorVersion is the first major version that carries StackMapTable.
	StackMapMajorVersion uint16 = 50
)

// Format limits.
const (
	MaxConstantPoolCount = 0xFFFF
	MaxCodeLength        = 0xFFFF
	MaxStackOrLocals     = 0xFFFF
	MaxUTF8Length        = 0xFFFF
)

// Constant pool tags.
const (
	TagUtf8               byte = 1
	TagInteger            byte = 3
	TagFloat              byte = 4
	TagLong               byte = 5
	TagDouble             byte = 6
	TagClass              byte = 7
	TagString             byte = 8
	TagFieldref           byte = 9
	TagMethodref          byte = 10
	TagInterfaceMethodref byte = 11
	TagNameAndType        byte = 12
	TagMethodHandle       byte = 15
	TagMethodType         byte = 16
	TagDynamic            byte = 17
	TagInvokeDynamic      byte = 18
	TagModule             byte = 19
	TagPackage            byte = 20
)

// Access flags used by the encoder and max-locals computation.
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccProtected uint16 = 0x0004
	AccStatic    uint16 = 0x0008
	AccFinal     uint16 = 0x0010
	AccSuper     uint16 = 0x0020
	AccNative    uint16 = 0x0100
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
)

// Method handle reference kinds.
const (
	RefGetField         byte = 1
	RefGetStatic        byte = 2
	RefPutField         byte = 3
	RefPutStatic        byte = 4
	RefInvokeVirtual    byte = 5
	RefInvokeStatic     byte = 6
	RefInvokeSpecial    byte = 7
	RefNewInvokeSpecial byte = 8
	RefInvokeInterface  byte = 9
)

// Attribute names the codec understands structurally.
const (
	AttrCode                            = "Code"
	AttrStackMapTable                   = "StackMapTable"
	AttrLineNumberTable                 = "LineNumberTable"
	AttrLocalVariableTable              = "LocalVariableTable"
	AttrLocalVariableTypeTable          = "LocalVariableTypeTable"
	AttrRuntimeVisibleTypeAnnotations   = "RuntimeVisibleTypeAnnotations"
	AttrRuntimeInvisibleTypeAnnotations = "RuntimeInvisibleTypeAnnotations"
)

// Verification type tags used by StackMapTable frames.
const (
	VTTop               byte = 0
	VTInteger           byte = 1
	VTFloat             byte = 2
	VTDouble            byte = 3
	VTLong              byte = 4
	VTNull              byte = 5
	VTUninitializedThis byte = 6
	VTObject            byte = 7
	VTUninitialized     byte = 8
)

// Instruction opcodes.
const (
	OpNop             byte = 0x00
	OpAconstNull      byte = 0x01
	OpIconstM1        byte = 0x02
	OpIconst0         byte = 0x03
	OpIconst1         byte = 0x04
	OpIconst2         byte = 0x05
	OpIconst3         byte = 0x06
	OpIconst4         byte = 0x07
	OpIconst5         byte = 0x08
	OpLconst0         byte = 0x09
	OpLconst1         byte = 0x0a
	OpFconst0         byte = 0x0b
	OpFconst1         byte = 0x0c
	OpFconst2         byte = 0x0d
	OpDconst0         byte = 0x0e
	OpDconst1         byte = 0x0f
	OpBipush          byte = 0x10
	OpSipush          byte = 0x11
	OpLdc             byte = 0x12
	OpLdcW            byte = 0x13
	OpLdc2W           byte = 0x14
	OpIload           byte = 0x15
	OpLload           byte = 0x16
	OpFload           byte = 0x17
	OpDload           byte = 0x18
	OpAload           byte = 0x19
	OpIload0          byte = 0x1a
	OpIload1          byte = 0x1b
	OpIload2          byte = 0x1c
	OpIload3          byte = 0x1d
	OpLload0          byte = 0x1e
	OpLload1          byte = 0x1f
	OpLload2          byte = 0x20
	OpLload3          byte = 0x21
	OpFload0          byte = 0x22
	OpFload1          byte = 0x23
	OpFload2          byte = 0x24
	OpFload3          byte = 0x25
	OpDload0          byte = 0x26
	OpDload1          byte = 0x27
	OpDload2          byte = 0x28
	OpDload3          byte = 0x29
	OpAload0          byte = 0x2a
	OpAload1          byte = 0x2b
	OpAload2          byte = 0x2c
	OpAload3          byte = 0x2d
	OpIaload          byte = 0x2e
	OpLaload          byte = 0x2f
	OpFaload          byte = 0x30
	OpDaload          byte = 0x31
	OpAaload          byte = 0x32
	OpBaload          byte = 0x33
	OpCaload          byte = 0x34
	OpSaload          byte = 0x35
	OpIstore          byte = 0x36
	OpLstore          byte = 0x37
	OpFstore          byte = 0x38
	OpDstore          byte = 0x39
	OpAstore          byte = 0x3a
	OpIstore0         byte = 0x3b
	OpIstore1         byte = 0x3c
	OpIstore2         byte = 0x3d
	OpIstore3         byte = 0x3e
	OpLstore0         byte = 0x3f
	OpLstore1         byte = 0x40
	OpLstore2         byte = 0x41
	OpLstore3         byte = 0x42
	OpFstore0         byte = 0x43
	OpFstore1         byte = 0x44
	OpFstore2         byte = 0x45
	OpFstore3         byte = 0x46
	OpDstore0         byte = 0x47
	OpDstore1         byte = 0x48
	OpDstore2         byte = 0x49
	OpDstore3         byte = 0x4a
	OpAstore0         byte = 0x4b
	OpAstore1         byte = 0x4c
	OpAstore2         byte = 0x4d
	OpAstore3         byte = 0x4e
	OpIastore         byte = 0x4f
	OpLastore         byte = 0x50
	OpFastore         byte = 0x51
	OpDastore         byte = 0x52
	OpAastore         byte = 0x53
	OpBastore         byte = 0x54
	OpCastore         byte = 0x55
	OpSastore         byte = 0x56
	OpPop             byte = 0x57
	OpPop2            byte = 0x58
	OpDup             byte = 0x59
	OpDupX1           byte = 0x5a
	OpDupX2           byte = 0x5b
	OpDup2            byte = 0x5c
	OpDup2X1          byte = 0x5d
	OpDup2X2          byte = 0x5e
	OpSwap            byte = 0x5f
	OpIadd            byte = 0x60
	OpLadd            byte = 0x61
	OpFadd            byte = 0x62
	OpDadd            byte = 0x63
	OpIsub            byte = 0x64
	OpLsub            byte = 0x65
	OpFsub            byte = 0x66
	OpDsub            byte = 0x67
	OpImul            byte = 0x68
	OpLmul            byte = 0x69
	OpFmul            byte = 0x6a
	OpDmul            byte = 0x6b
	OpIdiv            byte = 0x6c
	OpLdiv            byte = 0x6d
	OpFdiv            byte = 0x6e
	OpDdiv            byte = 0x6f
	OpIrem            byte = 0x70
	OpLrem            byte = 0x71
	OpFrem            byte = 0x72
	OpDrem            byte = 0x73
	OpIneg            byte = 0x74
	OpLneg            byte = 0x75
	OpFneg            byte = 0x76
	OpDneg            byte = 0x77
	OpIshl            byte = 0x78
	OpLshl            byte = 0x79
	OpIshr            byte = 0x7a
	OpLshr            byte = 0x7b
	OpIushr           byte = 0x7c
	OpLushr           byte = 0x7d
	OpIand            byte = 0x7e
	OpLand            byte = 0x7f
	OpIor             byte = 0x80
	OpLor             byte = 0x81
	OpIxor            byte = 0x82
	OpLxor            byte = 0x83
	OpIinc            byte = 0x84
	OpI2l             byte = 0x85
	OpI2f             byte = 0x86
	OpI2d             byte = 0x87
	OpL2i             byte = 0x88
	OpL2f             byte = 0x89
	OpL2d             byte = 0x8a
	OpF2i             byte = 0x8b
	OpF2l             byte = 0x8c
	OpF2d             byte = 0x8d
	OpD2i             byte = 0x8e
	OpD2l             byte = 0x8f
	OpD2f             byte = 0x90
	OpI2b             byte = 0x91
	OpI2c             byte = 0x92
	OpI2s             byte = 0x93
	OpLcmp            byte = 0x94
	OpFcmpl           byte = 0x95
	OpFcmpg           byte = 0x96
	OpDcmpl           byte = 0x97
	OpDcmpg           byte = 0x98
	OpIfeq            byte = 0x99
	OpIfne            byte = 0x9a
	OpIflt            byte = 0x9b
	OpIfge            byte = 0x9c
	OpIfgt            byte = 0x9d
	OpIfle            byte = 0x9e
	OpIfIcmpeq        byte = 0x9f
	OpIfIcmpne        byte = 0xa0
	OpIfIcmplt        byte = 0xa1
	OpIfIcmpge        byte = 0xa2
	OpIfIcmpgt        byte = 0xa3
	OpIfIcmple        byte = 0xa4
	OpIfAcmpeq        byte = 0xa5
	OpIfAcmpne        byte = 0xa6
	OpGoto            byte = 0xa7
	OpJsr             byte = 0xa8
	OpRet             byte = 0xa9
	OpTableswitch     byte = 0xaa
	OpLookupswitch    byte = 0xab
	OpIreturn         byte = 0xac
	OpLreturn         byte = 0xad
	OpFreturn         byte = 0xae
	OpDreturn         byte = 0xaf
	OpAreturn         byte = 0xb0
	OpReturn          byte = 0xb1
	OpGetstatic       byte = 0xb2
	OpPutstatic       byte = 0xb3
	OpGetfield        byte = 0xb4
	OpPutfield        byte = 0xb5
	OpInvokevirtual   byte = 0xb6
	OpInvokespecial   byte = 0xb7
	OpInvokestatic    byte = 0xb8
	OpInvokeinterface byte = 0xb9
	OpInvokedynamic   byte = 0xba
	OpNew             byte = 0xbb
	OpNewarray        byte = 0xbc
	OpAnewarray       byte = 0xbd
	OpArraylength     byte = 0xbe
	OpAthrow          byte = 0xbf
	OpCheckcast       byte = 0xc0
	OpInstanceof      byte = 0xc1
	OpMonitorenter    byte = 0xc2
	OpMonitorexit     byte = 0xc3
	OpWide            byte = 0xc4
	OpMultianewarray  byte = 0xc5
	OpIfnull          byte = 0xc6
	OpIfnonnull       byte = 0xc7
	OpGotoW           byte = 0xc8
	OpJsrW            byte = 0xc9

	// OpLabel is a pseudo-opcode marking a bytecode position inside an
	// instruction list. It occupies no bytes and is never encoded.
	OpLabel           byte = 0xff
)

var opNames = [...]string{
	"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4", "iconst_5",
	"lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2", "dconst_0", "dconst_1", "bipush", "sipush",
	"ldc", "ldc_w", "ldc2_w", "iload", "lload", "fload", "dload", "aload",
	"iload_0", "iload_1", "iload_2", "iload_3", "lload_0", "lload_1", "lload_2", "lload_3",
	"fload_0", "fload_1", "fload_2", "fload_3", "dload_0", "dload_1", "dload_2", "dload_3",
	"aload_0", "aload_1", "aload_2", "aload_3",
	"iaload", "laload", "faload", "daload", "aaload", "baload", "caload", "saload",
	"istore", "lstore", "fstore", "dstore", "astore",
	"istore_0", "istore_1", "istore_2", "istore_3", "lstore_0", "lstore_1", "lstore_2", "lstore_3",
	"fstore_0", "fstore_1", "fstore_2", "fstore_3", "dstore_0", "dstore_1", "dstore_2", "dstore_3",
	"astore_0", "astore_1", "astore_2", "astore_3",
	"iastore", "lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore",
	"pop", "pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2", "swap",
	"iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub",
	"imul", "lmul", "fmul", "dmul", "idiv", "ldiv", "fdiv", "ddiv",
	"irem", "lrem", "frem", "drem", "ineg", "lneg", "fneg", "dneg",
	"ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land", "ior", "lor", "ixor", "lxor",
	"iinc", "i2l", "i2f", "i2d", "l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l", "d2f",
	"i2b", "i2c", "i2s", "lcmp", "fcmpl", "fcmpg", "dcmpl", "dcmpg",
	"ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle",
	"if_icmpeq", "if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne",
	"goto", "jsr", "ret", "tableswitch", "lookupswitch",
	"ireturn", "lreturn", "freturn", "dreturn", "areturn", "return",
	"getstatic", "putstatic", "getfield", "putfield",
	"invokevirtual", "invokespecial", "invokestatic", "invokeinterface", "invokedynamic",
	"new", "newarray", "anewarray", "arraylength", "athrow", "checkcast", "instanceof",
	"monitorenter", "monitorexit", "wide", "multianewarray", "ifnull", "ifnonnull", "goto_w", "jsr_w",
}

// OpName returns the mnemonic for op.
func OpName(op byte) string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	if op == OpLabel {
		return "<label>"
	}
	return "unknown"
}

// IsValidOpcode reports whether op is a defined instruction opcode.
func IsValidOpcode(op byte) bool {
	return int(op) < len(opNames)
}
