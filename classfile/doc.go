// Package classfile provides JVM class file parsing and encoding.
//
// The decoder turns a class file into an editable model: the constant pool,
// fields, methods and, for every method with a body, a Code value holding
// an ordered instruction list. Branches, exception ranges, debug tables and
// StackMapTable frames refer to Label values placed in the list as OpLabel
// pseudo-instructions, so instructions can be inserted or replaced without
// fixing offsets by hand.
//
// # Parsing
//
//	data, _ := os.ReadFile("Foo.class")
//	class, err := classfile.Parse(data)
//	if errors.Is(err, errors.ErrMalformedUnit) {
//	    // bad magic, truncated table, dangling constant reference, ...
//	}
//
// # Editing
//
//	code := class.FindMethod("run", "()V").Code
//	idx, _ := class.Pool.AddString("Foo")
//	code.Instructions = append([]classfile.Instruction{
//	    {Opcode: classfile.OpLdc, Imm: classfile.ConstImm{Index: idx}},
//	    {Opcode: classfile.OpPop},
//	}, code.Instructions...)
//
// # Encoding
//
//	out, err := class.Encode()
//
// Encode lays every code body out again. It picks ldc_w for constants past
// index 255, wide for locals past 255 and goto_w or jsr_w when a jump no
// longer fits 16 bits, then recomputes max_stack and max_locals from the
// instructions. Instructions that were not edited keep their opcode and
// operands. RuntimeVisibleTypeAnnotations and
// RuntimeInvisibleTypeAnnotations inside Code are dropped when the layout
// moved, since their offsets are not remapped.
//
// # Limits
//
// Results that exceed the format (code longer than 65535 bytes, a
// conditional branch past 16 bits, more than 65535 constant pool slots)
// fail with an error matching errors.ErrEncodingOverflow.
package classfile
