package classfile_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/jvm-rewrite/classfile"
	"github.com/wippyai/jvm-rewrite/errors"
)

func newClass(t *testing.T, name string) *classfile.Class {
	t.Helper()
	c, err := classfile.NewClass(name, "java/lang/Object")
	if err != nil {
		t.Fatalf("NewClass: %v", err)
	}
	return c
}

func addMethod(t *testing.T, c *classfile.Class, access uint16, name, desc string, code *classfile.Code) *classfile.Method {
	t.Helper()
	m, err := c.AddMethod(access, name, desc, code)
	if err != nil {
		t.Fatalf("AddMethod %s: %v", name, err)
	}
	return m
}

func encode(t *testing.T, c *classfile.Class) []byte {
	t.Helper()
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func parse(t *testing.T, data []byte) *classfile.Class {
	t.Helper()
	c, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

// opcodes returns the opcodes of real instructions, skipping labels.
func opcodes(code *classfile.Code) []byte {
	var out []byte
	for _, ins := range code.Instructions {
		if !ins.IsLabel() {
			out = append(out, ins.Opcode)
		}
	}
	return out
}

func op(o byte) classfile.Instruction {
	return classfile.Instruction{Opcode: o}
}

func nops(n int) []classfile.Instruction {
	out := make([]classfile.Instruction, n)
	for i := range out {
		out[i] = op(classfile.OpNop)
	}
	return out
}

func TestRoundTripSimpleMethod(t *testing.T) {
	c := newClass(t, "com/example/Calc")
	addMethod(t, c, classfile.AccPublic|classfile.AccStatic, "add", "(II)I", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpIload0),
			op(classfile.OpIload1),
			op(classfile.OpIadd),
			op(classfile.OpIreturn),
		},
	})
	addMethod(t, c, classfile.AccPublic|classfile.AccAbstract, "run", "()V", nil)

	data := encode(t, c)
	got := parse(t, data)

	if got.Name() != "com/example/Calc" {
		t.Errorf("Name() = %q", got.Name())
	}
	if got.SuperName() != "java/lang/Object" {
		t.Errorf("SuperName() = %q", got.SuperName())
	}
	if len(got.Methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(got.Methods))
	}

	add := got.FindMethod("add", "(II)I")
	if add == nil || add.Code == nil {
		t.Fatal("add method or its code missing")
	}
	want := []byte{classfile.OpIload0, classfile.OpIload1, classfile.OpIadd, classfile.OpIreturn}
	if !bytes.Equal(opcodes(add.Code), want) {
		t.Errorf("opcodes = %v, want %v", opcodes(add.Code), want)
	}
	if add.Code.MaxStack != 2 || add.Code.MaxLocals != 2 {
		t.Errorf("maxs = %d/%d, want 2/2", add.Code.MaxStack, add.Code.MaxLocals)
	}
	if run := got.FindMethod("run", "()V"); run == nil || run.Code != nil {
		t.Error("abstract method should have no code")
	}

	if again := encode(t, got); !bytes.Equal(again, data) {
		t.Error("re-encoding a decoded class changed its bytes")
	}
}

func loopClass(t *testing.T) *classfile.Class {
	t.Helper()
	c := newClass(t, "Loop")
	top, end := classfile.NewLabel(), classfile.NewLabel()
	addMethod(t, c, classfile.AccStatic, "count", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpIconst0),
			op(classfile.OpIstore0),
			classfile.LabelInstruction(top),
			op(classfile.OpIload0),
			{Opcode: classfile.OpBipush, Imm: classfile.IntImm{Value: 10}},
			{Opcode: classfile.OpIfIcmpge, Imm: classfile.JumpImm{Target: end}},
			{Opcode: classfile.OpIinc, Imm: classfile.IIncImm{Index: 0, Delta: 1}},
			{Opcode: classfile.OpGoto, Imm: classfile.JumpImm{Target: top}},
			classfile.LabelInstruction(end),
			op(classfile.OpReturn),
		},
	})
	return c
}

func TestBranchesResolveToLabels(t *testing.T) {
	data := encode(t, loopClass(t))
	code := parse(t, data).FindMethod("count", "()V").Code

	// iconst_0 istore_0 | L2: iload_0 bipush if_icmpge iinc goto | L14: return
	var jumps []*classfile.Label
	for _, ins := range code.Instructions {
		if j, ok := ins.Imm.(classfile.JumpImm); ok {
			jumps = append(jumps, j.Target)
		}
	}
	if len(jumps) != 2 {
		t.Fatalf("expected 2 jumps, got %d", len(jumps))
	}
	if jumps[0].Offset != 14 {
		t.Errorf("if_icmpge target = %d, want 14", jumps[0].Offset)
	}
	if jumps[1].Offset != 2 {
		t.Errorf("goto target = %d, want 2", jumps[1].Offset)
	}
	if code.MaxStack != 2 || code.MaxLocals != 1 {
		t.Errorf("maxs = %d/%d, want 2/1", code.MaxStack, code.MaxLocals)
	}
}

func TestInsertionShiftsBranchTargets(t *testing.T) {
	got := parse(t, encode(t, loopClass(t)))
	code := got.FindMethod("count", "()V").Code
	code.Instructions = append(nops(5), code.Instructions...)

	code = parse(t, encode(t, got)).FindMethod("count", "()V").Code
	for i, ins := range code.Instructions {
		j, ok := ins.Imm.(classfile.JumpImm)
		if !ok {
			continue
		}
		// The instruction following the target label must be the same as before.
		next := -1
		for k, other := range code.Instructions {
			if other.Label() == j.Target {
				next = k + 1
			}
		}
		if next < 0 || next >= len(code.Instructions) {
			t.Fatalf("jump %d target not placed", i)
		}
		switch ins.Opcode {
		case classfile.OpIfIcmpge:
			if j.Target.Offset != 19 || code.Instructions[next].Opcode != classfile.OpReturn {
				t.Errorf("if_icmpge now targets %d (%s)", j.Target.Offset, code.Instructions[next])
			}
		case classfile.OpGoto:
			if j.Target.Offset != 7 || code.Instructions[next].Opcode != classfile.OpIload0 {
				t.Errorf("goto now targets %d (%s)", j.Target.Offset, code.Instructions[next])
			}
		}
	}
}

func TestGotoWidening(t *testing.T) {
	c := newClass(t, "Far")
	end := classfile.NewLabel()
	ins := []classfile.Instruction{{Opcode: classfile.OpGoto, Imm: classfile.JumpImm{Target: end}}}
	ins = append(ins, nops(33000)...)
	ins = append(ins, classfile.LabelInstruction(end), op(classfile.OpReturn))
	addMethod(t, c, classfile.AccStatic, "far", "()V", &classfile.Code{Instructions: ins})

	code := parse(t, encode(t, c)).FindMethod("far", "()V").Code
	ops := opcodes(code)
	if ops[0] != classfile.OpGotoW {
		t.Fatalf("first opcode = %s, want goto_w", classfile.OpName(ops[0]))
	}
	j := code.Instructions[0].Imm.(classfile.JumpImm)
	if j.Target.Offset != 5+33000 {
		t.Errorf("goto_w target = %d, want %d", j.Target.Offset, 5+33000)
	}
}

func TestConditionalBranchOverflow(t *testing.T) {
	c := newClass(t, "Far")
	end := classfile.NewLabel()
	ins := []classfile.Instruction{
		op(classfile.OpIconst0),
		{Opcode: classfile.OpIfeq, Imm: classfile.JumpImm{Target: end}},
	}
	ins = append(ins, nops(33000)...)
	ins = append(ins, classfile.LabelInstruction(end), op(classfile.OpReturn))
	addMethod(t, c, classfile.AccStatic, "far", "()V", &classfile.Code{Instructions: ins})

	_, err := c.Encode()
	if !errors.Is(err, errors.ErrEncodingOverflow) {
		t.Fatalf("expected ErrEncodingOverflow, got %v", err)
	}
	var e *errors.Error
	if !errors.As(err, &e) || e.Unit != "Far" {
		t.Errorf("error should name the class, got %v", err)
	}
}

func TestCodeTooLong(t *testing.T) {
	c := newClass(t, "Huge")
	ins := append(nops(70000), op(classfile.OpReturn))
	addMethod(t, c, classfile.AccStatic, "huge", "()V", &classfile.Code{Instructions: ins})

	if _, err := c.Encode(); !errors.Is(err, errors.ErrEncodingOverflow) {
		t.Fatalf("expected ErrEncodingOverflow, got %v", err)
	}
}

func TestLdcPromotion(t *testing.T) {
	c := newClass(t, "Consts")
	early, err := c.Pool.AddString("early")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 300; i++ {
		if _, err := c.Pool.AddInteger(int32(i)); err != nil {
			t.Fatal(err)
		}
	}
	late, err := c.Pool.AddString("late")
	if err != nil {
		t.Fatal(err)
	}
	if late <= 255 {
		t.Fatalf("late constant index %d should exceed 255", late)
	}
	addMethod(t, c, classfile.AccStatic, "m", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{
			{Opcode: classfile.OpLdc, Imm: classfile.ConstImm{Index: early}},
			op(classfile.OpPop),
			{Opcode: classfile.OpLdc, Imm: classfile.ConstImm{Index: late}},
			op(classfile.OpPop),
			op(classfile.OpReturn),
		},
	})

	code := parse(t, encode(t, c)).FindMethod("m", "()V").Code
	ops := opcodes(code)
	if ops[0] != classfile.OpLdc {
		t.Errorf("small index should stay ldc, got %s", classfile.OpName(ops[0]))
	}
	if ops[2] != classfile.OpLdcW {
		t.Errorf("large index should become ldc_w, got %s", classfile.OpName(ops[2]))
	}
}

func TestWideLocals(t *testing.T) {
	c := newClass(t, "Wide")
	addMethod(t, c, classfile.AccStatic, "m", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpIconst0),
			{Opcode: classfile.OpIstore, Imm: classfile.LocalImm{Index: 300}},
			{Opcode: classfile.OpIinc, Imm: classfile.IIncImm{Index: 300, Delta: 1000}},
			op(classfile.OpReturn),
		},
	})

	code := parse(t, encode(t, c)).FindMethod("m", "()V").Code
	store := code.Instructions[1]
	if imm, ok := store.Imm.(classfile.LocalImm); !ok || imm.Index != 300 || !imm.Wide {
		t.Errorf("istore decoded as %s %+v", store, store.Imm)
	}
	inc := code.Instructions[2]
	if imm, ok := inc.Imm.(classfile.IIncImm); !ok || imm.Index != 300 || imm.Delta != 1000 || !imm.Wide {
		t.Errorf("iinc decoded as %+v", inc.Imm)
	}
	if code.MaxLocals != 301 {
		t.Errorf("MaxLocals = %d, want 301", code.MaxLocals)
	}
}

func TestSwitchPaddingFollowsLayout(t *testing.T) {
	c := newClass(t, "Switch")
	a, b, def := classfile.NewLabel(), classfile.NewLabel(), classfile.NewLabel()
	addMethod(t, c, classfile.AccStatic, "pick", "(I)I", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpIload0),
			{Opcode: classfile.OpTableswitch, Imm: classfile.TableSwitchImm{
				Low: 1, High: 2, Targets: []*classfile.Label{a, b}, Default: def,
			}},
			classfile.LabelInstruction(a),
			op(classfile.OpIconst1),
			op(classfile.OpIreturn),
			classfile.LabelInstruction(b),
			op(classfile.OpIconst2),
			op(classfile.OpIreturn),
			classfile.LabelInstruction(def),
			op(classfile.OpIconst0),
			op(classfile.OpIreturn),
		},
	})

	for shift := 0; shift < 4; shift++ {
		got := parse(t, encode(t, c))
		code := got.FindMethod("pick", "(I)I").Code
		code.Instructions = append(nops(shift), code.Instructions...)
		code = parse(t, encode(t, got)).FindMethod("pick", "(I)I").Code

		var sw classfile.TableSwitchImm
		for _, ins := range code.Instructions {
			if imm, ok := ins.Imm.(classfile.TableSwitchImm); ok {
				sw = imm
			}
		}
		if len(sw.Targets) != 2 {
			t.Fatalf("shift %d: tableswitch lost its targets", shift)
		}
		// iload_0 at shift, tableswitch at shift+1.
		at := shift + 1
		pad := (4 - (at+1)%4) % 4
		first := at + 1 + pad + 12 + 8
		if sw.Targets[0].Offset != first {
			t.Errorf("shift %d: first target %d, want %d", shift, sw.Targets[0].Offset, first)
		}
		if sw.Targets[1].Offset != first+2 || sw.Default.Offset != first+4 {
			t.Errorf("shift %d: targets %d/%d", shift, sw.Targets[1].Offset, sw.Default.Offset)
		}
	}
}

func TestLookupSwitchRoundTrip(t *testing.T) {
	c := newClass(t, "Lookup")
	a, def := classfile.NewLabel(), classfile.NewLabel()
	addMethod(t, c, classfile.AccStatic, "pick", "(I)V", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpIload0),
			{Opcode: classfile.OpLookupswitch, Imm: classfile.LookupSwitchImm{
				Keys: []int32{-5, 1000}, Targets: []*classfile.Label{a, a}, Default: def,
			}},
			classfile.LabelInstruction(a),
			op(classfile.OpNop),
			classfile.LabelInstruction(def),
			op(classfile.OpReturn),
		},
	})
	data := encode(t, c)
	got := parse(t, data)
	if !bytes.Equal(encode(t, got), data) {
		t.Error("lookupswitch did not round trip")
	}
	code := got.FindMethod("pick", "(I)V").Code
	sw, ok := code.Instructions[1].Imm.(classfile.LookupSwitchImm)
	if !ok {
		t.Fatalf("instruction 1 is %s", code.Instructions[1])
	}
	if sw.Keys[0] != -5 || sw.Keys[1] != 1000 || sw.Targets[0] != sw.Targets[1] {
		t.Errorf("unexpected lookupswitch %+v", sw)
	}
}

func TestComputeMaxs(t *testing.T) {
	pool := classfile.NewConstantPool()
	hash, err := pool.AddMethodref("java/lang/Object", "hashCode", "()I", false)
	if err != nil {
		t.Fatal(err)
	}
	concat, err := pool.AddMethodref("Util", "join", "(Ljava/lang/String;Ljava/lang/String;)V", false)
	if err != nil {
		t.Fatal(err)
	}
	s, err := pool.AddString("s")
	if err != nil {
		t.Fatal(err)
	}

	start, end, handler := classfile.NewLabel(), classfile.NewLabel(), classfile.NewLabel()
	from, to := classfile.NewLabel(), classfile.NewLabel()

	utf8 := func(s string) uint16 {
		i, err := pool.AddUTF8(s)
		if err != nil {
			t.Fatal(err)
		}
		return i
	}
	varName, longDesc, sig := utf8("v"), utf8("J"), utf8("TT;")
	debugOnly := []classfile.Instruction{
		classfile.LabelInstruction(from),
		op(classfile.OpReturn),
		classfile.LabelInstruction(to),
	}

	tests := []struct {
		name       string
		static     bool
		desc       string
		code       *classfile.Code
		wantStack  uint16
		wantLocals uint16
	}{
		{
			name:   "wide arithmetic",
			static: true,
			desc:   "(JD)J",
			code: &classfile.Code{Instructions: []classfile.Instruction{
				op(classfile.OpLload0), op(classfile.OpLload0), op(classfile.OpLadd),
				op(classfile.OpL2d), op(classfile.OpDload2), op(classfile.OpDadd),
				op(classfile.OpD2l), op(classfile.OpLreturn),
			}},
			wantStack:  4,
			wantLocals: 4,
		},
		{
			name:   "static call arguments",
			static: true,
			desc:   "()V",
			code: &classfile.Code{Instructions: []classfile.Instruction{
				{Opcode: classfile.OpLdc, Imm: classfile.ConstImm{Index: s}},
				{Opcode: classfile.OpLdc, Imm: classfile.ConstImm{Index: s}},
				{Opcode: classfile.OpInvokestatic, Imm: classfile.RefImm{Index: concat}},
				op(classfile.OpReturn),
			}},
			wantStack:  2,
			wantLocals: 0,
		},
		{
			name: "exception handler",
			desc: "()V",
			code: &classfile.Code{
				Instructions: []classfile.Instruction{
					classfile.LabelInstruction(start),
					op(classfile.OpAload0),
					{Opcode: classfile.OpInvokevirtual, Imm: classfile.RefImm{Index: hash}},
					op(classfile.OpPop),
					classfile.LabelInstruction(end),
					op(classfile.OpReturn),
					classfile.LabelInstruction(handler),
					op(classfile.OpAstore1),
					op(classfile.OpReturn),
				},
				Handlers: []classfile.ExceptionHandler{{Start: start, End: end, Handler: handler}},
			},
			wantStack:  1,
			wantLocals: 2,
		},
		{
			name:   "long in local variable table",
			static: true,
			desc:   "()V",
			code: &classfile.Code{
				Instructions: debugOnly,
				LocalVars:    []classfile.LocalVar{{Start: from, End: to, Name: varName, Descriptor: longDesc, Index: 3}},
			},
			wantStack:  0,
			wantLocals: 5,
		},
		{
			name:   "local variable type table",
			static: true,
			desc:   "()V",
			code: &classfile.Code{
				Instructions:  debugOnly,
				LocalVars:     []classfile.LocalVar{{Start: from, End: to, Name: varName, Descriptor: longDesc, Index: 1}},
				LocalVarTypes: []classfile.LocalVar{{Start: from, End: to, Name: varName, Descriptor: sig, Index: 6}},
			},
			wantStack:  0,
			wantLocals: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.code.ComputeMaxs(pool, tt.static, tt.desc); err != nil {
				t.Fatalf("ComputeMaxs: %v", err)
			}
			if tt.code.MaxStack != tt.wantStack {
				t.Errorf("MaxStack = %d, want %d", tt.code.MaxStack, tt.wantStack)
			}
			if tt.code.MaxLocals != tt.wantLocals {
				t.Errorf("MaxLocals = %d, want %d", tt.code.MaxLocals, tt.wantLocals)
			}
		})
	}
}

func branchWithFrames(t *testing.T) *classfile.Class {
	t.Helper()
	c := newClass(t, "Frames")
	l1, l2 := classfile.NewLabel(), classfile.NewLabel()
	addMethod(t, c, classfile.AccStatic, "m", "(I)V", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpIload0),
			{Opcode: classfile.OpIfeq, Imm: classfile.JumpImm{Target: l1}},
			op(classfile.OpIconst1),
			op(classfile.OpIstore1),
			{Opcode: classfile.OpGoto, Imm: classfile.JumpImm{Target: l2}},
			classfile.LabelInstruction(l1),
			op(classfile.OpIconst2),
			op(classfile.OpIstore1),
			classfile.LabelInstruction(l2),
			op(classfile.OpReturn),
		},
		Frames: []classfile.Frame{
			{Label: l1, Kind: classfile.FrameSame},
			{Label: l2, Kind: classfile.FrameAppend, Locals: []classfile.VerificationType{{Tag: classfile.VTInteger}}},
		},
	})
	return c
}

func TestStackMapRoundTrip(t *testing.T) {
	code := parse(t, encode(t, branchWithFrames(t))).FindMethod("m", "(I)V").Code
	if len(code.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(code.Frames))
	}
	if f := code.Frames[0]; f.Kind != classfile.FrameSame || f.Extended || f.Label.Offset != 9 {
		t.Errorf("frame 0 = %+v at %d", f, f.Label.Offset)
	}
	f := code.Frames[1]
	if f.Kind != classfile.FrameAppend || f.Label.Offset != 11 || len(f.Locals) != 1 || f.Locals[0].Tag != classfile.VTInteger {
		t.Errorf("frame 1 = %+v at %d", f, f.Label.Offset)
	}
}

func TestStackMapExtendsLongDeltas(t *testing.T) {
	got := parse(t, encode(t, branchWithFrames(t)))
	code := got.FindMethod("m", "(I)V").Code
	code.Instructions = append(nops(70), code.Instructions...)

	code = parse(t, encode(t, got)).FindMethod("m", "(I)V").Code
	f := code.Frames[0]
	if f.Kind != classfile.FrameSame || !f.Extended || f.Label.Offset != 79 {
		t.Errorf("frame 0 should be same_frame_extended at 79, got %+v at %d", f, f.Label.Offset)
	}
	if code.Frames[1].Label.Offset != 81 {
		t.Errorf("frame 1 at %d, want 81", code.Frames[1].Label.Offset)
	}
}

func TestUninitializedFollowsNew(t *testing.T) {
	c := newClass(t, "Alloc")
	ctor, err := c.Pool.AddMethodref("java/lang/Object", "<init>", "()V", false)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := c.Pool.AddClass("java/lang/Object")
	if err != nil {
		t.Fatal(err)
	}
	newAt, after := classfile.NewLabel(), classfile.NewLabel()
	addMethod(t, c, classfile.AccStatic, "make", "(Z)Ljava/lang/Object;", &classfile.Code{
		Instructions: []classfile.Instruction{
			classfile.LabelInstruction(newAt),
			{Opcode: classfile.OpNew, Imm: classfile.RefImm{Index: obj}},
			op(classfile.OpDup),
			op(classfile.OpIload0),
			{Opcode: classfile.OpIfeq, Imm: classfile.JumpImm{Target: after}},
			classfile.LabelInstruction(after),
			{Opcode: classfile.OpInvokespecial, Imm: classfile.RefImm{Index: ctor}},
			op(classfile.OpAreturn),
		},
		Frames: []classfile.Frame{{
			Label:  after,
			Kind:   classfile.FrameFull,
			Locals: []classfile.VerificationType{{Tag: classfile.VTInteger}},
			Stack: []classfile.VerificationType{
				{Tag: classfile.VTUninitialized, New: newAt},
				{Tag: classfile.VTUninitialized, New: newAt},
			},
		}},
	})

	got := parse(t, encode(t, c))
	code := got.FindMethod("make", "(Z)Ljava/lang/Object;").Code
	code.Instructions = append(nops(3), code.Instructions...)
	code = parse(t, encode(t, got)).FindMethod("make", "(Z)Ljava/lang/Object;").Code

	vt := code.Frames[0].Stack[0]
	if vt.Tag != classfile.VTUninitialized || vt.New.Offset != 3 {
		t.Errorf("uninitialized entry points at %d, want 3", vt.New.Offset)
	}
}

func TestLineNumbersFollowInstructions(t *testing.T) {
	c := newClass(t, "Lines")
	l := classfile.NewLabel()
	addMethod(t, c, classfile.AccStatic, "m", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpNop),
			classfile.LabelInstruction(l),
			op(classfile.OpReturn),
		},
		LineNumbers: []classfile.LineNumber{{Start: l, Line: 42}},
	})
	got := parse(t, encode(t, c))
	code := got.FindMethod("m", "()V").Code
	code.Instructions = append(nops(2), code.Instructions...)

	code = parse(t, encode(t, got)).FindMethod("m", "()V").Code
	if len(code.LineNumbers) != 1 {
		t.Fatalf("expected 1 line number, got %d", len(code.LineNumbers))
	}
	if ln := code.LineNumbers[0]; ln.Line != 42 || ln.Start.Offset != 3 {
		t.Errorf("line number = %d at %d, want 42 at 3", ln.Line, ln.Start.Offset)
	}
}

func TestTypeAnnotationsDroppedOnlyWhenMoved(t *testing.T) {
	c := newClass(t, "Annotated")
	addMethod(t, c, classfile.AccStatic, "m", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{op(classfile.OpReturn)},
		Attributes: []classfile.Attribute{
			{Name: classfile.AttrRuntimeVisibleTypeAnnotations, Data: []byte{0x00, 0x00}},
			{Name: "Custom", Data: []byte{0x01}},
		},
	})

	got := parse(t, encode(t, c))
	names := func(code *classfile.Code) []string {
		var out []string
		for _, a := range code.Attributes {
			out = append(out, a.Name)
		}
		return out
	}

	kept := parse(t, encode(t, got)).FindMethod("m", "()V").Code
	if n := names(kept); len(n) != 2 || n[0] != classfile.AttrRuntimeVisibleTypeAnnotations {
		t.Errorf("unmoved code should keep type annotations, got %v", n)
	}

	code := got.FindMethod("m", "()V").Code
	code.Instructions = append(nops(1), code.Instructions...)
	moved := parse(t, encode(t, got)).FindMethod("m", "()V").Code
	if n := names(moved); len(n) != 1 || n[0] != "Custom" {
		t.Errorf("moved code should drop type annotations only, got %v", n)
	}
}

func TestEncodeRejectsUnplacedLabel(t *testing.T) {
	c := newClass(t, "Dangling")
	addMethod(t, c, classfile.AccStatic, "m", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{
			{Opcode: classfile.OpGoto, Imm: classfile.JumpImm{Target: classfile.NewLabel()}},
		},
	})
	if _, err := c.Encode(); err == nil {
		t.Fatal("expected error for a jump to an unplaced label")
	}
}

func TestEncodeRejectsMismatchedImmediate(t *testing.T) {
	c := newClass(t, "Mismatch")
	addMethod(t, c, classfile.AccStatic, "m", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{
			{Opcode: classfile.OpReturn, Imm: classfile.ConstImm{Index: 1}},
		},
	})
	if _, err := c.Encode(); err == nil {
		t.Fatal("expected error for return carrying a constant index")
	}
}
