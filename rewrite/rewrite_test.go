package rewrite_test

import (
	"bytes"
	"reflect"
	"sync"
	"testing"

	"github.com/wippyai/jvm-rewrite/classfile"
	"github.com/wippyai/jvm-rewrite/errors"
	"github.com/wippyai/jvm-rewrite/rewrite"
)

const (
	executors   = "java/util/concurrent/Executors"
	namedPools  = "com/example/NamedPools"
	fixedDesc   = "(I)Ljava/util/concurrent/ExecutorService;"
	fixedNamed  = "(ILjava/lang/String;)Ljava/util/concurrent/ExecutorService;"
	singleDesc  = "()Ljava/util/concurrent/ExecutorService;"
	singleNamed = "(Ljava/lang/String;)Ljava/util/concurrent/ExecutorService;"
)

func table(t *testing.T) *rewrite.RuleTable {
	t.Helper()
	tbl, err := rewrite.NewRuleTable([]rewrite.Rule{
		{
			Target:      rewrite.MethodRef{Owner: executors, Name: "newFixedThreadPool", Descriptor: fixedDesc},
			Replacement: rewrite.MethodRef{Owner: namedPools, Name: "newFixedThreadPool", Descriptor: fixedNamed},
		},
		{
			Target:      rewrite.MethodRef{Owner: executors, Name: "newSingleThreadExecutor", Descriptor: singleDesc},
			Replacement: rewrite.MethodRef{Owner: namedPools, Name: "newSingleThreadExecutor", Descriptor: singleNamed},
		},
	})
	if err != nil {
		t.Fatalf("NewRuleTable: %v", err)
	}
	return tbl
}

func invoke(t *testing.T, c *classfile.Class, owner, name, desc string) classfile.Instruction {
	t.Helper()
	idx, err := c.Pool.AddMethodref(owner, name, desc, false)
	if err != nil {
		t.Fatal(err)
	}
	return classfile.Instruction{Opcode: classfile.OpInvokestatic, Imm: classfile.RefImm{Index: idx}}
}

func op(o byte) classfile.Instruction {
	return classfile.Instruction{Opcode: o}
}

// serviceClass builds com/example/app/Service with:
//
//	static ExecutorService pool()      Executors.newFixedThreadPool(4)
//	static ExecutorService single()    Executors.newSingleThreadExecutor()
//	static ExecutorService cached()    Executors.newCachedThreadPool()
//	static int add(int, int)
//	static Thread spawn()              new Thread()
func serviceClass(t *testing.T) []byte {
	t.Helper()
	c, err := classfile.NewClass("com/example/app/Service", "java/lang/Object")
	if err != nil {
		t.Fatal(err)
	}
	thread, err := c.Pool.AddClass("java/lang/Thread")
	if err != nil {
		t.Fatal(err)
	}
	threadInit, err := c.Pool.AddMethodref("java/lang/Thread", "<init>", "()V", false)
	if err != nil {
		t.Fatal(err)
	}

	methods := []struct {
		name, desc string
		code       []classfile.Instruction
	}{
		{"pool", singleDesc, []classfile.Instruction{
			op(classfile.OpIconst4),
			invoke(t, c, executors, "newFixedThreadPool", fixedDesc),
			op(classfile.OpAreturn),
		}},
		{"single", singleDesc, []classfile.Instruction{
			invoke(t, c, executors, "newSingleThreadExecutor", singleDesc),
			op(classfile.OpAreturn),
		}},
		{"cached", singleDesc, []classfile.Instruction{
			invoke(t, c, executors, "newCachedThreadPool", singleDesc),
			op(classfile.OpAreturn),
		}},
		{"add", "(II)I", []classfile.Instruction{
			op(classfile.OpIload0),
			op(classfile.OpIload1),
			op(classfile.OpIadd),
			op(classfile.OpIreturn),
		}},
		{"spawn", "()Ljava/lang/Thread;", []classfile.Instruction{
			{Opcode: classfile.OpNew, Imm: classfile.RefImm{Index: thread}},
			op(classfile.OpDup),
			{Opcode: classfile.OpInvokespecial, Imm: classfile.RefImm{Index: threadInit}},
			op(classfile.OpAreturn),
		}},
	}
	for _, m := range methods {
		if _, err := c.AddMethod(classfile.AccStatic, m.name, m.desc, &classfile.Code{Instructions: m.code}); err != nil {
			t.Fatal(err)
		}
	}

	data, err := c.Encode()
	if err != nil {
		t.Fatal(err)
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

func realOps(code *classfile.Code) []classfile.Instruction {
	var out []classfile.Instruction
	for _, ins := range code.Instructions {
		if !ins.IsLabel() {
			out = append(out, ins)
		}
	}
	return out
}

func member(t *testing.T, c *classfile.Class, ins classfile.Instruction) classfile.MemberRef {
	t.Helper()
	idx, _ := ins.PoolIndex()
	ref, err := c.Pool.Member(idx)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func pushed(t *testing.T, c *classfile.Class, ins classfile.Instruction) string {
	t.Helper()
	idx, _ := ins.PoolIndex()
	k, ok := c.Pool.Get(idx)
	if !ok || k.Tag != classfile.TagString {
		t.Fatalf("ldc operand %d is not a string", idx)
	}
	s, err := c.Pool.UTF8(k.Ref1)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTransformTargetedRewrite(t *testing.T) {
	out, err := rewrite.Transform(serviceClass(t), rewrite.Config{Rules: table(t)})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	c := parse(t, out)
	if c.Name() != "com/example/app/Service" {
		t.Errorf("class name changed to %q", c.Name())
	}

	tests := []struct {
		method string
		name   string
		desc   string
		stack  uint16
	}{
		{"pool", "newFixedThreadPool", fixedNamed, 2},
		{"single", "newSingleThreadExecutor", singleNamed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			code := c.FindMethod(tt.method, singleDesc).Code
			ins := realOps(code)
			call := -1
			for i, in := range ins {
				if in.Opcode == classfile.OpInvokestatic {
					call = i
				}
			}
			if call < 1 {
				t.Fatalf("no rewritten call in %v", ins)
			}
			if ins[call-1].Opcode != classfile.OpLdc {
				t.Fatalf("instruction before call is %s", classfile.OpName(ins[call-1].Opcode))
			}
			if s := pushed(t, c, ins[call-1]); s != "Service" {
				t.Errorf("pushed %q, want Service", s)
			}
			ref := member(t, c, ins[call])
			if ref.Owner != namedPools || ref.Name != tt.name || ref.Descriptor != tt.desc {
				t.Errorf("call = %+v", ref)
			}
			if code.MaxStack != tt.stack {
				t.Errorf("MaxStack = %d, want %d", code.MaxStack, tt.stack)
			}
		})
	}
}

// sameInstruction compares opcode and operand. Pool operands must keep both
// their index and the constant behind it.
func sameInstruction(t *testing.T, inPool, outPool *classfile.ConstantPool, a, b classfile.Instruction) bool {
	t.Helper()
	if a.Opcode != b.Opcode {
		return false
	}
	ai, aok := a.PoolIndex()
	bi, bok := b.PoolIndex()
	if aok || bok {
		if ai != bi {
			return false
		}
		ac, _ := inPool.Get(ai)
		bc, _ := outPool.Get(bi)
		return reflect.DeepEqual(ac, bc)
	}
	return reflect.DeepEqual(a.Imm, b.Imm)
}

func TestTransformPreservesNonTargets(t *testing.T) {
	in := parse(t, serviceClass(t))
	res, err := rewrite.TransformReport(serviceClass(t), rewrite.Config{Rules: table(t)})
	if err != nil {
		t.Fatal(err)
	}
	got := parse(t, res.Output)

	tests := []struct {
		method string
		desc   string
		// skip drops the inserted push and the redirected call.
		skip map[int]bool
	}{
		{"pool", singleDesc, map[int]bool{1: true, 2: true}},
		{"cached", singleDesc, nil},
		{"add", "(II)I", nil},
		{"spawn", "()Ljava/lang/Thread;", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			before := realOps(in.FindMethod(tt.method, tt.desc).Code)
			var after []classfile.Instruction
			for i, ins := range realOps(got.FindMethod(tt.method, tt.desc).Code) {
				if !tt.skip[i] {
					after = append(after, ins)
				}
			}
			if tt.skip != nil {
				before = append(before[:1:1], before[2:]...)
			}
			if len(before) != len(after) {
				t.Fatalf("%d instructions became %d", len(before), len(after))
			}
			for i := range before {
				if !sameInstruction(t, in.Pool, got.Pool, before[i], after[i]) {
					t.Errorf("[%d]: %v became %v", i, before[i], after[i])
				}
			}
		})
	}

	cached := realOps(got.FindMethod("cached", singleDesc).Code)
	if ref := member(t, got, cached[0]); ref.Owner != executors || ref.Name != "newCachedThreadPool" {
		t.Errorf("non-target call changed to %+v", ref)
	}
	spawn := realOps(got.FindMethod("spawn", "()Ljava/lang/Thread;").Code)
	if ref := member(t, got, spawn[2]); ref.Owner != "java/lang/Thread" || ref.Name != "<init>" {
		t.Errorf("constructor call changed to %+v", ref)
	}
	if len(res.Rewrites) != 2 || len(res.Diagnostics) != 1 {
		t.Errorf("rewrites = %d, diagnostics = %d", len(res.Rewrites), len(res.Diagnostics))
	}
}

func TestTransformIdempotent(t *testing.T) {
	cfg := rewrite.Config{Rules: table(t)}
	once, err := rewrite.Transform(serviceClass(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := rewrite.TransformReport(once, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if twice.Changed || len(twice.Rewrites) != 0 {
		t.Errorf("second run rewrote %v", twice.Rewrites)
	}
	if !bytes.Equal(once, twice.Output) {
		t.Error("second run is not a fixed point")
	}
}

func TestTransformReport(t *testing.T) {
	res, err := rewrite.TransformReport(serviceClass(t), rewrite.Config{Rules: table(t)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Class != "com/example/app/Service" || !res.Changed {
		t.Errorf("result = %+v", res)
	}
	if len(res.Rewrites) != 2 {
		t.Fatalf("rewrites = %d, want 2", len(res.Rewrites))
	}
	if r := res.Rewrites[0]; r.Method != "pool"+singleDesc || r.Origin != "Service" || r.To.Owner != namedPools {
		t.Errorf("first rewrite = %+v", r)
	}
}

func TestScanMatchesTransform(t *testing.T) {
	data := serviceClass(t)
	cfg := rewrite.Config{Rules: table(t)}
	found, err := rewrite.Scan(data, cfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := rewrite.TransformReport(data, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != len(res.Rewrites) {
		t.Fatalf("Scan found %d sites, Transform rewrote %d", len(found), len(res.Rewrites))
	}
	for i := range found {
		if found[i] != res.Rewrites[i] {
			t.Errorf("site %d: %v vs %v", i, found[i], res.Rewrites[i])
		}
	}
}

func TestSimpleName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"com/example/Foo", "Foo"},
		{"Foo", "Foo"},
		{"a/b/Outer$Inner", "Outer$Inner"},
	}
	for _, tt := range tests {
		if got := rewrite.SimpleName(tt.in); got != tt.want {
			t.Errorf("SimpleName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransformRejectsMalformed(t *testing.T) {
	data := serviceClass(t)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", data[:len(data)/2]},
		{"not a class", []byte("PK\x03\x04 definitely a zip")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := rewrite.Transform(tt.data, rewrite.Config{Rules: table(t)})
			if !errors.Is(err, errors.ErrMalformedUnit) {
				t.Fatalf("expected ErrMalformedUnit, got %v", err)
			}
			if out != nil {
				t.Error("partial output returned")
			}
		})
	}
}

func TestTransformRequiresRules(t *testing.T) {
	if _, err := rewrite.Transform(serviceClass(t), rewrite.Config{}); err == nil {
		t.Fatal("expected error without a rule table")
	}
}

func TestAllocationsOnlyDiagnosed(t *testing.T) {
	c, err := classfile.NewClass("com/example/Spawn", "java/lang/Object")
	if err != nil {
		t.Fatal(err)
	}
	thread, err := c.Pool.AddClass("java/lang/Thread")
	if err != nil {
		t.Fatal(err)
	}
	ctor, err := c.Pool.AddMethodref("java/lang/Thread", "<init>", "()V", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddMethod(classfile.AccStatic, "make", "()Ljava/lang/Thread;", &classfile.Code{
		Instructions: []classfile.Instruction{
			{Opcode: classfile.OpNew, Imm: classfile.RefImm{Index: thread}},
			op(classfile.OpDup),
			{Opcode: classfile.OpInvokespecial, Imm: classfile.RefImm{Index: ctor}},
			op(classfile.OpAreturn),
		},
	}); err != nil {
		t.Fatal(err)
	}
	data, err := c.Encode()
	if err != nil {
		t.Fatal(err)
	}

	res, err := rewrite.TransformReport(data, rewrite.Config{Rules: table(t)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed || !bytes.Equal(res.Output, data) {
		t.Error("allocation must not change the class")
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != rewrite.DiagUnsupportedHookPoint {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestTransformConcurrentSharedTable(t *testing.T) {
	cfg := rewrite.Config{Rules: table(t)}
	data := serviceClass(t)
	want, err := rewrite.Transform(data, cfg)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := rewrite.Transform(data, cfg)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, want) {
				errs <- errors.InvalidInput(errors.PhaseRewrite, "nondeterministic output")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func FuzzTransform(f *testing.F) {
	tbl, err := rewrite.NewRuleTable([]rewrite.Rule{{
		Target:      rewrite.MethodRef{Owner: executors, Name: "newFixedThreadPool", Descriptor: fixedDesc},
		Replacement: rewrite.MethodRef{Owner: namedPools, Name: "newFixedThreadPool", Descriptor: fixedNamed},
	}})
	if err != nil {
		f.Fatal(err)
	}
	f.Add([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		// Fuzzing should not panic
		out, err := rewrite.Transform(data, rewrite.Config{Rules: tbl})
		if err != nil {
			return
		}
		again, err := rewrite.Transform(out, rewrite.Config{Rules: tbl})
		if err != nil {
			t.Fatalf("output does not transform again: %v", err)
		}
		if !bytes.Equal(out, again) {
			t.Fatal("output is not a fixed point")
		}
	})
}
