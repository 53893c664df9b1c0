package engine

import (
	"testing"

	"github.com/wippyai/jvm-rewrite/classfile"
)

const (
	execOwner   = "com/example/Executors"
	submitDesc  = "(Ljava/lang/Runnable;)V"
	poolOwner   = "com/example/OptimizedThreadPool"
	submitDesc2 = "(Ljava/lang/Runnable;Ljava/lang/String;)V"
)

func submitRule() Rule {
	return Rule{
		Target:      MethodRef{Owner: execOwner, Name: "submit", Descriptor: submitDesc},
		Replacement: MethodRef{Owner: poolOwner, Name: "submitNamed", Descriptor: submitDesc2},
	}
}

func testEngine(t *testing.T, hook ConstructorHook) *Engine {
	t.Helper()
	table, err := NewRuleTable([]Rule{submitRule()})
	if err != nil {
		t.Fatalf("NewRuleTable: %v", err)
	}
	return New(Config{Rules: table, Hook: hook})
}

func op(o byte) classfile.Instruction {
	return classfile.Instruction{Opcode: o}
}

func methodref(t *testing.T, c *classfile.Class, owner, name, desc string, itf bool) uint16 {
	t.Helper()
	idx, err := c.Pool.AddMethodref(owner, name, desc, itf)
	if err != nil {
		t.Fatalf("AddMethodref: %v", err)
	}
	return idx
}

func invokestatic(idx uint16) classfile.Instruction {
	return classfile.Instruction{Opcode: classfile.OpInvokestatic, Imm: classfile.RefImm{Index: idx}}
}

// workerClass builds com/example/Worker with a static run()V that submits
// null to Executors.submit.
func workerClass(t *testing.T, itf bool) *classfile.Class {
	t.Helper()
	c, err := classfile.NewClass("com/example/Worker", "java/lang/Object")
	if err != nil {
		t.Fatal(err)
	}
	call := methodref(t, c, execOwner, "submit", submitDesc, itf)
	addMethod(t, c, classfile.AccStatic, "run", "()V", &classfile.Code{
		Instructions: []classfile.Instruction{
			op(classfile.OpAconstNull),
			invokestatic(call),
			op(classfile.OpReturn),
		},
	})
	return c
}

func addMethod(t *testing.T, c *classfile.Class, access uint16, name, desc string, code *classfile.Code) *classfile.Method {
	t.Helper()
	m, err := c.AddMethod(access, name, desc, code)
	if err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	return m
}

func encodeClass(t *testing.T, c *classfile.Class) []byte {
	t.Helper()
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func parseClass(t *testing.T, data []byte) *classfile.Class {
	t.Helper()
	c, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func opcodes(code *classfile.Code) []byte {
	var out []byte
	for _, ins := range code.Instructions {
		if !ins.IsLabel() {
			out = append(out, ins.Opcode)
		}
	}
	return out
}

// callAt returns the method reference of the n-th invoke in code.
func callAt(t *testing.T, c *classfile.Class, code *classfile.Code, n int) classfile.MemberRef {
	t.Helper()
	for _, ins := range code.Instructions {
		if !ins.IsInvoke() {
			continue
		}
		if n == 0 {
			idx, _ := ins.PoolIndex()
			ref, err := c.Pool.Member(idx)
			if err != nil {
				t.Fatalf("Member: %v", err)
			}
			return ref
		}
		n--
	}
	t.Fatalf("no invoke #%d", n)
	return classfile.MemberRef{}
}

// stringAt returns the string pushed by the ldc instruction ins.
func stringAt(t *testing.T, c *classfile.Class, ins classfile.Instruction) string {
	t.Helper()
	idx, ok := ins.PoolIndex()
	if !ok {
		t.Fatalf("%v has no pool operand", ins)
	}
	k, ok := c.Pool.Get(idx)
	if !ok || k.Tag != classfile.TagString {
		t.Fatalf("constant %d is not a string", idx)
	}
	s, err := c.Pool.UTF8(k.Ref1)
	if err != nil {
		t.Fatal(err)
	}
	return s
}
