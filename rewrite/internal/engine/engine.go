package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/jvm-rewrite/classfile"
	"github.com/wippyai/jvm-rewrite/errors"
)

// Config configures the engine.
type Config struct {
	Rules *RuleTable
	Hook  ConstructorHook
}

// AllocationSite is a `new` paired with the invokespecial <init> that
// initialises the object it created.
type AllocationSite struct {
	Method      *classfile.Method
	Constructor MethodRef
	Class       string
	New         int
	Init        int
	Line        int
}

// ConstructorHook is offered every allocation site. Returning no edits
// leaves the site untouched.
type ConstructorHook interface {
	Allocation(c *classfile.Class, site AllocationSite) ([]Edit, error)
}

// NoopHook leaves every allocation site untouched.
type NoopHook struct{}

func (NoopHook) Allocation(*classfile.Class, AllocationSite) ([]Edit, error) {
	return nil, nil
}

// EditKind selects how an Edit is materialised.
type EditKind int

const (
	// EditRedirect points a static call at Rule.Replacement and pushes
	// Origin right before it.
	EditRedirect EditKind = iota
	// EditInsert places Insert before the instruction at Index and, if
	// Replace is set, substitutes it for that instruction.
	EditInsert
)

// Edit is a deferred change to one instruction of one method. Index is the
// position in the instruction slice as seen by the scan.
type Edit struct {
	Method    *classfile.Method
	Replace   *classfile.Instruction
	Rule      Rule
	Origin    string
	Insert    []classfile.Instruction
	Index     int
	Kind      EditKind
	Interface bool
}

// Rewrite describes one redirected call site.
type Rewrite struct {
	Method    string
	Origin    string
	From      MethodRef
	To        MethodRef
	Line      int
	Interface bool
}

func (r Rewrite) String() string {
	return fmt.Sprintf("%s: %s -> %s", r.Method, r.From, r.To)
}

// DiagnosticKind classifies a non-fatal finding.
type DiagnosticKind string

const DiagUnsupportedHookPoint DiagnosticKind = "unsupported_hook_point"

// Diagnostic is a non-fatal finding recorded during the scan.
type Diagnostic struct {
	Kind   DiagnosticKind
	Method string
	Detail string
	Line   int
}

// Err converts the diagnostic into a structured error for reporting.
func (d Diagnostic) Err(unit string) error {
	return errors.UnsupportedHookPoint(unit, []string{d.Method}, d.Detail)
}

// Plan is the output of the scan phase.
type Plan struct {
	Edits       []Edit
	Rewrites    []Rewrite
	Diagnostics []Diagnostic
}

// Result is the outcome of transforming one class.
type Result struct {
	Class       string
	Output      []byte
	Rewrites    []Rewrite
	Diagnostics []Diagnostic
	Changed     bool
}

// Engine redirects static call sites according to a rule table.
type Engine struct {
	rules *RuleTable
	hook  ConstructorHook
}

// New creates an engine. A nil hook means NoopHook.
func New(cfg Config) *Engine {
	hook := cfg.Hook
	if hook == nil {
		hook = NoopHook{}
	}
	return &Engine{rules: cfg.Rules, hook: hook}
}

// Transform decodes data, rewrites it and re-encodes it. When nothing
// matched the input slice is returned as the output.
func (e *Engine) Transform(data []byte) (*Result, error) {
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}

	plan, err := e.Scan(c)
	if err != nil {
		return nil, errors.WithUnit(err, c.Name())
	}

	res := &Result{
		Class:       c.Name(),
		Rewrites:    plan.Rewrites,
		Diagnostics: plan.Diagnostics,
	}
	if len(plan.Edits) == 0 {
		res.Output = data
		return res, nil
	}

	if err := e.Apply(c, plan); err != nil {
		return nil, errors.WithUnit(err, c.Name())
	}
	out, err := c.Encode()
	if err != nil {
		return nil, err
	}
	res.Output = out
	res.Changed = true
	return res, nil
}

// SimpleName returns the last segment of an internal class name.
func SimpleName(internal string) string {
	if i := strings.LastIndexByte(internal, '/'); i >= 0 {
		return internal[i+1:]
	}
	return internal
}

// Scan walks every method and collects edits without touching the class.
func (e *Engine) Scan(c *classfile.Class) (*Plan, error) {
	plan := &Plan{}
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		if err := e.scanMethod(c, m, plan); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

type pendingNew struct {
	class string
	index int
	line  int
}

func (e *Engine) scanMethod(c *classfile.Class, m *classfile.Method, plan *Plan) error {
	lines := make(map[*classfile.Label]int, len(m.Code.LineNumbers))
	for _, ln := range m.Code.LineNumbers {
		lines[ln.Start] = int(ln.Line)
	}

	where := m.Name + m.Descriptor
	origin := SimpleName(c.Name())
	line := 0
	var pending []pendingNew

	for i, ins := range m.Code.Instructions {
		if ins.IsLabel() {
			if l, ok := lines[ins.Label()]; ok {
				line = l
			}
			continue
		}

		switch Classify(ins, c.Pool) {
		case CategoryStaticCall:
			ref, err := memberAt(c, ins, where, i)
			if err != nil {
				return err
			}
			if !e.rules.HasOwner(ref.Owner) {
				continue
			}
			Logger().Debug("static call on target owner",
				zap.String("class", c.Name()),
				zap.String("method", where),
				zap.String("owner", ref.Owner),
				zap.String("name", ref.Name),
				zap.String("desc", ref.Descriptor),
				zap.Bool("itf", ref.Interface))

			rule, ok := e.rules.Lookup(ref.Owner, ref.Name, ref.Descriptor)
			if !ok {
				continue
			}
			plan.Edits = append(plan.Edits, Edit{
				Kind:      EditRedirect,
				Method:    m,
				Index:     i,
				Rule:      rule,
				Origin:    origin,
				Interface: ref.Interface,
			})
			plan.Rewrites = append(plan.Rewrites, Rewrite{
				Method:    where,
				Origin:    origin,
				From:      rule.Target,
				To:        rule.Replacement,
				Line:      line,
				Interface: ref.Interface,
			})

		case CategoryAllocation:
			idx, _ := ins.PoolIndex()
			name, err := c.Pool.ClassName(idx)
			if err != nil {
				return badOperand(where, i, err)
			}
			pending = append(pending, pendingNew{class: name, index: i, line: line})

		case CategoryConstructorCall:
			ref, err := memberAt(c, ins, where, i)
			if err != nil {
				return err
			}
			// Innermost matching allocation first; unmatched calls are
			// super() or this() chaining and are not allocations.
			for j := len(pending) - 1; j >= 0; j-- {
				if pending[j].class != ref.Owner {
					continue
				}
				site := AllocationSite{
					Method:      m,
					Constructor: MethodRef{Owner: ref.Owner, Name: ref.Name, Descriptor: ref.Descriptor},
					Class:       ref.Owner,
					New:         pending[j].index,
					Init:        i,
					Line:        pending[j].line,
				}
				pending = append(pending[:j], pending[j+1:]...)
				if err := e.offer(c, site, plan); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

func (e *Engine) offer(c *classfile.Class, site AllocationSite, plan *Plan) error {
	where := site.Method.Name + site.Method.Descriptor
	edits, err := e.hook.Allocation(c, site)
	if err != nil {
		return fmt.Errorf("constructor hook for %s in %s: %w", site.Class, where, err)
	}
	if len(edits) == 0 {
		d := Diagnostic{
			Kind:   DiagUnsupportedHookPoint,
			Method: where,
			Detail: "allocation of " + site.Class + " has no hook behavior",
			Line:   site.Line,
		}
		plan.Diagnostics = append(plan.Diagnostics, d)
		Logger().Debug("unsupported hook point",
			zap.String("class", c.Name()),
			zap.String("method", where),
			zap.String("allocates", site.Class))
		return nil
	}
	for _, ed := range edits {
		if ed.Method == nil {
			ed.Method = site.Method
		}
		ed.Kind = EditInsert
		plan.Edits = append(plan.Edits, ed)
	}
	return nil
}

func memberAt(c *classfile.Class, ins classfile.Instruction, where string, i int) (classfile.MemberRef, error) {
	idx, _ := ins.PoolIndex()
	ref, err := c.Pool.Member(idx)
	if err != nil {
		return classfile.MemberRef{}, badOperand(where, i, err)
	}
	return ref, nil
}

func badOperand(where string, i int, cause error) error {
	return errors.New(errors.PhaseRewrite, errors.KindInvalidInput).
		Path(where, fmt.Sprintf("insn[%d]", i)).
		Detail("unresolvable operand").
		Cause(cause).
		Build()
}

// Apply materialises the plan. Each touched method gets a freshly built
// instruction slice; untouched instructions keep their relative order.
func (e *Engine) Apply(c *classfile.Class, plan *Plan) error {
	var order []*classfile.Method
	byMethod := make(map[*classfile.Method][]Edit)
	for _, ed := range plan.Edits {
		if _, seen := byMethod[ed.Method]; !seen {
			order = append(order, ed.Method)
		}
		byMethod[ed.Method] = append(byMethod[ed.Method], ed)
	}

	for _, m := range order {
		if err := e.applyMethod(c, m, byMethod[m]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyMethod(c *classfile.Class, m *classfile.Method, edits []Edit) error {
	where := m.Name + m.Descriptor
	if m.Code == nil {
		return errors.InvalidInput(errors.PhaseRewrite, "edit targets "+where+" which has no code")
	}
	code := m.Code

	byIndex := make(map[int][]Edit, len(edits))
	for _, ed := range edits {
		if ed.Index < 0 || ed.Index >= len(code.Instructions) || code.Instructions[ed.Index].IsLabel() {
			return errors.InvalidInput(errors.PhaseRewrite,
				fmt.Sprintf("edit index %d in %s is not an instruction", ed.Index, where))
		}
		byIndex[ed.Index] = append(byIndex[ed.Index], ed)
	}

	out := make([]classfile.Instruction, 0, len(code.Instructions)+len(edits))
	for i, ins := range code.Instructions {
		eds := byIndex[i]
		if len(eds) == 0 {
			out = append(out, ins)
			continue
		}

		// Inserting at i lands after any label placed at i, so jumps to
		// the original instruction reach the inserted code first.
		final, replaced := ins, false
		for _, ed := range eds {
			insert, repl, err := e.materialise(c, ed)
			if err != nil {
				return err
			}
			out = append(out, insert...)
			if repl != nil && !replaced {
				final, replaced = *repl, true
			}
		}
		out = append(out, final)
	}

	code.Instructions = out
	for _, ed := range edits {
		if ed.Kind == EditRedirect {
			Logger().Debug("redirected static call",
				zap.String("class", c.Name()),
				zap.String("method", where),
				zap.String("from", ed.Rule.Target.String()),
				zap.String("to", ed.Rule.Replacement.String()),
				zap.String("origin", ed.Origin))
		}
	}
	return nil
}

func (e *Engine) materialise(c *classfile.Class, ed Edit) ([]classfile.Instruction, *classfile.Instruction, error) {
	switch ed.Kind {
	case EditRedirect:
		r := ed.Rule.Replacement
		ref, err := c.Pool.AddMethodref(r.Owner, r.Name, r.Descriptor, ed.Interface)
		if err != nil {
			return nil, nil, err
		}
		str, err := c.Pool.AddString(ed.Origin)
		if err != nil {
			return nil, nil, err
		}
		push := classfile.Instruction{Opcode: classfile.OpLdc, Imm: classfile.ConstImm{Index: str}}
		call := classfile.Instruction{Opcode: classfile.OpInvokestatic, Imm: classfile.RefImm{Index: ref}}
		return []classfile.Instruction{push}, &call, nil
	case EditInsert:
		return ed.Insert, ed.Replace, nil
	default:
		return nil, nil, errors.InvalidInput(errors.PhaseRewrite, fmt.Sprintf("unknown edit kind %d", ed.Kind))
	}
}
