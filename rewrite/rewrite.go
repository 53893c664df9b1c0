package rewrite

import (
	"github.com/wippyai/jvm-rewrite/classfile"
	"github.com/wippyai/jvm-rewrite/errors"
	"github.com/wippyai/jvm-rewrite/rewrite/internal/engine"
)

// ConstructorHook is offered every allocation paired with its constructor
// call. Returning no edits leaves the site alone and records a
// DiagUnsupportedHookPoint diagnostic.
type ConstructorHook = engine.ConstructorHook

// AllocationSite describes one `new` and the <init> call that completes it.
type AllocationSite = engine.AllocationSite

// Edit is a change a ConstructorHook asks for.
type Edit = engine.Edit

// NoopHook is the default ConstructorHook.
type NoopHook = engine.NoopHook

// Rewrite describes one redirected call site.
type Rewrite = engine.Rewrite

// Diagnostic is a non-fatal finding.
type Diagnostic = engine.Diagnostic

// DiagUnsupportedHookPoint marks an allocation no hook acted on.
const DiagUnsupportedHookPoint = engine.DiagUnsupportedHookPoint

// Result is the outcome of TransformReport.
type Result = engine.Result

// Config configures a transformation.
type Config struct {
	Rules *RuleTable
	Hook  ConstructorHook
}

// Transform redirects every matching invokestatic in the class file data
// and returns the new class file.
//
// For each call whose (owner, name, descriptor) equals a rule target the
// call is pointed at the rule's replacement, keeping the interface bit of
// the original reference, and an ldc of the calling class's simple name is
// inserted right before it. Jumps to the call land on the ldc. Max stack
// and max locals are recomputed for every method.
//
// When nothing matches, data itself is returned. Malformed input fails with
// errors.ErrMalformedUnit and a result too large for the format with
// errors.ErrEncodingOverflow; no partial output is produced.
func Transform(data []byte, cfg Config) ([]byte, error) {
	res, err := TransformReport(data, cfg)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// TransformReport is Transform with the list of rewrites and diagnostics.
func TransformReport(data []byte, cfg Config) (*Result, error) {
	if cfg.Rules == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "rule table is required")
	}
	eng := engine.New(engine.Config{Rules: cfg.Rules, Hook: cfg.Hook})
	return eng.Transform(data)
}

// Scan reports the call sites Transform would rewrite without rewriting
// them.
func Scan(data []byte, cfg Config) ([]Rewrite, error) {
	if cfg.Rules == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "rule table is required")
	}
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	plan, err := engine.New(engine.Config{Rules: cfg.Rules, Hook: cfg.Hook}).Scan(c)
	if err != nil {
		return nil, errors.WithUnit(err, c.Name())
	}
	return plan.Rewrites, nil
}

// SimpleName returns the last segment of an internal class name:
// "com/example/Foo" becomes "Foo".
func SimpleName(internal string) string {
	return engine.SimpleName(internal)
}
