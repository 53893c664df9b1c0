package rewrite

import "github.com/wippyai/jvm-rewrite/rewrite/internal/engine"

// MethodRef names a method by owner internal name ("java/util/Foo"), name
// and descriptor.
type MethodRef = engine.MethodRef

// Rule redirects invokestatic calls to Target onto Replacement. The
// replacement receives the original arguments followed by the simple name
// of the calling class.
type Rule = engine.Rule

// RuleTable is a validated, immutable rule set. It is safe to share
// between goroutines.
type RuleTable = engine.RuleTable

// NewRuleTable validates rules and builds a table.
//
// It fails with errors.ErrDuplicateRule when a target triple repeats and
// with errors.ErrInvalidRule when a name or descriptor is malformed or a
// replacement is itself a target. The last check is what makes running
// the pass twice a no-op.
func NewRuleTable(rules []Rule) (*RuleTable, error) {
	return engine.NewRuleTable(rules)
}
