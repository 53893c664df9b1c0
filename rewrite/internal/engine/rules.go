package engine

import (
	"fmt"
	"strings"

	"github.com/wippyai/jvm-rewrite/classfile"
	"github.com/wippyai/jvm-rewrite/errors"
)

// MethodRef names a method by owner internal name, method name and descriptor.
type MethodRef struct {
	Owner      string
	Name       string
	Descriptor string
}

func (r MethodRef) String() string {
	return r.Owner + "." + r.Name + r.Descriptor
}

// Rule redirects static calls to Target onto Replacement.
type Rule struct {
	Target      MethodRef
	Replacement MethodRef
}

type memberKey struct {
	name string
	desc string
}

// RuleTable is an immutable, validated set of rules indexed by target owner.
type RuleTable struct {
	byOwner map[string]map[memberKey]int
	rules   []Rule
}

// NewRuleTable validates rules and indexes them. Target triples must be
// unique and no replacement may itself be a target.
func NewRuleTable(rules []Rule) (*RuleTable, error) {
	t := &RuleTable{
		byOwner: make(map[string]map[memberKey]int),
		rules:   make([]Rule, 0, len(rules)),
	}

	for i, r := range rules {
		path := []string{fmt.Sprintf("rule[%d]", i)}
		if err := validateRef(path, "target", r.Target); err != nil {
			return nil, err
		}
		if err := validateRef(path, "replacement", r.Replacement); err != nil {
			return nil, err
		}

		members := t.byOwner[r.Target.Owner]
		if members == nil {
			members = make(map[memberKey]int)
			t.byOwner[r.Target.Owner] = members
		}
		key := memberKey{r.Target.Name, r.Target.Descriptor}
		if _, dup := members[key]; dup {
			return nil, errors.DuplicateRule(r.Target.Owner, r.Target.Name, r.Target.Descriptor)
		}
		members[key] = len(t.rules)
		t.rules = append(t.rules, r)
	}

	// Chains would make a second run rewrite the first run's output.
	for i, r := range t.rules {
		if _, ok := t.Lookup(r.Replacement.Owner, r.Replacement.Name, r.Replacement.Descriptor); ok {
			return nil, errors.InvalidRule([]string{fmt.Sprintf("rule[%d]", i)},
				fmt.Sprintf("replacement %s is itself a rewrite target", r.Replacement))
		}
	}

	return t, nil
}

func validateRef(path []string, field string, ref MethodRef) error {
	p := append(append([]string(nil), path...), field)
	for _, s := range []string{ref.Owner, ref.Name, ref.Descriptor} {
		if n := len(classfile.EncodeModifiedUTF8(s)); n > classfile.MaxUTF8Length {
			return errors.InvalidRule(p, fmt.Sprintf("constant of %d bytes exceeds Utf8 length %d", n, classfile.MaxUTF8Length))
		}
	}
	if !validInternalName(ref.Owner) {
		return errors.InvalidRule(p, fmt.Sprintf("invalid owner %q", ref.Owner))
	}
	if !validMethodName(ref.Name) {
		return errors.InvalidRule(p, fmt.Sprintf("invalid method name %q", ref.Name))
	}
	if _, _, err := classfile.ParseMethodDescriptor(ref.Descriptor); err != nil {
		return errors.InvalidRule(p, fmt.Sprintf("invalid descriptor %q: %v", ref.Descriptor, err))
	}
	return nil
}

func validInternalName(s string) bool {
	if s == "" || strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") || strings.Contains(s, "//") {
		return false
	}
	return !strings.ContainsAny(s, ".;[")
}

// Static calls cannot name <init> or <clinit>.
func validMethodName(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".;[/<>")
}

// Len returns the number of rules.
func (t *RuleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Rules returns a copy of the rules in declaration order.
func (t *RuleTable) Rules() []Rule {
	if t == nil {
		return nil
	}
	return append([]Rule(nil), t.rules...)
}

// HasOwner reports whether any rule targets owner.
func (t *RuleTable) HasOwner(owner string) bool {
	if t == nil {
		return false
	}
	_, ok := t.byOwner[owner]
	return ok
}

// Lookup returns the rule whose target is exactly (owner, name, desc).
func (t *RuleTable) Lookup(owner, name, desc string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	members, ok := t.byOwner[owner]
	if !ok {
		return Rule{}, false
	}
	i, ok := members[memberKey{name, desc}]
	if !ok {
		return Rule{}, false
	}
	return t.rules[i], true
}
