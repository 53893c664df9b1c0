// Package rules loads rewrite rule tables from TOML files.
//
// Two forms are accepted and may be mixed. Explicit rules:
//
//	[[rule]]
//	target      = { owner = "java.util.concurrent.Executors", name = "newFixedThreadPool", desc = "(I)Ljava/util/concurrent/ExecutorService;" }
//	replacement = { owner = "com.example.NamedPools" }
//
// and the thread-pool block, where every hook point redirects a method of
// executors_class onto optimized_thread_pool_class:
//
//	[thread]
//	executors_class             = "java.util.concurrent.Executors"
//	optimized_thread_pool_class = "com.example.NamedPools"
//
//	[[thread.hook_point]]
//	method_name = "newCachedThreadPool"
//	method_desc = "()Ljava/util/concurrent/ExecutorService;"
//
// Class names may be dotted or internal. An omitted replacement name keeps
// the target name; an omitted replacement descriptor is the target
// descriptor with a trailing String parameter, which is what the rewrite
// passes.
package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/jvm-rewrite/errors"
	"github.com/wippyai/jvm-rewrite/rewrite"
)

// File is the decoded rule file.
type File struct {
	Thread *Thread `toml:"thread"`
	Rules  []Entry `toml:"rule"`
}

// Entry is one [[rule]] table.
type Entry struct {
	Target      Ref `toml:"target"`
	Replacement Ref `toml:"replacement"`
}

// Ref names a method. Fields left empty in a replacement are derived from
// the target.
type Ref struct {
	Owner string `toml:"owner"`
	Name  string `toml:"name"`
	Desc  string `toml:"desc"`
}

// Thread is the [thread] block.
type Thread struct {
	ExecutorsClass           string      `toml:"executors_class"`
	OptimizedThreadPoolClass string      `toml:"optimized_thread_pool_class"`
	HookPoints               []HookPoint `toml:"hook_point"`
}

// HookPoint is one [[thread.hook_point]] entry.
type HookPoint struct {
	MethodName        string `toml:"method_name"`
	MethodDesc        string `toml:"method_desc"`
	MethodNameReplace string `toml:"method_name_replace"`
	MethodDescReplace string `toml:"method_desc_replace"`
}

// Load reads and parses the rule file at path.
func Load(path string) (*rewrite.RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return table, nil
}

// Parse decodes TOML rule data into a validated table.
func Parse(data []byte) (*rewrite.RuleTable, error) {
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rules, err := f.Expand()
	if err != nil {
		return nil, err
	}
	return rewrite.NewRuleTable(rules)
}

// Decode parses TOML without validating the rules. Unknown keys are an
// error so typos do not silently disable a rule.
func Decode(data []byte) (*File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "malformed rule file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.InvalidRule(nil, "unknown keys: "+strings.Join(keys, ", "))
	}
	return &f, nil
}

// Expand turns the file into rules, thread block first.
func (f *File) Expand() ([]rewrite.Rule, error) {
	var out []rewrite.Rule

	if t := f.Thread; t != nil {
		if t.ExecutorsClass == "" || t.OptimizedThreadPoolClass == "" {
			return nil, errors.InvalidRule([]string{"thread"},
				"executors_class and optimized_thread_pool_class are required")
		}
		owner := InternalName(t.ExecutorsClass)
		pool := InternalName(t.OptimizedThreadPoolClass)
		for i, hp := range t.HookPoints {
			if hp.MethodName == "" || hp.MethodDesc == "" {
				return nil, errors.InvalidRule([]string{"thread", fmt.Sprintf("hook_point[%d]", i)},
					"method_name and method_desc are required")
			}
			target := rewrite.MethodRef{Owner: owner, Name: hp.MethodName, Descriptor: InternalName(hp.MethodDesc)}
			out = append(out, rewrite.Rule{
				Target:      target,
				Replacement: derive(target, Ref{Owner: pool, Name: hp.MethodNameReplace, Desc: hp.MethodDescReplace}),
			})
		}
	}

	for i, e := range f.Rules {
		if e.Target.Owner == "" || e.Target.Name == "" || e.Target.Desc == "" {
			return nil, errors.InvalidRule([]string{fmt.Sprintf("rule[%d]", i), "target"},
				"owner, name and desc are required")
		}
		if e.Replacement.Owner == "" {
			return nil, errors.InvalidRule([]string{fmt.Sprintf("rule[%d]", i), "replacement"},
				"owner is required")
		}
		target := rewrite.MethodRef{
			Owner:      InternalName(e.Target.Owner),
			Name:       e.Target.Name,
			Descriptor: InternalName(e.Target.Desc),
		}
		out = append(out, rewrite.Rule{Target: target, Replacement: derive(target, e.Replacement)})
	}

	if len(out) == 0 {
		return nil, errors.InvalidRule(nil, "rule file defines no rules")
	}
	return out, nil
}

func derive(target rewrite.MethodRef, r Ref) rewrite.MethodRef {
	ref := rewrite.MethodRef{
		Owner:      InternalName(r.Owner),
		Name:       r.Name,
		Descriptor: InternalName(r.Desc),
	}
	if ref.Name == "" {
		ref.Name = target.Name
	}
	if ref.Descriptor == "" {
		ref.Descriptor = WithOriginParam(target.Descriptor)
	}
	return ref
}

// InternalName converts dotted class names to internal form. It also
// applies to descriptors, which never contain dots.
func InternalName(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "/")
}

// WithOriginParam appends a String parameter to a method descriptor.
// Descriptors without a parameter list are returned unchanged and left to
// rule validation.
func WithOriginParam(desc string) string {
	i := strings.IndexByte(desc, ')')
	if !strings.HasPrefix(desc, "(") || i < 0 {
		return desc
	}
	return desc[:i] + "Ljava/lang/String;" + desc[i:]
}
