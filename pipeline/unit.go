package pipeline

import (
	"fmt"
	"path"
	"strings"
)

// Scope says where a unit comes from in the build.
type Scope int

const (
	ScopeProject Scope = iota
	ScopeSubProjects
	ScopeExternalLibraries
)

var scopeNames = [...]string{
	ScopeProject:           "project",
	ScopeSubProjects:       "subprojects",
	ScopeExternalLibraries: "external",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope converts a scope name as printed by String.
func ParseScope(s string) (Scope, error) {
	for i, name := range scopeNames {
		if strings.EqualFold(s, name) {
			return Scope(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

// ContentKind separates compiled classes from everything else in a tree
// or archive.
type ContentKind int

const (
	KindResource ContentKind = iota
	KindClass
)

// Unit is one file handed to the processor. Name is slash separated and
// relative to the directory or archive root.
type Unit struct {
	Name  string
	Data  []byte
	Scope Scope
}

// Kind reports whether the unit is a class file by name.
func (u Unit) Kind() ContentKind {
	if strings.HasSuffix(u.Name, ".class") {
		return KindClass
	}
	return KindResource
}

// Selector decides which units are transformed. Unselected units pass
// through untouched.
type Selector interface {
	Select(u Unit) bool
}

// DefaultSelector selects class files in the listed scopes. With no scopes
// only project classes are selected. Module and package descriptors and
// multi-release variants under META-INF are never selected.
type DefaultSelector struct {
	Scopes []Scope
}

func (s DefaultSelector) Select(u Unit) bool {
	if u.Kind() != KindClass {
		return false
	}
	switch path.Base(u.Name) {
	case "module-info.class", "package-info.class":
		return false
	}
	if strings.HasPrefix(u.Name, "META-INF/") {
		return false
	}
	if len(s.Scopes) == 0 {
		return u.Scope == ScopeProject
	}
	for _, sc := range s.Scopes {
		if sc == u.Scope {
			return true
		}
	}
	return false
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(u Unit) bool

func (f SelectorFunc) Select(u Unit) bool {
	return f(u)
}
