// Package ids implements the synthetic string ID scheme of spec.md §3:
// `@kind(n)[name]` handles that are both opaque cross-file references and,
// until internal/finalizer runs, pre-resolution type markers.
package ids

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/module"
)

// Kind is one of the seven synthetic-ID kinds spec.md §3 enumerates.
type Kind string

const (
	Module    Kind = "module"
	Function  Kind = "function"
	Table     Kind = "table"
	Parameter Kind = "parameter"
	Self      Kind = "self"
	Instance  Kind = "instance"
	Local     Kind = "local"
)

// ID is an opaque, globally unique handle: `@kind(n)[name]`.
type ID string

// Allocator mints monotonically increasing IDs per kind (spec.md §3
// invariant 1: "Every synthetic ID is unique across the whole analysis
// session and monotonically allocated"). It is owned exclusively by
// internal/context.AnalysisContext.
type Allocator struct {
	counters map[Kind]int
}

// NewAllocator returns a fresh, zeroed Allocator.
func NewAllocator() *Allocator {
	return &Allocator{counters: make(map[Kind]int)}
}

// New mints the next ID for kind, carrying name for readability/debugging.
// name is sanitized (brackets escaped) so Parse round-trips cleanly.
func (a *Allocator) New(kind Kind, name string) ID {
	a.counters[kind]++
	return format(kind, a.counters[kind], name)
}

// NewModule mints a `@module(n)[path]` ID, validating path looks like a
// clean slash-separated module path before allocation; an invalid path is
// still allocated (the engine must not fail a whole run over naming), the
// validation only gates debug-build assertions upstream in internal/context.
func (a *Allocator) NewModule(path string) (ID, error) {
	var err error
	if path != "" {
		// module.CheckImportPath enforces Go's "clean slash path, no
		// empty segments, no leading/trailing slash" rules, which is a
		// reasonable proxy for "this looks like a sane module path"
		// even though the target language isn't Go.
		if cerr := module.CheckImportPath(path); cerr != nil {
			err = fmt.Errorf("module path %q is not a clean slash path: %w", path, cerr)
		}
	}
	return a.New(Module, path), err
}

func format(kind Kind, n int, name string) ID {
	escaped := strings.NewReplacer("[", "\\[", "]", "\\]").Replace(name)
	return ID(fmt.Sprintf("@%s(%d)[%s]", kind, n, escaped))
}

// KindOf returns the kind encoded in id, or "" if id is not well-formed.
func (id ID) KindOf() Kind {
	k, _, _, ok := Parse(id)
	if !ok {
		return ""
	}
	return k
}

// Name returns the name segment encoded in id.
func (id ID) Name() string {
	_, _, name, ok := Parse(id)
	if !ok {
		return ""
	}
	return name
}

// Parse decodes a `@kind(n)[name]` handle.
func Parse(id ID) (kind Kind, ordinal int, name string, ok bool) {
	s := string(id)
	if !strings.HasPrefix(s, "@") {
		return "", 0, "", false
	}
	s = s[1:]
	open := strings.Index(s, "(")
	close := strings.Index(s, ")")
	if open < 0 || close < 0 || close < open {
		return "", 0, "", false
	}
	kindPart := s[:open]
	n, err := strconv.Atoi(s[open+1 : close])
	if err != nil {
		return "", 0, "", false
	}
	rest := s[close+1:]
	if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
		return "", 0, "", false
	}
	raw := rest[1 : len(rest)-1]
	unescaped := strings.NewReplacer("\\[", "[", "\\]", "]").Replace(raw)
	return Kind(kindPart), n, unescaped, true
}

// IsMarkerKind reports whether kind leaks into type sets as a
// pre-resolution marker that internal/finalizer must resolve
// (parameter/self/instance/function/table — everything but module/local).
func IsMarkerKind(k Kind) bool {
	switch k {
	case Parameter, Self, Instance, Function, Table:
		return true
	default:
		return false
	}
}
