// Package finalizer implements the Finalizer (component F, spec.md
// §4.6): the last pass that turns synthetic type markers left in every
// resolved TypeSet into the user-facing names an emitter can print.
//
// Grounded on the teacher's internal/analyzer/naming.go and
// types_builder.go: a post-pass that turns internal type representations
// into presentable names/signatures, run once after every module's
// headers and bodies are otherwise fully analyzed.
package finalizer

import (
	"fmt"
	"sort"
	"strings"

	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
)

// Finalizer converts synthetic IDs embedded in TypeSets to display
// names, using the AnalysisContext's table/function registries.
type Finalizer struct {
	Ctx *analysiscontext.AnalysisContext
}

func New(ctx *analysiscontext.AnalysisContext) *Finalizer {
	return &Finalizer{Ctx: ctx}
}

// ResolveTypeSet converts every member of raw to a display name, per
// spec.md §4.6:
//   - @table(n)[...] -> the TableInfo's ClassName if set, else dropped.
//   - @function(n)[...] -> "function".
//   - @parameter/@self/@instance -> resolved through the owning
//     function's parameter types or the class table.
//   - anything else unresolvable -> "unknown".
//   - true/false surviving collapse -> "boolean".
//
// The result is deduplicated and sorted for deterministic output.
func (f *Finalizer) ResolveTypeSet(raw model.TypeSet) []string {
	return f.resolve(raw, map[string]bool{})
}

func (f *Finalizer) resolve(raw model.TypeSet, guard map[string]bool) []string {
	out := map[string]bool{}
	for member := range raw {
		for _, name := range f.resolveMember(member, guard) {
			out[name] = true
		}
	}
	names := make([]string, 0, len(out))
	for n := range out {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (f *Finalizer) resolveMember(member string, guard map[string]bool) []string {
	switch member {
	case string(model.True), string(model.False):
		return []string{string(model.Boolean)}
	}
	id := ids.ID(member)
	kind := id.KindOf()
	if kind == "" {
		// a plain primitive name already (string, number, table, nil, ...)
		return []string{member}
	}
	if guard[member] {
		return []string{string(model.Unknown)}
	}
	guard[member] = true
	defer delete(guard, member)

	switch kind {
	case ids.Table:
		if t, ok := f.Ctx.Table(id); ok && t.ClassName != "" {
			return []string{t.ClassName}
		}
		return nil
	case ids.Function:
		return []string{string(model.Function)}
	case ids.Parameter, ids.Self:
		fn := f.ownerFunction(id)
		if fn == nil {
			return []string{string(model.Unknown)}
		}
		for i, pid := range fn.ParameterIDs {
			if pid == id {
				return f.resolve(fn.ParameterTypes[i], guard)
			}
		}
		return []string{string(model.Unknown)}
	case ids.Instance:
		for _, t := range f.Ctx.Tables() {
			if t.InstanceID == id {
				if t.ClassName != "" {
					return []string{t.ClassName}
				}
				return nil
			}
		}
		return []string{string(model.Unknown)}
	default:
		return []string{string(model.Unknown)}
	}
}

// ownerFunction finds the FunctionInfo that owns a parameter/self ID.
func (f *Finalizer) ownerFunction(paramID ids.ID) *model.FunctionInfo {
	for _, fn := range f.Ctx.Functions() {
		for _, pid := range fn.ParameterIDs {
			if pid == paramID {
				return fn
			}
		}
	}
	return nil
}

// ClassName returns the resolved class name for a table ID, if any.
func (f *Finalizer) ClassName(id ids.ID) (string, bool) {
	t, ok := f.Ctx.Table(id)
	if !ok || t.ClassName == "" {
		return "", false
	}
	return t.ClassName, true
}

// Signature renders a function's parameter/return types as a compact
// display string, e.g. "(x: number, y: number) -> boolean, nil".
func (f *Finalizer) Signature(id ids.ID) string {
	fn, ok := f.Ctx.Function(id)
	if !ok {
		return "function"
	}
	params := make([]string, 0, len(fn.ParameterNames))
	for i, name := range fn.ParameterNames {
		types := f.ResolveTypeSet(fn.ParameterTypes[i])
		params = append(params, fmt.Sprintf("%s: %s", name, strings.Join(orUnknown(types), "|")))
	}
	var returns []string
	for _, rt := range fn.ReturnTypes {
		returns = append(returns, strings.Join(orUnknown(f.ResolveTypeSet(rt)), "|"))
	}
	sig := fmt.Sprintf("(%s)", strings.Join(params, ", "))
	if len(returns) > 0 {
		sig += " -> " + strings.Join(returns, ", ")
	}
	return sig
}

func orUnknown(types []string) []string {
	if len(types) == 0 {
		return []string{string(model.Unknown)}
	}
	return types
}
