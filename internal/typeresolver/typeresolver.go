// Package typeresolver implements the Type Resolver (component C,
// spec.md §4.3): the recursive, cycle-safe evaluator that turns an
// Expression plus a return-index selector into a TypeSet.
//
// Grounded on the teacher's internal/analyzer/inference_solver.go (the
// seen-keyed re-entrancy guard passed through every recursive inference
// call, never stored on the analyzer itself) and internal/typesystem's
// union/substitution helpers.
package typeresolver

import (
	"strconv"
	"strings"

	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
)

// Resolver resolves expressions against one AnalysisContext. It carries
// no per-call state itself: every Resolve call takes its own `seen` map,
// per spec.md §3 invariant 5 ("the seen map is never retained across
// calls or stored on any shared struct").
type Resolver struct {
	Ctx *analysiscontext.AnalysisContext

	// Heuristics enables the parameter-name inference rules of spec.md
	// §4.3; set from config.Options.Heuristics, which defaults to on.
	Heuristics bool
}

func New(ctx *analysiscontext.AnalysisContext, heuristics bool) *Resolver {
	return &Resolver{Ctx: ctx, Heuristics: heuristics}
}

// seenMap is the per-resolve-call cycle guard: first entry for a key
// inserts an empty set; a recursive encounter returns that (possibly
// still empty) set, and the caller unions its own accumulation into it
// on the way back out (spec.md §4.3 "Cycle policy").
type seenMap map[model.ResolveKey]model.TypeSet

// Resolve is the primary entry point: resolve expr's index-th return
// value (1-based; index<=0 defaults to 1) against usage, if any.
func (r *Resolver) Resolve(expr model.Expression, index int, usage *model.Usage) model.TypeSet {
	if index <= 0 {
		index = 1
	}
	seen := seenMap{}
	result := r.resolve(expr, index, seen)
	if usage != nil {
		result = result.Narrow(usage.Coarse())
	}
	return result.CollapseBooleans()
}

func (r *Resolver) resolve(expr model.Expression, index int, seen seenMap) model.TypeSet {
	if expr == nil {
		return model.NewTypeSet()
	}
	key := model.ResolveKey{Expr: expr, Index: index}
	if cached, ok := seen[key]; ok {
		return cached
	}
	seen[key] = model.NewTypeSet()

	var out model.TypeSet
	switch e := expr.(type) {
	case *model.LiteralExpr:
		out = r.resolveLiteral(e)
	case *model.ReferenceExpr:
		out = r.resolveReference(e, index, seen)
	case *model.MemberExpr:
		out = r.resolveMember(e, index, seen)
	case *model.IndexExpr:
		out = r.resolveIndex(e, index, seen)
	case *model.RequireExpr:
		out = r.resolveRequire(e, index)
	case *model.OperationExpr:
		out = r.resolveOperation(e, index, seen)
	default:
		out = model.NewTypeSet(string(model.Unknown))
	}

	seen[key] = seen[key].Union(out)
	return seen[key]
}

func (r *Resolver) resolveLiteral(e *model.LiteralExpr) model.TypeSet {
	switch e.LuaType {
	case "boolean":
		if e.BoolValue {
			return model.NewTypeSet(string(model.True))
		}
		return model.NewTypeSet(string(model.False))
	case "table":
		return model.NewTypeSet(string(e.TableID))
	case "function":
		return model.NewTypeSet(string(e.FunctionID))
	case "string", "number", "nil":
		return model.NewTypeSet(e.LuaType)
	default:
		return model.NewTypeSet(string(model.Unknown))
	}
}

func (r *Resolver) resolveReference(e *model.ReferenceExpr, index int, seen seenMap) model.TypeSet {
	out := model.NewTypeSet()
	kind := e.ID.KindOf()
	if ids.IsMarkerKind(kind) && kind != ids.Table && kind != ids.Function {
		out.Add(string(e.ID))
	}
	if r.Heuristics && kind == ids.Parameter {
		out = out.Union(ParameterHeuristic(e.ID.Name()))
	}

	for _, m := range r.Ctx.Modules() {
		for name, infos := range m.Fields {
			_ = name
			for _, info := range infos {
				if refersTo(info.Expression, e.ID) {
					out = out.Union(r.resolve(info.Expression, 1, seen))
				}
			}
		}
	}
	for _, t := range r.Ctx.Tables() {
		for _, infos := range t.Definitions {
			for _, info := range infos {
				if refersTo(info.Expression, e.ID) {
					out = out.Union(r.resolve(info.Expression, 1, seen))
				}
			}
		}
	}
	return out
}

func refersTo(e model.Expression, id ids.ID) bool {
	ref, ok := e.(*model.ReferenceExpr)
	return ok && ref.ID == id
}

// ParameterHeuristic applies spec.md §4.3's name-based parameter type
// heuristics to a single parameter name (stripping one leading
// underscore first). It only ever returns a hint for this one name, so
// only the single-name rules that need no sibling context exist. The
// co-occurrence rules (dx+dy, >=2 of x/y/z/w/h/..., >=3 of r/g/b/a) would
// need a function's full parameter list and are not applied anywhere.
func ParameterHeuristic(name string) model.TypeSet {
	n := strings.TrimPrefix(name, "_")
	lower := strings.ToLower(n)
	switch {
	case strings.HasPrefix(n, "is") && len(n) > 2 && strings.ToUpper(n[2:3]) == n[2:3]:
		return model.NewTypeSet(string(model.Boolean))
	case (strings.HasPrefix(lower, "num") || strings.HasSuffix(lower, "num")) && !strings.HasPrefix(lower, "do"):
		return model.NewTypeSet(string(model.Number))
	case !strings.HasPrefix(lower, "do") && (strings.HasSuffix(lower, "str") || strings.HasSuffix(lower, "name") || strings.HasSuffix(lower, "title")):
		return model.NewTypeSet(string(model.String))
	case isTargetLike(lower):
		return model.NewTypeSet(string(model.Unknown))
	default:
		return model.NewTypeSet()
	}
}

func isTargetLike(lower string) bool {
	if lower == "target" {
		return true
	}
	for _, prefix := range []string{"param", "arg"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if rest == "" {
				return false
			}
			for _, c := range rest {
				if c < '0' || c > '9' {
					return false
				}
			}
			return true
		}
	}
	return false
}

func (r *Resolver) resolveMember(e *model.MemberExpr, index int, seen seenMap) model.TypeSet {
	baseTypes := r.resolve(e.Base, 1, seen)
	out := model.NewTypeSet()
	for member := range baseTypes {
		id := ids.ID(member)
		if id.KindOf() != ids.Table {
			continue
		}
		table, ok := r.Ctx.Table(id)
		if !ok {
			continue
		}
		for _, info := range table.Definitions[e.Member] {
			out = out.Union(r.resolve(info.Expression, 1, seen))
		}
	}
	return out
}

func (r *Resolver) resolveIndex(e *model.IndexExpr, index int, seen seenMap) model.TypeSet {
	key, ok := literalKey(e.Index)
	if !ok {
		return model.NewTypeSet()
	}
	baseTypes := r.resolve(e.Base, 1, seen)
	out := model.NewTypeSet()
	for member := range baseTypes {
		id := ids.ID(member)
		if id.KindOf() != ids.Table {
			continue
		}
		table, ok := r.Ctx.Table(id)
		if !ok {
			continue
		}
		for _, info := range table.Definitions[key] {
			out = out.Union(r.resolve(info.Expression, 1, seen))
		}
	}
	return out
}

func literalKey(e model.Expression) (string, bool) {
	lit, ok := e.(*model.LiteralExpr)
	if !ok {
		return "", false
	}
	switch lit.LuaType {
	case "string":
		return lit.StringValue, true
	case "number":
		return strconv.FormatFloat(lit.NumberValue, 'g', -1, 64), true
	default:
		return "", false
	}
}

func (r *Resolver) resolveRequire(e *model.RequireExpr, index int) model.TypeSet {
	canon := r.Ctx.ResolveAlias(e.Module)
	mod, ok := r.Ctx.Module(canon)
	if !ok {
		return model.NewTypeSet()
	}
	if index-1 < 0 || index-1 >= len(mod.Returns) {
		return model.NewTypeSet()
	}
	return mod.Returns[index-1].Clone()
}

func (r *Resolver) resolveOperation(e *model.OperationExpr, index int, seen seenMap) model.TypeSet {
	switch e.Operator {
	case "call":
		return r.resolveCall(e, index, seen)
	case "..":
		return model.NewTypeSet(string(model.String))
	case "==", "~=", "<", ">", "<=", ">=":
		return model.NewTypeSet(string(model.Boolean))
	case "+", "-", "*", "/", "%", "^", "#", "&", "|", "~", "<<", ">>":
		return model.NewTypeSet(string(model.Number))
	case "not":
		operand := r.resolve(e.Arguments[0], 1, seen)
		if truthy, ok := staticTruthiness(operand); ok {
			if truthy {
				return model.NewTypeSet(string(model.False))
			}
			return model.NewTypeSet(string(model.True))
		}
		return model.NewTypeSet(string(model.Boolean))
	case "and":
		lhs := r.resolve(e.Arguments[0], 1, seen)
		if truthy, ok := staticTruthiness(lhs); ok {
			if truthy {
				return r.resolve(e.Arguments[1], 1, seen)
			}
			return lhs
		}
		return lhs.Union(r.resolve(e.Arguments[1], 1, seen))
	case "or":
		lhs := r.resolve(e.Arguments[0], 1, seen)
		if truthy, ok := staticTruthiness(lhs); ok && !truthy {
			return r.resolve(e.Arguments[1], 1, seen)
		}
		if ternary, ok := ternaryMiddle(e); ok {
			mid := r.resolve(ternary, 1, seen)
			return mid.Union(r.resolve(e.Arguments[1], 1, seen))
		}
		return lhs.Union(r.resolve(e.Arguments[1], 1, seen))
	default:
		return model.NewTypeSet(string(model.Unknown))
	}
}

// ternaryMiddle recognizes "X and Y or Z" encoded as an `or` operation
// whose first argument is itself an `and` operation, per spec.md §4.3's
// ternary special case.
func ternaryMiddle(e *model.OperationExpr) (model.Expression, bool) {
	inner, ok := e.Arguments[0].(*model.OperationExpr)
	if !ok || inner.Operator != "and" || len(inner.Arguments) != 2 {
		return nil, false
	}
	return inner.Arguments[1], true
}

func staticTruthiness(types model.TypeSet) (truthy bool, ok bool) {
	if len(types) == 0 {
		return false, false
	}
	allTrue, allFalse := true, true
	for member := range types {
		switch member {
		case string(model.False), string(model.Nil):
			allTrue = false
		default:
			allFalse = false
		}
	}
	if allTrue {
		return true, true
	}
	if allFalse {
		return false, true
	}
	return false, false
}

// intrinsics are built-in function names with fixed return signatures,
// consulted when a call's callee doesn't resolve to a known FunctionInfo
// (spec.md §4.3).
var intrinsics = map[string]model.TypeSet{
	"tonumber":      model.NewTypeSet(string(model.Number), string(model.Nil)),
	"tostring":      model.NewTypeSet(string(model.String)),
	"getText":       model.NewTypeSet(string(model.String)),
	"getTextOrNull": model.NewTypeSet(string(model.String), string(model.Nil)),
}

func (r *Resolver) resolveCall(e *model.OperationExpr, index int, seen seenMap) model.TypeSet {
	callee := e.Arguments[0]

	if name, ok := intrinsicName(callee); ok {
		if ts, ok := intrinsics[name]; ok {
			return ts.Clone()
		}
	}

	calleeTypes := r.resolve(callee, 1, seen)
	out := model.NewTypeSet()
	for member := range calleeTypes {
		id := ids.ID(member)
		if id.KindOf() != ids.Function {
			continue
		}
		fn, ok := r.Ctx.Function(id)
		if !ok {
			continue
		}
		if fn.IsConstructor {
			if me, ok := callee.(*model.MemberExpr); ok {
				baseTypes := r.resolve(me.Base, 1, seen)
				for baseMember := range baseTypes {
					if ids.ID(baseMember).KindOf() == ids.Table {
						out.Add(baseMember)
					}
				}
			}
			continue
		}
		if index-1 < 0 || index-1 >= len(fn.ReturnTypes) {
			out.Add(string(model.Nil))
			continue
		}
		out = out.Union(fn.ReturnTypes[index-1])
	}
	return out
}

func intrinsicName(e model.Expression) (string, bool) {
	ref, ok := e.(*model.ReferenceExpr)
	if !ok {
		return "", false
	}
	name := ref.ID.Name()
	_, known := intrinsics[name]
	return name, known
}
