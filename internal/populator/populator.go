// Package populator implements the driving sweep of the Shared Analysis
// Context (component E, spec.md §3): it folds every assignment, usage,
// and return fact the Scope Reader recorded in order into the
// table/function/module registries the Type Resolver and Class Resolver
// read from. The reader itself only ever appends facts; anything that
// needs a second lookup — a member-expression write whose base resolves
// to a table only after the whole module is read, a function's full set
// of return sites, a parameter's accumulated usage — is deferred here
// (spec.md §4.2: "materialized lazily ... once the base table ID is
// known").
//
// Grounded on the teacher's internal/analyzer multi-pass driver
// (AnalyzeNaming -> AnalyzeHeaders -> AnalyzeInstances -> AnalyzeBodies in
// internal/analyzer/processor.go): several focused sweeps over the same
// tree instead of one pass that tries to do everything at once.
package populator

import (
	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
	"github.com/lua-modkit/stubgen/internal/typeresolver"
)

// Populator runs the definition/return/parameter sweeps over every
// registered module.
type Populator struct {
	Ctx      *analysiscontext.AnalysisContext
	Resolver *typeresolver.Resolver

	// localDefs remembers the most recent plain-identifier binding for
	// every local/parameter/self ID seen so far (e.g. `local t = {}`), so
	// a later member-expression write (`t.x = 1`) can resolve its base
	// down to the table it was bound from, not just a bare Table-kind ID.
	// Keys are synthetic IDs, globally unique, so one map safely serves
	// every module.
	localDefs map[ids.ID]model.Expression

	// returnsDone marks functions whose ReturnTypes/ReturnSites/MinReturns
	// are already fully computed, so populateReturnSites can recurse into
	// a tail-called function's own return sites (to learn its arity)
	// without redoing work or looping forever on mutual tail calls.
	returnsDone map[ids.ID]bool
}

func New(ctx *analysiscontext.AnalysisContext, resolver *typeresolver.Resolver) *Populator {
	return &Populator{
		Ctx:         ctx,
		Resolver:    resolver,
		localDefs:   make(map[ids.ID]model.Expression),
		returnsDone: make(map[ids.ID]bool),
	}
}

// Run executes a full single-pass sweep, for callers (tests, mainly)
// that don't need the two-phase ordering PopulateDefinitions'
// includeSelf split exists for. See AnalyzeStage in internal/pipeline
// for the ordering the production run actually uses.
func (p *Populator) Run() {
	p.PopulateDefinitions(false)
	p.PopulateDefinitions(true)
	p.PopulateRest()
}

// PopulateDefinitions recurses every module's scope tree, recording
// AssignmentItem/FunctionDefItem facts into the owning TableInfo or
// module Fields map.
//
// includeSelf splits the sweep in two to resolve an ordering tension
// with the Class Resolver: a `self.x = ...` write (BaseID of kind Self
// or Instance) only resolves once its function's ClassTableID is set,
// which for the closure-class idiom happens in classresolver's
// detectClosureClass rather than the Scope Reader. But
// classresolver's own detectSetmetatable wants a plain local's fields
// (`local a = {}; a.x = 1; setmetatable(a, B)`) already recorded so it
// can carry them over to the class as instance fields. Calling this
// method twice — once with includeSelf=false before the Class Resolver
// runs, once with includeSelf=true after — gets both: plain-table
// writes land before detectSetmetatable needs them, self/instance
// writes land once ClassTableID exists, and nothing is ever defined
// twice since each call only handles its own half of the BaseID space.
func (p *Populator) PopulateDefinitions(includeSelf bool) {
	for _, m := range p.Ctx.Modules() {
		p.populateDefinitions(m, m.Scope, nil, includeSelf)
	}
}

// PopulateRest runs the sweeps that only make sense once every
// definition is recorded: module/function return-type aggregation and
// parameter-usage accumulation.
func (p *Populator) PopulateRest() {
	for _, m := range p.Ctx.Modules() {
		p.populateModuleReturns(m)
	}
	for _, fn := range p.Ctx.Functions() {
		p.populateReturnSites(fn)
	}
	for _, m := range p.Ctx.Modules() {
		p.populateParameterUsage(m, m.Scope, nil)
	}
}

func (p *Populator) populateDefinitions(m *model.Module, scope *model.Scope, fnScope *model.Scope, includeSelf bool) {
	if scope == nil {
		return
	}
	for _, item := range scope.Items {
		switch it := item.(type) {
		case *model.AssignmentItem:
			p.defineTarget(m, scope, fnScope, it.TargetID, it.BaseID, it.RHS, it.Index, includeSelf)
		case *model.FunctionDefItem:
			var expr model.Expression
			if fn, ok := p.Ctx.Function(it.FunctionID); ok {
				expr = &model.LiteralExpr{
					LuaType:    "function",
					FunctionID: it.FunctionID,
					Parameters: fn.ParameterIDs,
					IsMethod:   len(fn.ParameterIDs) > 0 && fn.ParameterIDs[0].KindOf() == ids.Self,
				}
			}
			p.defineTarget(m, scope, fnScope, it.TargetID, it.BaseID, expr, 0, includeSelf)
		case *model.SubScopeItem:
			next := fnScope
			if it.Scope.Kind == model.FunctionScope {
				next = it.Scope
			}
			p.populateDefinitions(m, it.Scope, next, includeSelf)
		}
	}
}

func (p *Populator) defineTarget(m *model.Module, scope, fnScope *model.Scope, targetID, baseID ids.ID, rhs model.Expression, index int, includeSelf bool) {
	selfKind := baseID.KindOf() == ids.Self || baseID.KindOf() == ids.Instance
	if selfKind != includeSelf {
		return
	}
	info := &model.ExpressionInfo{
		Expression:     rhs,
		Index:          index,
		DefiningModule: m.FileID,
		FunctionLevel:  scope.Kind != model.ModuleScope,
	}
	if baseID == "" {
		if rhs != nil {
			p.localDefs[targetID] = rhs
		}
		if scope.Kind == model.ModuleScope {
			name := targetID.Name()
			m.Fields[name] = append(m.Fields[name], info)
		}
		return
	}
	table := p.resolveBaseTable(baseID, fnScope)
	if table == nil {
		return
	}
	info.Instance = baseID.KindOf() == ids.Self || baseID.KindOf() == ids.Instance
	table.Define(targetID.Name(), info)
}

func (p *Populator) resolveBaseTable(baseID ids.ID, fnScope *model.Scope) *model.TableInfo {
	if baseID.KindOf() == ids.Table {
		if t, ok := p.Ctx.Table(baseID); ok {
			return t
		}
	}
	if (baseID.KindOf() == ids.Self || baseID.KindOf() == ids.Instance) && fnScope != nil && fnScope.ClassTableID != "" {
		if t, ok := p.Ctx.Table(fnScope.ClassTableID); ok {
			return t
		}
	}
	// Follow a local/parameter/self binding through to whatever table it
	// was last bound from, e.g. `local t = {}` earlier in the same scope
	// chain, so `t.x = 1` still lands on t's TableInfo.
	seen := map[ids.ID]bool{}
	for cur := baseID; !seen[cur]; {
		seen[cur] = true
		expr, ok := p.localDefs[cur]
		if !ok {
			return nil
		}
		switch e := expr.(type) {
		case *model.LiteralExpr:
			if e.LuaType == "table" {
				if t, ok := p.Ctx.Table(e.TableID); ok {
					return t
				}
			}
			return nil
		case *model.ReferenceExpr:
			cur = e.ID
		default:
			return nil
		}
	}
	return nil
}

// populateModuleReturns walks a module's top-level scope for its own
// `return ...` statement(s), resolving each argument's type set the same
// way a function's return sites are resolved.
func (p *Populator) populateModuleReturns(m *model.Module) {
	if m.Scope == nil {
		return
	}
	for _, item := range m.Scope.Items {
		ri, ok := item.(*model.ReturnsItem)
		if !ok {
			continue
		}
		m.Returns = make([]model.TypeSet, len(ri.Arguments))
		for i, arg := range ri.Arguments {
			m.Returns[i] = p.Resolver.Resolve(arg, 1, nil)
		}
	}
}

// populateReturnSites finds fn's own body scope (the one whose
// FunctionID points back at fn) and aggregates every ReturnsItem in it,
// per spec.md §4.3's return-type accumulation: each return position's
// type set is the union across every site that supplies a value there;
// a site that falls short of another site's arity makes that position
// nilable everywhere (this function adds nil to those positions itself
// and records the smallest arity in MinReturns).
func (p *Populator) populateReturnSites(fn *model.FunctionInfo) {
	p.populateReturnSitesVisiting(fn, map[ids.ID]bool{})
}

// populateReturnSitesVisiting is populateReturnSites with a cycle guard
// threaded through, so resolving a tail call's callee arity (below) can
// recurse into the callee's own populateReturnSites without looping
// forever on mutual tail calls (`f` tail-calls `g`, `g` tail-calls `f`).
// A callee still being visited is treated as arity-0: conservative, not
// expanding, rather than wrong.
func (p *Populator) populateReturnSitesVisiting(fn *model.FunctionInfo, visiting map[ids.ID]bool) {
	if p.returnsDone[fn.ID] || visiting[fn.ID] {
		return
	}
	visiting[fn.ID] = true
	defer delete(visiting, fn.ID)

	body := p.findFunctionScope(fn.ID)
	if body == nil {
		p.returnsDone[fn.ID] = true
		return
	}
	fn.ReturnSites = nil
	p.collectReturnSites(fn, body)

	// A site whose last position is itself a call unpacks that callee's
	// entire return list into this site (spec.md §4.3's tail-call special
	// case), so its effective arity can exceed len(site). tailFns[i] holds
	// the resolved callee(s) for site i when that expansion applies, nil
	// otherwise.
	arities := make([]int, len(fn.ReturnSites))
	tailFns := make([][]*model.FunctionInfo, len(fn.ReturnSites))
	maxArity := 0
	for i, site := range fn.ReturnSites {
		arities[i] = len(site)
		if n := len(site); n > 0 {
			if tail, ok := site[n-1].(*model.OperationExpr); ok && tail.Operator == "call" {
				if fns := p.resolveCalleeFunctions(tail); len(fns) > 0 {
					tailArity := 0
					for _, callee := range fns {
						p.populateReturnSitesVisiting(callee, visiting)
						if len(callee.ReturnTypes) > tailArity {
							tailArity = len(callee.ReturnTypes)
						}
					}
					tailFns[i] = fns
					arities[i] = n - 1 + tailArity
				}
			}
		}
		if arities[i] > maxArity {
			maxArity = arities[i]
		}
	}

	fn.MinReturns = -1
	for _, a := range arities {
		if fn.MinReturns < 0 || a < fn.MinReturns {
			fn.MinReturns = a
		}
	}
	if fn.MinReturns < 0 {
		fn.MinReturns = 0
	}

	fn.ReturnTypes = make([]model.TypeSet, maxArity)
	for i := 0; i < maxArity; i++ {
		out := model.NewTypeSet()
		for si, site := range fn.ReturnSites {
			if ts, ok := p.resolveSitePosition(site, arities[si], tailFns[si], i); ok {
				out = out.Union(ts)
			} else {
				out.Add(string(model.Nil))
			}
		}
		fn.ReturnTypes[i] = out
	}
	p.returnsDone[fn.ID] = true
}

// resolveSitePosition resolves the type set a return site supplies at
// position pos (0-based), given that site's effective arity (which may
// exceed len(site) when its last element is a tail-unpacked call, in
// which case tailFns holds the resolved callee(s)). ok is false when pos
// falls past the site's arity (the position should be narrowed toward
// nil at this site, same as a too-short non-tail site).
func (p *Populator) resolveSitePosition(site []model.Expression, arity int, tailFns []*model.FunctionInfo, pos int) (model.TypeSet, bool) {
	if pos >= arity {
		return nil, false
	}
	n := len(site)
	if tailFns == nil || pos < n-1 {
		return p.Resolver.Resolve(site[pos], 1, nil), true
	}
	// pos lands in the tail call's own expanded return list: read it
	// straight off the resolved callee(s), not through the Type
	// Resolver, since a bare call expression re-resolved there would
	// have to re-derive the same callee lookup this package already did.
	tailIndex := pos - (n - 1)
	out := model.NewTypeSet()
	for _, callee := range tailFns {
		if tailIndex < len(callee.ReturnTypes) {
			out = out.Union(callee.ReturnTypes[tailIndex])
		} else {
			out.Add(string(model.Nil))
		}
	}
	return out, true
}

// resolveCalleeFunctions resolves a call expression's callee to the
// FunctionInfo(s) it can statically refer to: a direct function-literal
// binding chased through local/global aliasing the same way
// resolveBaseTable chases a table binding, a method looked up on a known
// table (`Widget.new(...)`), or whatever the Type Resolver's own
// reference resolution already finds.
func (p *Populator) resolveCalleeFunctions(call *model.OperationExpr) []*model.FunctionInfo {
	if len(call.Arguments) == 0 {
		return nil
	}
	var out []*model.FunctionInfo
	switch callee := call.Arguments[0].(type) {
	case *model.ReferenceExpr:
		if id, ok := p.resolveFunctionID(callee.ID); ok {
			if fn, ok := p.Ctx.Function(id); ok {
				out = append(out, fn)
			}
		}
	case *model.MemberExpr:
		if baseRef, ok := callee.Base.(*model.ReferenceExpr); ok {
			if table := p.resolveBaseTable(baseRef.ID, nil); table != nil {
				for _, info := range table.Definitions[callee.Member] {
					if lit, ok := info.Expression.(*model.LiteralExpr); ok && lit.LuaType == "function" {
						if fn, ok := p.Ctx.Function(lit.FunctionID); ok {
							out = append(out, fn)
						}
					}
				}
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for member := range p.Resolver.Resolve(call.Arguments[0], 1, nil) {
		id := ids.ID(member)
		if id.KindOf() != ids.Function {
			continue
		}
		if fn, ok := p.Ctx.Function(id); ok {
			out = append(out, fn)
		}
	}
	return out
}

// resolveFunctionID chases id through localDefs the way resolveBaseTable
// chases a table binding, for a plain identifier (local or global) bound
// to a function literal rather than directly carrying a Function-kind ID.
func (p *Populator) resolveFunctionID(id ids.ID) (ids.ID, bool) {
	if id.KindOf() == ids.Function {
		return id, true
	}
	seen := map[ids.ID]bool{}
	for cur := id; !seen[cur]; {
		seen[cur] = true
		expr, ok := p.localDefs[cur]
		if !ok {
			return "", false
		}
		switch e := expr.(type) {
		case *model.LiteralExpr:
			if e.LuaType == "function" {
				return e.FunctionID, true
			}
			return "", false
		case *model.ReferenceExpr:
			cur = e.ID
		default:
			return "", false
		}
	}
	return "", false
}

func (p *Populator) collectReturnSites(fn *model.FunctionInfo, scope *model.Scope) {
	for _, item := range scope.Items {
		switch it := item.(type) {
		case *model.ReturnsItem:
			fn.ReturnSites = append(fn.ReturnSites, it.Arguments)
		case *model.SubScopeItem:
			if it.Scope.Kind == model.FunctionScope {
				continue // a nested function's returns belong to it, not fn
			}
			p.collectReturnSites(fn, it.Scope)
		}
	}
}

func (p *Populator) findFunctionScope(id ids.ID) *model.Scope {
	for _, m := range p.Ctx.Modules() {
		if found := findScopeByFunctionID(m.Scope, id); found != nil {
			return found
		}
	}
	return nil
}

func findScopeByFunctionID(scope *model.Scope, id ids.ID) *model.Scope {
	if scope == nil {
		return nil
	}
	for _, item := range scope.Items {
		sub, ok := item.(*model.SubScopeItem)
		if !ok {
			continue
		}
		if sub.Scope.FunctionID == id {
			return sub.Scope
		}
		if found := findScopeByFunctionID(sub.Scope, id); found != nil {
			return found
		}
	}
	return nil
}

// populateParameterUsage accumulates every UsageItem observed against a
// parameter/self reference into that parameter's ParameterTypes entry
// (spec.md §4.3's usage-narrowing, applied at the parameter-declaration
// site rather than per call site).
func (p *Populator) populateParameterUsage(m *model.Module, scope *model.Scope, fn *model.FunctionInfo) {
	if scope == nil {
		return
	}
	if scope.Kind == model.FunctionScope && scope.FunctionID != "" {
		if found, ok := p.Ctx.Function(scope.FunctionID); ok {
			fn = found
		}
	}
	for _, item := range scope.Items {
		switch it := item.(type) {
		case *model.UsageItem:
			if fn == nil {
				continue
			}
			ref, ok := it.Expr.(*model.ReferenceExpr)
			if !ok {
				continue
			}
			for i, pid := range fn.ParameterIDs {
				if pid == ref.ID {
					fn.ParameterTypes[i] = fn.ParameterTypes[i].Union(it.Usage.Coarse())
					if p.Resolver.Heuristics {
						fn.ParameterTypes[i] = fn.ParameterTypes[i].Union(typeresolver.ParameterHeuristic(ref.ID.Name()))
					}
				}
			}
		case *model.SubScopeItem:
			p.populateParameterUsage(m, it.Scope, fn)
		}
	}
}
