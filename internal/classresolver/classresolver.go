// Package classresolver implements the Class Resolver (component D,
// spec.md §4.4): a set of independent, shape-based detectors that
// promote tables to classes from the idioms the source language uses in
// place of a `class` keyword.
//
// Grounded on the teacher's internal/analyzer/declarations_instances*.go
// and declarations_patterns.go: detecting a semantic role (there, a
// trait-instance; here, a class) purely from the *shape* of an
// assignment/call rather than from a keyword.
package classresolver

import (
	"strings"

	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
)

// Resolver applies the idiom detectors across every registered module.
type Resolver struct {
	Ctx *analysiscontext.AnalysisContext

	// localDefs remembers the most recent plain binding (`local t = {}`,
	// `local u = t`) for every local/parameter ID, so a detector handed a
	// reference to a local variable — not a bare Table-kind ID — can still
	// resolve it down to the table it was bound from. Mirrors
	// populator.Populator.localDefs; the two packages run over the same
	// scope trees but don't share state, so each keeps its own.
	localDefs map[ids.ID]model.Expression
}

func New(ctx *analysiscontext.AnalysisContext) *Resolver {
	return &Resolver{Ctx: ctx, localDefs: make(map[ids.ID]model.Expression)}
}

// resolveTableID follows a plain local binding chain to the TableInfo ID
// it ultimately refers to. id itself is returned when it's already a
// Table-kind ID.
func (r *Resolver) resolveTableID(id ids.ID) (ids.ID, bool) {
	if id.KindOf() == ids.Table {
		return id, true
	}
	seen := map[ids.ID]bool{}
	for cur := id; !seen[cur]; {
		seen[cur] = true
		expr, ok := r.localDefs[cur]
		if !ok {
			return "", false
		}
		switch e := expr.(type) {
		case *model.LiteralExpr:
			if e.LuaType == "table" {
				return e.TableID, true
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

// Run walks every module's scope tree once, applying each detector to
// every assignment/usage/function-definition item it finds. Detectors
// are independent (spec.md §4.4: "the detector for each is independent
// and may fire in order"), so later detectors see the promotions earlier
// ones already made within the same pass.
func (r *Resolver) Run() {
	for _, m := range r.Ctx.Modules() {
		r.runModule(m)
	}
	r.mergeUnknownClasses()
}

func (r *Resolver) runModule(m *model.Module) {
	if m.Scope == nil {
		return
	}
	r.walkScope(m, m.Scope, nil)
}

// walkScope recurses depth-first over a scope's items, so closure-class
// detection (which needs the containing function's own identifier) can
// see both the function's items and its parent's assignment of it.
func (r *Resolver) walkScope(m *model.Module, scope *model.Scope, selfAssignedTo *model.Scope) {
	for _, item := range scope.Items {
		switch it := item.(type) {
		case *model.AssignmentItem:
			if it.BaseID == "" && it.RHS != nil {
				r.localDefs[it.TargetID] = it.RHS
			}
			r.detectDerive(m, scope, it)
			r.detectGlobalFieldOrMethod(m, scope, it)
			r.detectContainedTable(it)
			r.detectAtomUIFactory(m, scope, it)
		case *model.FunctionDefItem:
			r.detectImpliedNew(m, it)
			r.detectGlobalMethod(m, scope, it)
			r.detectNestedClass(m, it)
		case *model.UsageItem:
			r.detectSetmetatable(m, it)
		case *model.SubScopeItem:
			r.detectClosureClass(m, it.Scope)
			r.walkScope(m, it.Scope, scope)
		}
	}
}

// detectDerive implements idiom 1: `X = Base:derive("Name")`.
func (r *Resolver) detectDerive(m *model.Module, scope *model.Scope, it *model.AssignmentItem) {
	call, ok := it.RHS.(*model.OperationExpr)
	if !ok || call.Operator != "call" || len(call.Arguments) != 3 {
		return
	}
	callee, ok := call.Arguments[0].(*model.MemberExpr)
	if !ok || callee.Indexer != ":" || callee.Member != "derive" {
		return
	}
	nameLit, ok := call.Arguments[2].(*model.LiteralExpr)
	if !ok || nameLit.LuaType != "string" {
		return
	}

	info := r.Ctx.NewTable(it.TargetID.Name())
	info.ClassName = qualifiedName(m, it.TargetID.Name())
	info.OriginalDeriveName = nameLit.StringValue
	info.DefiningModule = m.FileID
	info.IsLocalDeriveClass = it.TargetID.KindOf() == ids.Local

	if baseRef, ok := callee.Base.(*model.ReferenceExpr); ok {
		info.OriginalBase = baseRef.ID.Name()
	}

	m.Classes = append(m.Classes, info.ID)
	scope.Declare(it.TargetID.Name()+"#class", info.ID)
}

// detectSetmetatable implements idiom 2: `setmetatable(a, b)`.
func (r *Resolver) detectSetmetatable(m *model.Module, it *model.UsageItem) {
	op, ok := it.Expr.(*model.OperationExpr)
	if !ok || op.Operator != "setmetatable" || len(op.Arguments) != 2 {
		return
	}
	instanceExpr, classExpr := op.Arguments[0], op.Arguments[1]

	var classTableID ids.ID
	switch b := classExpr.(type) {
	case *model.ReferenceExpr:
		if tid, ok := r.resolveTableID(b.ID); ok {
			classTableID = tid
		}
	case *model.LiteralExpr:
		if b.LuaType == "table" {
			if tbl, ok := r.Ctx.Table(b.TableID); ok {
				if idx, ok := tbl.Definitions["__index"]; ok && len(idx) > 0 {
					if ref, ok := idx[0].Expression.(*model.ReferenceExpr); ok {
						classTableID = ref.ID
					}
				}
			}
		}
	}
	if classTableID == "" {
		return
	}
	class, ok := r.Ctx.Table(classTableID)
	if !ok {
		return
	}

	instRef, ok := instanceExpr.(*model.ReferenceExpr)
	if !ok {
		return
	}
	instanceID := r.Ctx.IDs.New(ids.Instance, instRef.ID.Name())
	class.InstanceName = instRef.ID.Name()
	class.InstanceID = instanceID

	// Any fields already recorded on the table the instance reference is
	// bound to (`local a = {}; a.x = 1`) become instance fields of the class.
	if instTableID, ok := r.resolveTableID(instRef.ID); ok && instTableID != classTableID {
		if inst, ok := r.Ctx.Table(instTableID); ok {
			for field, infos := range inst.Definitions {
				for _, info := range infos {
					class.Define(field, &model.ExpressionInfo{
						Expression:     info.Expression,
						Instance:       true,
						DefiningModule: m.FileID,
					})
				}
			}
		}
	}
}

// detectClosureClass implements idiom 3: a function body declares
// `local self = {}` (or `local publ = {}`) and defines at least one
// `self.X = function...`. Only a table-literal binding is recognized (a
// `local self = Base.new(...)` body is not), and the function's own
// identifier is not inspected.
func (r *Resolver) detectClosureClass(m *model.Module, fn *model.Scope) {
	if fn.Kind != model.FunctionScope {
		return
	}
	selfName, selfTableID := detectSelfTable(fn)
	if selfName == "" {
		return
	}
	if !hasSelfMethodDef(fn, selfName) {
		return
	}

	table, ok := r.Ctx.Table(selfTableID)
	if !ok {
		return
	}

	fn.ClassSelfName = selfName
	fn.ClassTableID = selfTableID
	table.IsClosureClass = true
	table.DefiningModule = m.FileID
	table.ClassName = qualifiedName(m, lastPathSegment(m.FileID))
	m.Classes = append(m.Classes, table.ID)
}

func detectSelfTable(fn *model.Scope) (name string, tableID ids.ID) {
	for _, item := range fn.Items {
		ai, ok := item.(*model.AssignmentItem)
		if !ok {
			continue
		}
		lit, ok := ai.RHS.(*model.LiteralExpr)
		if !ok || lit.LuaType != "table" {
			continue
		}
		if n, ok := fn.LocalNames[ai.TargetID]; ok && (n == "self" || n == "publ") {
			return n, lit.TableID
		}
	}
	return "", ""
}

func hasSelfMethodDef(fn *model.Scope, selfName string) bool {
	selfID, ok := fn.Locals[selfName]
	if !ok {
		return false
	}
	for _, item := range fn.Items {
		if fd, ok := item.(*model.FunctionDefItem); ok && fd.BaseID == selfID {
			return true
		}
	}
	return false
}

// detectImpliedNew implements idiom 4: a `:new` method recognized as a
// constructor (spec.md §4.3's constructor-inference special case already
// flags FunctionInfo.IsConstructor) promotes its base table to a class
// named after the base's own binding, if that table isn't one already.
func (r *Resolver) detectImpliedNew(m *model.Module, it *model.FunctionDefItem) {
	fn, ok := r.Ctx.Function(it.FunctionID)
	if !ok || !fn.IsConstructor {
		return
	}
	ref, ok := fn.IdentifierExpression.(*model.MemberExpr)
	if !ok {
		return
	}
	baseRef, ok := ref.Base.(*model.ReferenceExpr)
	if !ok {
		return
	}
	tableID, ok := r.resolveTableID(baseRef.ID)
	if !ok {
		return
	}
	table, ok := r.Ctx.Table(tableID)
	if !ok || table.IsClass() {
		return
	}
	table.ClassName = qualifiedName(m, baseRef.ID.Name())
	table.DefiningModule = m.FileID
	m.Classes = append(m.Classes, table.ID)
}

// detectGlobalFieldOrMethod implements idiom 7: a field assigned on an
// unknown global reference at module scope (`Foo.bar = v` where `Foo`
// was never locally defined as a table) gets a placeholder class table,
// cached per name per module (spec.md §4.4 idiom 7).
func (r *Resolver) detectGlobalFieldOrMethod(m *model.Module, scope *model.Scope, it *model.AssignmentItem) {
	if scope.Kind != model.ModuleScope || it.BaseID == "" {
		return
	}
	if _, ok := r.resolveTableID(it.BaseID); ok {
		return // base already resolves to a known table/class
	}
	baseName := it.BaseID.Name()
	if _, declaredAsClass := scope.Locals[baseName+"#class"]; declaredAsClass {
		return
	}

	placeholderID := r.Ctx.MarkUnknownClass(m.FileID, baseName)
	placeholder, ok := r.Ctx.Table(placeholderID)
	if !ok {
		return
	}
	placeholder.Define(it.TargetID.Name(), &model.ExpressionInfo{
		Expression:     it.RHS,
		DefiningModule: m.FileID,
		FunctionLevel:  scope.Kind != model.ModuleScope,
	})
	m.SeenClasses = append(m.SeenClasses, placeholderID)
}

// detectGlobalMethod is detectGlobalFieldOrMethod's counterpart for
// `function Foo:bar() ... end` style definitions on an unknown global.
func (r *Resolver) detectGlobalMethod(m *model.Module, scope *model.Scope, it *model.FunctionDefItem) {
	if scope.Kind != model.ModuleScope || it.BaseID == "" {
		return
	}
	if _, ok := r.resolveTableID(it.BaseID); ok {
		return
	}
	baseName := it.BaseID.Name()
	if _, declaredAsClass := scope.Locals[baseName+"#class"]; declaredAsClass {
		return
	}

	placeholderID := r.Ctx.MarkUnknownClass(m.FileID, baseName)
	placeholder, ok := r.Ctx.Table(placeholderID)
	if !ok {
		return
	}
	fn, ok := r.Ctx.Function(it.FunctionID)
	if !ok {
		return
	}
	placeholder.Define(it.TargetID.Name(), &model.ExpressionInfo{
		Expression:     fn.IdentifierExpression,
		DefiningModule: m.FileID,
	})
	m.SeenClasses = append(m.SeenClasses, placeholderID)
}

// detectContainedTable records, for idiom 5, that a table literal
// assigned into a known class's field is nested inside that class, so a
// later function-in-table assignment (detectNestedClass) can promote the
// nested table once it's clear it's being used as a class itself.
func (r *Resolver) detectContainedTable(it *model.AssignmentItem) {
	if it.BaseID == "" || it.RHS == nil {
		return
	}
	containerID, ok := r.resolveTableID(it.BaseID)
	if !ok {
		return
	}
	container, ok := r.Ctx.Table(containerID)
	if !ok || !container.IsClass() {
		return
	}
	lit, ok := it.RHS.(*model.LiteralExpr)
	if !ok || lit.LuaType != "table" {
		return
	}
	nested, ok := r.Ctx.Table(lit.TableID)
	if !ok || nested.IsClass() {
		return
	}
	nested.ContainerID = containerID
	nested.OriginalName = it.TargetID.Name()
}

// detectNestedClass implements idiom 5: a function defined into a table
// that detectContainedTable already marked as nested inside a class
// promotes that container table to a nested class, named after the outer
// class plus the field it was bound under. The field definition already
// carries the nested table's own ID, so no separate rewrite of the outer
// definition is needed once the nested TableInfo itself carries a
// ClassName: any later lookup through that field resolves straight to
// the promoted class.
func (r *Resolver) detectNestedClass(m *model.Module, it *model.FunctionDefItem) {
	if it.BaseID == "" {
		return
	}
	tableID, ok := r.resolveTableID(it.BaseID)
	if !ok {
		return
	}
	nested, ok := r.Ctx.Table(tableID)
	if !ok || nested.IsClass() || nested.ContainerID == "" {
		return
	}
	container, ok := r.Ctx.Table(nested.ContainerID)
	if !ok || !container.IsClass() || container.ClassName == "" {
		return
	}
	nested.ClassName = container.ClassName + "." + nested.OriginalName
	nested.DefiningModule = m.FileID
	m.Classes = append(m.Classes, nested.ID)
}

// detectAtomUIFactory implements idiom 6: `Foo = A.__call({ _ATOM_UI_CLASS
// = X, ... })` creates an AtomUI base class from the argument table, and
// `Foo = Parent({ ... })` where Parent is itself an AtomUI class creates
// a derived AtomUI class from it. Either way, functions in the argument
// table whose first parameter is `self` are marked as methods directly
// on their own LiteralExpr (the same IsMethod flag the Populator sets
// for `:`-declared methods), since an anonymous table-literal function's
// first parameter never carries the Self ID kind that would otherwise
// signal it.
func (r *Resolver) detectAtomUIFactory(m *model.Module, scope *model.Scope, it *model.AssignmentItem) {
	call, ok := it.RHS.(*model.OperationExpr)
	if !ok || call.Operator != "call" || len(call.Arguments) != 2 {
		return
	}
	argTable, ok := call.Arguments[1].(*model.LiteralExpr)
	if !ok || argTable.LuaType != "table" {
		return
	}

	var isBase bool
	var originalBase string
	switch callee := call.Arguments[0].(type) {
	case *model.MemberExpr:
		if callee.Member != "__call" {
			return
		}
		if _, hasMarker := argTable.Fields["_ATOM_UI_CLASS"]; !hasMarker {
			return
		}
		isBase = true
	case *model.ReferenceExpr:
		baseID, ok := r.resolveTableID(callee.ID)
		if !ok {
			return
		}
		baseTable, ok := r.Ctx.Table(baseID)
		if !ok || !baseTable.IsAtomUI {
			return
		}
		originalBase = callee.ID.Name()
	default:
		return
	}

	table, ok := r.Ctx.Table(argTable.TableID)
	if !ok || table.IsClass() {
		return
	}
	table.ClassName = qualifiedName(m, it.TargetID.Name())
	table.IsAtomUI = true
	table.IsAtomUIBase = isBase
	table.OriginalBase = originalBase
	table.DefiningModule = m.FileID
	m.Classes = append(m.Classes, table.ID)
	scope.Declare(it.TargetID.Name()+"#class", table.ID)

	for _, val := range argTable.Fields {
		fnLit, ok := val.(*model.LiteralExpr)
		if !ok || fnLit.LuaType != "function" || len(fnLit.Parameters) == 0 {
			continue
		}
		if fnLit.Parameters[0].Name() == "self" {
			fnLit.IsMethod = true
		}
	}
}

func (r *Resolver) mergeUnknownClasses() {
	for module, byName := range r.Ctx.UnknownClasses {
		for name, placeholderID := range byName {
			placeholder, ok := r.Ctx.Table(placeholderID)
			if !ok {
				continue
			}
			real := r.findRealClass(module, name, placeholderID)
			if real == nil {
				continue
			}
			for field, infos := range placeholder.Definitions {
				existing := real.Definitions[field]
				if len(existing) == 1 && isEmptyDefinition(existing[0]) {
					real.Definitions[field] = nil
				}
				real.Definitions[field] = append(real.Definitions[field], infos...)
			}
			placeholder.IsEmptyClass = true
		}
	}
}

func (r *Resolver) findRealClass(module, name string, placeholder ids.ID) *model.TableInfo {
	for id, t := range r.Ctx.Tables() {
		if id == placeholder {
			continue
		}
		if t.DefiningModule == module && t.ClassName != "" && lastSegment(t.ClassName) == name {
			return t
		}
	}
	return nil
}

func isEmptyDefinition(info *model.ExpressionInfo) bool {
	return info.Expression == nil
}

func qualifiedName(m *model.Module, name string) string {
	if m.Prefix == "" {
		return name
	}
	return m.Prefix + "." + name
}

func lastPathSegment(path string) string {
	segs := strings.Split(path, "/")
	return segs[len(segs)-1]
}

func lastSegment(name string) string {
	segs := strings.Split(name, ".")
	return segs[len(segs)-1]
}
