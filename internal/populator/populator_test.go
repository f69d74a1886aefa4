package populator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
	"github.com/lua-modkit/stubgen/internal/typeresolver"
)

func newPopulator() (*Populator, *analysiscontext.AnalysisContext) {
	ctx := analysiscontext.New()
	resolver := typeresolver.New(ctx, false)
	return New(ctx, resolver), ctx
}

// local x = 5 at module scope lands in m.Fields.
func TestPopulateDefinitionsRecordsModuleField(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	targetID := ctx.IDs.New(ids.Local, "x")
	scope.Items = append(scope.Items, &model.AssignmentItem{TargetID: targetID, RHS: &model.LiteralExpr{LuaType: "number"}})

	// A plain (non-self/instance) baseID belongs to the includeSelf=false half.
	p.PopulateDefinitions(false)

	require.Contains(t, m.Fields, "x")
	assert.Len(t, m.Fields["x"], 1)
}

// local t = {}; t.name = "x" lands the field on t's TableInfo, not Fields.
func TestPopulateDefinitionsRecordsTableField(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	table := ctx.NewTable("Widget")
	tID := ctx.IDs.New(ids.Local, "t")
	scope.Items = append(scope.Items,
		&model.AssignmentItem{TargetID: tID, RHS: &model.LiteralExpr{LuaType: "table", TableID: table.ID}},
		&model.AssignmentItem{TargetID: ctx.IDs.New(ids.Local, "name"), BaseID: tID, RHS: &model.LiteralExpr{LuaType: "string"}},
	)

	// Neither baseID here is self/instance, so both land in the includeSelf=false half.
	p.PopulateDefinitions(false)

	require.Contains(t, table.Definitions, "name")
	assert.Empty(t, m.Fields["name"], "a field write on a known-table local must not also land in module Fields")
}

// `self.x = ...` is deferred to the includeSelf=true pass.
func TestPopulateDefinitionsDefersSelfWrites(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	table := ctx.NewTable("Widget")
	fnScope := model.NewScope(ctx.IDs.New(ids.Function, "fn"), model.FunctionScope, scope)
	fnScope.ClassTableID = table.ID
	selfID := ctx.IDs.New(ids.Self, "self")
	fnScope.Items = append(fnScope.Items, &model.AssignmentItem{
		TargetID: ctx.IDs.New(ids.Local, "name"), BaseID: selfID, RHS: &model.LiteralExpr{LuaType: "string"},
	})
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: fnScope})

	p.PopulateDefinitions(false)
	assert.Empty(t, table.Definitions["name"], "self writes must not be recorded in the includeSelf=false pass")

	p.PopulateDefinitions(true)
	require.Contains(t, table.Definitions, "name")
	assert.True(t, table.Definitions["name"][0].Instance)
}

// t.x = 1 resolves t through localDefs even when t isn't itself a Table-kind ID.
func TestResolveBaseTableFollowsLocalBindingChain(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	table := ctx.NewTable("Widget")
	aID := ctx.IDs.New(ids.Local, "a")
	bID := ctx.IDs.New(ids.Local, "b")
	scope.Items = append(scope.Items,
		&model.AssignmentItem{TargetID: aID, RHS: &model.LiteralExpr{LuaType: "table", TableID: table.ID}},
		&model.AssignmentItem{TargetID: bID, RHS: &model.ReferenceExpr{ID: aID}},
		&model.AssignmentItem{TargetID: ctx.IDs.New(ids.Local, "x"), BaseID: bID, RHS: &model.LiteralExpr{LuaType: "number"}},
	)

	p.PopulateDefinitions(false)
	assert.Contains(t, table.Definitions, "x")
}

// A module-level `return a, b` resolves each argument's type into m.Returns.
func TestPopulateModuleReturns(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	scope.Items = append(scope.Items, &model.ReturnsItem{Arguments: []model.Expression{
		&model.LiteralExpr{LuaType: "number"},
		&model.LiteralExpr{LuaType: "string"},
	}})

	p.PopulateRest()
	require.Len(t, m.Returns, 2)
	assert.Equal(t, []string{string(model.Number)}, m.Returns[0].Sorted())
	assert.Equal(t, []string{string(model.String)}, m.Returns[1].Sorted())
}

// A function with two return sites of different arity gets a nilable
// second position and MinReturns reflecting the shorter site.
func TestPopulateReturnSitesUnionsAcrossSitesAndTracksMinReturns(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	fn := ctx.NewFunction("f")
	fnScope := model.NewScope(ctx.IDs.New(ids.Function, "f"), model.FunctionScope, scope)
	fnScope.FunctionID = fn.ID
	fnScope.Items = append(fnScope.Items,
		&model.ReturnsItem{Arguments: []model.Expression{&model.LiteralExpr{LuaType: "number"}, &model.LiteralExpr{LuaType: "string"}}},
		&model.ReturnsItem{Arguments: []model.Expression{&model.LiteralExpr{LuaType: "number"}}},
	)
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: fnScope})

	p.PopulateRest()

	assert.Equal(t, 1, fn.MinReturns)
	require.Len(t, fn.ReturnTypes, 2)
	assert.Equal(t, []string{string(model.Number)}, fn.ReturnTypes[0].Sorted())
	assert.ElementsMatch(t, []string{string(model.Nil), string(model.String)}, fn.ReturnTypes[1].Sorted())
}

// `function f() return 1, g() end` where g returns two values unpacks
// g's whole return list into f's returns: three positions, not two, and
// position 2 reflects g's second return rather than being dropped.
func TestPopulateReturnSitesUnpacksTailCall(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	g := ctx.NewFunction("g")
	gScope := model.NewScope(ctx.IDs.New(ids.Function, "g"), model.FunctionScope, scope)
	gScope.FunctionID = g.ID
	gScope.Items = append(gScope.Items, &model.ReturnsItem{Arguments: []model.Expression{
		&model.LiteralExpr{LuaType: "string"},
		&model.LiteralExpr{LuaType: "boolean", BoolValue: true},
	}})
	gID := ctx.IDs.New(ids.Local, "g")
	scope.Items = append(scope.Items,
		&model.SubScopeItem{Scope: gScope},
		&model.FunctionDefItem{TargetID: gID, FunctionID: g.ID},
	)

	f := ctx.NewFunction("f")
	fScope := model.NewScope(ctx.IDs.New(ids.Function, "f"), model.FunctionScope, scope)
	fScope.FunctionID = f.ID
	callG := &model.OperationExpr{Operator: "call", Arguments: []model.Expression{&model.ReferenceExpr{ID: gID}}}
	fScope.Items = append(fScope.Items, &model.ReturnsItem{Arguments: []model.Expression{
		&model.LiteralExpr{LuaType: "number"},
		callG,
	}})
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: fScope})

	// FunctionDefItem's binding of "g" to g's FunctionInfo is recorded by
	// the definitions sweep, not the return-site sweep.
	p.PopulateDefinitions(false)
	p.PopulateRest()

	require.Len(t, f.ReturnTypes, 3)
	assert.Equal(t, []string{string(model.Number)}, f.ReturnTypes[0].Sorted())
	assert.Equal(t, []string{string(model.String)}, f.ReturnTypes[1].Sorted())
	assert.Equal(t, []string{string(model.True)}, f.ReturnTypes[2].Sorted())
	assert.Equal(t, 3, f.MinReturns)
}

// A tail call whose callee can't be resolved to a known function is left
// unexpanded: arity stays the literal argument count.
func TestPopulateReturnSitesLeavesUnresolvedTailCallUnexpanded(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	f := ctx.NewFunction("f")
	fScope := model.NewScope(ctx.IDs.New(ids.Function, "f"), model.FunctionScope, scope)
	fScope.FunctionID = f.ID
	unknownCall := &model.OperationExpr{Operator: "call", Arguments: []model.Expression{
		&model.ReferenceExpr{ID: ctx.IDs.New(ids.Local, "undeclared")},
	}}
	fScope.Items = append(fScope.Items, &model.ReturnsItem{Arguments: []model.Expression{unknownCall}})
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: fScope})

	p.PopulateRest()

	require.Len(t, f.ReturnTypes, 1)
	assert.Equal(t, 1, f.MinReturns)
}

// Mutual tail recursion (`f` tail-calls `g`, `g` tail-calls `f`) must not
// loop forever; the first function visited treats the still-being-visited
// callee as arity-0 rather than expanding.
func TestPopulateReturnSitesMutualTailCallDoesNotLoop(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	f := ctx.NewFunction("f")
	g := ctx.NewFunction("g")
	fID := ctx.IDs.New(ids.Local, "f")
	gID := ctx.IDs.New(ids.Local, "g")

	fScope := model.NewScope(ctx.IDs.New(ids.Function, "f"), model.FunctionScope, scope)
	fScope.FunctionID = f.ID
	fScope.Items = append(fScope.Items, &model.ReturnsItem{Arguments: []model.Expression{
		&model.OperationExpr{Operator: "call", Arguments: []model.Expression{&model.ReferenceExpr{ID: gID}}},
	}})

	gScope := model.NewScope(ctx.IDs.New(ids.Function, "g"), model.FunctionScope, scope)
	gScope.FunctionID = g.ID
	gScope.Items = append(gScope.Items, &model.ReturnsItem{Arguments: []model.Expression{
		&model.OperationExpr{Operator: "call", Arguments: []model.Expression{&model.ReferenceExpr{ID: fID}}},
	}})

	scope.Items = append(scope.Items,
		&model.SubScopeItem{Scope: fScope},
		&model.FunctionDefItem{TargetID: fID, FunctionID: f.ID},
		&model.SubScopeItem{Scope: gScope},
		&model.FunctionDefItem{TargetID: gID, FunctionID: g.ID},
	)

	p.PopulateDefinitions(false)

	require.NotPanics(t, func() { p.PopulateRest() })
}

// A nested function's own returns must not pollute the outer function's
// ReturnSites.
func TestCollectReturnSitesStopsAtNestedFunctionBoundary(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	outer := ctx.NewFunction("outer")
	outerScope := model.NewScope(ctx.IDs.New(ids.Function, "outer"), model.FunctionScope, scope)
	outerScope.FunctionID = outer.ID

	inner := model.NewScope(ctx.IDs.New(ids.Function, "inner"), model.FunctionScope, outerScope)
	inner.Items = append(inner.Items, &model.ReturnsItem{Arguments: []model.Expression{&model.LiteralExpr{LuaType: "string"}}})
	outerScope.Items = append(outerScope.Items,
		&model.SubScopeItem{Scope: inner},
		&model.ReturnsItem{Arguments: []model.Expression{&model.LiteralExpr{LuaType: "number"}}},
	)
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: outerScope})

	p.PopulateRest()
	require.Len(t, outer.ReturnSites, 1)
	assert.Equal(t, []string{string(model.Number)}, outer.ReturnTypes[0].Sorted())
}

// A UsageItem recorded against a parameter reference accumulates into
// that parameter's type set.
func TestPopulateParameterUsageAccumulatesCoarseUsage(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	fn := ctx.NewFunction("f")
	paramID := ctx.IDs.New(ids.Parameter, "x")
	fn.ParameterIDs = []ids.ID{paramID}
	fn.ParameterNames = []string{"x"}
	fn.ParameterTypes = []model.TypeSet{model.NewTypeSet()}

	fnScope := model.NewScope(ctx.IDs.New(ids.Function, "f"), model.FunctionScope, scope)
	fnScope.FunctionID = fn.ID
	fnScope.Items = append(fnScope.Items, &model.UsageItem{
		Expr:  &model.ReferenceExpr{ID: paramID},
		Usage: &model.Usage{SupportsMath: true},
	})
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: fnScope})

	p.PopulateRest()
	assert.Contains(t, fn.ParameterTypes[0], string(model.Number))
}

func TestRunCombinesBothPopulateDefinitionsPasses(t *testing.T) {
	p, ctx := newPopulator()
	m := model.NewModule("m", "m.lua")
	scope := model.NewScope(ctx.IDs.New(ids.Module, "m"), model.ModuleScope, nil)
	m.Scope = scope
	ctx.AddModule(m)

	table := ctx.NewTable("Widget")
	fnScope := model.NewScope(ctx.IDs.New(ids.Function, "fn"), model.FunctionScope, scope)
	fnScope.ClassTableID = table.ID
	selfID := ctx.IDs.New(ids.Self, "self")
	fnScope.Items = append(fnScope.Items, &model.AssignmentItem{
		TargetID: ctx.IDs.New(ids.Local, "name"), BaseID: selfID, RHS: &model.LiteralExpr{LuaType: "string"},
	})
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: fnScope})

	p.Run()
	assert.Contains(t, table.Definitions, "name")
}
