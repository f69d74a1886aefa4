package typeresolver

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
)

// assertTypeSetEqual fails with a field-by-field diff (via kr/pretty)
// rather than testify's default %+v dump, which just prints both full
// slices and leaves spotting the one differing element to the reader.
func assertTypeSetEqual(t *testing.T, want, got model.TypeSet) {
	t.Helper()
	ws, gs := want.Sorted(), got.Sorted()
	if !assert.ObjectsAreEqual(ws, gs) {
		t.Fatalf("type set mismatch:\n%s", pretty.Diff(ws, gs))
	}
}

func TestResolveLiteralPrimitives(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	assert.Equal(t, []string{string(model.Number)}, r.Resolve(&model.LiteralExpr{LuaType: "number"}, 1, nil).Sorted())
	assert.Equal(t, []string{string(model.String)}, r.Resolve(&model.LiteralExpr{LuaType: "string"}, 1, nil).Sorted())
	assert.Equal(t, []string{string(model.Nil)}, r.Resolve(&model.LiteralExpr{LuaType: "nil"}, 1, nil).Sorted())
}

func TestResolveBooleanLiteralsCollapseToBoolean(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	// A single boolean literal resolves to the true/false refinement...
	assert.Equal(t, []string{string(model.True)}, r.Resolve(&model.LiteralExpr{LuaType: "boolean", BoolValue: true}, 1, nil).Sorted())

	// ...but a union of both (the ternary `cond and true or false`)
	// collapses to the coarse "boolean".
	cond := &model.ReferenceExpr{ID: ctx.IDs.New(ids.Parameter, "cond")}
	or := &model.OperationExpr{Operator: "or", Arguments: []model.Expression{
		&model.OperationExpr{Operator: "and", Arguments: []model.Expression{
			cond, &model.LiteralExpr{LuaType: "boolean", BoolValue: true},
		}},
		&model.LiteralExpr{LuaType: "boolean", BoolValue: false},
	}}
	assert.Equal(t, []string{string(model.Boolean)}, r.Resolve(or, 1, nil).Sorted())
}

func TestResolveParameterReferenceWithoutHeuristics(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)
	id := ctx.IDs.New(ids.Parameter, "isEnabled")

	out := r.Resolve(&model.ReferenceExpr{ID: id}, 1, nil)
	assert.Equal(t, []string{string(id)}, out.Sorted(), "without Heuristics, a parameter reference resolves to its own marker ID")
}

func TestResolveParameterReferenceWithHeuristics(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, true)
	id := ctx.IDs.New(ids.Parameter, "isEnabled")

	out := r.Resolve(&model.ReferenceExpr{ID: id}, 1, nil)
	assert.Contains(t, out, string(model.Boolean))
}

func TestParameterHeuristicNameRules(t *testing.T) {
	assert.Equal(t, []string{string(model.Boolean)}, ParameterHeuristic("isVisible").Sorted())
	assert.Equal(t, []string{string(model.Number)}, ParameterHeuristic("numItems").Sorted())
	assert.Equal(t, []string{string(model.String)}, ParameterHeuristic("displayName").Sorted())
	assert.Empty(t, ParameterHeuristic("widget"))
}

func TestResolveConcatenationIsString(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)
	op := &model.OperationExpr{Operator: "..", Arguments: []model.Expression{
		&model.LiteralExpr{LuaType: "string"}, &model.LiteralExpr{LuaType: "string"},
	}}
	assert.Equal(t, []string{string(model.String)}, r.Resolve(op, 1, nil).Sorted())
}

func TestResolveComparisonIsBoolean(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)
	op := &model.OperationExpr{Operator: "==", Arguments: []model.Expression{
		&model.LiteralExpr{LuaType: "number"}, &model.LiteralExpr{LuaType: "number"},
	}}
	assert.Equal(t, []string{string(model.Boolean)}, r.Resolve(op, 1, nil).Sorted())
}

func TestResolveNotWithStaticTruthiness(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)
	not := &model.OperationExpr{Operator: "not", Arguments: []model.Expression{
		&model.LiteralExpr{LuaType: "boolean", BoolValue: true},
	}}
	assert.Equal(t, []string{string(model.False)}, r.Resolve(not, 1, nil).Sorted())
}

func TestResolveTernaryIdiom(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)
	// cond and "yes" or "no"
	cond := &model.ReferenceExpr{ID: ids.ID("@parameter(1)[cond]")}
	expr := &model.OperationExpr{Operator: "or", Arguments: []model.Expression{
		&model.OperationExpr{Operator: "and", Arguments: []model.Expression{
			cond, &model.LiteralExpr{LuaType: "string"},
		}},
		&model.LiteralExpr{LuaType: "string"},
	}}
	assert.Equal(t, []string{string(model.String)}, r.Resolve(expr, 1, nil).Sorted())
}

func TestResolveMemberOnTable(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	table := ctx.NewTable("Widget")
	table.Define("name", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "string"}})

	base := &model.LiteralExpr{LuaType: "table", TableID: table.ID}
	member := &model.MemberExpr{Base: base, Member: "name"}

	assert.Equal(t, []string{string(model.String)}, r.Resolve(member, 1, nil).Sorted())
}

func TestResolveIndexWithLiteralKey(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	table := ctx.NewTable("Widget")
	table.Define("x", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "number"}})

	base := &model.LiteralExpr{LuaType: "table", TableID: table.ID}
	idx := &model.IndexExpr{Base: base, Index: &model.LiteralExpr{LuaType: "string", StringValue: "x"}}

	assert.Equal(t, []string{string(model.Number)}, r.Resolve(idx, 1, nil).Sorted())
}

func TestResolveIndexWithNonLiteralKeyIsEmpty(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	table := ctx.NewTable("Widget")
	table.Define("x", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "number"}})
	base := &model.LiteralExpr{LuaType: "table", TableID: table.ID}
	idx := &model.IndexExpr{Base: base, Index: &model.ReferenceExpr{ID: ids.ID("@parameter(1)[k]")}}

	assert.Empty(t, r.Resolve(idx, 1, nil))
}

func TestResolveCallIntrinsic(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)
	call := &model.OperationExpr{Operator: "call", Arguments: []model.Expression{
		&model.ReferenceExpr{ID: ctx.IDs.New(ids.Local, "tostring")},
		&model.LiteralExpr{LuaType: "number"},
	}}
	assert.Equal(t, []string{string(model.String)}, r.Resolve(call, 1, nil).Sorted())
}

func TestResolveCallConstructorReturnsOwningTable(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	table := ctx.NewTable("Widget")
	fn := ctx.NewFunction("new")
	fn.IsConstructor = true

	callee := &model.MemberExpr{
		Base:   &model.LiteralExpr{LuaType: "table", TableID: table.ID},
		Member: "new",
	}
	// Wire the callee reference to resolve to the constructor function.
	fnLitRef := &model.ReferenceExpr{ID: ctx.IDs.New(ids.Local, "ctorRef")}
	table.Define("new", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "function", FunctionID: fn.ID}})

	member := &model.MemberExpr{Base: &model.LiteralExpr{LuaType: "table", TableID: table.ID}, Member: "new"}
	call := &model.OperationExpr{Operator: "call", Arguments: []model.Expression{member}}

	_ = callee
	_ = fnLitRef
	out := r.Resolve(call, 1, nil)
	assertTypeSetEqual(t, model.NewTypeSet(string(table.ID)), out)
}

func TestResolveCallMissingReturnPositionIsNilable(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	fn := ctx.NewFunction("f")
	fn.ReturnTypes = []model.TypeSet{model.NewTypeSet(string(model.Number))}

	fnRef := &model.LiteralExpr{LuaType: "function", FunctionID: fn.ID}
	call := &model.OperationExpr{Operator: "call", Arguments: []model.Expression{fnRef}}

	// Second return position was never recorded for this function.
	out := r.Resolve(call, 2, nil)
	assertTypeSetEqual(t, model.NewTypeSet(string(model.Nil)), out)
}

func TestResolveRequireFollowsAliasAndReturnIndex(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	mod := model.NewModule("shared/widgets", "shared/widgets.lua")
	mod.Returns = []model.TypeSet{model.NewTypeSet(string(model.Table))}
	ctx.AddModule(mod)
	ctx.Aliases["widgets"] = "shared/widgets"

	req := &model.RequireExpr{Module: "widgets"}
	assert.Equal(t, []string{string(model.Table)}, r.Resolve(req, 1, nil).Sorted())
}

func TestResolveNarrowsAgainstUsage(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	or := &model.OperationExpr{Operator: "or", Arguments: []model.Expression{
		&model.LiteralExpr{LuaType: "number"},
		&model.LiteralExpr{LuaType: "string"},
	}}
	out := r.Resolve(or, 1, &model.Usage{SupportsMath: true})
	assert.Equal(t, []string{string(model.Number)}, out.Sorted())
}

func TestResolveCyclicReferenceDoesNotInfiniteLoop(t *testing.T) {
	ctx := analysiscontext.New()
	r := New(ctx, false)

	mod := model.NewModule("m", "m.lua")
	ctx.AddModule(mod)

	id := ctx.IDs.New(ids.Local, "x")
	selfRef := &model.ReferenceExpr{ID: id}
	mod.Fields["x"] = []*model.ExpressionInfo{{Expression: selfRef}}

	require.NotPanics(t, func() {
		r.Resolve(selfRef, 1, nil)
	})
}
