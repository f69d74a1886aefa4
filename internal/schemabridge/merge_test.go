package schemabridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/finalizer"
	"github.com/lua-modkit/stubgen/internal/model"
)

func newMerger() (*Merger, *analysiscontext.AnalysisContext) {
	ctx := analysiscontext.New()
	f := finalizer.New(ctx)
	return NewMerger(ctx, f), ctx
}

func TestBuildFileRendersClassWithFields(t *testing.T) {
	m, ctx := newMerger()
	table := ctx.NewTable("Widget")
	table.ClassName = "Widget"
	table.Define("name", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "string"}})

	out := m.BuildFile(nil)
	require.Contains(t, out.Languages.Lua.Classes, "Widget")
	assert.Equal(t, "string", out.Languages.Lua.Classes["Widget"].Fields["name"].Type)
	assert.NotContains(t, out.Languages.Lua.Tables, "Widget")
}

func TestBuildFileRendersPlainTableWhenEmitAsTable(t *testing.T) {
	m, ctx := newMerger()
	table := ctx.NewTable("Config")
	table.ClassName = "Config"
	table.EmitAsTable = true

	out := m.BuildFile(nil)
	assert.Contains(t, out.Languages.Lua.Tables, "Config")
	assert.NotContains(t, out.Languages.Lua.Classes, "Config")
}

func TestBuildFileSkipsNamelessTables(t *testing.T) {
	m, ctx := newMerger()
	ctx.NewTable("anon") // never assigned a ClassName

	out := m.BuildFile(nil)
	assert.Empty(t, out.Languages.Lua.Classes)
	assert.Empty(t, out.Languages.Lua.Tables)
}

func TestBuildFileSkipsEmptyClasses(t *testing.T) {
	m, ctx := newMerger()
	table := ctx.NewTable("Ghost")
	table.ClassName = "Ghost"
	table.IsEmptyClass = true

	out := m.BuildFile(nil)
	assert.NotContains(t, out.Languages.Lua.Classes, "Ghost")
}

func TestRenderTableDetectsMethodsSeparatelyFromFields(t *testing.T) {
	m, ctx := newMerger()
	table := ctx.NewTable("Widget")
	table.ClassName = "Widget"
	fn := ctx.NewFunction("greet")

	table.Define("greet", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "function", FunctionID: fn.ID}})
	table.Define("name", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "string"}})

	rendered := m.renderTable(table.ID, table)
	require.Len(t, rendered.Methods, 1)
	assert.Equal(t, "greet", rendered.Methods[0].Name)
	assert.Equal(t, "string", rendered.Fields["name"].Type)
	assert.NotContains(t, rendered.Fields, "greet")
}

func TestRenderTableFieldIsNullableWhenNilIsAMember(t *testing.T) {
	m, ctx := newMerger()
	table := ctx.NewTable("Widget")
	table.ClassName = "Widget"
	table.Define("maybe", &model.ExpressionInfo{Expression: &model.LiteralExpr{LuaType: "nil"}})

	rendered := m.renderTable(table.ID, table)
	assert.True(t, rendered.Fields["maybe"].Nullable)
}

func TestPreserveAnnotationsCopiesNotesAndTags(t *testing.T) {
	m, ctx := newMerger()
	table := ctx.NewTable("Widget")
	table.ClassName = "Widget"

	existing := &File{}
	existing.Languages.Lua.Classes = map[string]Class{
		"Widget": {Notes: "hand-written notes", Deprecated: true, Tags: []string{"legacy"}},
	}

	out := m.BuildFile(existing)
	got := out.Languages.Lua.Classes["Widget"]
	assert.Equal(t, "hand-written notes", got.Notes)
	assert.True(t, got.Deprecated)
	assert.Equal(t, []string{"legacy"}, got.Tags)
	_ = ctx
}

func TestPreserveAnnotationsRosettaOnlyKeepsUnanalyzedClass(t *testing.T) {
	m, ctx := newMerger()
	m.RosettaOnly = true
	_ = ctx

	existing := &File{}
	existing.Languages.Lua.Classes = map[string]Class{
		"Ghost": {Notes: "only in schema"},
	}

	out := m.BuildFile(existing)
	require.Contains(t, out.Languages.Lua.Classes, "Ghost")
	assert.Equal(t, "only in schema", out.Languages.Lua.Classes["Ghost"].Notes)
}

func TestPreserveAnnotationsNonRosettaDropsUnanalyzedClass(t *testing.T) {
	m, ctx := newMerger()
	_ = ctx

	existing := &File{}
	existing.Languages.Lua.Classes = map[string]Class{
		"Ghost": {Notes: "only in schema"},
	}

	out := m.BuildFile(existing)
	assert.NotContains(t, out.Languages.Lua.Classes, "Ghost")
}

func TestPreserveAnnotationsWarnsOnUnmatchedConstructors(t *testing.T) {
	m, ctx := newMerger()
	table := ctx.NewTable("Widget")
	table.ClassName = "Widget"

	existing := &File{}
	existing.Languages.Lua.Classes = map[string]Class{
		"Widget": {Constructors: []Function{{Name: "new"}}},
	}

	out := m.BuildFile(existing)
	assert.Len(t, out.Languages.Lua.Classes["Widget"].Constructors, 1)
	assert.NotEmpty(t, ctx.Diagnostics.All())
}
