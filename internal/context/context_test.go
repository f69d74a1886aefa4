package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lua-modkit/stubgen/internal/model"
)

func TestNewStampsRunIDAndEmptyRegistries(t *testing.T) {
	c := New()
	assert.NotEqual(t, "", c.RunID.String())
	assert.Empty(t, c.Modules())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestAddModuleDeduplicatesByFileIDAndPreservesOrder(t *testing.T) {
	c := New()
	c.AddModule(model.NewModule("b", "b.lua"))
	c.AddModule(model.NewModule("a", "a.lua"))
	replacement := model.NewModule("b", "b.lua")
	replacement.Tags = []string{"replaced"}
	c.AddModule(replacement)

	mods := c.Modules()
	require.Len(t, mods, 2, "re-adding an existing FileID must not grow the ordering")
	assert.Equal(t, "b", mods[0].FileID)
	assert.Equal(t, []string{"replaced"}, mods[0].Tags)
	assert.Equal(t, "a", mods[1].FileID)

	got, ok := c.Module("a")
	require.True(t, ok)
	assert.Equal(t, "a.lua", got.Path)

	_, ok = c.Module("missing")
	assert.False(t, ok)
}

func TestNewTableAndNewFunctionAllocateDistinctIDs(t *testing.T) {
	c := New()
	t1 := c.NewTable("Widget")
	t2 := c.NewTable("Widget")
	assert.NotEqual(t, t1.ID, t2.ID)

	got, ok := c.Table(t1.ID)
	require.True(t, ok)
	assert.Same(t, t1, got)

	f := c.NewFunction("handler")
	gotFn, ok := c.Function(f.ID)
	require.True(t, ok)
	assert.Same(t, f, gotFn)
}

func TestResolveAliasFallsBackToInputName(t *testing.T) {
	c := New()
	c.Aliases["widgets"] = "shared/widgets"

	assert.Equal(t, "shared/widgets", c.ResolveAlias("widgets"))
	assert.Equal(t, "unknown", c.ResolveAlias("unknown"))
}

func TestMarkUnknownClassIsIdempotentPerModuleAndName(t *testing.T) {
	c := New()
	id1 := c.MarkUnknownClass("client/main", "Widget")
	id2 := c.MarkUnknownClass("client/main", "Widget")
	id3 := c.MarkUnknownClass("client/other", "Widget")

	assert.Equal(t, id1, id2, "repeated references in the same module must reuse the placeholder")
	assert.NotEqual(t, id1, id3, "different modules get distinct placeholders")

	info, ok := c.Table(id1)
	require.True(t, ok)
	assert.Equal(t, "Widget", info.ClassName)
	assert.Equal(t, "client/main", info.DefiningModule)
}

func TestStatsCountsClassesAmongTables(t *testing.T) {
	c := New()
	c.AddModule(model.NewModule("a", "a.lua"))
	c.NewFunction("f")
	plain := c.NewTable("plain")
	cls := c.NewTable("Widget")
	cls.ClassName = "Widget"
	_ = plain

	s := c.Stats()
	assert.Equal(t, 1, s.Modules)
	assert.Equal(t, 2, s.Tables)
	assert.Equal(t, 1, s.Functions)
	assert.Equal(t, 1, s.Classes)
}
