package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorMonotonicPerKind(t *testing.T) {
	a := NewAllocator()
	f1 := a.New(Function, "foo")
	f2 := a.New(Function, "bar")
	t1 := a.New(Table, "Widget")

	assert.Equal(t, ID("@function(1)[foo]"), f1)
	assert.Equal(t, ID("@function(2)[bar]"), f2)
	assert.Equal(t, ID("@table(1)[Widget]"), t1)
}

func TestFormatEscapesBrackets(t *testing.T) {
	a := NewAllocator()
	id := a.New(Local, "weird[name]")
	assert.Equal(t, ID(`@local(1)[weird\[name\]]`), id)

	kind, ordinal, name, ok := Parse(id)
	require.True(t, ok)
	assert.Equal(t, Local, kind)
	assert.Equal(t, 1, ordinal)
	assert.Equal(t, "weird[name]", name)
}

func TestParseRejectsMalformedIDs(t *testing.T) {
	cases := []ID{
		"",
		"not-an-id",
		"@function[foo]",
		"@function(1)foo]",
		"@function(notanumber)[foo]",
		"@function(1)[unterminated",
	}
	for _, c := range cases {
		_, _, _, ok := Parse(c)
		assert.Falsef(t, ok, "expected %q to fail to parse", c)
	}
}

func TestKindOfAndNameOnMalformedID(t *testing.T) {
	bad := ID("garbage")
	assert.Equal(t, Kind(""), bad.KindOf())
	assert.Equal(t, "", bad.Name())
}

func TestKindOfAndName(t *testing.T) {
	a := NewAllocator()
	id := a.New(Self, "self")
	assert.Equal(t, Self, id.KindOf())
	assert.Equal(t, "self", id.Name())
}

func TestNewModuleValidatesPath(t *testing.T) {
	a := NewAllocator()

	id, err := a.NewModule("widgets/factory")
	require.NoError(t, err)
	assert.Equal(t, Module, id.KindOf())
	assert.Equal(t, "widgets/factory", id.Name())

	// An invalid path is still allocated: the engine must not fail a
	// whole run over naming.
	id2, err := a.NewModule("/leading/slash")
	assert.Error(t, err)
	assert.Equal(t, Module, id2.KindOf())
}

func TestIsMarkerKind(t *testing.T) {
	markers := []Kind{Parameter, Self, Instance, Function, Table}
	for _, k := range markers {
		assert.Truef(t, IsMarkerKind(k), "expected %q to be a marker kind", k)
	}
	nonMarkers := []Kind{Module, Local}
	for _, k := range nonMarkers {
		assert.Falsef(t, IsMarkerKind(k), "expected %q not to be a marker kind", k)
	}
}
