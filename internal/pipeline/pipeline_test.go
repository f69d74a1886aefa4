package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lua-modkit/stubgen/internal/ast"
	"github.com/lua-modkit/stubgen/internal/config"
	"github.com/lua-modkit/stubgen/internal/depresolver"
)

func ident(name string) *ast.Identifier { return &ast.Identifier{Name: name} }

func TestNewContextSeedsFreshAnalysisContext(t *testing.T) {
	sources := []depresolver.Source{{ID: "a", Root: &ast.Chunk{}}}
	ctx := NewContext(config.Default(), sources, nil)

	assert.Equal(t, sources, ctx.Sources)
	require.NotNil(t, ctx.Ctx)
	assert.Nil(t, ctx.ExistingSchema)
}

func TestPipelineRunThreadsContextThroughEveryStage(t *testing.T) {
	var order []string
	p := New(
		ProcessorFunc(func(c *Context) *Context { order = append(order, "first"); return c }),
		ProcessorFunc(func(c *Context) *Context { order = append(order, "second"); return c }),
	)
	p.Run(&Context{})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPipelineRunContinuesPastStageErrors(t *testing.T) {
	p := New(
		ProcessorFunc(func(c *Context) *Context { c.Errors = append(c.Errors, nil); return c }),
		ProcessorFunc(func(c *Context) *Context { c.Order = []string{"ran"}; return c }),
	)
	out := p.Run(&Context{})
	assert.Equal(t, []string{"ran"}, out.Order, "a later stage must still run after an earlier one records an error")
}

func TestDefaultBuildsFourStagePipeline(t *testing.T) {
	p := Default(true)
	assert.Len(t, p.processors, 4)
}

func TestDependencyResolverStageDedupesDuplicateSourceIDs(t *testing.T) {
	ctx := &Context{
		Sources: []depresolver.Source{
			{ID: "a", Subdir: "shared", Root: &ast.Chunk{}},
			{ID: "a", Subdir: "shared", Root: &ast.Chunk{}},
		},
	}
	out := DependencyResolverStage{}.Process(ctx)
	assert.Len(t, out.Sources, 1)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "DuplicateIdentifier", string(out.Errors[0].Code))
}

func TestDependencyResolverStageOrdersBySubdirThenDependency(t *testing.T) {
	sharedChunk := &ast.Chunk{}
	clientChunk := &ast.Chunk{Body: []ast.Statement{
		&ast.LocalStatement{
			Names: []*ast.Identifier{ident("Base")},
			Init: []ast.Expression{&ast.CallExpression{
				Base:      ident("require"),
				Arguments: []ast.Expression{&ast.StringLiteral{Value: "shared/base"}},
			}},
		},
	}}
	ctx := &Context{
		Options: config.Options{Subdirectories: []string{"shared", "client"}},
		Sources: []depresolver.Source{
			{ID: "client/main", Subdir: "client", Root: clientChunk},
			{ID: "shared/base", Subdir: "shared", Root: sharedChunk},
		},
	}
	out := DependencyResolverStage{}.Process(ctx)
	assert.Equal(t, []string{"shared/base", "client/main"}, out.Order)
}
