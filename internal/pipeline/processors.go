package pipeline

import (
	"context"

	"github.com/lua-modkit/stubgen/internal/ast"
	"github.com/lua-modkit/stubgen/internal/classresolver"
	"github.com/lua-modkit/stubgen/internal/depresolver"
	"github.com/lua-modkit/stubgen/internal/diagnostics"
	"github.com/lua-modkit/stubgen/internal/finalizer"
	"github.com/lua-modkit/stubgen/internal/model"
	"github.com/lua-modkit/stubgen/internal/populator"
	"github.com/lua-modkit/stubgen/internal/schemabridge"
	"github.com/lua-modkit/stubgen/internal/scopereader"
	"github.com/lua-modkit/stubgen/internal/typeresolver"
)

// DependencyResolverStage wraps the Dependency Resolver (component A):
// it extracts facts for every source and fixes ctx.Order, the file order
// every later stage walks in.
type DependencyResolverStage struct{}

func (DependencyResolverStage) Process(ctx *Context) *Context {
	seenID := map[string]bool{}
	var deduped []depresolver.Source
	for _, s := range ctx.Sources {
		if seenID[s.ID] {
			ctx.Errors = append(ctx.Errors, diagnostics.New(diagnostics.DuplicateIdentifier, s.ID, ast.Position{}, "two sources normalize to identifier %q; keeping the first", s.ID))
			continue
		}
		seenID[s.ID] = true
		deduped = append(deduped, s)
	}
	ctx.Sources = deduped

	facts, err := depresolver.ReadAll(context.Background(), ctx.Sources)
	if err != nil {
		ctx.Errors = append(ctx.Errors, diagnostics.New(diagnostics.IoError, "", ast.Position{}, "reading sources: %v", err))
		return ctx
	}
	subdirs := ctx.Options.Subdirectories
	if len(subdirs) == 0 {
		seen := map[string]bool{}
		for _, f := range facts {
			if !seen[f.Subdir] {
				seen[f.Subdir] = true
				subdirs = append(subdirs, f.Subdir)
			}
		}
	}
	ctx.Order = depresolver.Order(facts, subdirs)
	return ctx
}

// ScopeReaderStage wraps the Scope & Expression Reader (component B): for
// every source, in dependency order, it builds a model.Module and reads
// its chunk into a Scope tree, registering the result on the shared
// AnalysisContext.
type ScopeReaderStage struct{}

func (ScopeReaderStage) Process(ctx *Context) *Context {
	bySourceID := make(map[string]depresolver.Source, len(ctx.Sources))
	for _, s := range ctx.Sources {
		bySourceID[s.ID] = s
	}
	for _, id := range ctx.Order {
		src, ok := bySourceID[id]
		if !ok {
			continue
		}
		m := model.NewModule(src.ID, src.ID)
		reader := scopereader.New(ctx.Ctx, m)
		if src.Root == nil {
			ctx.Errors = append(ctx.Errors, diagnostics.New(diagnostics.ParseError, src.ID, ast.Position{}, "source has no parsed chunk"))
			continue
		}
		m.Scope = reader.ReadChunk(src.Root)
		if existing, ok := ctx.Ctx.Module(src.ID); ok {
			ctx.Errors = append(ctx.Errors, diagnostics.New(diagnostics.DuplicateIdentifier, src.ID, ast.Position{}, "module %q already registered as %q", src.ID, existing.FileID))
			continue
		}
		ctx.Ctx.AddModule(m)
	}
	return ctx
}

// AnalyzeStage wires the driving sweep (internal/populator, component E)
// and the idiom detector (internal/classresolver, component D) together.
//
// The two have a mutual dependency: detectSetmetatable wants a plain
// table's fields (`local a = {}; a.x = 1; setmetatable(a, B)`) already
// recorded so it can carry them over as instance fields, while
// detectClosureClass needs to run before self/instance writes
// (`self.x = ...`) can resolve, since that's what sets fn.ClassTableID
// for the closure-class idiom. Populator.PopulateDefinitions's
// includeSelf split exists exactly for this: run it once for everything
// except self/instance writes, run the Class Resolver (which also
// covers the other idioms, all of which only read Scope Items, not
// Definitions), then run it again for the self/instance writes that
// now have a ClassTableID to resolve against. Neither half runs twice,
// so TableInfo.Define's unconditional append never double-counts.
type AnalyzeStage struct {
	Heuristics bool
}

func (s AnalyzeStage) Process(ctx *Context) *Context {
	resolver := typeresolver.New(ctx.Ctx, s.Heuristics)
	pop := populator.New(ctx.Ctx, resolver)

	pop.PopulateDefinitions(false)
	classresolver.New(ctx.Ctx).Run()
	pop.PopulateDefinitions(true)
	pop.PopulateRest()

	return ctx
}

// FinalizeStage wraps the Finalizer (component F) and the Merge/Schema
// bridge (component G): it resolves every accumulated raw TypeSet down to
// a concrete schema-renderable type list and builds the output File,
// merging against ctx.ExistingSchema when the caller supplied one.
type FinalizeStage struct{}

func (FinalizeStage) Process(ctx *Context) *Context {
	ctx.Finalizer = finalizer.New(ctx.Ctx)
	merger := schemabridge.NewMerger(ctx.Ctx, ctx.Finalizer)
	merger.RosettaOnly = ctx.Options.RosettaOnly
	ctx.Schema = merger.BuildFile(ctx.ExistingSchema)
	return ctx
}

// Default builds the fixed four-stage pipeline every run threads its
// Context through, in spec.md §2's component order.
func Default(heuristics bool) *Pipeline {
	return New(
		DependencyResolverStage{},
		ScopeReaderStage{},
		AnalyzeStage{Heuristics: heuristics},
		FinalizeStage{},
	)
}
