// Package analysis is the top-level orchestrator: it wires the pipeline
// stages of internal/pipeline into the single entry point a caller (the
// CLI, a test, an embedder) drives a whole run through.
//
// Grounded on the teacher's pkg/cli/entry.go: one function that builds
// the shared state, threads it through every phase in order, and returns
// a single result/error pair rather than making the caller juggle each
// phase's output itself.
package analysis

import (
	"time"

	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/config"
	"github.com/lua-modkit/stubgen/internal/depresolver"
	"github.com/lua-modkit/stubgen/internal/diagnostics"
	"github.com/lua-modkit/stubgen/internal/pipeline"
	"github.com/lua-modkit/stubgen/internal/schemabridge"
)

// Result aggregates a run's output: the built schema file plus every
// diagnostic collected along the way, so a caller gets both halves of
// spec §7's "non-fatal warnings don't interrupt" contract without a
// second pass over logs.
type Result struct {
	RunID   string
	Schema  *schemabridge.File
	Errors  []*diagnostics.DiagnosticError
	Stats   analysiscontext.Stats
	Elapsed time.Duration
}

// Run executes the full pipeline over sources, merging against existing
// (nil for a from-scratch run) per opts, and returns the aggregated
// Result.
func Run(opts config.Options, sources []depresolver.Source, existing *schemabridge.File) *Result {
	start := time.Now()

	ctx := pipeline.NewContext(opts, sources, existing)
	p := pipeline.Default(opts.Heuristics)
	ctx = p.Run(ctx)

	return &Result{
		RunID:   ctx.Ctx.RunID.String(),
		Schema:  ctx.Schema,
		Errors:  append(ctx.Errors, ctx.Ctx.Diagnostics.All()...),
		Stats:   ctx.Ctx.Stats(),
		Elapsed: time.Since(start),
	}
}
