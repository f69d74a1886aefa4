package pipeline

import (
	"github.com/lua-modkit/stubgen/internal/config"
	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/depresolver"
	"github.com/lua-modkit/stubgen/internal/diagnostics"
	"github.com/lua-modkit/stubgen/internal/finalizer"
	"github.com/lua-modkit/stubgen/internal/schemabridge"
)

// Context is the value threaded through every Processor, analogous to
// the teacher's *PipelineContext: each stage reads what it needs off it
// and writes its own output back on, in place.
type Context struct {
	Options config.Options

	// Sources is the corpus to analyze, supplied by the caller (parsing
	// itself is out of scope per spec.md §1; see internal/ast's package
	// doc).
	Sources []depresolver.Source

	// Order is the Dependency Resolver's output: Source IDs in analysis
	// order.
	Order []string

	Ctx *analysiscontext.AnalysisContext

	Finalizer *finalizer.Finalizer

	// ExistingSchema is the pre-existing schema file to merge against, if
	// the caller supplied one (component G); nil means a from-scratch run.
	ExistingSchema *schemabridge.File

	// Schema is the Merge/Schema bridge's output.
	Schema *schemabridge.File

	Errors []*diagnostics.DiagnosticError
}

// NewContext seeds a Context with a fresh AnalysisContext and the given
// options/sources, ready for Pipeline.Run.
func NewContext(opts config.Options, sources []depresolver.Source, existing *schemabridge.File) *Context {
	return &Context{
		Options:        opts,
		Sources:        sources,
		ExistingSchema: existing,
		Ctx:            analysiscontext.New(),
	}
}
