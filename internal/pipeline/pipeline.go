// Package pipeline implements the Pipeline/Processor shape the whole
// engine runs under: an ordered list of stages, each taking and
// returning the same shared context, continuing past a stage's errors so
// later stages still contribute their own diagnostics.
//
// Grounded directly on the teacher's own internal/pipeline/pipeline.go
// (Pipeline.Run loops processors over a *PipelineContext, "continue on
// errors to collect diagnostics from all stages"), generalized from the
// teacher's lex/parse/analyze/evaluate stages to this engine's
// resolve-dependencies/read-scopes/populate/resolve-classes/finalize/
// merge stages (spec.md §2's component table).
package pipeline

// Processor is one pipeline stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// ProcessorFunc adapts a plain function to Processor, for stages that
// need no state of their own.
type ProcessorFunc func(ctx *Context) *Context

func (f ProcessorFunc) Process(ctx *Context) *Context { return f(ctx) }

// Pipeline is a fixed sequence of stages run in order.
type Pipeline struct {
	processors []Processor
}

// New builds a Pipeline from processors, run in the given order.
func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes every stage in order, threading ctx through each. A stage
// that hits trouble appends to ctx.Errors and returns normally; the
// pipeline does not abort early, so a caller sees every stage's
// diagnostics in one run (spec.md §7: most error kinds are logged and
// skip only their own file/module, not the whole run).
func (p *Pipeline) Run(ctx *Context) *Context {
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}
