// Package context implements the Shared Analysis Context (spec.md §3/§5):
// the single mutable registry every pipeline stage reads from and writes
// into, analogous to the teacher's Analyzer/walker struct passed by
// pointer through every analysis pass.
package context

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lua-modkit/stubgen/internal/diagnostics"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
)

// AnalysisContext owns every piece of cross-module state the pipeline
// stages share: the ID allocator, the module/table/function registries,
// the alias map, and the diagnostics
// collector. It has exactly one owner per run (spec.md §5: "no shared
// mutable state across tasks" beyond this single registry).
type AnalysisContext struct {
	// RunID correlates every diagnostic and log line from one analysis
	// run, the way the teacher's evaluator stamps request-scoped state.
	RunID uuid.UUID

	IDs         *ids.Allocator
	Diagnostics *diagnostics.Collector

	mu sync.Mutex

	modules   map[string]*model.Module // keyed by FileID
	moduleOrd []string                  // insertion order, for deterministic iteration

	tables    map[ids.ID]*model.TableInfo
	functions map[ids.ID]*model.FunctionInfo

	// Aliases maps a module-or-class alias name (as seen in a `require`
	// or a short local name) to its canonical FileID/TableID for
	// ResolveAlias. No pipeline stage writes to it, so only entries a
	// caller adds here are resolved.
	Aliases map[string]string

	// UnknownClasses tracks, per module, tables referenced under a class
	// name that was never locally defined — the unknown-global-class
	// placeholder idiom (spec.md §4.4 idiom 7) — keyed by module FileID
	// then class name.
	UnknownClasses map[string]map[string]ids.ID
}

// New allocates an empty AnalysisContext stamped with a fresh RunID.
func New() *AnalysisContext {
	runID := uuid.New()
	return &AnalysisContext{
		RunID:          runID,
		IDs:            ids.NewAllocator(),
		Diagnostics:    diagnostics.NewCollector(runID.String()),
		modules:        make(map[string]*model.Module),
		tables:         make(map[ids.ID]*model.TableInfo),
		functions:      make(map[ids.ID]*model.FunctionInfo),
		Aliases:        make(map[string]string),
		UnknownClasses: make(map[string]map[string]ids.ID),
	}
}

// AddModule registers m, keyed by its FileID. Safe for concurrent callers
// (the Dependency Resolver reads source files concurrently).
func (c *AnalysisContext) AddModule(m *model.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.modules[m.FileID]; !exists {
		c.moduleOrd = append(c.moduleOrd, m.FileID)
	}
	c.modules[m.FileID] = m
}

// Module looks up a registered module by FileID.
func (c *AnalysisContext) Module(fileID string) (*model.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.modules[fileID]
	return m, ok
}

// Modules returns every registered module in registration order.
func (c *AnalysisContext) Modules() []*model.Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Module, 0, len(c.moduleOrd))
	for _, id := range c.moduleOrd {
		out = append(out, c.modules[id])
	}
	return out
}

// NewTable allocates a fresh TableInfo under a new synthetic ID and
// registers it.
func (c *AnalysisContext) NewTable(name string) *model.TableInfo {
	id := c.IDs.New(ids.Table, name)
	info := model.NewTableInfo(id)
	c.mu.Lock()
	c.tables[id] = info
	c.mu.Unlock()
	return info
}

// Table looks up a registered TableInfo by ID.
func (c *AnalysisContext) Table(id ids.ID) (*model.TableInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[id]
	return t, ok
}

// Tables returns every registered TableInfo, keyed by ID.
func (c *AnalysisContext) Tables() map[ids.ID]*model.TableInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ids.ID]*model.TableInfo, len(c.tables))
	for k, v := range c.tables {
		out[k] = v
	}
	return out
}

// NewFunction allocates a fresh FunctionInfo under a new synthetic ID and
// registers it.
func (c *AnalysisContext) NewFunction(name string) *model.FunctionInfo {
	id := c.IDs.New(ids.Function, name)
	info := &model.FunctionInfo{ID: id}
	c.mu.Lock()
	c.functions[id] = info
	c.mu.Unlock()
	return info
}

// Function looks up a registered FunctionInfo by ID.
func (c *AnalysisContext) Function(id ids.ID) (*model.FunctionInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.functions[id]
	return f, ok
}

// Functions returns every registered FunctionInfo, keyed by ID.
func (c *AnalysisContext) Functions() map[ids.ID]*model.FunctionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ids.ID]*model.FunctionInfo, len(c.functions))
	for k, v := range c.functions {
		out[k] = v
	}
	return out
}

// ResolveAlias follows the Aliases map to a canonical name, or returns
// name unchanged if it has no alias entry.
func (c *AnalysisContext) ResolveAlias(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if canon, ok := c.Aliases[name]; ok {
		return canon
	}
	return name
}

// Stats is a point-in-time snapshot of registry sizes, for the CLI
// summary line only — not part of the core's resolution semantics.
type Stats struct {
	Modules   int
	Tables    int
	Functions int
	Classes   int
}

// Stats counts registered modules/tables/functions and how many tables
// carry a resolved class name.
func (c *AnalysisContext) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Modules: len(c.modules), Tables: len(c.tables), Functions: len(c.functions)}
	for _, t := range c.tables {
		if t.IsClass() {
			s.Classes++
		}
	}
	return s
}

// MarkUnknownClass records that module referenced className without a
// local definition, allocating a placeholder TableInfo on first sight and
// returning its ID on every call (idempotent per module+name).
func (c *AnalysisContext) MarkUnknownClass(module, className string) ids.ID {
	c.mu.Lock()
	byName, ok := c.UnknownClasses[module]
	if !ok {
		byName = make(map[string]ids.ID)
		c.UnknownClasses[module] = byName
	}
	if id, ok := byName[className]; ok {
		c.mu.Unlock()
		return id
	}
	c.mu.Unlock()

	info := c.NewTable(className)
	info.ClassName = className
	info.DefiningModule = module

	c.mu.Lock()
	byName[className] = info.ID
	c.mu.Unlock()
	return info.ID
}
