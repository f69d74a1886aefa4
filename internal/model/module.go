package model

import "github.com/lua-modkit/stubgen/internal/ids"

// Module is one analyzed source file: its scope tree plus the roll-ups
// the later stages need without re-walking it (spec.md §3).
type Module struct {
	// FileID is the module's dependency-resolver identity: its require
	// path, normalized (spec.md §4.1).
	FileID string
	Path   string // on-disk source path, for diagnostics

	Tags []string // StubGen_* file-level directives captured from comments

	Scope *Scope // the module's top-level (ModuleScope) scope

	// Classes holds every table this module directly declares as a class
	// (any idiom); SeenClasses holds tables this module only referenced
	// (required/used) but didn't itself define — the Open Question 1
	// dedup/ordering distinction.
	Classes     []ids.ID
	SeenClasses []ids.ID

	Tables    []ids.ID
	Functions []ids.ID

	// Fields holds module-level global definitions (top-level locals and
	// bare globals), keyed by name, same shape as TableInfo.Definitions.
	Fields map[string][]*ExpressionInfo

	Returns []TypeSet // this module's own `return ...`, if it has one

	Prefix string // the schema namespace prefix this module's names render under
}

// NewModule allocates an empty Module for the given dependency-resolver
// identity and on-disk path.
func NewModule(fileID, path string) *Module {
	return &Module{
		FileID: fileID,
		Path:   path,
		Fields: make(map[string][]*ExpressionInfo),
	}
}
