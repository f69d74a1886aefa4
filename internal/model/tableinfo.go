package model

import "github.com/lua-modkit/stubgen/internal/ids"

// ExpressionInfo is one recorded definition of a table field or module
// global: the defining expression plus the provenance the Finalizer and
// Schema bridge need to render it (spec.md §3, §4.6).
type ExpressionInfo struct {
	Expression Expression

	// Index is the 1-based return-position selector when Expression is a
	// call whose Nth return value was assigned; 0 means "the whole value".
	Index int

	// Instance marks a definition made through `self` inside a method body
	// rather than on the table literal directly.
	Instance bool

	// FromLiteral marks a definition that came from the table's own
	// constructor (`{ field = ... }`) rather than a later assignment.
	FromLiteral bool

	DefiningModule string

	// FunctionLevel marks a definition made inside a function body (as
	// opposed to module top level), relevant to the unknown-global-class
	// merge idiom's ordering rule (spec.md §4.4 idiom 7).
	FunctionLevel bool
}

// TableInfo is the resolved record for one table literal/class, keyed by
// its TableID in the Shared Analysis Context.
type TableInfo struct {
	ID ids.ID

	// LiteralFields holds the inline `{ ... }` constructor values in
	// source order, before Definitions absorbs later assignments.
	LiteralFields []Expression

	// Definitions maps each known field name to every ExpressionInfo
	// recorded for it, across the literal and every later assignment.
	Definitions map[string][]*ExpressionInfo

	// ClassName is the resolved, user-facing class name once the Class
	// Resolver has run; empty for plain (non-class) tables.
	ClassName      string
	ContainerID    ids.ID // the table/module this table is nested under, if any
	OriginalName   string // the identifier/field name the table was first bound to

	IsClosureClass      bool
	IsLocalClass        bool
	IsLocalDeriveClass  bool
	IsEmptyClass        bool
	IsAtomUI            bool
	IsAtomUIBase        bool
	EmitAsTable         bool // finalizer should emit this as a plain table, not a class

	InstanceName string // the conventional self/instance parameter name, if any
	InstanceID   ids.ID

	DefiningModule string

	OriginalBase       string // the table/class name `setmetatable`/`derive` referenced as base
	OriginalDeriveName string // the literal name passed to a `derive(...)` call, if any
}

// NewTableInfo allocates an empty TableInfo for id.
func NewTableInfo(id ids.ID) *TableInfo {
	return &TableInfo{
		ID:          id,
		Definitions: make(map[string][]*ExpressionInfo),
	}
}

// Define appends info to the definitions recorded for field.
func (t *TableInfo) Define(field string, info *ExpressionInfo) {
	t.Definitions[field] = append(t.Definitions[field], info)
}

// IsClass reports whether the Class Resolver has assigned this table a
// class identity of any idiom.
func (t *TableInfo) IsClass() bool {
	return t.ClassName != "" || t.IsClosureClass || t.IsLocalClass || t.IsLocalDeriveClass || t.IsAtomUI
}
