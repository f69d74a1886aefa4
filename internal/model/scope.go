package model

import (
	"github.com/lua-modkit/stubgen/internal/ast"
	"github.com/lua-modkit/stubgen/internal/ids"
)

// ScopeKind distinguishes the three nesting levels spec.md §3 tracks.
type ScopeKind string

const (
	ModuleScope   ScopeKind = "module"
	FunctionScope ScopeKind = "function"
	BlockScope    ScopeKind = "block"
)

// Scope is one lexical level of a module, built by the Scope & Expression
// Reader (component B) and consumed by every later stage. Scopes form a
// tree via Parent; Locals/LocalNames are the bidirectional name<->ID map
// for this level only (lookups walk Parent on miss).
type Scope struct {
	ID     ids.ID
	Kind   ScopeKind
	Parent *Scope

	Statements []ast.Statement
	Items      []Item

	Locals     map[string]ids.ID
	LocalNames map[ids.ID]string

	// ClassSelfName/ClassTableID are set when this is a function scope
	// whose body assigns into an upvalue table using a consistent "self"
	// name — the closure-class idiom (spec.md §4.4 idiom 3).
	ClassSelfName string
	ClassTableID  ids.ID

	// FunctionID links a FunctionScope back to the FunctionInfo its body
	// belongs to, so a later pass can walk the body's ReturnsItems without
	// re-deriving the association.
	FunctionID ids.ID
}

// NewScope allocates an empty scope of the given kind, chained to parent
// (nil for a module's top-level scope).
func NewScope(id ids.ID, kind ScopeKind, parent *Scope) *Scope {
	return &Scope{
		ID:         id,
		Kind:       kind,
		Parent:     parent,
		Locals:     make(map[string]ids.ID),
		LocalNames: make(map[ids.ID]string),
	}
}

// Declare binds name to id in this scope, recording both directions.
func (s *Scope) Declare(name string, id ids.ID) {
	s.Locals[name] = id
	s.LocalNames[id] = name
}

// Lookup resolves name in this scope or any ancestor, returning the
// nearest binding and true, or the zero ID and false if unbound (a free
// global reference).
func (s *Scope) Lookup(name string) (ids.ID, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if id, ok := cur.Locals[name]; ok {
			return id, true
		}
	}
	return "", false
}

// ItemKind tags the closed set of ordered analysis facts a scope records.
type ItemKind string

const (
	ItemAssignment         ItemKind = "assignment"
	ItemRequireAssignment  ItemKind = "requireAssignment"
	ItemFunctionDef        ItemKind = "functionDef"
	ItemUsage              ItemKind = "usage"
	ItemReturns            ItemKind = "returns"
	ItemPartialMarker      ItemKind = "partialMarker"
	ItemSubScope           ItemKind = "subScope"
)

// Item is one ordered fact recorded while reading a scope's statement
// list (spec.md §4.2): an assignment, a function definition, a usage
// observation, a return, a partial-marker (conditional/loop-guarded
// assignment), or a nested sub-scope.
type Item interface {
	ItemKind() ItemKind
}

// AssignmentItem: `target = rhs` (or the Index-th value of a multi-value
// rhs when rhs is itself multi-valued, e.g. unpacking a call's returns).
// BaseID is set only when target was a member expression (`base.field =
// ...`): the synthetic ID bound to base, for idioms that key off the
// field's owner rather than the field name alone.
type AssignmentItem struct {
	TargetID ids.ID
	BaseID   ids.ID
	RHS      Expression
	Index    int
}

func (*AssignmentItem) ItemKind() ItemKind { return ItemAssignment }

// RequireAssignmentItem: `local target = require("module")`.
type RequireAssignmentItem struct {
	TargetID ids.ID
	Module   string
}

func (*RequireAssignmentItem) ItemKind() ItemKind { return ItemRequireAssignment }

// FunctionDefItem: TargetID (a table field, local, or module global) is
// defined as the function FunctionID. BaseID mirrors AssignmentItem's.
type FunctionDefItem struct {
	TargetID   ids.ID
	BaseID     ids.ID
	FunctionID ids.ID
}

func (*FunctionDefItem) ItemKind() ItemKind { return ItemFunctionDef }

// UsageItem records that Expr was observed in the syntactic context Usage
// (spec.md §4.2's usage taxonomy), independent of any assignment.
type UsageItem struct {
	Expr  Expression
	Usage *Usage
}

func (*UsageItem) ItemKind() ItemKind { return ItemUsage }

// ReturnsItem: `return a, b, ...` at this scope level.
type ReturnsItem struct {
	Arguments []Expression
}

func (*ReturnsItem) ItemKind() ItemKind { return ItemReturns }

// PartialMarkerItem flags that the following items in this scope are
// conditionally executed (inside an if/while/for body), so definitions
// recorded after it must union rather than overwrite prior bindings for
// the same target (spec.md §4.2's partial-assignment rule).
type PartialMarkerItem struct{}

func (*PartialMarkerItem) ItemKind() ItemKind { return ItemPartialMarker }

// SubScopeItem embeds a nested Scope (function body, block) in its
// parent's item order, so finalization can walk scopes depth-first in
// source order.
type SubScopeItem struct {
	Scope *Scope
}

func (*SubScopeItem) ItemKind() ItemKind { return ItemSubScope }
