package model

import "github.com/lua-modkit/stubgen/internal/ids"

// ExprKind is the closed tag of the Expression union (spec.md §3): a
// switch over ExprKind, not a visitor — see the "Tagged expression
// variants" design note.
type ExprKind string

const (
	ExprReference ExprKind = "reference"
	ExprRequire   ExprKind = "require"
	ExprLiteral   ExprKind = "literal"
	ExprMember    ExprKind = "member"
	ExprIndex     ExprKind = "index"
	ExprOperation ExprKind = "operation"
)

// Expression is the closed, cached-per-AST-node normalized expression
// form the Scope Reader builds and the Type Resolver consumes. Pointer
// identity of a concrete *RefExpr/*LiteralExpr/etc. is meaningful: it's
// used as the key into the Type Resolver's `seen` cycle map, so
// expressions are never copied by value once constructed.
type Expression interface {
	ExprKind() ExprKind
}

// ReferenceExpr resolves to whatever is bound to ID: a local/parameter,
// a self/instance marker, or a module-level global.
type ReferenceExpr struct {
	ID ids.ID
}

func (*ReferenceExpr) ExprKind() ExprKind { return ExprReference }

// RequireExpr models `require("module")` once the call shape is
// recognized by the Scope Reader (spec.md §4.2's requireAssignment path).
type RequireExpr struct {
	Module string
}

func (*RequireExpr) ExprKind() ExprKind { return ExprRequire }

// LiteralExpr is a leaf value: booleans, numbers, strings, nil, or the
// literal table/function constructors (which additionally carry the
// allocated TableID/FunctionID and inline shape).
type LiteralExpr struct {
	LuaType string // "boolean" | "table" | "function" | "string" | "number" | "nil"

	// boolean literal
	BoolValue bool

	// string/number literal, when statically known (used for literal table
	// keys and class-name/derive-argument extraction)
	StringValue string
	NumberValue float64

	// table literal
	TableID ids.ID
	Fields  map[string]Expression // TableKeyString/TableKey entries keyed by literal key text

	// function literal
	FunctionID  ids.ID
	Parameters  []ids.ID
	ReturnTypes []TypeSet
	IsMethod    bool
}

func (*LiteralExpr) ExprKind() ExprKind { return ExprLiteral }

// MemberExpr is `base.member` or `base:member`.
type MemberExpr struct {
	Base    Expression
	Member  string
	Indexer string // "." or ":"
}

func (*MemberExpr) ExprKind() ExprKind { return ExprMember }

// IndexExpr is `base[index]`; Index must reduce to a literal key for
// field lookup to succeed (spec.md §4.3).
type IndexExpr struct {
	Base  Expression
	Index Expression
}

func (*IndexExpr) ExprKind() ExprKind { return ExprIndex }

// OperationExpr covers calls and all unary/binary/logical operators.
// Operator is one of: "call", "..", "not", "and", "or", arithmetic
// ("+","-","*","/","%","^"), bitwise, comparison, or "#" (length).
type OperationExpr struct {
	Operator  string
	Arguments []Expression
}

func (*OperationExpr) ExprKind() ExprKind { return ExprOperation }

// ResolveKey identifies one (expression, return-index) pair for the Type
// Resolver's seen/cache maps (spec.md §3 invariant 5, §4.3's cycle
// policy). index is 1-based and defaults to 1 for non-call expressions.
type ResolveKey struct {
	Expr  Expression
	Index int
}
