package model

import "github.com/lua-modkit/stubgen/internal/ids"

// FunctionInfo is the resolved record for one function literal, keyed by
// its FunctionID in the Shared Analysis Context (spec.md §3/§4.3).
type FunctionInfo struct {
	ID ids.ID

	ParameterIDs   []ids.ID
	ParameterNames []string
	ParameterTypes []TypeSet

	// ReturnTypes is 0-indexed: ReturnTypes[i] is the resolved set for
	// return position i+1 of spec.md's 1-based return selector.
	ReturnTypes []TypeSet

	// ReturnSites holds every `return ...` statement's argument list found
	// in the function body, for the Type Resolver to union across.
	ReturnSites [][]Expression

	// MinReturns is the fewest values any single return site yields,
	// driving the return-arity nullability rule (spec.md §4.3: a return
	// position beyond what some return site provides is nilable).
	MinReturns int

	// IsConstructor marks a function recognized as a class's `:new`
	// constructor (spec.md §4.4), used by the Type Resolver's call-return
	// special case.
	IsConstructor bool

	// IdentifierExpression is the expression form referring to this
	// function (e.g. a ReferenceExpr to its defining table field), used
	// when the finalizer needs to re-derive a display name.
	IdentifierExpression Expression
}
