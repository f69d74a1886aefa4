package ast

// Position is a source location, as supplied by the external parser.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Pos implements Node.Pos for every node kind, via embedding.
func (p Position) Pos() Position { return p }

// Kind identifies the concrete shape of a Node without resorting to a
// visitor: the reader and resolvers all dispatch with a plain switch over
// Kind(), per the "match on node kind strings, not runtime types" design
// note.
type Kind string

const (
	KindChunk                      Kind = "Chunk"
	KindLocalStatement             Kind = "LocalStatement"
	KindAssignmentStatement        Kind = "AssignmentStatement"
	KindReturnStatement            Kind = "ReturnStatement"
	KindIfStatement                Kind = "IfStatement"
	KindIfClause                   Kind = "IfClause"
	KindElseifClause               Kind = "ElseifClause"
	KindElseClause                 Kind = "ElseClause"
	KindWhileStatement              Kind = "WhileStatement"
	KindRepeatStatement             Kind = "RepeatStatement"
	KindDoStatement                 Kind = "DoStatement"
	KindForGenericStatement         Kind = "ForGenericStatement"
	KindForNumericStatement         Kind = "ForNumericStatement"
	KindFunctionDeclaration         Kind = "FunctionDeclaration"
	KindCallStatement               Kind = "CallStatement"
	KindIdentifier                  Kind = "Identifier"
	KindVarargLiteral               Kind = "VarargLiteral"
	KindStringLiteral               Kind = "StringLiteral"
	KindNumericLiteral              Kind = "NumericLiteral"
	KindBooleanLiteral              Kind = "BooleanLiteral"
	KindNilLiteral                  Kind = "NilLiteral"
	KindTableConstructorExpression  Kind = "TableConstructorExpression"
	KindTableValue                  Kind = "TableValue"
	KindTableKey                    Kind = "TableKey"
	KindTableKeyString              Kind = "TableKeyString"
	KindMemberExpression             Kind = "MemberExpression"
	KindIndexExpression              Kind = "IndexExpression"
	KindUnaryExpression              Kind = "UnaryExpression"
	KindBinaryExpression             Kind = "BinaryExpression"
	KindLogicalExpression            Kind = "LogicalExpression"
	KindCallExpression               Kind = "CallExpression"
	KindTableCallExpression          Kind = "TableCallExpression"
	KindStringCallExpression         Kind = "StringCallExpression"
)
