package ast

import (
	"encoding/json"
	"fmt"
)

// Decode turns the JSON form of the pre-parsed contract (whatever
// front-end produced it) into a *Chunk. Every node is tagged with a
// "kind" field matching one of the Kind constants; this just dispatches
// on that tag and recurses — it is not a grammar, so it stays a flat
// switch rather than a builder/visitor.
func Decode(data []byte) (*Chunk, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	node, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	chunk, ok := node.(*Chunk)
	if !ok {
		return nil, fmt.Errorf("ast: root node is %T, not *Chunk", node)
	}
	return chunk, nil
}

type rawNode struct {
	Kind       Kind              `json:"kind"`
	Position   Position          `json:"position"`
	Body       []json.RawMessage `json:"body"`
	Names      []json.RawMessage `json:"names"`
	Init       []json.RawMessage `json:"init"`
	Targets    []json.RawMessage `json:"targets"`
	Arguments  []json.RawMessage `json:"arguments"`
	Clauses    []json.RawMessage `json:"clauses"`
	Condition  json.RawMessage   `json:"condition"`
	Variable   json.RawMessage   `json:"variable"`
	Start      json.RawMessage   `json:"start"`
	End        json.RawMessage   `json:"end"`
	Step       json.RawMessage   `json:"step"`
	Iterators  []json.RawMessage `json:"iterators"`
	Identifier json.RawMessage   `json:"identifier"`
	IsLocal    bool              `json:"isLocal"`
	Parameters []json.RawMessage `json:"parameters"`
	IsVararg   bool              `json:"isVararg"`
	Expression json.RawMessage   `json:"expression"`
	Name       string            `json:"name"`
	Value      json.RawMessage   `json:"value"`
	ValueStr   *string           `json:"stringValue"`
	ValueNum   *float64          `json:"numericValue"`
	ValueBool  *bool             `json:"boolValue"`
	Raw        string            `json:"raw"`
	Fields     []json.RawMessage `json:"fields"`
	Key        json.RawMessage   `json:"key"`
	Base       json.RawMessage   `json:"base"`
	Indexer    string            `json:"indexer"`
	Index      json.RawMessage   `json:"index"`
	Operator   string            `json:"operator"`
	Left       json.RawMessage   `json:"left"`
	Right      json.RawMessage   `json:"right"`
	Table      json.RawMessage   `json:"table"`
	Argument   json.RawMessage   `json:"argument"`
}

func decodeNode(raw rawNode) (Node, error) {
	switch raw.Kind {
	case KindChunk:
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &Chunk{Body: body, Position: raw.Position}, nil

	case KindLocalStatement:
		names, err := decodeIdentifiers(raw.Names)
		if err != nil {
			return nil, err
		}
		init, err := decodeExpressions(raw.Init)
		if err != nil {
			return nil, err
		}
		return &LocalStatement{Names: names, Init: init, Position: raw.Position}, nil

	case KindAssignmentStatement:
		targets, err := decodeExpressions(raw.Targets)
		if err != nil {
			return nil, err
		}
		init, err := decodeExpressions(raw.Init)
		if err != nil {
			return nil, err
		}
		return &AssignmentStatement{Targets: targets, Init: init, Position: raw.Position}, nil

	case KindReturnStatement:
		args, err := decodeExpressions(raw.Arguments)
		if err != nil {
			return nil, err
		}
		return &ReturnStatement{Arguments: args, Position: raw.Position}, nil

	case KindIfStatement:
		clauses, err := decodeClauses(raw.Clauses)
		if err != nil {
			return nil, err
		}
		return &IfStatement{Clauses: clauses, Position: raw.Position}, nil

	case KindIfClause, KindElseifClause:
		cond, err := decodeExpression(raw.Condition)
		if err != nil {
			return nil, err
		}
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		if raw.Kind == KindIfClause {
			return &IfClause{Condition: cond, Body: body, Position: raw.Position}, nil
		}
		return &ElseifClause{Condition: cond, Body: body, Position: raw.Position}, nil

	case KindElseClause:
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &ElseClause{Body: body, Position: raw.Position}, nil

	case KindWhileStatement:
		cond, err := decodeExpression(raw.Condition)
		if err != nil {
			return nil, err
		}
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &WhileStatement{Condition: cond, Body: body, Position: raw.Position}, nil

	case KindRepeatStatement:
		cond, err := decodeExpression(raw.Condition)
		if err != nil {
			return nil, err
		}
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &RepeatStatement{Body: body, Condition: cond, Position: raw.Position}, nil

	case KindDoStatement:
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &DoStatement{Body: body, Position: raw.Position}, nil

	case KindForNumericStatement:
		variable, err := decodeIdentifier(raw.Variable)
		if err != nil {
			return nil, err
		}
		start, err := decodeExpression(raw.Start)
		if err != nil {
			return nil, err
		}
		end, err := decodeExpression(raw.End)
		if err != nil {
			return nil, err
		}
		var step Expression
		if len(raw.Step) > 0 {
			if step, err = decodeExpression(raw.Step); err != nil {
				return nil, err
			}
		}
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &ForNumericStatement{Variable: variable, Start: start, End: end, Step: step, Body: body, Position: raw.Position}, nil

	case KindForGenericStatement:
		names, err := decodeIdentifiers(raw.Names)
		if err != nil {
			return nil, err
		}
		iterators, err := decodeExpressions(raw.Iterators)
		if err != nil {
			return nil, err
		}
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &ForGenericStatement{Names: names, Iterators: iterators, Body: body, Position: raw.Position}, nil

	case KindFunctionDeclaration:
		var ident Expression
		var err error
		if len(raw.Identifier) > 0 {
			if ident, err = decodeExpression(raw.Identifier); err != nil {
				return nil, err
			}
		}
		params, err := decodeIdentifiers(raw.Parameters)
		if err != nil {
			return nil, err
		}
		body, err := decodeStatements(raw.Body)
		if err != nil {
			return nil, err
		}
		return &FunctionDeclaration{
			Identifier: ident,
			IsLocal:    raw.IsLocal,
			Parameters: params,
			IsVararg:   raw.IsVararg,
			Body:       body,
			Position:   raw.Position,
		}, nil

	case KindCallStatement:
		expr, err := decodeExpression(raw.Expression)
		if err != nil {
			return nil, err
		}
		return &CallStatement{Expression: expr, Position: raw.Position}, nil

	case KindIdentifier:
		return &Identifier{Name: raw.Name, Position: raw.Position}, nil

	case KindVarargLiteral:
		return &VarargLiteral{Position: raw.Position}, nil

	case KindStringLiteral:
		v := ""
		if raw.ValueStr != nil {
			v = *raw.ValueStr
		}
		return &StringLiteral{Value: v, Raw: raw.Raw, Position: raw.Position}, nil

	case KindNumericLiteral:
		v := 0.0
		if raw.ValueNum != nil {
			v = *raw.ValueNum
		}
		return &NumericLiteral{Value: v, Raw: raw.Raw, Position: raw.Position}, nil

	case KindBooleanLiteral:
		v := false
		if raw.ValueBool != nil {
			v = *raw.ValueBool
		}
		return &BooleanLiteral{Value: v, Position: raw.Position}, nil

	case KindNilLiteral:
		return &NilLiteral{Position: raw.Position}, nil

	case KindTableConstructorExpression:
		fields, err := decodeTableFields(raw.Fields)
		if err != nil {
			return nil, err
		}
		return &TableConstructorExpression{Fields: fields, Position: raw.Position}, nil

	case KindTableValue:
		val, err := decodeExpression(raw.Value)
		if err != nil {
			return nil, err
		}
		return &TableValue{Value: val, Position: raw.Position}, nil

	case KindTableKey:
		key, err := decodeExpression(raw.Key)
		if err != nil {
			return nil, err
		}
		val, err := decodeExpression(raw.Value)
		if err != nil {
			return nil, err
		}
		return &TableKey{Key: key, Value: val, Position: raw.Position}, nil

	case KindTableKeyString:
		key, err := decodeIdentifier(raw.Key)
		if err != nil {
			return nil, err
		}
		val, err := decodeExpression(raw.Value)
		if err != nil {
			return nil, err
		}
		return &TableKeyString{Key: key, Value: val, Position: raw.Position}, nil

	case KindMemberExpression:
		base, err := decodeExpression(raw.Base)
		if err != nil {
			return nil, err
		}
		ident, err := decodeIdentifier(raw.Identifier)
		if err != nil {
			return nil, err
		}
		return &MemberExpression{Base: base, Indexer: raw.Indexer, Identifier: ident, Position: raw.Position}, nil

	case KindIndexExpression:
		base, err := decodeExpression(raw.Base)
		if err != nil {
			return nil, err
		}
		index, err := decodeExpression(raw.Index)
		if err != nil {
			return nil, err
		}
		return &IndexExpression{Base: base, Index: index, Position: raw.Position}, nil

	case KindUnaryExpression:
		arg, err := decodeExpression(raw.Argument)
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: raw.Operator, Argument: arg, Position: raw.Position}, nil

	case KindBinaryExpression, KindLogicalExpression:
		left, err := decodeExpression(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpression(raw.Right)
		if err != nil {
			return nil, err
		}
		if raw.Kind == KindBinaryExpression {
			return &BinaryExpression{Operator: raw.Operator, Left: left, Right: right, Position: raw.Position}, nil
		}
		return &LogicalExpression{Operator: raw.Operator, Left: left, Right: right, Position: raw.Position}, nil

	case KindCallExpression:
		base, err := decodeExpression(raw.Base)
		if err != nil {
			return nil, err
		}
		args, err := decodeExpressions(raw.Arguments)
		if err != nil {
			return nil, err
		}
		return &CallExpression{Base: base, Arguments: args, Position: raw.Position}, nil

	case KindTableCallExpression:
		base, err := decodeExpression(raw.Base)
		if err != nil {
			return nil, err
		}
		tableNode, err := decodeExpression(raw.Table)
		if err != nil {
			return nil, err
		}
		table, ok := tableNode.(*TableConstructorExpression)
		if !ok {
			return nil, fmt.Errorf("ast: TableCallExpression.table is %T, not *TableConstructorExpression", tableNode)
		}
		return &TableCallExpression{Base: base, Table: table, Position: raw.Position}, nil

	case KindStringCallExpression:
		base, err := decodeExpression(raw.Base)
		if err != nil {
			return nil, err
		}
		argNode, err := decodeExpression(raw.Argument)
		if err != nil {
			return nil, err
		}
		arg, ok := argNode.(*StringLiteral)
		if !ok {
			return nil, fmt.Errorf("ast: StringCallExpression.argument is %T, not *StringLiteral", argNode)
		}
		return &StringCallExpression{Base: base, Argument: arg, Position: raw.Position}, nil

	default:
		return nil, fmt.Errorf("ast: unknown node kind %q", raw.Kind)
	}
}

func decodeRaw(msg json.RawMessage) (rawNode, error) {
	var raw rawNode
	if len(msg) == 0 {
		return raw, nil
	}
	err := json.Unmarshal(msg, &raw)
	return raw, err
}

func decodeStatement(msg json.RawMessage) (Statement, error) {
	raw, err := decodeRaw(msg)
	if err != nil {
		return nil, err
	}
	node, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	stmt, ok := node.(Statement)
	if !ok {
		return nil, fmt.Errorf("ast: node kind %q is not a Statement", raw.Kind)
	}
	return stmt, nil
}

func decodeStatements(msgs []json.RawMessage) ([]Statement, error) {
	out := make([]Statement, 0, len(msgs))
	for _, msg := range msgs {
		s, err := decodeStatement(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeExpression(msg json.RawMessage) (Expression, error) {
	if len(msg) == 0 {
		return nil, nil
	}
	raw, err := decodeRaw(msg)
	if err != nil {
		return nil, err
	}
	node, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	expr, ok := node.(Expression)
	if !ok {
		return nil, fmt.Errorf("ast: node kind %q is not an Expression", raw.Kind)
	}
	return expr, nil
}

func decodeExpressions(msgs []json.RawMessage) ([]Expression, error) {
	out := make([]Expression, 0, len(msgs))
	for _, msg := range msgs {
		e, err := decodeExpression(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeIdentifier(msg json.RawMessage) (*Identifier, error) {
	if len(msg) == 0 {
		return nil, nil
	}
	expr, err := decodeExpression(msg)
	if err != nil {
		return nil, err
	}
	id, ok := expr.(*Identifier)
	if !ok {
		return nil, fmt.Errorf("ast: expected *Identifier, got %T", expr)
	}
	return id, nil
}

func decodeIdentifiers(msgs []json.RawMessage) ([]*Identifier, error) {
	out := make([]*Identifier, 0, len(msgs))
	for _, msg := range msgs {
		id, err := decodeIdentifier(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func decodeClause(msg json.RawMessage) (Clause, error) {
	raw, err := decodeRaw(msg)
	if err != nil {
		return nil, err
	}
	node, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	clause, ok := node.(Clause)
	if !ok {
		return nil, fmt.Errorf("ast: node kind %q is not a Clause", raw.Kind)
	}
	return clause, nil
}

func decodeClauses(msgs []json.RawMessage) ([]Clause, error) {
	out := make([]Clause, 0, len(msgs))
	for _, msg := range msgs {
		c, err := decodeClause(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeTableField(msg json.RawMessage) (TableField, error) {
	raw, err := decodeRaw(msg)
	if err != nil {
		return nil, err
	}
	node, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	field, ok := node.(TableField)
	if !ok {
		return nil, fmt.Errorf("ast: node kind %q is not a TableField", raw.Kind)
	}
	return field, nil
}

func decodeTableFields(msgs []json.RawMessage) ([]TableField, error) {
	out := make([]TableField, 0, len(msgs))
	for _, msg := range msgs {
		f, err := decodeTableField(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
