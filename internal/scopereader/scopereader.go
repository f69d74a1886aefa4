// Package scopereader implements the Scope & Expression Reader (component
// B, spec.md §4.2): it walks one module's AST and builds the Scope tree
// of normalized Items the Type Resolver and Class Resolver consume.
//
// Grounded on the teacher's internal/analyzer/statements.go and
// declarations_helpers.go: a per-statement-kind dispatch that builds
// scopes and declarations while walking, generalized from "build a typed
// symbol table" to "build an ordered Item list per scope".
package scopereader

import (
	"github.com/lua-modkit/stubgen/internal/ast"
	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
)

// Reader holds the per-module state the state machine needs while
// reading one file: the shared context, the module being built, and the
// expression cache that lets the same AST node always map to the same
// *model.Expression pointer (spec.md §3 invariant: expression identity is
// meaningful).
type Reader struct {
	Ctx    *analysiscontext.AnalysisContext
	Module *model.Module

	exprCache map[ast.Expression]model.Expression

	// globals gives every free (unbound-in-any-scope) identifier a single
	// stable ID per module, so repeated references to the same global
	// name — including builtin/intrinsic names — resolve to one identity
	// instead of minting a fresh synthetic ID per occurrence.
	globals map[string]ids.ID
}

// New creates a Reader for module with a fresh expression cache and
// globals table. The unknown-class table is not reset here: it lives on
// the shared context, keyed by module.
func New(ctx *analysiscontext.AnalysisContext, module *model.Module) *Reader {
	return &Reader{
		Ctx:       ctx,
		Module:    module,
		exprCache: make(map[ast.Expression]model.Expression),
		globals:   make(map[string]ids.ID),
	}
}

func (r *Reader) globalID(name string) ids.ID {
	if id, ok := r.globals[name]; ok {
		return id
	}
	id := r.Ctx.IDs.New(ids.Local, name)
	r.globals[name] = id
	return id
}

// ReadChunk drives the whole state machine over a file's root chunk,
// producing the module's top-level scope.
func (r *Reader) ReadChunk(chunk *ast.Chunk) *model.Scope {
	scope := r.createScope(model.ModuleScope, nil)
	r.Module.Scope = scope
	r.readScope(scope, chunk.Body)
	return scope
}

// createScope allocates a new scope of kind chained to parent, per
// spec.md §4.2's createScope dispatch (this package only needs the three
// kinds, not the full node-kind switch, since callers already know which
// kind they're building).
func (r *Reader) createScope(kind model.ScopeKind, parent *model.Scope) *model.Scope {
	id := r.Ctx.IDs.New(ids.Local, string(kind))
	return model.NewScope(id, kind, parent)
}

// readScope walks stmts, emitting usage items for sub-expressions and
// dispatching on statement kind (spec.md §4.2's readScope).
func (r *Reader) readScope(scope *model.Scope, stmts []ast.Statement) {
	scope.Statements = stmts
	for _, stmt := range stmts {
		r.readStatement(scope, stmt)
	}
}

func (r *Reader) readStatement(scope *model.Scope, stmt ast.Statement) {
	switch n := stmt.(type) {
	case *ast.LocalStatement:
		r.analyzeAssignment(scope, identifierTargets(n.Names), n.Init, true)
	case *ast.AssignmentStatement:
		r.analyzeAssignment(scope, n.Targets, n.Init, false)
	case *ast.ReturnStatement:
		args := make([]model.Expression, 0, len(n.Arguments))
		for _, a := range n.Arguments {
			args = append(args, r.expr(scope, a))
		}
		scope.Items = append(scope.Items, &model.ReturnsItem{Arguments: args})
	case *ast.IfStatement:
		for _, c := range n.Clauses {
			r.readClause(scope, c)
		}
	case *ast.WhileStatement:
		r.expr(scope, n.Condition)
		r.recurseBlock(scope, n.Body)
	case *ast.RepeatStatement:
		r.recurseBlock(scope, n.Body)
		r.expr(scope, n.Condition)
	case *ast.DoStatement:
		r.recurseBlock(scope, n.Body)
	case *ast.ForNumericStatement:
		r.usage(scope, n.Start, &model.Usage{InNumericFor: true})
		r.usage(scope, n.End, &model.Usage{InNumericFor: true})
		if n.Step != nil {
			r.usage(scope, n.Step, &model.Usage{InNumericFor: true})
		}
		sub := r.createScope(model.BlockScope, scope)
		id := r.Ctx.IDs.New(ids.Local, n.Variable.Name)
		sub.Declare(n.Variable.Name, id)
		r.readScope(sub, n.Body)
		scope.Items = append(scope.Items, &model.SubScopeItem{Scope: sub})
	case *ast.ForGenericStatement:
		for _, it := range n.Iterators {
			r.expr(scope, it)
		}
		sub := r.createScope(model.BlockScope, scope)
		for _, name := range n.Names {
			id := r.Ctx.IDs.New(ids.Local, name.Name)
			sub.Declare(name.Name, id)
		}
		r.readScope(sub, n.Body)
		scope.Items = append(scope.Items, &model.SubScopeItem{Scope: sub})
	case *ast.FunctionDeclaration:
		r.readFunctionDeclaration(scope, n)
	case *ast.CallStatement:
		r.readCallStatement(scope, n)
	}
}

func (r *Reader) readClause(scope *model.Scope, c ast.Clause) {
	scope.Items = append(scope.Items, &model.PartialMarkerItem{})
	switch cl := c.(type) {
	case *ast.IfClause:
		r.expr(scope, cl.Condition)
		r.recurseBlock(scope, cl.Body)
	case *ast.ElseifClause:
		r.expr(scope, cl.Condition)
		r.recurseBlock(scope, cl.Body)
	case *ast.ElseClause:
		r.recurseBlock(scope, cl.Body)
	}
}

func (r *Reader) recurseBlock(parent *model.Scope, body []ast.Statement) {
	sub := r.createScope(model.BlockScope, parent)
	r.readScope(sub, body)
	parent.Items = append(parent.Items, &model.SubScopeItem{Scope: sub})
}

// readFunctionDeclaration implements processNewScope for function scopes
// (spec.md §4.2): attach implicit self, add parameters as locals,
// allocate a FunctionInfo, record the defining assignment, and inject an
// empty returns item when the body has no top-level return.
func (r *Reader) readFunctionDeclaration(parent *model.Scope, n *ast.FunctionDeclaration) {
	fn := r.createScope(model.FunctionScope, parent)

	isMethod := false
	if me, ok := n.Identifier.(*ast.MemberExpression); ok && me.Indexer == ":" {
		isMethod = true
	}

	info := r.Ctx.NewFunction(functionDisplayName(n.Identifier))
	info.IsConstructor = isMethod && identifierLastName(n.Identifier) == "new"
	fn.FunctionID = info.ID

	if isMethod {
		selfID := r.Ctx.IDs.New(ids.Self, "self")
		fn.Declare("self", selfID)
		info.ParameterIDs = append(info.ParameterIDs, selfID)
		info.ParameterNames = append(info.ParameterNames, "self")
		info.ParameterTypes = append(info.ParameterTypes, model.NewTypeSet())
	}
	for _, p := range n.Parameters {
		pid := r.Ctx.IDs.New(ids.Parameter, p.Name)
		fn.Declare(p.Name, pid)
		info.ParameterIDs = append(info.ParameterIDs, pid)
		info.ParameterNames = append(info.ParameterNames, p.Name)
		info.ParameterTypes = append(info.ParameterTypes, model.NewTypeSet())
	}

	info.IdentifierExpression = r.refFor(n.Identifier, parent)
	if me, ok := info.IdentifierExpression.(*model.MemberExpr); ok {
		if baseRef, ok := me.Base.(*model.ReferenceExpr); ok {
			fn.ClassTableID = baseRef.ID
		}
	}

	r.readScope(fn, n.Body)
	if !hasTopLevelReturn(n.Body) {
		fn.Items = append(fn.Items, &model.ReturnsItem{Arguments: nil})
	}

	r.Module.Functions = append(r.Module.Functions, info.ID)
	parent.Items = append(parent.Items, &model.SubScopeItem{Scope: fn})

	if n.Identifier != nil {
		if targetID, baseID, ok := r.assignmentTargetID(parent, n.Identifier, n.IsLocal); ok {
			parent.Items = append(parent.Items, &model.FunctionDefItem{TargetID: targetID, BaseID: baseID, FunctionID: info.ID})
		}
	}
}

func (r *Reader) refFor(e ast.Expression, scope *model.Scope) model.Expression {
	if e == nil {
		return nil
	}
	return r.expr(scope, e)
}

// readCallStatement recognizes the special `setmetatable(a, b)` call
// shape, per spec.md §4.2's last readScope bullet; all other bare calls
// are recorded as an ordinary usage/expression.
func (r *Reader) readCallStatement(scope *model.Scope, n *ast.CallStatement) {
	call, ok := n.Expression.(*ast.CallExpression)
	if ok {
		if id, ok := call.Base.(*ast.Identifier); ok && id.Name == "setmetatable" && len(call.Arguments) == 2 {
			a := r.expr(scope, call.Arguments[0])
			b := r.expr(scope, call.Arguments[1])
			scope.Items = append(scope.Items, &model.UsageItem{
				Expr: &model.OperationExpr{Operator: "setmetatable", Arguments: []model.Expression{a, b}},
			})
			return
		}
	}
	r.expr(scope, n.Expression)
}

// analyzeAssignment implements spec.md §4.2's assignment normalization.
func (r *Reader) analyzeAssignment(scope *model.Scope, targets []ast.Expression, init []ast.Expression, isLocal bool) {
	if len(targets) == 1 && len(init) == 1 {
		if call, ok := init[0].(*ast.CallExpression); ok {
			if mod, ok := isRequireCall(call); ok {
				if targetID, _, ok := r.assignmentTargetID(scope, targets[0], isLocal); ok {
					scope.Items = append(scope.Items, &model.RequireAssignmentItem{TargetID: targetID, Module: mod})
				}
				return
			}
		}
	}

	rhs := make([]model.Expression, len(init))
	for i, e := range init {
		rhs[i] = r.expr(scope, e)
	}

	for i, target := range targets {
		targetID, baseID, ok := r.assignmentTargetID(scope, target, isLocal)
		if !ok {
			continue
		}
		switch {
		case i < len(rhs)-1 || (i < len(rhs) && !isCallLike(init[i])):
			scope.Items = append(scope.Items, &model.AssignmentItem{TargetID: targetID, BaseID: baseID, RHS: rhs[i], Index: 1})
		case i < len(rhs):
			// last RHS position, and it's a call: remaining targets beyond
			// this point unpack further return indices of the same call.
			scope.Items = append(scope.Items, &model.AssignmentItem{TargetID: targetID, BaseID: baseID, RHS: rhs[i], Index: 1})
		default:
			if len(rhs) > 0 {
				last := rhs[len(rhs)-1]
				if _, ok := last.(*model.OperationExpr); ok {
					idx := i - len(rhs) + 2
					scope.Items = append(scope.Items, &model.AssignmentItem{TargetID: targetID, BaseID: baseID, RHS: last, Index: idx})
					continue
				}
			}
			if isLocal {
				// local with no initializer: bound but untyped.
				scope.Items = append(scope.Items, &model.AssignmentItem{TargetID: targetID, BaseID: baseID, RHS: nil, Index: 1})
			}
		}
	}
}

// assignmentTargetID resolves (declaring if local/new) the synthetic ID a
// target expression writes to, plus the base's ID when target is a
// member expression (`base.field = ...`), for idioms that key off the
// field's owner (spec.md §4.4 idiom 7). isLocal forces a fresh binding
// for a `local` declaration even if an outer scope already binds the same
// name, so two functions each declaring `local self = {}` get distinct
// identities instead of colliding on one cached-by-name global.
func (r *Reader) assignmentTargetID(scope *model.Scope, target ast.Expression, isLocal bool) (targetID, baseID ids.ID, ok bool) {
	switch n := target.(type) {
	case *ast.Identifier:
		if isLocal {
			id := r.Ctx.IDs.New(ids.Local, n.Name)
			scope.Declare(n.Name, id)
			return id, "", true
		}
		if id, ok := scope.Lookup(n.Name); ok {
			return id, "", true
		}
		id := r.globalID(n.Name)
		scope.Declare(n.Name, id)
		return id, "", true
	case *ast.MemberExpression:
		// Field writes resolve through the base table at finalization
		// time; the reader records the write against a synthetic field
		// marker keyed by member name on the base's table, materialized
		// lazily by the Class Resolver/Finalizer once the base table ID
		// is known. Until then it's tracked as a local with that name.
		fieldID, ok := scope.Lookup(n.Identifier.Name)
		if !ok {
			fieldID = r.globalID(n.Identifier.Name)
		}
		base := r.expr(scope, n.Base)
		if ref, ok := base.(*model.ReferenceExpr); ok {
			return fieldID, ref.ID, true
		}
		return fieldID, "", true
	default:
		return "", "", false
	}
}

func (r *Reader) expr(scope *model.Scope, e ast.Expression) model.Expression {
	if e == nil {
		return nil
	}
	if cached, ok := r.exprCache[e]; ok {
		return cached
	}
	var out model.Expression
	switch n := e.(type) {
	case *ast.Identifier:
		id, ok := scope.Lookup(n.Name)
		if !ok {
			id = r.globalID(n.Name)
		}
		out = &model.ReferenceExpr{ID: id}
	case *ast.BooleanLiteral:
		out = &model.LiteralExpr{LuaType: "boolean", BoolValue: n.Value}
	case *ast.NilLiteral:
		out = &model.LiteralExpr{LuaType: "nil"}
	case *ast.StringLiteral:
		out = &model.LiteralExpr{LuaType: "string", StringValue: n.Value}
	case *ast.NumericLiteral:
		out = &model.LiteralExpr{LuaType: "number", NumberValue: n.Value}
	case *ast.VarargLiteral:
		out = &model.LiteralExpr{LuaType: "unknown"}
	case *ast.TableConstructorExpression:
		out = r.tableLiteral(scope, n)
	case *ast.MemberExpression:
		base := r.expr(scope, n.Base)
		r.usage(scope, n.Base, &model.Usage{SupportsIndexing: true})
		out = &model.MemberExpr{Base: base, Member: n.Identifier.Name, Indexer: n.Indexer}
	case *ast.IndexExpression:
		base := r.expr(scope, n.Base)
		idx := r.expr(scope, n.Index)
		r.usage(scope, n.Base, &model.Usage{SupportsIndexing: true})
		out = &model.IndexExpr{Base: base, Index: idx}
	case *ast.UnaryExpression:
		arg := r.expr(scope, n.Argument)
		if n.Operator == "#" {
			r.usage(scope, n.Argument, &model.Usage{SupportsLength: true})
		} else if n.Operator == "-" {
			r.usage(scope, n.Argument, &model.Usage{SupportsMath: true})
		}
		out = &model.OperationExpr{Operator: n.Operator, Arguments: []model.Expression{arg}}
	case *ast.BinaryExpression:
		l := r.expr(scope, n.Left)
		rr := r.expr(scope, n.Right)
		switch {
		case n.Operator == "..":
			r.usage(scope, n.Left, &model.Usage{SupportsConcatenation: true})
			r.usage(scope, n.Right, &model.Usage{SupportsConcatenation: true})
		case isArithmeticOrBitwise(n.Operator):
			r.usage(scope, n.Left, &model.Usage{SupportsMath: true})
			r.usage(scope, n.Right, &model.Usage{SupportsMath: true})
		}
		out = &model.OperationExpr{Operator: n.Operator, Arguments: []model.Expression{l, rr}}
	case *ast.LogicalExpression:
		l := r.expr(scope, n.Left)
		rr := r.expr(scope, n.Right)
		out = &model.OperationExpr{Operator: n.Operator, Arguments: []model.Expression{l, rr}}
	case *ast.CallExpression:
		if mod, ok := isRequireCall(n); ok {
			out = &model.RequireExpr{Module: mod}
			break
		}
		base := r.expr(scope, n.Base)
		args := make([]model.Expression, 0, len(n.Arguments))
		for _, a := range n.Arguments {
			args = append(args, r.expr(scope, a))
		}
		r.usage(scope, n.Base, &model.Usage{Arguments: args})
		out = &model.OperationExpr{Operator: "call", Arguments: append([]model.Expression{base}, args...)}
	case *ast.TableCallExpression:
		base := r.expr(scope, n.Base)
		arg := r.tableLiteral(scope, n.Table)
		r.usage(scope, n.Base, &model.Usage{Arguments: []model.Expression{arg}})
		out = &model.OperationExpr{Operator: "call", Arguments: []model.Expression{base, arg}}
	case *ast.StringCallExpression:
		base := r.expr(scope, n.Base)
		arg := &model.LiteralExpr{LuaType: "string", StringValue: n.Argument.Value}
		r.usage(scope, n.Base, &model.Usage{Arguments: []model.Expression{arg}})
		out = &model.OperationExpr{Operator: "call", Arguments: []model.Expression{base, arg}}
	case *ast.FunctionDeclaration:
		out = r.functionLiteral(scope, n)
	default:
		out = &model.LiteralExpr{LuaType: "unknown"}
	}
	r.exprCache[e] = out
	return out
}

func (r *Reader) usage(scope *model.Scope, e ast.Expression, u *model.Usage) {
	if e == nil {
		return
	}
	target := r.expr(scope, e)
	scope.Items = append(scope.Items, &model.UsageItem{Expr: target, Usage: u})
}

func (r *Reader) tableLiteral(scope *model.Scope, n *ast.TableConstructorExpression) *model.LiteralExpr {
	info := r.Ctx.NewTable("")
	lit := &model.LiteralExpr{LuaType: "table", TableID: info.ID, Fields: map[string]model.Expression{}}
	for _, field := range n.Fields {
		switch f := field.(type) {
		case *ast.TableKeyString:
			val := r.expr(scope, f.Value)
			lit.Fields[f.Key.Name] = val
			info.LiteralFields = append(info.LiteralFields, val)
			info.Define(f.Key.Name, &model.ExpressionInfo{Expression: val, FromLiteral: true, DefiningModule: r.Module.FileID})
		case *ast.TableKey:
			val := r.expr(scope, f.Value)
			if key, ok := f.Key.(*ast.StringLiteral); ok {
				lit.Fields[key.Value] = val
				info.Define(key.Value, &model.ExpressionInfo{Expression: val, FromLiteral: true, DefiningModule: r.Module.FileID})
			}
			info.LiteralFields = append(info.LiteralFields, val)
		case *ast.TableValue:
			val := r.expr(scope, f.Value)
			info.LiteralFields = append(info.LiteralFields, val)
		}
	}
	r.Module.Tables = append(r.Module.Tables, info.ID)
	return lit
}

func (r *Reader) functionLiteral(scope *model.Scope, n *ast.FunctionDeclaration) *model.LiteralExpr {
	fn := r.createScope(model.FunctionScope, scope)
	info := r.Ctx.NewFunction("")
	fn.FunctionID = info.ID
	for _, p := range n.Parameters {
		pid := r.Ctx.IDs.New(ids.Parameter, p.Name)
		fn.Declare(p.Name, pid)
		info.ParameterIDs = append(info.ParameterIDs, pid)
		info.ParameterNames = append(info.ParameterNames, p.Name)
		info.ParameterTypes = append(info.ParameterTypes, model.NewTypeSet())
	}
	r.readScope(fn, n.Body)
	if !hasTopLevelReturn(n.Body) {
		fn.Items = append(fn.Items, &model.ReturnsItem{Arguments: nil})
	}
	scope.Items = append(scope.Items, &model.SubScopeItem{Scope: fn})
	r.Module.Functions = append(r.Module.Functions, info.ID)
	return &model.LiteralExpr{LuaType: "function", FunctionID: info.ID, Parameters: info.ParameterIDs}
}

func identifierTargets(names []*ast.Identifier) []ast.Expression {
	out := make([]ast.Expression, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func isRequireCall(n *ast.CallExpression) (string, bool) {
	id, ok := n.Base.(*ast.Identifier)
	if !ok || id.Name != "require" || len(n.Arguments) != 1 {
		return "", false
	}
	lit, ok := n.Arguments[0].(*ast.StringLiteral)
	if !ok {
		return "", false
	}
	return lit.Value, true
}

func isCallLike(e ast.Expression) bool {
	switch e.(type) {
	case *ast.CallExpression, *ast.TableCallExpression, *ast.StringCallExpression:
		return true
	default:
		return false
	}
}

func isArithmeticOrBitwise(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%", "^", "&", "|", "~", "<<", ">>":
		return true
	default:
		return false
	}
}

func hasTopLevelReturn(body []ast.Statement) bool {
	for _, s := range body {
		if _, ok := s.(*ast.ReturnStatement); ok {
			return true
		}
	}
	return false
}

func functionDisplayName(id ast.Expression) string {
	switch n := id.(type) {
	case *ast.Identifier:
		return n.Name
	case *ast.MemberExpression:
		return n.Identifier.Name
	default:
		return ""
	}
}

func identifierLastName(id ast.Expression) string {
	return functionDisplayName(id)
}
