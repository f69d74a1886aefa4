package schemabridge

import (
	"github.com/lua-modkit/stubgen/internal/ast"
	analysiscontext "github.com/lua-modkit/stubgen/internal/context"
	"github.com/lua-modkit/stubgen/internal/diagnostics"
	"github.com/lua-modkit/stubgen/internal/finalizer"
	"github.com/lua-modkit/stubgen/internal/ids"
	"github.com/lua-modkit/stubgen/internal/model"
)

// Merger folds an existing schema File's hand-authored entries into the
// analyzed model: an existing class's notes/deprecated/tags survive, and
// its field and method types are always the freshly analyzed ones;
// file-level tags are not consulted. Constructors the schema declares
// with no analyzed counterpart are kept, with a warning.
//
// RosettaOnly keeps a schema class that the analysis never produced, with
// a warning; without it such a class is dropped from the output.
type Merger struct {
	Ctx        *analysiscontext.AnalysisContext
	Finalizer  *finalizer.Finalizer
	RosettaOnly bool
}

func NewMerger(ctx *analysiscontext.AnalysisContext, f *finalizer.Finalizer) *Merger {
	return &Merger{Ctx: ctx, Finalizer: f}
}

// BuildFile renders every resolved class/table/function/field in ctx
// into a fresh schema File, merging against existing (which may be nil
// for a from-scratch run).
func (m *Merger) BuildFile(existing *File) *File {
	out := &File{Version: "1.1"}
	out.Languages.Lua.Classes = map[string]Class{}
	out.Languages.Lua.Tables = map[string]Class{}
	out.Languages.Lua.Fields = map[string]Field{}

	for id, t := range m.Ctx.Tables() {
		if t.IsEmptyClass {
			continue
		}
		rendered := m.renderTable(id, t)
		if t.ClassName == "" {
			continue
		}
		if t.EmitAsTable || (!t.IsClass() && t.ClassName != "") {
			out.Languages.Lua.Tables[t.ClassName] = rendered
		} else {
			out.Languages.Lua.Classes[t.ClassName] = rendered
		}
	}

	if existing != nil {
		m.preserveAnnotations(out, existing)
	}
	return out
}

func (m *Merger) renderTable(id ids.ID, t *model.TableInfo) Class {
	c := Class{
		Extends: t.OriginalBase,
		Local:   t.IsLocalClass || t.IsLocalDeriveClass,
		Fields:  map[string]Field{},
	}
	for name, infos := range t.Definitions {
		if len(infos) == 0 {
			continue
		}
		fieldTypes := model.NewTypeSet()
		isMethod := false
		for _, info := range infos {
			if lit, ok := info.Expression.(*model.LiteralExpr); ok && lit.LuaType == "function" {
				isMethod = true
				if _, ok := m.Ctx.Function(lit.FunctionID); ok {
					sig := m.Finalizer.Signature(lit.FunctionID)
					c.Methods = append(c.Methods, Function{Name: name, Return: []string{sig}})
					continue
				}
			}
			if info.Expression != nil {
				fieldTypes = fieldTypes.Union(resolveExpressionType(m, info.Expression))
			}
		}
		if !isMethod {
			types := m.Finalizer.ResolveTypeSet(fieldTypes)
			c.Fields[name] = Field{Type: joinTypes(types), Nullable: containsNil(types)}
		}
	}
	return c
}

func resolveExpressionType(m *Merger, e model.Expression) model.TypeSet {
	switch v := e.(type) {
	case *model.LiteralExpr:
		switch v.LuaType {
		case "table":
			return model.NewTypeSet(string(v.TableID))
		case "function":
			return model.NewTypeSet(string(v.FunctionID))
		case "boolean":
			if v.BoolValue {
				return model.NewTypeSet(string(model.True))
			}
			return model.NewTypeSet(string(model.False))
		default:
			return model.NewTypeSet(v.LuaType)
		}
	case *model.ReferenceExpr:
		return model.NewTypeSet(string(v.ID))
	default:
		return model.NewTypeSet(string(model.Unknown))
	}
}

func joinTypes(types []string) string {
	if len(types) == 0 {
		return string(model.Unknown)
	}
	out := types[0]
	for _, t := range types[1:] {
		out += "|" + t
	}
	return out
}

func containsNil(types []string) bool {
	for _, t := range types {
		if t == string(model.Nil) {
			return true
		}
	}
	return false
}

// preserveAnnotations copies hand-authored notes/deprecated/tags from
// existing entries into out when both sides name the same class (schema
// tables are not merged), and applies the rosetta-only "warn, leave intact" rule when existing
// names a constructor arity the analyzed model has no function for.
func (m *Merger) preserveAnnotations(out, existing *File) {
	for name, prior := range existing.Languages.Lua.Classes {
		cur, ok := out.Languages.Lua.Classes[name]
		if !ok {
			if m.RosettaOnly {
				m.Ctx.Diagnostics.Add(diagnosticsWarning(name, "class present in schema but not analyzed; left intact (rosetta-only)"))
				out.Languages.Lua.Classes[name] = prior
			}
			continue
		}
		cur.Notes = prior.Notes
		cur.Deprecated = prior.Deprecated
		cur.Tags = prior.Tags
		if len(prior.Constructors) > 0 && len(cur.Constructors) == 0 {
			m.Ctx.Diagnostics.Add(diagnosticsWarning(name, "schema declares constructors with no matching analyzed constructor; left intact"))
			cur.Constructors = prior.Constructors
		}
		out.Languages.Lua.Classes[name] = cur
	}
}

func diagnosticsWarning(module, msg string) *diagnostics.DiagnosticError {
	return diagnostics.Warning(diagnostics.SchemaValidationError, module, ast.Position{}, "%s", msg)
}
