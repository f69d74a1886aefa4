// Package depresolver implements the Dependency Resolver (spec.md §4.1):
// a cheap AST-walk pass that orders source files so later stages analyze
// a module's dependencies before the module itself, tolerating cycles.
//
// Grounded on the teacher's internal/modules/loader.go (package-root and
// extension detection) and internal/utils path-suffix matching, adapted
// from "load a single module's dependency graph lazily" to "precompute a
// whole-project topological order up front".
package depresolver

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lua-modkit/stubgen/internal/ast"
)

// FileFacts is the per-file AST-walk summary the resolver works from.
type FileFacts struct {
	ID       string // normalized file identifier (require-path form)
	Subdir   string // which configured subdirectory prefix this file falls under
	Reads    map[string]bool
	Writes   map[string]bool
	Requires []string // string arguments to `require(...)`, in source order
}

// NewFileFacts returns an empty FileFacts for id under subdir.
func NewFileFacts(id, subdir string) *FileFacts {
	return &FileFacts{ID: id, Subdir: subdir, Reads: map[string]bool{}, Writes: map[string]bool{}}
}

// Source is one file the caller wants ordered; Root is its Chunk (parsing
// is external per spec.md §1).
type Source struct {
	ID     string
	Subdir string
	Root   *ast.Chunk
}

// ExtractFacts walks src's AST and computes its reads/writes/requires
// sets, per spec.md §4.1 ("compute three sets by AST walk, no full
// analysis"). Locally-bound names (function parameters, `local`
// declarations) are excluded from reads/writes since those aren't globals.
func ExtractFacts(src Source) *FileFacts {
	f := NewFileFacts(src.ID, src.Subdir)
	bound := map[string]bool{}
	var walkStmts func([]ast.Statement)
	var walkExpr func(ast.Expression)

	declare := func(names []*ast.Identifier) {
		for _, n := range names {
			bound[n.Name] = true
		}
	}

	walkExpr = func(e ast.Expression) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.Identifier:
			if !bound[n.Name] {
				f.Reads[n.Name] = true
			}
		case *ast.MemberExpression:
			walkExpr(n.Base)
		case *ast.IndexExpression:
			walkExpr(n.Base)
			walkExpr(n.Index)
		case *ast.UnaryExpression:
			walkExpr(n.Argument)
		case *ast.BinaryExpression:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.LogicalExpression:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.CallExpression:
			if id, ok := isRequireCall(n); ok {
				f.Requires = append(f.Requires, id)
			} else {
				walkExpr(n.Base)
			}
			for _, a := range n.Arguments {
				walkExpr(a)
			}
		case *ast.TableCallExpression:
			walkExpr(n.Base)
			for _, fld := range n.Table.Fields {
				walkTableField(fld, walkExpr)
			}
		case *ast.StringCallExpression:
			walkExpr(n.Base)
		case *ast.TableConstructorExpression:
			for _, fld := range n.Fields {
				walkTableField(fld, walkExpr)
			}
		case *ast.FunctionDeclaration:
			walkFunction(n, walkStmts, declare)
		}
	}

	walkStmts = func(stmts []ast.Statement) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.LocalStatement:
				for _, init := range n.Init {
					walkExpr(init)
				}
				declare(n.Names)
			case *ast.AssignmentStatement:
				for _, init := range n.Init {
					walkExpr(init)
				}
				for _, t := range n.Targets {
					if id, ok := t.(*ast.Identifier); ok {
						if !bound[id.Name] {
							f.Writes[id.Name] = true
						}
						continue
					}
					walkExpr(t)
				}
			case *ast.ReturnStatement:
				for _, a := range n.Arguments {
					walkExpr(a)
				}
			case *ast.IfStatement:
				for _, c := range n.Clauses {
					switch cl := c.(type) {
					case *ast.IfClause:
						walkExpr(cl.Condition)
						walkStmts(cl.Body)
					case *ast.ElseifClause:
						walkExpr(cl.Condition)
						walkStmts(cl.Body)
					case *ast.ElseClause:
						walkStmts(cl.Body)
					}
				}
			case *ast.WhileStatement:
				walkExpr(n.Condition)
				walkStmts(n.Body)
			case *ast.RepeatStatement:
				walkStmts(n.Body)
				walkExpr(n.Condition)
			case *ast.DoStatement:
				walkStmts(n.Body)
			case *ast.ForNumericStatement:
				walkExpr(n.Start)
				walkExpr(n.End)
				walkExpr(n.Step)
				declare([]*ast.Identifier{n.Variable})
				walkStmts(n.Body)
			case *ast.ForGenericStatement:
				for _, it := range n.Iterators {
					walkExpr(it)
				}
				declare(n.Names)
				walkStmts(n.Body)
			case *ast.FunctionDeclaration:
				if n.IsLocal {
					if id, ok := n.Identifier.(*ast.Identifier); ok {
						declare([]*ast.Identifier{id})
					}
				} else {
					walkExpr(n.Identifier)
				}
				walkFunction(n, walkStmts, declare)
			case *ast.CallStatement:
				walkExpr(n.Expression)
			}
		}
	}

	walkStmts(src.Root.Body)
	return f
}

func walkTableField(fld ast.TableField, walkExpr func(ast.Expression)) {
	switch n := fld.(type) {
	case *ast.TableValue:
		walkExpr(n.Value)
	case *ast.TableKey:
		walkExpr(n.Key)
		walkExpr(n.Value)
	case *ast.TableKeyString:
		walkExpr(n.Value)
	}
}

func walkFunction(n *ast.FunctionDeclaration, walkStmts func([]ast.Statement), declare func([]*ast.Identifier)) {
	declare(n.Parameters)
	walkStmts(n.Body)
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

// AliasMap maps a require-path suffix to every full identifier ending in
// that suffix, per spec.md §4.1's "register suffixes b/c, c, etc." rule.
type AliasMap map[string][]string

// BuildAliasMap computes the alias map once from the full file ID set.
func BuildAliasMap(ids []string) AliasMap {
	out := AliasMap{}
	for _, id := range ids {
		segs := strings.Split(id, "/")
		for i := range segs {
			suffix := strings.Join(segs[i:], "/")
			out[suffix] = append(out[suffix], id)
		}
	}
	return out
}

// Resolve looks up a required name against the alias map, preferring a
// unique match, then a match within preferredSubdir, else returning every
// candidate (caller treats all as deps, per spec.md §4.1).
func (a AliasMap) Resolve(required string, subdirOf map[string]string, preferredSubdir string) []string {
	candidates, ok := a[required]
	if !ok {
		return nil
	}
	if len(candidates) == 1 {
		return candidates
	}
	var inSubdir []string
	for _, c := range candidates {
		if subdirOf[c] == preferredSubdir {
			inSubdir = append(inSubdir, c)
		}
	}
	if len(inSubdir) == 1 {
		return inSubdir
	}
	return candidates
}

// setterIndex maps a global name to the set of file IDs that write it.
type setterIndex map[string]map[string]bool

func buildSetterIndex(facts []*FileFacts) setterIndex {
	idx := setterIndex{}
	for _, f := range facts {
		for name := range f.Writes {
			if idx[name] == nil {
				idx[name] = map[string]bool{}
			}
			idx[name][f.ID] = true
		}
	}
	return idx
}

// Order computes the dependency-respecting file order described in
// spec.md §4.1: partition by subdirectory (in subdirs order), sort each
// partition case-insensitively, then run the worklist algorithm within
// each partition.
func Order(facts []*FileFacts, subdirs []string) []string {
	bySubdir := map[string][]*FileFacts{}
	subdirOf := map[string]string{}
	var ids []string
	for _, f := range facts {
		bySubdir[f.Subdir] = append(bySubdir[f.Subdir], f)
		subdirOf[f.ID] = f.Subdir
		ids = append(ids, f.ID)
	}
	aliases := BuildAliasMap(ids)
	setters := buildSetterIndex(facts)
	factsByID := map[string]*FileFacts{}
	for _, f := range facts {
		factsByID[f.ID] = f
	}

	lower := cases.Lower(language.Und) // locale-agnostic case folding for the partition sort

	var order []string
	orderSet := map[string]bool{}
	appendOrder := func(id string) {
		if !orderSet[id] {
			orderSet[id] = true
			order = append(order, id)
		}
	}

	deps := func(f *FileFacts) []string {
		depSet := map[string]bool{}
		for _, req := range f.Requires {
			if factsByID[req] != nil {
				depSet[req] = true
				continue
			}
			for _, alias := range aliases.Resolve(req, subdirOf, f.Subdir) {
				depSet[alias] = true
			}
		}
		for name := range f.Reads {
			for setter := range setters[name] {
				if setter != f.ID {
					depSet[setter] = true
				}
			}
		}
		delete(depSet, f.ID)
		out := make([]string, 0, len(depSet))
		for d := range depSet {
			out = append(out, d)
		}
		sort.Strings(out)
		return out
	}

	for _, subdir := range subdirs {
		group := bySubdir[subdir]
		sort.Slice(group, func(i, j int) bool {
			return lower.String(group[i].ID) < lower.String(group[j].ID)
		})

		var stack []string
		for _, f := range group {
			stack = append(stack, f.ID)
		}
		seen := map[string]bool{}

		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if orderSet[id] {
				continue
			}
			f, ok := factsByID[id]
			if !ok {
				continue
			}
			seen[id] = true

			var pending []string
			for _, d := range deps(f) {
				if !seen[d] && !orderSet[d] {
					pending = append(pending, d)
				}
			}
			if len(pending) == 0 {
				appendOrder(id)
				continue
			}
			stack = append(stack, id)
			for i := len(pending) - 1; i >= 0; i-- {
				stack = append(stack, pending[i])
			}
		}
	}

	return order
}

// ReadAll reads and extracts facts for every source concurrently (I/O is
// the only concurrent part; Order itself is single-threaded and
// deterministic), returning facts in the same order as srcs.
func ReadAll(ctx context.Context, srcs []Source) ([]*FileFacts, error) {
	out := make([]*FileFacts, len(srcs))
	g, _ := errgroup.WithContext(ctx)
	for i, s := range srcs {
		i, s := i, s
		g.Go(func() error {
			out[i] = ExtractFacts(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
