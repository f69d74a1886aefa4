// Package schemabridge models the on-disk schema file format (spec.md
// §6) and merges it against an analyzed model. The file reader/writer
// themselves stay external (spec.md §1); this package owns only the Go
// shape of the document and the merge semantics.
//
// Grounded on the teacher's pkg/ext/types.go / internal/ext/inspector.go
// (a parsed external BindSpec merged against analyzed Go type
// information) — the same shape as merging a hand-maintained schema file
// against analyzed scripting-language types.
package schemabridge

import (
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/lua-modkit/stubgen/internal/ast"
	"github.com/lua-modkit/stubgen/internal/diagnostics"
)

// File is the top-level schema document (spec.md §6).
type File struct {
	Version   string    `yaml:"version"`
	Languages Languages `yaml:"languages"`
}

type Languages struct {
	Lua LuaLanguage `yaml:"lua"`
}

type LuaLanguage struct {
	Aliases   map[string]string  `yaml:"aliases,omitempty"`
	Classes   map[string]Class   `yaml:"classes,omitempty"`
	Tables    map[string]Class   `yaml:"tables,omitempty"`
	Functions []Function         `yaml:"functions,omitempty"`
	Fields    map[string]Field   `yaml:"fields,omitempty"`
	Tags      map[string][]string `yaml:"tags,omitempty"`
}

// Class models both `classes[name]` and `tables[name]`: tables simply
// leave Extends/Constructors empty (spec.md §6: "tables[name] like class
// but no constructors/extends").
type Class struct {
	Extends       string            `yaml:"extends,omitempty"`
	Notes         string            `yaml:"notes,omitempty"`
	Deprecated    bool              `yaml:"deprecated,omitempty"`
	Mutable       bool              `yaml:"mutable,omitempty"`
	Local         bool              `yaml:"local,omitempty"`
	Constructors  []Function        `yaml:"constructors,omitempty"`
	Fields        map[string]Field  `yaml:"fields,omitempty"`
	StaticFields  map[string]Field  `yaml:"staticFields,omitempty"`
	Methods       []Function        `yaml:"methods,omitempty"`
	StaticMethods []Function        `yaml:"staticMethods,omitempty"`
	Overloads     []Function        `yaml:"overloads,omitempty"`
	Operators     []Function        `yaml:"operators,omitempty"`
	Tags          []string          `yaml:"tags,omitempty"`
}

type Function struct {
	Name       string     `yaml:"name"`
	Parameters []Param    `yaml:"parameters,omitempty"`
	Return     []string   `yaml:"return,omitempty"`
	Overloads  []Function `yaml:"overloads,omitempty"`
	Notes      string     `yaml:"notes,omitempty"`
	Deprecated bool       `yaml:"deprecated,omitempty"`
	Tags       []string   `yaml:"tags,omitempty"`
}

type Param struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
}

type Field struct {
	Type         string   `yaml:"type,omitempty"`
	Notes        string   `yaml:"notes,omitempty"`
	Nullable     bool     `yaml:"nullable,omitempty"`
	DefaultValue string   `yaml:"defaultValue,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
}

// File-level tags recognized on a module's own Tags list (spec.md §6).
const (
	TagDefinitions  = "StubGen_Definitions"
	TagHidden       = "StubGen_Hidden"
	TagNoInitializer = "StubGen_NoInitializer"
	TagExtra        = "StubGen_Extra"
)

const supportedVersion = "v1.1"

// Parse validates a decoded File's version and shape (spec.md §7's
// SchemaValidationError path runs here — malformed files are logged and
// rejected, not fatal to the whole run).
func Parse(raw []byte) (*File, *diagnostics.DiagnosticError) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, diagnostics.New(diagnostics.SchemaValidationError, "", ast.Position{}, "invalid schema yaml: %v", err)
	}
	if !semver.IsValid(normalizeVersion(f.Version)) {
		return nil, diagnostics.New(diagnostics.SchemaValidationError, "", ast.Position{}, "unsupported schema version %q", f.Version)
	}
	if semver.Compare(normalizeVersion(f.Version), supportedVersion) > 0 {
		return nil, diagnostics.New(diagnostics.SchemaValidationError, "", ast.Position{}, "schema version %q is newer than supported %q", f.Version, supportedVersion)
	}
	return &f, nil
}

func normalizeVersion(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// Marshal serializes f back to YAML bytes.
func Marshal(f *File) ([]byte, error) {
	if f.Version == "" {
		f.Version = "1.1"
	}
	return yaml.Marshal(f)
}

