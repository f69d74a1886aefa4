// Package diagnostics implements the error-kind taxonomy of spec.md §7:
// a closed set of error codes, a DiagnosticError carrying position and
// module context, and a Collector that deduplicates and sorts the way the
// teacher's analyzer walker accumulates semantic errors.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/lua-modkit/stubgen/internal/ast"
)

// Code is one of the five error kinds spec.md §7 names.
type Code string

const (
	// ParseError: parser failure on a file. Logged; file skipped; analysis continues.
	ParseError Code = "ParseError"
	// IoError: read/write failure. Logged; reads skip the file, writes skip the one output.
	IoError Code = "IoError"
	// DuplicateIdentifier: two files normalize to the same identifier. Fatal for the second; first wins.
	DuplicateIdentifier Code = "DuplicateIdentifier"
	// SchemaValidationError: a schema file's version or shape is wrong. Logged and rejected.
	SchemaValidationError Code = "SchemaValidationError"
	// LogicInvariant: an internal assertion failed. Fatal for that module's pipeline only.
	LogicInvariant Code = "LogicInvariant"
)

// Severity distinguishes fatal-to-module errors from advisory warnings
// (e.g. schema arity mismatches, unknown schema entries — spec.md §7).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// DiagnosticError is the shared error record for every component.
type DiagnosticError struct {
	Code     Code
	Severity Severity
	Message  string
	Module   string // module/file identifier this diagnostic belongs to
	Pos      ast.Position
	RunID    string // correlation id stamped by Collector.Add
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.Module, e.Pos.Line, e.Pos.Column, e.Code, e.Message)
}

// New builds a DiagnosticError at error severity.
func New(code Code, module string, pos ast.Position, format string, args ...interface{}) *DiagnosticError {
	return &DiagnosticError{
		Code:     code,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Module:   module,
		Pos:      pos,
	}
}

// Warning builds a DiagnosticError at warning severity — reported but
// never interrupts the pipeline (spec.md §7).
func Warning(code Code, module string, pos ast.Position, format string, args ...interface{}) *DiagnosticError {
	d := New(code, module, pos, format, args...)
	d.Severity = SeverityWarning
	return d
}

// Collector deduplicates diagnostics by (module, line, column, code),
// exactly as the teacher's walker.addError keys its errorSet, and returns
// them in deterministic position order.
type Collector struct {
	RunID string
	seen  map[string]*DiagnosticError
}

// NewCollector creates an empty Collector tagged with a run correlation id.
func NewCollector(runID string) *Collector {
	return &Collector{RunID: runID, seen: make(map[string]*DiagnosticError)}
}

// Add records a diagnostic, deduplicating on (module, pos, code).
func (c *Collector) Add(d *DiagnosticError) {
	if d == nil {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]*DiagnosticError)
	}
	d.RunID = c.RunID
	key := fmt.Sprintf("%s:%d:%d:%s", d.Module, d.Pos.Line, d.Pos.Column, d.Code)
	c.seen[key] = d
}

// Addf is a convenience for Add(New(...)).
func (c *Collector) Addf(code Code, module string, pos ast.Position, format string, args ...interface{}) {
	c.Add(New(code, module, pos, format, args...))
}

// HasFatal reports whether any collected diagnostic is at error severity.
func (c *Collector) HasFatal() bool {
	for _, d := range c.seen {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// All returns every collected diagnostic sorted by module, then position.
func (c *Collector) All() []*DiagnosticError {
	result := make([]*DiagnosticError, 0, len(c.seen))
	for _, d := range c.seen {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Module != result[j].Module {
			return result[i].Module < result[j].Module
		}
		if result[i].Pos.Line != result[j].Pos.Line {
			return result[i].Pos.Line < result[j].Pos.Line
		}
		return result[i].Pos.Column < result[j].Pos.Column
	})
	return result
}
