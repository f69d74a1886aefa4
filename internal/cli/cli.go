// Package cli implements the stubgen command's flag handling and source
// loading, split out from cmd/stubgen/main.go so the end-to-end test
// suite under tests/e2e can drive it directly via
// github.com/rogpeppe/go-internal/testscript, the same way the teacher
// keeps cmd/funxy/main.go a thin wrapper and drives its CLI behavior
// through an internal package in its own integration tests.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/lua-modkit/stubgen/internal/analysis"
	"github.com/lua-modkit/stubgen/internal/ast"
	"github.com/lua-modkit/stubgen/internal/config"
	"github.com/lua-modkit/stubgen/internal/depresolver"
	"github.com/lua-modkit/stubgen/internal/diagnostics"
	"github.com/lua-modkit/stubgen/internal/schemabridge"
)

// Run parses args the way the stubgen binary's main would, executes the
// analysis, and writes the resulting schema to stdout (or -output) and
// the diagnostic summary to stderr. It returns the process exit code
// rather than calling os.Exit, so tests can invoke it in-process.
func Run(args []string, stdout, stderr io.Writer) int {
	opts := config.Default()

	fs := flag.NewFlagSet("stubgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputDir := fs.String("input", "", "directory of *.ast.json pre-parsed sources (required)")
	schemaPath := fs.String("schema", "", "existing schema file to merge against (optional)")
	outputPath := fs.String("output", "", "path to write the resulting schema file (default: stdout)")
	subdirs := fs.String("subdirs", strings.Join(config.DefaultSubdirectories, ","), "comma-separated subdirectory analysis order")
	heuristics := fs.Bool("heuristics", opts.Heuristics, "enable name-based parameter type heuristics")
	fs.BoolVar(&opts.KeepTypes, "keep-types", opts.KeepTypes, "preserve hand-written types across a merge")
	fs.BoolVar(&opts.Inject, "inject", opts.Inject, "inject newly discovered classes into the schema")
	fs.BoolVar(&opts.RosettaOnly, "rosetta-only", opts.RosettaOnly, "only report constructor-arity mismatches")
	fs.BoolVar(&opts.DeleteUnknown, "delete-unknown", opts.DeleteUnknown, "drop schema entries no longer observed")
	fs.BoolVar(&opts.StrictFields, "strict-fields", opts.StrictFields, "require every field to resolve to a concrete type")
	fs.BoolVar(&opts.Ambiguity, "ambiguity", opts.Ambiguity, "report ambiguous idiom matches")
	fs.BoolVar(&opts.Alphabetize, "alphabetize", opts.Alphabetize, "alphabetize schema output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	opts.Heuristics = *heuristics
	opts.InputDir = *inputDir
	opts.SchemaDir = *schemaPath
	opts.OutputDir = *outputPath
	if *subdirs != "" {
		opts.Subdirectories = strings.Split(*subdirs, ",")
	}

	if opts.InputDir == "" {
		fmt.Fprintln(stderr, "stubgen: -input is required")
		return 2
	}

	sources, err := loadSources(opts.InputDir, opts.Subdirectories)
	if err != nil {
		fmt.Fprintf(stderr, "stubgen: %v\n", err)
		return 1
	}

	var existing *schemabridge.File
	if opts.SchemaDir != "" {
		raw, err := os.ReadFile(opts.SchemaDir)
		if err != nil {
			fmt.Fprintf(stderr, "stubgen: reading schema: %v\n", err)
			return 1
		}
		parsed, derr := schemabridge.Parse(raw)
		if derr != nil {
			fmt.Fprintf(stderr, "stubgen: %v\n", derr)
			return 1
		}
		existing = parsed
	}

	result := analysis.Run(opts, sources, existing)

	out, err := schemabridge.Marshal(result.Schema)
	if err != nil {
		fmt.Fprintf(stderr, "stubgen: marshaling schema: %v\n", err)
		return 1
	}
	if opts.OutputDir == "" {
		fmt.Fprint(stdout, string(out))
	} else if err := os.WriteFile(opts.OutputDir, out, 0o644); err != nil {
		fmt.Fprintf(stderr, "stubgen: writing schema: %v\n", err)
		return 1
	}

	printSummary(stderr, result)
	return 0
}

// loadSources walks root for *.ast.json files, decoding each into a
// depresolver.Source. A file's ID is its path relative to root with the
// .ast.json suffix stripped, normalized to slashes; its Subdir is the
// first path segment.
func loadSources(root string, subdirs []string) ([]depresolver.Source, error) {
	allowed := map[string]bool{}
	for _, s := range subdirs {
		allowed[s] = true
	}

	var sources []depresolver.Source
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".ast.json") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		id := strings.TrimSuffix(rel, ".ast.json")
		subdir := ""
		if idx := strings.Index(id, "/"); idx >= 0 {
			subdir = id[:idx]
		}
		if len(allowed) > 0 && !allowed[subdir] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		chunk, err := ast.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sources = append(sources, depresolver.Source{ID: id, Subdir: subdir, Root: chunk})
		return nil
	})
	return sources, err
}

func printSummary(stderr io.Writer, r *analysis.Result) {
	colored := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	var warnings int
	for _, e := range r.Errors {
		if e.Severity == diagnostics.SeverityWarning {
			warnings++
		}
		switch {
		case !colored:
			fmt.Fprintln(stderr, e.Error())
		case e.Severity == diagnostics.SeverityWarning:
			fmt.Fprintf(stderr, "\033[33m%s\033[0m\n", e.Error())
		default:
			fmt.Fprintf(stderr, "\033[31m%s\033[0m\n", e.Error())
		}
	}
	fmt.Fprintf(stderr, "run %s: analyzed %s files, %s classes, %s warnings in %s\n",
		r.RunID,
		humanize.Comma(int64(r.Stats.Modules)),
		humanize.Comma(int64(r.Stats.Classes)),
		humanize.Comma(int64(warnings)),
		r.Elapsed)
}
