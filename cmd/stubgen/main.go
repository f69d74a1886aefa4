// Command stubgen runs the static analysis engine over a directory of
// pre-parsed AST files (spec.md §1: the source parser is out of scope;
// each `*.ast.json` is the external parser's output for one source
// file) and writes the resulting schema file.
//
// Flags are parsed by hand, matching the teacher's cmd/funxy/main.go
// style: no cobra/pflag anywhere in the corpus, so none is introduced
// here either. The actual flag handling and analysis driving live in
// internal/cli, so the end-to-end test suite can invoke the same code
// path in-process.
package main

import (
	"os"

	"github.com/lua-modkit/stubgen/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
