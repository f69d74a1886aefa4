// Package config holds the environment and flag surface of spec.md §6:
// the toggles a caller sets once per run, with the stated defaults.
package config

// DefaultSubdirectories is the default subdirectory analysis order used by
// the Dependency Resolver (spec.md §4.1) when the caller does not supply
// one explicitly.
var DefaultSubdirectories = []string{"shared", "client", "server"}

// Options is the full flag/environment surface from spec.md §6.
type Options struct {
	// InputDir is the root directory of the source corpus.
	InputDir string
	// SchemaDir is the optional directory of pre-existing schema files to
	// merge against (component G). Empty means no schema merge.
	SchemaDir string
	// OutputDir is where the external stub emitter/schema writer will
	// place their artifacts; the core never writes here itself.
	OutputDir string
	// Subdirectories is the ordered subdirectory-prefix list the
	// Dependency Resolver partitions files by. An empty slice means "all
	// subdirectories" (spec.md §4.1).
	Subdirectories []string

	Heuristics        bool
	KeepTypes         bool
	Inject            bool
	RosettaOnly       bool
	DeleteUnknown     bool
	StrictFields      bool
	Ambiguity         bool
	Alphabetize       bool
	IncludeKahlua     bool
	IncludeLargeDefs  bool
	HelperPattern     string
	SkipPattern       string
	ExtraFiles        []string
	Exclude           []string
	ExcludeFields     []string
}

// Default returns an Options populated with spec.md §6's stated defaults.
func Default() Options {
	return Options{
		Subdirectories: append([]string(nil), DefaultSubdirectories...),
		Heuristics:     true,
		Inject:         true,
		DeleteUnknown:  true,
		StrictFields:   true,
		Ambiguity:      true,
		Alphabetize:    true,
	}
}
