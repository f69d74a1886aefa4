package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptyChunk = `{"kind":"Chunk","position":{"line":1,"column":1,"offset":0},"body":[]}`

func writeFixture(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(emptyChunk), 0o644))
}

// loadSources walks root for *.ast.json files, deriving each source's ID
// (path relative to root, suffix stripped) and Subdir (first segment).
func TestLoadSourcesDerivesIDAndSubdirFromPath(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "shared/base.ast.json")
	writeFixture(t, root, "client/main.ast.json")
	writeFixture(t, root, "notes.txt")

	sources, err := loadSources(root, nil)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	byID := map[string]string{}
	for _, s := range sources {
		byID[s.ID] = s.Subdir
		assert.NotNil(t, s.Root)
	}
	assert.Equal(t, "shared", byID["shared/base"])
	assert.Equal(t, "client", byID["client/main"])
}

// A non-empty subdirs allowlist filters out sources outside it.
func TestLoadSourcesFiltersBySubdirAllowlist(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "shared/base.ast.json")
	writeFixture(t, root, "client/main.ast.json")

	sources, err := loadSources(root, []string{"shared"})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "shared/base", sources[0].ID)
}

func TestLoadSourcesRejectsMalformedJSON(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "broken.ast.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := loadSources(root, nil)
	assert.Error(t, err)
}

func TestRunRequiresInputFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(nil, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "-input is required")
}

func TestRunWritesSchemaToStdoutForEmptyInput(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "shared/base.ast.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"-input", root}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.NotEmpty(t, stdout.String())
	assert.Contains(t, stderr.String(), "analyzed")
}
