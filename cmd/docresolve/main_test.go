package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docresolve/internal/convert"
)

func init() {
	color.NoColor = true
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("LOADER", "fs")
	root, c := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	require.NoError(t, c.close())
	return out.String(), err
}

func fixture(t *testing.T) string {
	return writeTree(t, map[string]string{
		"Common/Content Blocks/LetterHeader.txt": "Smith & Co",
		"Common/Content Blocks/Footer.txt":       "Kind regards",
		"letters/welcome.txt":                    "{{dc-letterheader}}\nDear {{ context.client.name }},\nthank you.\n[content:Footer]",
		"letters/broken.txt":                     "{{content:Missing}}",
		"letters/notes.bin":                      "ignored",
	})
}

func TestConvert_Text(t *testing.T) {
	root := fixture(t)
	out, err := run(t, "--root", root, "convert", "--outline", filepath.Join(root, "letters", "welcome.txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "category  correspondence (classified)")
	assert.Contains(t, out, "blocks    2 loaded")
	assert.Contains(t, out, "Smith & Co")
}

func TestConvert_JSON(t *testing.T) {
	root := fixture(t)
	out, err := run(t, "--root", root, "convert", "--json", "--category", "legal", filepath.Join(root, "letters", "welcome.txt"))
	require.NoError(t, err)

	var rep convert.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "legal", string(rep.Category))
	assert.False(t, rep.Classified)
	assert.Equal(t, []string{"letterheader", "Footer"}, rep.References.Blocks)
}

func TestConvert_MissingBlock(t *testing.T) {
	root := fixture(t)
	_, err := run(t, "--root", root, "convert", filepath.Join(root, "letters", "broken.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference_not_found")

	out, err := run(t, "--root", root, "--relaxed", "convert", filepath.Join(root, "letters", "broken.txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 unresolved")
}

func TestBatch(t *testing.T) {
	root := fixture(t)
	out, err := run(t, "--root", root, "batch", "-j", "2", filepath.Join(root, "letters"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Contains(t, out, "welcome.txt")
	assert.Contains(t, out, "FAILED")
	assert.NotContains(t, out, "notes.bin")
}

func TestBlocks(t *testing.T) {
	root := fixture(t)
	out, err := run(t, "--root", root, "blocks")
	require.NoError(t, err)
	assert.Contains(t, out, "Common/Content Blocks/LetterHeader.txt")
	assert.Contains(t, out, "letters/welcome.txt")
}
