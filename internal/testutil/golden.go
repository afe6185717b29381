// Package testutil holds helpers shared by package tests.
package testutil

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Update rewrites golden files instead of comparing: go test ./... -update
var Update = flag.Bool("update", false, "update golden files")

// GoldenPath is testdata/<name>.golden relative to the package under test.
func GoldenPath(name string) string {
	return filepath.Join("testdata", name+".golden")
}

// CompareGolden checks actual against testdata/<name>.golden.
func CompareGolden(t *testing.T, name string, actual []byte) {
	t.Helper()
	path := GoldenPath(name)

	if *Update {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, actual, 0o644))
		return
	}

	expected, err := os.ReadFile(path)
	require.NoError(t, err, "read golden file %s", path)
	require.Equal(t, string(expected), string(actual), "golden mismatch for %s", name)
}

// CompareGoldenFile compares the file at path.
func CompareGoldenFile(t *testing.T, name, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	CompareGolden(t, name, b)
}

// CompareJSONGolden compares v rendered as indented JSON.
func CompareJSONGolden(t *testing.T, name string, v any) {
	t.Helper()
	b, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	CompareGolden(t, name, append(b, '\n'))
}
