package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the captured log output contains every fragment.
func AssertLogged(t *testing.T, result *HarnessResult, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		require.True(t,
			strings.Contains(result.LogOutput, f),
			"expected log output to contain %q", f,
		)
	}
}

// StagedNames returns the sorted names of the entries in dir, or nil when
// dir does not exist.
func StagedNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// ReadStaged returns the content a staged entry of dir resolves to.
func ReadStaged(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}
