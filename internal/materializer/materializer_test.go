package materializer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarqd/ldactl/internal/credential"
	"github.com/tarqd/ldactl/internal/envstore"
)

func TestMaterializeWritesFlatEnvironmentMap(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "environments.json")
	m := New(target)

	envs := map[string]envstore.Environment{
		"/e/A": {Path: "/e/A", ProjectKey: "p", EnvKey: "dev", SDKKey: "s1", Version: 1},
	}

	require.NoError(t, m.Materialize(envs, nil))

	data, err := os.ReadFile(target)
	require.NoError(t, err)

	var doc map[string]record
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "/e/A")
	assert.Equal(t, "dev", doc["/e/A"].EnvKey)
	assert.Equal(t, credential.SDKKey("s1"), doc["/e/A"].SDKKey)
}

func TestMaterializeWritesFiltersToSiblingFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "environments.json")
	m := New(target)

	filters := map[string]envstore.Filter{
		"/f/beta": {Path: "/f/beta", ProjectKey: "p", FilterKey: "beta", Version: 1},
	}

	require.NoError(t, m.Materialize(nil, filters))

	// The environment file is still written, as an empty flat map.
	envData, err := os.ReadFile(target)
	require.NoError(t, err)
	var envDoc map[string]record
	require.NoError(t, json.Unmarshal(envData, &envDoc))
	assert.Empty(t, envDoc)

	filterData, err := os.ReadFile(filepath.Join(dir, "environments.filters.json"))
	require.NoError(t, err)
	var filterDoc map[string]filterRecord
	require.NoError(t, json.Unmarshal(filterData, &filterDoc))
	require.Contains(t, filterDoc, "/f/beta")
	assert.Equal(t, "beta", filterDoc["/f/beta"].FilterKey)
}

func TestMaterializeOmitsFiltersFileWhenNoFilters(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.json")
	m := New(target)

	require.NoError(t, m.Materialize(map[string]envstore.Environment{
		"/e/A": {Path: "/e/A", Version: 1},
	}, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestMaterializeLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.json")
	m := New(target)

	require.NoError(t, m.Materialize(nil, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestMaterializeOverwritesPreviousContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.json")
	m := New(target)

	require.NoError(t, m.Materialize(map[string]envstore.Environment{
		"/e/A": {Path: "/e/A", Version: 1},
	}, nil))
	require.NoError(t, m.Materialize(map[string]envstore.Environment{
		"/e/B": {Path: "/e/B", Version: 1},
	}, nil))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var doc map[string]record
	require.NoError(t, json.Unmarshal(data, &doc))
	_, hasA := doc["/e/A"]
	_, hasB := doc["/e/B"]
	assert.False(t, hasA)
	assert.True(t, hasB)
}

func TestSiblingPathInsertsSuffixBeforeExtension(t *testing.T) {
	assert.Equal(t, "/data/envs.filters.json", siblingPath("/data/envs.json", ".filters"))
	assert.Equal(t, "/data/envs.filters", siblingPath("/data/envs", ".filters"))
}
