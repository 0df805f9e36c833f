package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/model"
)

// WriteReference lays out classes and datatypes the way an MS-05 spec
// checkout does (models/classes/<classId>.json, models/datatypes/<name>.json)
// under a fresh temp directory and returns its path.
func WriteReference(t *testing.T, classes, datatypes []model.Descriptor) string {
	t.Helper()
	root := t.TempDir()
	classDir := filepath.Join(root, "models", "classes")
	datatypeDir := filepath.Join(root, "models", "datatypes")
	require.NoError(t, os.MkdirAll(classDir, 0o755))
	require.NoError(t, os.MkdirAll(datatypeDir, 0o755))

	for _, c := range classes {
		id, err := model.ParseClassID(c["classId"])
		require.NoError(t, err)
		writeJSON(t, filepath.Join(classDir, id.String()+".json"), c)
	}
	for _, d := range datatypes {
		writeJSON(t, filepath.Join(datatypeDir, d["name"].(string)+".json"), d)
	}
	return root
}

// StandardReference writes the standard catalog as a reference tree.
func StandardReference(t *testing.T) string {
	t.Helper()
	return WriteReference(t, StandardClasses(), StandardDatatypes())
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
