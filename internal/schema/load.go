package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/ms05probe/internal/model"
)

// Reference is the set of descriptors a device is checked against.
type Reference struct {
	// Classes is keyed by file base name, which is the dotted class id
	// (models/classes/1.1.json is NcBlock).
	Classes map[string]model.Descriptor
	// Datatypes is keyed by file base name, e.g. "NcClassId".
	Datatypes map[string]model.Descriptor
	// Schemas holds one generated schema per datatype.
	Schemas map[string]map[string]any
}

// LoadReference reads models/classes and models/datatypes under each spec
// path and generates the datatype schemas. Paths missing either directory
// are skipped for it. A later path overrides an earlier one on name clash.
func LoadReference(specPaths []string) (*Reference, error) {
	var classDirs, datatypeDirs []string
	for _, p := range specPaths {
		if dir := filepath.Join(p, "models", "classes"); isDir(dir) {
			classDirs = append(classDirs, dir)
		}
		if dir := filepath.Join(p, "models", "datatypes"); isDir(dir) {
			datatypeDirs = append(datatypeDirs, dir)
		}
	}
	if len(datatypeDirs) == 0 {
		return nil, fmt.Errorf("no models/datatypes directory under %s", strings.Join(specPaths, ", "))
	}

	classes, err := LoadDescriptors(classDirs...)
	if err != nil {
		return nil, err
	}
	datatypes, err := LoadDescriptors(datatypeDirs...)
	if err != nil {
		return nil, err
	}
	schemas, err := Generate(datatypes)
	if err != nil {
		return nil, err
	}
	return &Reference{Classes: classes, Datatypes: datatypes, Schemas: schemas}, nil
}

// LoadDescriptors decodes every *.json file in dirs, keyed by base name.
func LoadDescriptors(dirs ...string) (map[string]model.Descriptor, error) {
	out := make(map[string]model.Descriptor)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading descriptors: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			var desc model.Descriptor
			if err := json.Unmarshal(data, &desc); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", path, err)
			}
			out[strings.TrimSuffix(e.Name(), ".json")] = desc
		}
	}
	return out, nil
}

// WriteSchemas writes each schema to dir/<name>.json and returns the
// written paths in name order.
func WriteSchemas(dir string, schemas map[string]map[string]any) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating schema directory: %w", err)
	}
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		data, err := json.MarshalIndent(schemas[name], "", "    ")
		if err != nil {
			return nil, fmt.Errorf("encoding schema %s: %w", name, err)
		}
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
