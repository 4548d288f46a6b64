// Package yamldir loads a directory tree of YAML documents, each validated and
// indexed by the key it carries.
package yamldir

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Document is implemented by the pointer type of anything Load decodes.
// Validate may normalise the document in place.
type Document[T any] interface {
	*T
	Validate() error
	Key() string
}

// Load recursively scans dir for .yaml and .yml files, decodes each into a T,
// validates it and indexes it by Key. kind names the documents in logs, and
// keyName names the key in duplicate errors.
func Load[T any, PT Document[T]](dir, kind, keyName string) (map[string]T, error) {
	docs := make(map[string]T)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(d.Name()) {
			return nil
		}

		slog.Info("Loading "+kind, "file", path)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s file %s: %w", kind, path, err)
		}

		var doc T
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse YAML for %s: %w", path, err)
		}
		if err := PT(&doc).Validate(); err != nil {
			return fmt.Errorf("validation failed for %s: %w", path, err)
		}

		key := PT(&doc).Key()
		if _, exists := docs[key]; exists {
			return fmt.Errorf("duplicate %s '%s' found in %s", keyName, key, path)
		}
		docs[key] = doc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s directory %s: %w", kind, dir, err)
	}

	if len(docs) == 0 {
		slog.Warn("No "+kind+"s were loaded.", "path", dir)
	}
	return docs, nil
}

// Keys returns the keys of docs in sorted order.
func Keys[T any](docs map[string]T) []string {
	out := make([]string, 0, len(docs))
	for k := range docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
