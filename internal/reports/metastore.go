package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MetaStore keeps job metadata as one JSON file per job in a directory.
// Writes go through a temp file and rename, so readers never see a partial
// file.
type MetaStore struct {
	dir string
}

// NewMetaStore creates dir if needed.
func NewMetaStore(dir string) (*MetaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report metadata directory %s: %w", dir, err)
	}
	return &MetaStore{dir: dir}, nil
}

func (m *MetaStore) path(id uuid.UUID) string {
	return filepath.Join(m.dir, id.String()+".json")
}

// Save writes job, replacing any previous version.
func (m *MetaStore) Save(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	tmp, err := os.CreateTemp(m.dir, ".job-*")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write metadata for job %s: %w", job.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close metadata for job %s: %w", job.ID, err)
	}
	if err := os.Rename(tmp.Name(), m.path(job.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store metadata for job %s: %w", job.ID, err)
	}
	return nil
}

// Load reads the job with id, or ErrNotFound.
func (m *MetaStore) Load(id uuid.UUID) (*Job, error) {
	data, err := os.ReadFile(m.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata for job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for job %s: %w", id, err)
	}
	return &job, nil
}

// List returns every stored job. Files that fail to parse are skipped and
// reported in the returned error list.
func (m *MetaStore) List() ([]*Job, []error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to list report metadata: %w", err)}
	}

	var (
		jobs []*Job
		errs []error
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		job, err := m.Load(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, errs
}

// Delete removes the metadata of id. A missing file is not an error.
func (m *MetaStore) Delete(id uuid.UUID) error {
	if err := os.Remove(m.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata for job %s: %w", id, err)
	}
	return nil
}
