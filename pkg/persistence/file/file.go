// Package file provides file-based persistence for runs, AI jobs and projects.
//
// Layout under the root directory:
//
//	runs/<runId>.json
//	ai-jobs/<projectId|_unknown>/<jobId>.json
//	projects/<projectId>.json
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flowprobe/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root     string
	runs     *RunRepository
	jobs     *JobRepository
	projects *ProjectRepository
}

// NewPersistence creates a file persistence rooted at root. A "file://" prefix is accepted.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:     cleanRoot,
		runs:     NewRunRepository(cleanRoot),
		jobs:     NewJobRepository(cleanRoot),
		projects: NewProjectRepository(cleanRoot),
	}
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runs
}

func (fp *Persistence) JobRepository() persistence.JobRepository {
	return fp.jobs
}

func (fp *Persistence) ProjectRepository() persistence.ProjectRepository {
	return fp.projects
}

// HealthCheck checks that the root directory exists or can be created.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(fp.root, 0o750)
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// store serialises access to one directory tree of JSON documents.
type store struct {
	mu sync.RWMutex
}

// write stores v at path through a temporary file so readers never see a partial document.
func (s *store) write(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	tmp := path + ".tmp"

	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return os.Rename(tmp, path)
}

// read decodes the document at path into v. It reports false when the file does not exist.
func (s *store) read(path string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, err := os.ReadFile(path) // #nosec G304 -- paths are built from validated ids
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read document: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	return true, nil
}

// glob returns the documents matching pattern in lexical order.
func (s *store) glob(pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filepath.Glob(pattern)
}

// validID rejects ids that would escape their directory or act as glob patterns.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\*?[]`)
}
