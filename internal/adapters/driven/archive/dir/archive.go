// Package dir implements the run archive as a directory tree: one
// subdirectory per run id holding result.json and meta.json.
package dir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
)

const (
	resultFile = "result.json"
	metaFile   = "meta.json"
)

// Archive stores reports under root/{run-id}/.
type Archive struct {
	root string
}

var _ driven.RunArchive = (*Archive)(nil)

// NewArchive creates the archive root if missing. An empty root defaults to
// ~/.buildlens/archive.
func NewArchive(root string) (*Archive, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		root = filepath.Join(home, ".buildlens", "archive")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &Archive{root: root}, nil
}

// Root returns the archive root directory.
func (a *Archive) Root() string {
	return a.root
}

func (a *Archive) Save(_ context.Context, report *domain.Report, meta *domain.RunMeta) error {
	if report == nil || meta == nil {
		return fmt.Errorf("%w: nil report or meta", domain.ErrInvalidInput)
	}
	runDir, err := a.runDir(report.RunID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0700); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	if err := writeJSON(filepath.Join(runDir, resultFile), report); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, metaFile), meta)
}

func (a *Archive) Load(_ context.Context, runID string) (*domain.Report, *domain.RunMeta, error) {
	runDir, err := a.runDir(runID)
	if err != nil {
		return nil, nil, err
	}

	var report domain.Report
	if err := readJSON(filepath.Join(runDir, resultFile), &report); err != nil {
		return nil, nil, err
	}
	var meta domain.RunMeta
	if err := readJSON(filepath.Join(runDir, metaFile), &meta); err != nil {
		return nil, nil, err
	}
	return &report, &meta, nil
}

func (a *Archive) Close() error {
	return nil
}

// runDir validates the run id and returns its directory. Path separators and
// traversal components are rejected so a crafted id cannot escape the root.
func (a *Archive) runDir(runID string) (string, error) {
	if runID == "" ||
		strings.ContainsAny(runID, `/\`) ||
		runID == "." || runID == ".." {
		return "", fmt.Errorf("%w: invalid run id %q", domain.ErrInvalidInput, runID)
	}
	return filepath.Join(a.root, runID), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, filepath.Base(path))
		}
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}
