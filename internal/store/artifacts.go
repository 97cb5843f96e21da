// Package store persists fetched artifacts and run progress on the local
// filesystem. The artifact directory is the source of truth for what has
// already been downloaded; resumption decisions come from file presence,
// not from the checkpoint alone.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// ErrArtifactExists is returned when a Put would overwrite a completed
// artifact. Completed artifacts are immutable; re-runs skip them.
var ErrArtifactExists = errors.New("artifact already exists")

var artifactNameRe = regexp.MustCompile(`^article_(\d+)\.html$`)

// Artifact describes one stored raw document.
type Artifact struct {
	Ordinal int
	Path    string
	ModTime time.Time
}

// ArtifactStore writes and lists raw document files under one directory.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates the base directory if needed and verifies it is
// writable before any batch work starts.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("artifact directory %s is not writable: %w", dir, err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Dir returns the store's base directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Path returns the artifact filename for an ordinal. Names are one-based
// and zero-padded so directory listings sort naturally.
func (s *ArtifactStore) Path(ordinal int) string {
	return filepath.Join(s.dir, fmt.Sprintf("article_%04d.html", ordinal+1))
}

func (s *ArtifactStore) errorPath(ordinal int) string {
	return filepath.Join(s.dir, fmt.Sprintf("article_%04d_error.txt", ordinal+1))
}

// Exists reports whether the artifact for ordinal has been persisted.
func (s *ArtifactStore) Exists(ordinal int) bool {
	_, err := os.Stat(s.Path(ordinal))
	return err == nil
}

// Put persists the raw body verbatim. An existing artifact is never
// overwritten; a crash mid-batch leaves completed items intact.
func (s *ArtifactStore) Put(ordinal int, body []byte) error {
	f, err := os.OpenFile(s.Path(ordinal), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return ErrArtifactExists
		}
		return fmt.Errorf("create artifact %s: %w", s.Path(ordinal), err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return fmt.Errorf("write artifact %s: %w", s.Path(ordinal), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", s.Path(ordinal), err)
	}
	return nil
}

// PutError records the terminal failure for an ordinal alongside the
// artifact slot it failed to fill.
func (s *ArtifactStore) PutError(ordinal int, url, message string) error {
	body := fmt.Sprintf("Error: %s\nURL: %s\n", message, url)
	if err := os.WriteFile(s.errorPath(ordinal), []byte(body), 0o600); err != nil {
		return fmt.Errorf("write error artifact: %w", err)
	}
	return nil
}

// List returns all stored artifacts sorted by ordinal.
func (s *ArtifactStore) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory %s: %w", s.dir, err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := artifactNameRe.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		number, err := strconv.Atoi(match[1])
		if err != nil || number < 1 {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Ordinal: number - 1,
			Path:    filepath.Join(s.dir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Ordinal < artifacts[j].Ordinal
	})
	return artifacts, nil
}

// Cleanup removes run files under dir, keeping the path named by keep.
// It returns how many entries were removed. Used after a successful export
// to drop raw artifacts while preserving the dataset.
func Cleanup(dir, keep string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read directory %s: %w", dir, err)
	}

	keepAbs := ""
	if keep != "" {
		if abs, err := filepath.Abs(keep); err == nil {
			keepAbs = abs
		}
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if keepAbs != "" {
			if abs, err := filepath.Abs(path); err == nil && abs == keepAbs {
				continue
			}
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}
