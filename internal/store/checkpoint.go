package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const checkpointTimeLayout = "2006-01-02 15:04:05"

// Checkpoint summarizes batch progress so a later run can resume from the
// last processed ordinal instead of re-fetching the whole window.
type Checkpoint struct {
	LastProcessed int
	Completed     int
	Total         int
	Timestamp     time.Time
}

// CheckpointFile persists checkpoints in a small line-oriented format:
//
//	Last processed index: 140
//	Articles downloaded: 140/512
//	Timestamp: 2021-03-01 14:02:33
type CheckpointFile struct {
	path string
}

// NewCheckpointFile returns a checkpoint handle rooted in dir.
func NewCheckpointFile(dir string) *CheckpointFile {
	return &CheckpointFile{path: filepath.Join(dir, "progress.txt")}
}

// Path returns the checkpoint file location.
func (c *CheckpointFile) Path() string {
	return c.path
}

// Save writes the checkpoint atomically: a temp file in the same directory
// is renamed over the previous checkpoint, so an interrupted write never
// corrupts the resume state.
func (c *CheckpointFile) Save(cp Checkpoint) error {
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last processed index: %d\n", cp.LastProcessed)
	fmt.Fprintf(&b, "Articles downloaded: %d/%d\n", cp.Completed, cp.Total)
	fmt.Fprintf(&b, "Timestamp: %s\n", cp.Timestamp.Format(checkpointTimeLayout))

	tmp, err := os.CreateTemp(filepath.Dir(c.path), "progress-*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint back. The second return value reports whether
// a usable checkpoint was found; a missing or unparseable file degrades to
// "no checkpoint" rather than failing the run.
func (c *CheckpointFile) Load() (Checkpoint, bool, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("open checkpoint %s: %w", c.path, err)
	}
	defer f.Close()

	var cp Checkpoint
	found := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "Last processed index:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "Last processed index:"))
			n, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			cp.LastProcessed = n
			found = true
		case strings.HasPrefix(line, "Articles downloaded:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "Articles downloaded:"))
			parts := strings.SplitN(value, "/", 2)
			if len(parts) != 2 {
				continue
			}
			if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
				cp.Completed = n
			}
			if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				cp.Total = n
			}
		case strings.HasPrefix(line, "Timestamp:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "Timestamp:"))
			if ts, err := time.ParseInLocation(checkpointTimeLayout, value, time.Local); err == nil {
				cp.Timestamp = ts
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Checkpoint{}, false, fmt.Errorf("scan checkpoint %s: %w", c.path, err)
	}
	return cp, found, nil
}
