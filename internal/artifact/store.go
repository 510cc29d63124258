package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
)

const (
	AccountsFile  = "accounts.json"
	SurveysFile   = "surveys.json"
	ResponsesFile = "responses.json"
)

// ErrMissingArtifacts is returned when an expected collection is absent or unreadable.
var ErrMissingArtifacts = errors.New("missing artifacts")

// Store is the on-disk handoff between generation and seeding: three JSON
// arrays in one directory. Collections are only ever rewritten whole.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// WriteAll replaces the three collections. Each file is written to a
// temporary sibling and renamed into place, so readers see either the old
// collection or the new one, never a truncated one.
func (s *Store) WriteAll(b schema.Batch) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory %s: %w", s.dir, err)
	}

	if err := writeCollection(s.Path(AccountsFile), nonNil(b.Accounts)); err != nil {
		return err
	}
	if err := writeCollection(s.Path(SurveysFile), nonNil(b.Surveys)); err != nil {
		return err
	}
	return writeCollection(s.Path(ResponsesFile), nonNil(b.Responses))
}

// ReadAll loads the three collections. A missing or undecodable collection
// yields an error wrapping ErrMissingArtifacts.
func (s *Store) ReadAll() (schema.Batch, error) {
	var b schema.Batch
	if err := readCollection(s.Path(AccountsFile), &b.Accounts); err != nil {
		return schema.Batch{}, err
	}
	if err := readCollection(s.Path(SurveysFile), &b.Surveys); err != nil {
		return schema.Batch{}, err
	}
	if err := readCollection(s.Path(ResponsesFile), &b.Responses); err != nil {
		return schema.Batch{}, err
	}
	return b, nil
}

// CollectionInfo describes one collection file for inspection.
type CollectionInfo struct {
	Name     string
	Path     string
	Exists   bool
	Records  int
	Modified time.Time
	Err      error
}

// Stat reports on each collection without failing on the first missing one.
func (s *Store) Stat() []CollectionInfo {
	names := []string{AccountsFile, SurveysFile, ResponsesFile}
	infos := make([]CollectionInfo, 0, len(names))

	for _, name := range names {
		info := CollectionInfo{Name: name, Path: s.Path(name)}
		fi, err := os.Stat(info.Path)
		if err != nil {
			if !os.IsNotExist(err) {
				info.Err = err
			}
			infos = append(infos, info)
			continue
		}
		info.Exists = true
		info.Modified = fi.ModTime()

		var records []json.RawMessage
		if err := readCollection(info.Path, &records); err != nil {
			info.Err = err
		} else {
			info.Records = len(records)
		}
		infos = append(infos, info)
	}
	return infos
}

func writeCollection(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readCollection(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMissingArtifacts, filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s is not a valid collection: %v", ErrMissingArtifacts, filepath.Base(path), err)
	}
	return nil
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
