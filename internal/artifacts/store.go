package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"soundsketch/internal/config"
)

// Category names a subdirectory within a job's artifact tree.
type Category string

const (
	CategorySource   Category = "source"
	CategoryStems    Category = "stems"
	CategoryMIDI     Category = "midi"
	CategoryMusicXML Category = "musicxml"
	CategoryAnalysis Category = "analysis"
)

var knownCategories = map[Category]struct{}{
	CategorySource:   {},
	CategoryStems:    {},
	CategoryMIDI:     {},
	CategoryMusicXML: {},
	CategoryAnalysis: {},
}

// ErrArtifactNotFound indicates the requested file does not exist for the job.
var ErrArtifactNotFound = errors.New("artifact not found")

// Store lays out job artifacts on disk as
// <root>/<job_id>/<category>/<filename>. Writes go through a temp file and
// rename so readers never observe a partial artifact.
type Store struct {
	root string
}

// NewStore builds a Store rooted at the configured output directory.
func NewStore(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return &Store{root: cfg.Paths.OutputDir}, nil
}

// Root returns the artifact root directory.
func (s *Store) Root() string {
	return s.root
}

// JobDir returns the directory that holds all artifacts for one job.
func (s *Store) JobDir(jobID string) (string, error) {
	if err := validateName(jobID); err != nil {
		return "", fmt.Errorf("job id: %w", err)
	}
	return filepath.Join(s.root, jobID), nil
}

// Path resolves the on-disk location of one artifact without touching disk.
func (s *Store) Path(jobID string, category Category, filename string) (string, error) {
	dir, err := s.categoryDir(jobID, category)
	if err != nil {
		return "", err
	}
	if err := validateName(filename); err != nil {
		return "", fmt.Errorf("filename: %w", err)
	}
	return filepath.Join(dir, filename), nil
}

// Put streams content into the artifact tree. An existing file with the same
// name is replaced; last writer wins.
func (s *Store) Put(jobID string, category Category, filename string, r io.Reader) (string, error) {
	target, err := s.Path(jobID, category, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("mkdir category dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return target, nil
}

// PutBytes stores a fully materialized artifact.
func (s *Store) PutBytes(jobID string, category Category, filename string, data []byte) (string, error) {
	return s.Put(jobID, category, filename, strings.NewReader(string(data)))
}

// PutFile copies an existing file (for example a stem produced by an external
// tool in its own scratch directory) into the artifact tree.
func (s *Store) PutFile(jobID string, category Category, filename, srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()
	return s.Put(jobID, category, filename, src)
}

// Open returns a reader over one artifact along with its size.
func (s *Store) Open(jobID string, category Category, filename string) (io.ReadCloser, int64, error) {
	target, err := s.Path(jobID, category, filename)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrArtifactNotFound
		}
		return nil, 0, fmt.Errorf("open artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat artifact: %w", err)
	}
	return f, info.Size(), nil
}

// Read returns the full content of one artifact.
func (s *Store) Read(jobID string, category Category, filename string) ([]byte, error) {
	f, _, err := s.Open(jobID, category, filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// List returns the artifact filenames present for a job category, sorted.
func (s *Store) List(jobID string, category Category) ([]string, error) {
	dir, err := s.categoryDir(jobID, category)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read category dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListJobs returns the job ids that have artifact directories, sorted.
func (s *Store) ListJobs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact root: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteJob removes a job's entire artifact tree.
func (s *Store) DeleteJob(jobID string) error {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete job artifacts: %w", err)
	}
	return nil
}

func (s *Store) categoryDir(jobID string, category Category) (string, error) {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return "", err
	}
	if _, ok := knownCategories[category]; !ok {
		return "", fmt.Errorf("unknown artifact category %q", category)
	}
	return filepath.Join(dir, string(category)), nil
}

// validateName rejects path components that could escape the artifact tree.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("reserved name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("path separator in %q", name)
	}
	return nil
}
