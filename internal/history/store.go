// Package history implements the append-only JSON history files kept under
// the local state directory.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/seo-pilot/internal/clock/system"
)

// DefaultDir is the state directory relative to the working directory.
const DefaultDir = ".seo-pilot"

// History file names, one per command.
const (
	IndexFile    = "index-history.json"
	InspectFile  = "inspect-history.json"
	RankFile     = "rank-history.json"
	DiscoverFile = "discover-history.json"
	AuditFile    = "audit-history.json"
)

// Entry is one history record. Only "timestamp" is expected to be present.
type Entry map[string]any

// NewEntry returns an entry stamped with at in ISO-8601 UTC.
func NewEntry(at time.Time) Entry {
	return Entry{"timestamp": system.Timestamp(at)}
}

// Timestamp parses the entry's timestamp field.
func (e Entry) Timestamp() (time.Time, bool) {
	raw, ok := e["timestamp"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// String returns the string field key, or "" when absent or not a string.
func (e Entry) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Config captures the parameters for the history store.
type Config struct {
	// BaseDir is the directory holding the history files.
	BaseDir string `mapstructure:"state_dir"`
}

// Store reads and appends history files.
type Store struct {
	mu      sync.Mutex
	baseDir string
}

// New creates a Store. The directory is created lazily on first write.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	if err == nil && !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	return &Store{baseDir: cfg.BaseDir}, nil
}

// Dir returns the directory holding history files.
func (s *Store) Dir() string {
	return s.baseDir
}

func (s *Store) path(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("file name is required")
	}
	fullPath := filepath.Join(s.baseDir, name)

	// The file must sit inside baseDir, including when baseDir is "." or "/".
	rel, err := filepath.Rel(filepath.Clean(s.baseDir), fullPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}

// Read returns every entry in name, or an empty slice if the file does not exist.
func (s *Store) Read(name string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(name)
}

func (s *Store) read(name string) ([]Entry, error) {
	fullPath, err := s.path(name)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- fullPath is confined to baseDir above.
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history %s: %w", name, err)
	}
	entries := []Entry{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("history %s is not a JSON array: %w", name, err)
	}
	return entries, nil
}

// Append adds entries to the end of name, creating the file and directory as needed.
func (s *Store) Append(name string, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(name)
	if err != nil {
		return err
	}
	existing = append(existing, entries...)

	fullPath, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history %s: %w", name, err)
	}
	return nil
}
