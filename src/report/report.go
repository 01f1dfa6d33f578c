package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store writes run artifacts (job details, verification reports) into a
// results directory. File names carry a UTC timestamp so repeated runs
// never clobber each other.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a Store rooted at dir. The directory is created lazily
// on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) stamp() string {
	return s.now().UTC().Format("20060102-150405")
}

func (s *Store) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s", s.stamp(), name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON marshals v with indentation and stores it as <stamp>-<name>.json.
func (s *Store) WriteJSON(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}
	return s.write(name+".json", append(data, '\n'))
}

// WriteMarkdown stores rendered Markdown as <stamp>-<name>.md.
func (s *Store) WriteMarkdown(name, content string) (string, error) {
	return s.write(name+".md", []byte(content))
}
