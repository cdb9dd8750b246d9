// Package artifacts persists screenshots produced during a run.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Store writes artifacts under <dir>/<runID>/ and remembers every path it wrote.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	paths []string
}

// NewStore expands a leading ~ in baseDir and creates the run directory.
func NewStore(baseDir, runID string, logger *zap.Logger) (*Store, error) {
	expanded, err := homedir.Expand(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand artifacts dir %q: %w", baseDir, err)
	}
	dir := filepath.Join(expanded, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger.Named("artifacts")}, nil
}

// Dir is the run directory.
func (s *Store) Dir() string { return s.dir }

// SavePNG writes data as <name>.png. Names are sanitized; a name that was
// already used gets a numeric suffix rather than overwriting.
func (s *Store) SavePNG(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := sanitize(name)
	path := filepath.Join(s.dir, base+".png")
	for i := 2; fileExists(path); i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s-%d.png", base, i))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	s.paths = append(s.paths, path)
	s.logger.Debug("Artifact saved.", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// Paths lists every artifact written so far, in write order.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

func sanitize(name string) string {
	clean := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_.")
	if clean == "" {
		return "artifact"
	}
	return clean
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
