package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pricescout/pricescout/internal/models"
)

// ArtifactStore retains capture artifacts on disk for debugging failed
// or low-confidence extractions. Retention is opt-in; the pipeline
// works entirely in memory when no store is configured.
type ArtifactStore struct {
	mu  sync.Mutex
	dir string
}

func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Save writes the screenshot and rendered HTML for one target. Files
// are written to a temp name first and renamed so a crash never leaves
// a partial artifact behind.
func (s *ArtifactStore) Save(target models.ScrapeTarget, artifact *models.CaptureArtifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := artifact.CapturedAt.UTC().Format("20060102T150405")
	base := fmt.Sprintf("p%d-%s-%s", target.ProductID, sanitize(target.PlatformName), stamp)

	pngPath := filepath.Join(s.dir, base+".png")
	if err := writeAtomic(pngPath, artifact.Image); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}

	htmlPath := filepath.Join(s.dir, base+".html")
	if err := writeAtomic(htmlPath, []byte(artifact.HTML)); err != nil {
		return "", fmt.Errorf("failed to save html: %w", err)
	}

	return pngPath, nil
}

// Prune removes artifacts older than maxAge and returns how many files
// were deleted.
func (s *ArtifactStore) Prune(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
