// Package storage keeps produced artifacts on local disk and tracks who
// owns them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const maxNameStem = 60

var (
	ErrInvalidName = errors.New("storage: invalid filename")
	ErrNotFound    = errors.New("storage: file not found")

	validName = regexp.MustCompile(`^[\w.-]+$`)
)

// ValidName reports whether name is safe to join onto the output directory.
func ValidName(name string) bool {
	return validName.MatchString(name) && strings.Trim(name, ".") != ""
}

// OutputName builds caniedit-<stems>-<token>.pdf from up to three input
// names, falling back to fallback when none yield a usable slug.
func OutputName(inputs []string, fallback string) string {
	stems := make([]string, 0, 3)
	for i, name := range inputs {
		if len(stems) == 3 {
			break
		}
		s := slug.Make(strings.TrimSuffix(name, filepath.Ext(name)))
		if s == "" {
			s = fmt.Sprintf("file-%d", i+1)
		}
		stems = append(stems, s)
	}

	joined := strings.Join(stems, "-")
	if len(joined) > maxNameStem {
		joined = strings.TrimRight(joined[:maxNameStem], "-")
	}
	if joined == "" {
		joined = fallback
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("caniedit-%s-%s.pdf", joined, token)
}

// Store is a flat directory of artifacts.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Path resolves name inside the store.
func (s *Store) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// Save writes r to name. The file appears atomically.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	return path, nil
}

func (s *Store) Exists(name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *Store) Delete(name string) error {
	ok, err := s.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	path, _ := s.Path(name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Sweep removes regular files last modified more than maxAge ago. Files
// that vanish or cannot be removed are skipped until the next pass.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	var removed int64
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
