package objectstore

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
)

const recordSuffix = ".msg"

// FileStrategy stores each record in its own file under
// <dir>/<queue>/<key>.msg. Queue names and keys are path-escaped.
type FileStrategy struct {
	dir string

	mu     sync.RWMutex
	closed bool
}

// NewFileStrategy creates a file strategy rooted at dir.
func NewFileStrategy(dir string) *FileStrategy {
	return &FileStrategy{dir: dir}
}

// Dir returns the root directory.
func (f *FileStrategy) Dir() string { return f.dir }

func (f *FileStrategy) IsPersistent() bool { return true }

// Open creates the root directory and removes temp files left by a crash.
func (f *FileStrategy) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("objectstore: open %s: %w", f.dir, err)
	}
	tmps, err := filepath.Glob(filepath.Join(f.dir, "*", "*.tmp"))
	if err != nil {
		return fmt.Errorf("objectstore: open %s: %w", f.dir, err)
	}
	for _, tmp := range tmps {
		_ = os.Remove(tmp)
	}
	f.closed = false
	return nil
}

func (f *FileStrategy) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FileStrategy) path(queue, key string) string {
	return filepath.Join(f.dir, url.PathEscape(queue), url.PathEscape(key)+recordSuffix)
}

// Store writes value atomically: temp file first, then rename.
func (f *FileStrategy) Store(queue, key string, value []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrClosed
	}

	path := f.path(queue, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("objectstore: store %s/%s: %w", queue, key, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("objectstore: store %s/%s: %w", queue, key, err)
	}
	tmp := path + "." + id.String() + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return fmt.Errorf("objectstore: store %s/%s: %w", queue, key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("objectstore: store %s/%s: %w", queue, key, err)
	}
	return nil
}

func (f *FileStrategy) Remove(queue, key string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrClosed
	}
	if err := os.Remove(f.path(queue, key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("objectstore: remove %s/%s: %w", queue, key, err)
	}
	return nil
}

func (f *FileStrategy) Load(queue, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	data, err := os.ReadFile(f.path(queue, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objectstore: load %s/%s: %w", queue, key, err)
	}
	return data, nil
}

// Restore reads back every record on disk.
func (f *FileStrategy) Restore() ([]Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}

	dirs, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("objectstore: restore: %w", err)
	}

	var out []Record
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		queue, err := url.PathUnescape(d.Name())
		if err != nil {
			continue
		}
		files, err := os.ReadDir(filepath.Join(f.dir, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("objectstore: restore %s: %w", queue, err)
		}
		for _, file := range files {
			name := file.Name()
			if file.IsDir() || !strings.HasSuffix(name, recordSuffix) {
				continue
			}
			key, err := url.PathUnescape(strings.TrimSuffix(name, recordSuffix))
			if err != nil {
				continue
			}
			data, err := os.ReadFile(filepath.Join(f.dir, d.Name(), name))
			if err != nil {
				return nil, fmt.Errorf("objectstore: restore %s/%s: %w", queue, key, err)
			}
			out = append(out, Record{Queue: queue, Key: key, Value: data})
		}
	}
	sortRecords(out)
	return out, nil
}
