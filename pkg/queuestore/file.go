package queuestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Record flags.
const (
	flagLive      byte = 0
	flagRemoved   byte = 1
	flagLiveFirst byte = 2
)

const headerSize = 5

// record locates one live item in the file.
type record struct {
	offset int64
	length int32
}

// FileStore is a Store backed by a single append-only file.
type FileStore struct {
	name string
	path string

	mu          sync.Mutex
	file        *os.File
	end         int64
	orderedKeys []record
}

// OpenFileStore opens or creates the store file at path and rebuilds the
// live order from its records.
func OpenFileStore(name, path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("queuestore: open %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("queuestore: open %s: %w", path, err)
	}
	s := &FileStore{name: name, path: path, file: f}
	if err := s.scan(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// scan reads every record from the start of the file. A record cut short
// by a crash ends the scan and is truncated away.
func (s *FileStore) scan() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("queuestore: scan %s: %w", s.path, err)
	}
	size := info.Size()

	var (
		offset int64
		header [headerSize]byte
		keys   []record
	)
	for offset+headerSize <= size {
		n, err := s.file.ReadAt(header[:], offset)
		if err != nil && !(errors.Is(err, io.EOF) && n == headerSize) {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("queuestore: scan %s: %w", s.path, err)
		}
		length := int32(binary.BigEndian.Uint32(header[1:]))
		if length < 0 || offset+headerSize+int64(length) > size {
			break
		}
		rec := record{offset: offset, length: length}
		switch header[0] {
		case flagLive:
			keys = append(keys, rec)
		case flagLiveFirst:
			keys = append([]record{rec}, keys...)
		}
		offset += headerSize + int64(length)
	}

	if size > offset {
		if err := s.file.Truncate(offset); err != nil {
			return fmt.Errorf("queuestore: truncate %s: %w", s.path, err)
		}
	}
	s.end = offset
	s.orderedKeys = keys
	return nil
}

// Name returns the queue name the store was opened for.
func (s *FileStore) Name() string { return s.name }

// IsPersistent reports true; items survive a restart.
func (s *FileStore) IsPersistent() bool { return true }

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// FileSize returns the number of bytes written, tombstones included.
func (s *FileStore) FileSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// PutLast appends item to the tail of the file.
func (s *FileStore) PutLast(item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.appendLocked(flagLive, item)
	if err != nil {
		return err
	}
	s.orderedKeys = append(s.orderedKeys, rec)
	return nil
}

// PutFirst appends item so that it is read before every live record.
func (s *FileStore) PutFirst(item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.appendLocked(flagLiveFirst, item)
	if err != nil {
		return err
	}
	s.orderedKeys = append([]record{rec}, s.orderedKeys...)
	return nil
}

func (s *FileStore) appendLocked(flag byte, item []byte) (record, error) {
	if s.file == nil {
		return record{}, ErrClosed
	}
	buf := make([]byte, headerSize+len(item))
	buf[0] = flag
	binary.BigEndian.PutUint32(buf[1:], uint32(len(item)))
	copy(buf[headerSize:], item)
	if _, err := s.file.WriteAt(buf, s.end); err != nil {
		return record{}, fmt.Errorf("queuestore: write %s: %w", s.path, err)
	}
	rec := record{offset: s.end, length: int32(len(item))}
	s.end += int64(len(buf))
	return rec, nil
}

func (s *FileStore) readLocked(rec record) ([]byte, error) {
	buf := make([]byte, rec.length)
	if _, err := s.file.ReadAt(buf, rec.offset+headerSize); err != nil {
		return nil, fmt.Errorf("queuestore: read %s: %w", s.path, err)
	}
	return buf, nil
}

func (s *FileStore) tombstoneLocked(rec record) error {
	if _, err := s.file.WriteAt([]byte{flagRemoved}, rec.offset); err != nil {
		return fmt.Errorf("queuestore: remove %s: %w", s.path, err)
	}
	return nil
}

// PollFirst removes and returns the head item, tombstoning its record.
func (s *FileStore) PollFirst() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil, ErrClosed
	}
	if len(s.orderedKeys) == 0 {
		return nil, nil
	}
	rec := s.orderedKeys[0]
	item, err := s.readLocked(rec)
	if err != nil {
		return nil, err
	}
	if err := s.tombstoneLocked(rec); err != nil {
		return nil, err
	}
	s.orderedKeys = s.orderedKeys[1:]
	return item, nil
}

// PeekFirst returns the head item without removing it.
func (s *FileStore) PeekFirst() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil, ErrClosed
	}
	if len(s.orderedKeys) == 0 {
		return nil, nil
	}
	return s.readLocked(s.orderedKeys[0])
}

// RemoveIf tombstones the first item matched by match.
func (s *FileStore) RemoveIf(match func([]byte) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return false, ErrClosed
	}
	for i, rec := range s.orderedKeys {
		item, err := s.readLocked(rec)
		if err != nil {
			return false, err
		}
		if !match(item) {
			continue
		}
		if err := s.tombstoneLocked(rec); err != nil {
			return false, err
		}
		s.orderedKeys = append(s.orderedKeys[:i], s.orderedKeys[i+1:]...)
		return true, nil
	}
	return false, nil
}

// Size returns the number of live items.
func (s *FileStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orderedKeys)
}

// Clear drops every record, tombstones included.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrClosed
	}
	if err := s.file.Truncate(0); err != nil {
		return fmt.Errorf("queuestore: clear %s: %w", s.path, err)
	}
	s.end = 0
	s.orderedKeys = nil
	return nil
}

// Sync flushes the file to stable storage.
func (s *FileStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrClosed
	}
	return s.file.Sync()
}

// Close syncs and closes the file. The store is unusable afterwards.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.orderedKeys = nil
	return err
}

// Dispose closes the store and deletes its file.
func (s *FileStore) Dispose() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("queuestore: dispose %s: %w", s.path, err)
	}
	return nil
}
