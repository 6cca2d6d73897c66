package queuestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/bft-labs/mulecore/pkg/log"
)

// DefaultMaxFileSize is the write file size that triggers rotation.
const DefaultMaxFileSize int64 = 1 << 20

// StoreDir is the directory under the data dir holding queue files.
const StoreDir = "queuestore"

// DualOption configures a DualFileStore.
type DualOption func(*DualFileStore)

// WithMaxFileSize sets the rotation threshold in bytes.
func WithMaxFileSize(n int64) DualOption {
	return func(d *DualFileStore) {
		if n > 0 {
			d.maxFileSize = n
		}
	}
}

// WithLogger sets the logger used to report rotation.
func WithLogger(l log.Logger) DualOption {
	return func(d *DualFileStore) { d.logger = log.OrNoop(l) }
}

// rotationState is persisted next to the queue files.
type rotationState struct {
	Read  int `json:"read"`
	Write int `json:"write"`
}

// DualFileStore alternates between two FileStores to bound file growth
// without compaction. Items in the read file precede items in the write file.
type DualFileStore struct {
	name        string
	dir         string
	maxFileSize int64
	logger      log.Logger

	rw    sync.RWMutex
	files [2]*FileStore
	read  int
	write int
}

// OpenDualFileStore opens the files of queue name under <dataDir>/queuestore.
func OpenDualFileStore(name, dataDir string, opts ...DualOption) (*DualFileStore, error) {
	d := &DualFileStore{
		name:        name,
		dir:         filepath.Join(dataDir, StoreDir),
		maxFileSize: DefaultMaxFileSize,
		logger:      log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}

	base := filepath.Join(d.dir, url.PathEscape(name))
	for i := range d.files {
		f, err := OpenFileStore(name, fmt.Sprintf("%s-%d", base, i+1))
		if err != nil {
			d.closeFiles()
			return nil, err
		}
		d.files[i] = f
	}

	if err := d.loadState(); err != nil {
		d.closeFiles()
		return nil, err
	}
	return d, nil
}

func (d *DualFileStore) statePath() string {
	return filepath.Join(d.dir, url.PathEscape(d.name)+".state")
}

// loadState restores read and write focus. A missing or stale state file
// is repaired from the file contents.
func (d *DualFileStore) loadState() error {
	var st rotationState
	data, err := os.ReadFile(d.statePath())
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("queuestore: state %s: %w", d.statePath(), err)
		}
	case errors.Is(err, os.ErrNotExist):
		if d.files[0].Size() == 0 && d.files[1].Size() > 0 {
			st = rotationState{Read: 1, Write: 1}
		}
	default:
		return fmt.Errorf("queuestore: state %s: %w", d.statePath(), err)
	}

	if st.Read < 0 || st.Read > 1 || st.Write < 0 || st.Write > 1 {
		st = rotationState{}
	}
	d.read, d.write = st.Read, st.Write
	other := 1 - d.read
	if d.read == d.write && d.files[other].Size() > 0 {
		d.write = other
	}
	if d.read != d.write && d.files[d.read].Size() == 0 {
		if err := d.files[d.read].Clear(); err != nil {
			return err
		}
		d.read = d.write
	}
	return d.saveStateLocked()
}

// saveStateLocked writes the rotation state atomically.
func (d *DualFileStore) saveStateLocked() error {
	data, err := json.Marshal(rotationState{Read: d.read, Write: d.write})
	if err != nil {
		return err
	}
	path := d.statePath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("queuestore: state %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("queuestore: state %s: %w", path, err)
	}
	return nil
}

// Name returns the queue name the store was opened for.
func (d *DualFileStore) Name() string { return d.name }

// IsPersistent reports true; items survive a restart.
func (d *DualFileStore) IsPersistent() bool { return true }

// Files returns the paths of the read and write files.
func (d *DualFileStore) Files() (read, write string) {
	d.rw.RLock()
	defer d.rw.RUnlock()
	return d.files[d.read].Path(), d.files[d.write].Path()
}

// rotateIfNeeded moves writes to the other file once the write file has
// grown past the threshold and the other file holds nothing.
func (d *DualFileStore) rotateIfNeeded() error {
	d.rw.RLock()
	needed := d.needsRotation()
	d.rw.RUnlock()
	if !needed {
		return nil
	}

	d.rw.Lock()
	defer d.rw.Unlock()
	if !d.needsRotation() {
		return nil
	}
	other := 1 - d.write
	if err := d.files[other].Clear(); err != nil {
		return err
	}
	previous := d.write
	d.write = other
	if err := d.saveStateLocked(); err != nil {
		return err
	}
	d.logger.Info("rotated queue write file",
		log.String("queue", d.name),
		log.String("from", d.files[previous].Path()),
		log.String("to", d.files[other].Path()),
	)
	return nil
}

func (d *DualFileStore) needsRotation() bool {
	return d.read == d.write &&
		d.files[d.write].FileSize() > d.maxFileSize &&
		d.files[1-d.write].Size() == 0
}

// advanceReadLocked moves read focus to the write file once the read file is
// drained. Callers hold the write lock.
func (d *DualFileStore) advanceReadLocked() error {
	if d.read == d.write || d.files[d.read].Size() > 0 {
		return nil
	}
	if err := d.files[d.read].Clear(); err != nil {
		return err
	}
	d.read = d.write
	return d.saveStateLocked()
}

// PutLast appends item to the write file, rotating it first when full.
func (d *DualFileStore) PutLast(item []byte) error {
	if err := d.rotateIfNeeded(); err != nil {
		return err
	}
	d.rw.RLock()
	defer d.rw.RUnlock()
	return d.files[d.write].PutLast(item)
}

// PutFirst puts item at the head of the read file.
func (d *DualFileStore) PutFirst(item []byte) error {
	d.rw.RLock()
	defer d.rw.RUnlock()
	return d.files[d.read].PutFirst(item)
}

// PollFirst removes and returns the head item, moving to the next file once the read file drains.
func (d *DualFileStore) PollFirst() ([]byte, error) {
	d.rw.Lock()
	defer d.rw.Unlock()
	if err := d.advanceReadLocked(); err != nil {
		return nil, err
	}
	item, err := d.files[d.read].PollFirst()
	if err != nil || item == nil {
		return item, err
	}
	if err := d.advanceReadLocked(); err != nil {
		return nil, err
	}
	return item, nil
}

// PeekFirst returns the head item without removing it.
func (d *DualFileStore) PeekFirst() ([]byte, error) {
	d.rw.Lock()
	defer d.rw.Unlock()
	if err := d.advanceReadLocked(); err != nil {
		return nil, err
	}
	return d.files[d.read].PeekFirst()
}

// RemoveIf removes the first item matched by match from either file.
func (d *DualFileStore) RemoveIf(match func([]byte) bool) (bool, error) {
	d.rw.Lock()
	defer d.rw.Unlock()
	removed, err := d.files[d.read].RemoveIf(match)
	if err != nil {
		return false, err
	}
	if !removed && d.read != d.write {
		if removed, err = d.files[d.write].RemoveIf(match); err != nil {
			return false, err
		}
	}
	if removed {
		if err := d.advanceReadLocked(); err != nil {
			return true, err
		}
	}
	return removed, nil
}

// Size returns the number of live items across both files.
func (d *DualFileStore) Size() int {
	d.rw.RLock()
	defer d.rw.RUnlock()
	if d.read == d.write {
		return d.files[d.read].Size()
	}
	return d.files[d.read].Size() + d.files[d.write].Size()
}

// Clear removes every item from both files.
func (d *DualFileStore) Clear() error {
	d.rw.Lock()
	defer d.rw.Unlock()
	for _, f := range d.files {
		if err := f.Clear(); err != nil {
			return err
		}
	}
	d.read, d.write = 0, 0
	return d.saveStateLocked()
}

// Close persists the file state and closes both files.
func (d *DualFileStore) Close() error {
	d.rw.Lock()
	defer d.rw.Unlock()
	return d.closeFiles()
}

// Dispose closes and deletes both files and the state file.
func (d *DualFileStore) Dispose() error {
	d.rw.Lock()
	defer d.rw.Unlock()
	var errs []error
	for _, f := range d.files {
		if f != nil {
			errs = append(errs, f.Dispose())
		}
	}
	if err := os.Remove(d.statePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("queuestore: dispose %s: %w", d.statePath(), err))
	}
	return errors.Join(errs...)
}

func (d *DualFileStore) closeFiles() error {
	var errs []error
	for _, f := range d.files {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}
