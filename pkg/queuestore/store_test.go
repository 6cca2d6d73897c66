package queuestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bft-labs/mulecore/pkg/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	file, err := OpenFileStore("q", filepath.Join(t.TempDir(), "q"))
	require.NoError(t, err)
	dual, err := OpenDualFileStore("q", t.TempDir())
	require.NoError(t, err)
	strategy, err := OpenStrategyStore("q", objectstore.NewMemoryStrategy())
	require.NoError(t, err)

	stores := map[string]Store{
		"memory":   NewMemoryStore("q"),
		"file":     file,
		"dual":     dual,
		"strategy": strategy,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func drain(t *testing.T, s Store) []string {
	t.Helper()
	var out []string
	for {
		item, err := s.PollFirst()
		require.NoError(t, err)
		if item == nil {
			return out
		}
		out = append(out, string(item))
	}
}

func TestStore_FIFO(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, item := range []string{"a", "b", "c"} {
				require.NoError(t, s.PutLast([]byte(item)))
			}
			assert.Equal(t, 3, s.Size())

			head, err := s.PeekFirst()
			require.NoError(t, err)
			assert.Equal(t, "a", string(head))
			assert.Equal(t, []string{"a", "b", "c"}, drain(t, s))
			assert.Equal(t, 0, s.Size())

			empty, err := s.PollFirst()
			require.NoError(t, err)
			assert.Nil(t, empty)
		})
	}
}

func TestStore_PutFirstAndRemoveIf(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutLast([]byte("b")))
			require.NoError(t, s.PutLast([]byte("c")))
			require.NoError(t, s.PutFirst([]byte("a")))

			removed, err := s.RemoveIf(func(item []byte) bool { return string(item) == "b" })
			require.NoError(t, err)
			assert.True(t, removed)

			removed, err = s.RemoveIf(func(item []byte) bool { return string(item) == "zz" })
			require.NoError(t, err)
			assert.False(t, removed)

			assert.Equal(t, []string{"a", "c"}, drain(t, s))
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutLast([]byte("a")))
			require.NoError(t, s.PutLast([]byte("b")))
			require.NoError(t, s.Clear())
			assert.Equal(t, 0, s.Size())

			require.NoError(t, s.PutLast([]byte("c")))
			assert.Equal(t, []string{"c"}, drain(t, s))
		})
	}
}

func TestFileStore_TombstonesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders-1")

	s, err := OpenFileStore("orders", path)
	require.NoError(t, err)
	for _, item := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.PutLast([]byte(item)))
	}
	_, err = s.PollFirst()
	require.NoError(t, err)
	_, err = s.RemoveIf(func(item []byte) bool { return string(item) == "c" })
	require.NoError(t, err)
	sizeBefore := s.FileSize()
	require.NoError(t, s.Close())

	reopened, err := OpenFileStore("orders", path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, sizeBefore, reopened.FileSize(), "tombstones are kept on disk")
	assert.Equal(t, []string{"b", "d", "e"}, drain(t, reopened))
}

func TestFileStore_PutFirstOrderSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q")

	s, err := OpenFileStore("q", path)
	require.NoError(t, err)
	require.NoError(t, s.PutLast([]byte("b")))
	require.NoError(t, s.PutFirst([]byte("a")))
	require.NoError(t, s.PutLast([]byte("c")))
	require.NoError(t, s.PutFirst([]byte("first")))
	require.NoError(t, s.Close())

	reopened, err := OpenFileStore("q", path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []string{"first", "a", "b", "c"}, drain(t, reopened))
}

func TestFileStore_TruncatedTailIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q")

	s, err := OpenFileStore("q", path)
	require.NoError(t, err)
	require.NoError(t, s.PutLast([]byte("complete")))
	complete := s.FileSize()
	require.NoError(t, s.Close())

	// A header announcing ten bytes followed by only three.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte{flagLive, 0, 0, 0, 10, 'a', 'b', 'c'})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := OpenFileStore("q", path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, complete, reopened.FileSize())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, complete, info.Size())

	require.NoError(t, reopened.PutLast([]byte("next")))
	assert.Equal(t, []string{"complete", "next"}, drain(t, reopened))
}

func TestFileStore_ClosedStore(t *testing.T) {
	s, err := OpenFileStore("q", filepath.Join(t.TempDir(), "q"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.PutLast([]byte("x")), ErrClosed)
	_, err = s.PollFirst()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}

func TestDualFileStore_RotatesAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDualFileStore("orders", dir, WithMaxFileSize(16))
	require.NoError(t, err)

	read, write := d.Files()
	assert.Equal(t, read, write)
	assert.Equal(t, filepath.Join(dir, StoreDir, "orders-1"), read)

	// Each record is 5 header bytes plus 8 payload bytes.
	require.NoError(t, d.PutLast([]byte("item-001")))
	require.NoError(t, d.PutLast([]byte("item-002")))
	require.NoError(t, d.PutLast([]byte("item-003")))

	read, write = d.Files()
	assert.NotEqual(t, read, write, "writes moved to the second file")
	assert.Equal(t, filepath.Join(dir, StoreDir, "orders-2"), write)
	assert.Equal(t, 3, d.Size())

	first, err := d.PollFirst()
	require.NoError(t, err)
	assert.Equal(t, "item-001", string(first))
	require.NoError(t, d.Close())

	reopened, err := OpenDualFileStore("orders", dir, WithMaxFileSize(16))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []string{"item-002", "item-003"}, drain(t, reopened))
	read, write = reopened.Files()
	assert.Equal(t, read, write, "drained read file hands focus to the write file")
	assert.Equal(t, filepath.Join(dir, StoreDir, "orders-2"), read)
}

func TestDualFileStore_DoesNotRotateIntoUndrainedFile(t *testing.T) {
	d, err := OpenDualFileStore("q", t.TempDir(), WithMaxFileSize(1))
	require.NoError(t, err)
	defer d.Close()

	for _, item := range []string{"a", "b", "c", "d"} {
		require.NoError(t, d.PutLast([]byte(item)))
	}
	read, write := d.Files()
	assert.NotEqual(t, read, write)

	// The read file still holds "a", so the write file keeps growing.
	_, secondWrite := d.Files()
	assert.Equal(t, write, secondWrite)
	assert.Equal(t, []string{"a", "b", "c", "d"}, drain(t, d))
}

func TestDualFileStore_StateFileRepair(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDualFileStore("q", dir, WithMaxFileSize(1))
	require.NoError(t, err)
	require.NoError(t, d.PutLast([]byte("a")))
	require.NoError(t, d.PutLast([]byte("b")))
	require.NoError(t, d.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, StoreDir, "q.state")))

	reopened, err := OpenDualFileStore("q", dir, WithMaxFileSize(1))
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []string{"a", "b"}, drain(t, reopened))
}

func TestStrategyStore_SurvivesReopen(t *testing.T) {
	strategy := objectstore.NewFileStrategy(t.TempDir())
	require.NoError(t, strategy.Open())

	s, err := OpenStrategyStore("q", strategy)
	require.NoError(t, err)
	require.NoError(t, s.PutLast([]byte("b")))
	require.NoError(t, s.PutLast([]byte("c")))
	require.NoError(t, s.PutFirst([]byte("a")))
	assert.True(t, s.IsPersistent())

	other, err := OpenStrategyStore("other", strategy)
	require.NoError(t, err)
	require.NoError(t, other.PutLast([]byte("x")))

	reopened, err := OpenStrategyStore("q", strategy)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, drain(t, reopened))

	require.NoError(t, reopened.PutFirst([]byte("z")))
	require.NoError(t, reopened.PutLast([]byte("y")))
	again, err := OpenStrategyStore("q", strategy)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y"}, drain(t, again))
}

func TestStore_Dispose(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutLast([]byte("a")))
			require.NoError(t, s.Dispose())
			assert.Equal(t, 0, s.Size())
		})
	}
}

func TestDualFileStore_DisposeDeletesFiles(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDualFileStore("orders", dir, WithMaxFileSize(1))
	require.NoError(t, err)
	require.NoError(t, d.PutLast([]byte("a")))
	require.NoError(t, d.PutLast([]byte("b")))

	require.NoError(t, d.Dispose())
	entries, err := os.ReadDir(filepath.Join(dir, StoreDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.ErrorIs(t, d.PutLast([]byte("c")), ErrClosed)

	reopened, err := OpenDualFileStore("orders", dir)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 0, reopened.Size())
}

func TestStrategyStore_DisposeRemovesRecords(t *testing.T) {
	strategy := objectstore.NewMemoryStrategy()
	s, err := OpenStrategyStore("q", strategy)
	require.NoError(t, err)
	require.NoError(t, s.PutLast([]byte("a")))
	require.NoError(t, s.Dispose())

	records, err := strategy.Restore()
	require.NoError(t, err)
	assert.Empty(t, records)
}
