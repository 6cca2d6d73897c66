package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/mulecore/pkg/queuestore"
)

func storeFiles(t *testing.T, dataDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dataDir, queuestore.StoreDir))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestQueue_DisposeWithoutTransaction(t *testing.T) {
	dir := t.TempDir()
	m := startManager(t, Configuration{Persistent: true}, WithDataDir(dir))
	s := m.Session()
	q := openQueue(t, s, "q")
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, []byte("a")))
	assert.Equal(t, 1, q.Size())
	require.NotEmpty(t, storeFiles(t, dir))

	require.NoError(t, q.Dispose())
	assert.Empty(t, storeFiles(t, dir), "store files are deleted")
	assert.NotContains(t, m.QueueNames(), "q")

	_, err := q.Poll(ctx, 0)
	assert.ErrorIs(t, err, ErrQueueDisposed)
	assert.ErrorIs(t, q.Put(ctx, []byte("b")), ErrQueueDisposed)

	fresh := openQueue(t, s, "q")
	assert.Equal(t, 0, fresh.Size())
	require.NoError(t, fresh.Put(ctx, []byte("c")))
	assert.Equal(t, []string{"c"}, pollAll(t, fresh))
}

func TestQueue_DisposeReleasesBlockedPoll(t *testing.T) {
	m := startManager(t, Configuration{})
	q := openQueue(t, m.Session(), "q")

	errs := make(chan error, 1)
	go func() {
		_, err := q.Take(context.Background())
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.DisposeQueue("q"))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrQueueDisposed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked take not released by disposal")
	}
}

func TestTransaction_DisposeQueueAtCommit(t *testing.T) {
	for mode, opts := range transactionModes() {
		t.Run(mode, func(t *testing.T) {
			m := startManager(t, Configuration{}, opts...)
			s := m.Session()
			q := openQueue(t, s, "q")
			ctx := context.Background()

			require.NoError(t, s.Begin())
			require.NoError(t, q.Put(ctx, []byte("a")))
			require.NoError(t, s.Commit())
			assert.Equal(t, 1, q.Size())

			require.NoError(t, s.Begin())
			require.NoError(t, q.Put(ctx, []byte("staged")))
			require.NoError(t, q.Dispose())
			assert.Equal(t, 1, openQueue(t, m.Session(), "q").Size(), "disposal waits for commit")
			require.NoError(t, s.Commit())

			assert.Equal(t, 0, openQueue(t, s, "q").Size())
		})
	}
}

func TestTransaction_DisposeQueueByName(t *testing.T) {
	for mode, opts := range transactionModes() {
		t.Run(mode, func(t *testing.T) {
			m := startManager(t, Configuration{}, opts...)
			s := m.Session()
			q := openQueue(t, s, "q")
			ctx := context.Background()
			require.NoError(t, q.Put(ctx, []byte("a")))

			require.NoError(t, s.Begin())
			require.NoError(t, s.DisposeQueue("q"))
			require.NoError(t, s.Rollback())
			assert.Equal(t, []string{"a"}, pollAll(t, q), "rollback keeps the queue")

			require.NoError(t, q.Put(ctx, []byte("b")))
			require.NoError(t, s.Begin())
			item, err := q.Take(ctx)
			require.NoError(t, err)
			assert.Equal(t, "b", string(item))
			require.NoError(t, s.DisposeQueue("q"))
			require.NoError(t, s.Commit())

			assert.ErrorIs(t, q.Put(ctx, []byte("c")), ErrQueueDisposed)
			assert.Equal(t, 0, openQueue(t, s, "q").Size())
		})
	}
}
